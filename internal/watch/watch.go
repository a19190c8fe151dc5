// Package watch reruns a callback whenever a file is saved.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("fusor.watch")

// DefaultDebounce collapses the burst of events an editor emits on save.
const DefaultDebounce = 100 * time.Millisecond

type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(data []byte)
}

// New watches path and hands its new contents to onChange.
func New(path string, onChange func(data []byte)) *Watcher {
	return &Watcher{path: filepath.Clean(path), debounce: DefaultDebounce, onChange: onChange}
}

// WithDebounce sets the quiet period after the last event before the file
// is read.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run blocks until ctx is done. The directory is watched rather than the
// file so that editors replacing the file on save are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	log.Infof("watching %s", w.path)

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			data, err := os.ReadFile(w.path)
			if err != nil {
				log.Warningf("reading %s: %v", w.path, err)
				continue
			}
			w.onChange(data)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watch error: %v", err)
		}
	}
}
