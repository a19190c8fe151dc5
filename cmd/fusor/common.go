package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"fusor/internal/errors"
	"fusor/internal/registry"
	"fusor/internal/scanner"
	"fusor/internal/store"
	"fusor/internal/table"
	"fusor/language/fusor"
)

// BlobExt is the extension of compiled table files.
const BlobExt = ".fusor"

// openRegistry builds a registry from the loaded config. The returned
// closer releases the table cache.
func (o *options) openRegistry(strict bool) (*registry.Registry, func(), error) {
	opts, err := o.cfg.TableOptions()
	if err != nil {
		return nil, nil, err
	}
	opts.Strict = opts.Strict || strict
	if !o.cfg.Cache.Enabled {
		return registry.New(opts, nil), func() {}, nil
	}
	cache, err := store.Open(o.cfg.Cache.Dir)
	if err != nil {
		return nil, nil, err
	}
	return registry.New(opts, cache), func() { cache.Close() }, nil
}

// loadLanguage resolves a language argument: the builtin name "fusor", a
// compiled blob, or a grammar source.
func (o *options) loadLanguage(ctx context.Context, arg string) (*table.Language, error) {
	if arg == "fusor" {
		return fusor.Language(), nil
	}
	if filepath.Ext(arg) == BlobExt {
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return table.Decode(f)
	}
	reg, closeCache, err := o.openRegistry(false)
	if err != nil {
		return nil, err
	}
	defer closeCache()
	entry, err := reg.Load(ctx, arg)
	if err != nil {
		return nil, reportSourceError(arg, err)
	}
	return entry.Language, nil
}

// scannerFor picks an external scanner by name.
func scannerFor(name string) (scanner.Scanner, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "indent":
		return scanner.Indent{}, nil
	}
	return nil, fmt.Errorf("unknown scanner %q (want indent or none)", name)
}

// errReported marks an error whose diagnostics were already printed.
var errReported = stderrors.New("failed")

// reportSourceError prints diagnostics against the file they refer to.
func reportSourceError(path string, err error) error {
	source, readErr := os.ReadFile(path)
	if readErr != nil {
		return err
	}
	fmt.Fprint(os.Stderr, errors.NewErrorReporter(path, string(source)).Format(err))
	return errReported
}

func reportWarnings(path string, warnings []*errors.GrammarError) {
	if len(warnings) == 0 {
		return
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return
	}
	reporter := errors.NewErrorReporter(path, string(source))
	for _, w := range warnings {
		fmt.Fprint(os.Stderr, reporter.FormatError(w.Diagnostic()))
	}
}

func printError(err error) {
	if stderrors.Is(err, errReported) {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
}

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return fmt.Sprintf("%.2fmin", d.Minutes())
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000.0)
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fμs", float64(d.Nanoseconds())/1000.0)
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}
