// Package registry turns grammar sources into compiled languages. Identical
// requests share one compilation and results are kept in memory and,
// optionally, in the on-disk table cache.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"fusor/grammar"
	"fusor/internal/model"
	"fusor/internal/store"
	"fusor/internal/table"
)

var log = commonlog.GetLogger("fusor.registry")

// Entry is one compiled grammar. Report is nil when the tables came from
// a cache.
type Entry struct {
	Key      store.Key
	Language *table.Language
	Report   *table.Report
	Cached   bool
}

type Registry struct {
	opts  table.Options
	cache *store.Store

	group   singleflight.Group
	mu      sync.Mutex
	entries map[store.Key]*Entry
}

// New returns a registry compiling with opts. cache may be nil.
func New(opts table.Options, cache *store.Store) *Registry {
	return &Registry{opts: opts, cache: cache, entries: make(map[store.Key]*Entry)}
}

// Options returns the compile options every entry is built with.
func (r *Registry) Options() table.Options { return r.opts }

// KeyFor derives the cache key of a grammar source under opts.
func KeyFor(source []byte, opts table.Options) store.Key {
	h := sha256.New()
	h.Write(source)
	var buf [12]byte
	buf[0] = byte(opts.Mode)
	if opts.Strict {
		buf[1] = 1
	}
	binary.LittleEndian.PutUint32(buf[4:], uint32(opts.MaxFanout))
	binary.LittleEndian.PutUint16(buf[8:], table.FormatVersion)
	binary.LittleEndian.PutUint16(buf[10:], table.ABIVersion)
	h.Write(buf[:])
	return store.Key(h.Sum(nil))
}

// Load reads and compiles a grammar file.
func (r *Registry) Load(ctx context.Context, path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Compile(ctx, path, data)
}

// Compile returns the language for source. The file name selects the
// front-end: .yaml, .yml and .json use the YAML loader, anything else the
// DSL parser.
func (r *Registry) Compile(ctx context.Context, filename string, source []byte) (*Entry, error) {
	key := KeyFor(source, r.opts)
	if e := r.lookup(key); e != nil {
		return e, nil
	}
	v, err, shared := r.group.Do(string(key[:]), func() (any, error) {
		if e := r.lookup(key); e != nil {
			return e, nil
		}
		e, err := r.build(ctx, key, filename, source)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[key] = e
		r.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("%s: shared a concurrent compilation", filename)
	}
	return v.(*Entry), nil
}

func (r *Registry) lookup(key store.Key) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[key]
}

func (r *Registry) build(ctx context.Context, key store.Key, filename string, source []byte) (*Entry, error) {
	if r.cache != nil {
		lang, ok, err := r.cache.Get(key)
		if err != nil {
			log.Warningf("table cache: %v", err)
		} else if ok {
			log.Infof("%s: loaded tables from cache", filename)
			return &Entry{Key: key, Language: lang, Cached: true}, nil
		}
	}

	file, err := Parse(filename, source)
	if err != nil {
		return nil, err
	}
	g, err := model.Build(file)
	if err != nil {
		return nil, err
	}
	lang, report, err := table.Compile(ctx, g, r.opts)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(key, lang); err != nil {
			log.Warningf("table cache: %v", err)
		}
	}
	return &Entry{Key: key, Language: lang, Report: report}, nil
}

// Forget drops the in-memory entry for source so the next Compile checks
// the cache or rebuilds.
func (r *Registry) Forget(source []byte) {
	key := KeyFor(source, r.opts)
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Len returns the number of languages held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Parse reads a grammar source with the front-end its extension selects.
func Parse(filename string, source []byte) (*grammar.File, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", ".json":
		return grammar.LoadYAML(filename, source)
	}
	return grammar.ParseSource(filename, string(source))
}
