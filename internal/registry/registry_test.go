package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/internal/store"
	"fusor/internal/table"
)

const sum = `grammar sum;
precedence { %left '+'; }
rule sum = sum '+' sum | n;
token n = /\d+/;
`

const sumYAML = `
name: sum
precedence: ["%left '+'"]
rules:
  sum: "sum '+' sum | n"
tokens:
  n: /\d+/
`

func TestKeyDependsOnOptions(t *testing.T) {
	src := []byte(sum)
	assert.Equal(t, KeyFor(src, table.Options{}), KeyFor(src, table.Options{}))
	assert.NotEqual(t, KeyFor(src, table.Options{}), KeyFor(src, table.Options{Strict: true}))
	assert.NotEqual(t, KeyFor(src, table.Options{}), KeyFor(src, table.Options{Mode: table.ModeLALR}))
	assert.NotEqual(t, KeyFor(src, table.Options{}), KeyFor([]byte(sum+"\n"), table.Options{}))
}

func TestConcurrentCompilesShareOneEntry(t *testing.T) {
	r := New(table.Options{}, nil)
	const n = 8
	entries := make([]*Entry, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := r.Compile(context.Background(), "sum.fsg", []byte(sum))
			assert.NoError(t, err)
			entries[i] = e
		}()
	}
	wg.Wait()
	for _, e := range entries[1:] {
		assert.Same(t, entries[0], e)
	}
	assert.Equal(t, 1, r.Len())
	assert.NotNil(t, entries[0].Report)
	assert.False(t, entries[0].Cached)
}

func TestCacheIsConsulted(t *testing.T) {
	cache, err := store.OpenInMemory()
	require.NoError(t, err)
	defer cache.Close()

	first, err := New(table.Options{}, cache).Compile(context.Background(), "sum.fsg", []byte(sum))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := New(table.Options{}, cache).Compile(context.Background(), "sum.fsg", []byte(sum))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Report)
	assert.Equal(t, first.Language.Digest(), second.Language.Digest())
}

func TestForget(t *testing.T) {
	r := New(table.Options{}, nil)
	_, err := r.Compile(context.Background(), "sum.fsg", []byte(sum))
	require.NoError(t, err)
	r.Forget([]byte(sum))
	assert.Zero(t, r.Len())
}

func TestYAMLFrontEnd(t *testing.T) {
	e, err := New(table.Options{}, nil).Compile(context.Background(), "sum.yaml", []byte(sumYAML))
	require.NoError(t, err)
	assert.Equal(t, "sum", e.Language.Name())
}

func TestErrorsAreReturned(t *testing.T) {
	r := New(table.Options{}, nil)
	_, err := r.Compile(context.Background(), "bad.fsg", []byte("grammar bad; rule a = b;"))
	assert.Error(t, err)
	assert.Zero(t, r.Len())
}
