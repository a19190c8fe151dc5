package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReportsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "g.fsg")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	got := make(chan string, 4)
	w := New(path, func(data []byte) { got <- string(data) }).WithDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Writes can race the watcher registration, so keep writing until one
	// is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	var seen string
loop:
	for {
		select {
		case seen = <-got:
			break loop
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
	assert.Equal(t, "v2", seen)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRunIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "g.fsg")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	got := make(chan string, 4)
	w := New(path, func(data []byte) { got <- string(data) }).WithDebounce(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	select {
	case data := <-got:
		t.Fatalf("unexpected change %q", data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRunFailsOnMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "g.fsg"), func([]byte) {})
	assert.Error(t, w.Run(context.Background()))
}
