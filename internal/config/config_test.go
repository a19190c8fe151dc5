package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/internal/table"
)

func TestDefaults(t *testing.T) {
	cfg, err := Decode("")
	require.NoError(t, err)
	assert.Equal(t, "pager", cfg.Compile.Automaton)
	assert.Equal(t, table.DefaultMaxFanout, cfg.Compile.MaxFanout)
	assert.True(t, cfg.Parse.Reuse)
	assert.False(t, cfg.Cache.Enabled)
	assert.NotEmpty(t, cfg.Cache.Dir)
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode(`
[compile]
automaton = "LALR"
strict = true

[parse]
max_stacks = 4

[metrics]
addr = "127.0.0.1:9464"
`)
	require.NoError(t, err)
	assert.Equal(t, "lalr", cfg.Compile.Automaton)
	assert.Equal(t, table.DefaultMaxFanout, cfg.Compile.MaxFanout)
	assert.Equal(t, 4, cfg.Parse.MaxStacks)
	assert.True(t, cfg.Parse.Reuse)

	opts, err := cfg.TableOptions()
	require.NoError(t, err)
	assert.Equal(t, table.ModeLALR, opts.Mode)
	assert.True(t, opts.Strict)
	assert.Len(t, cfg.ParserOptions(), 2)
}

func TestDecodeRejectsInvalidValues(t *testing.T) {
	for name, text := range map[string]string{
		"mode":    "[compile]\nautomaton = \"slr\"\n",
		"fanout":  "[compile]\nmax_fanout = 0\n",
		"stacks":  "[parse]\nmax_stacks = -1\n",
		"addr":    "[metrics]\naddr = \"nope\"\n",
		"unknown": "[parse]\ncolour = true\n",
		"syntax":  "[parse\n",
		"cache":   "[cache]\nenabled = true\ndir = \"\"\n",
	} {
		_, err := Decode(text)
		assert.Error(t, err, name)
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte("[parse]\nreuse = false\n"), 0o644))

	assert.Equal(t, filepath.Join(root, FileName), Find(nested))

	cfg, err := LoadOrDefault(nested)
	require.NoError(t, err)
	assert.False(t, cfg.Parse.Reuse)
}
