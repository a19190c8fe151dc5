package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/internal/engine"
	"fusor/internal/tree"
	"fusor/language/fusor"
)

func newParser(t *testing.T) *engine.Parser {
	t.Helper()
	p, err := engine.NewParser(fusor.Language())
	require.NoError(t, err)
	return p
}

func TestSessionMatchesFreshParse(t *testing.T) {
	p := newParser(t)
	s := NewSession(p)
	ctx := context.Background()

	var res *engine.Result
	for _, line := range []string{"let x = 1", "x = x + 2", "let y = x * 3"} {
		var err error
		res, err = s.Append(ctx, line)
		require.NoError(t, err)
	}
	assert.Equal(t, "let x = 1\nx = x + 2\nlet y = x * 3\n", s.Text())

	fresh, err := p.Parse(ctx, engine.Request{Source: []byte(s.Text())})
	require.NoError(t, err)
	assert.True(t, tree.Equal(fresh.Tree.Root(), res.Tree.Root()))
}

func TestSessionReset(t *testing.T) {
	s := NewSession(newParser(t))
	ctx := context.Background()
	_, err := s.Append(ctx, "let x = 1")
	require.NoError(t, err)

	res, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Text())
	assert.Equal(t, "source_file", res.Tree.RootNode().Kind())
}

func TestStartPrintsTrees(t *testing.T) {
	var out bytes.Buffer
	Start(strings.NewReader("let x = 1\n:text\n"), &out, newParser(t))

	got := out.String()
	assert.Contains(t, got, "(source_file")
	assert.Contains(t, got, "reused")
	assert.Contains(t, got, PROMPT+"let x = 1\n")
}
