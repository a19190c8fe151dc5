package incremental_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/internal/incremental"
	"fusor/internal/tree"
	"fusor/token"
)

type lang struct{}

func (lang) SymbolName(token.Symbol) string { return "x" }
func (lang) SymbolNamed(token.Symbol) bool { return true }
func (lang) SymbolVisible(token.Symbol) bool { return true }
func (lang) FieldName(uint16) string { return "" }
func (lang) FieldID(string) (uint16, bool) { return 0, false }

func leaf(size, lookahead uint32) *tree.Subtree {
	return tree.NewLeaf(tree.Leaf{Symbol: 2, ParseSymbol: 2, Size: size, Lookahead: lookahead})
}

// sample is "ab cd ef" as three words under two groups.
func sample() *tree.Tree {
	group := tree.NewInternal(tree.Internal{Symbol: 3, ParseSymbol: 3, Children: []tree.Child{
		{Offset: 0, Node: leaf(2, 1)},
		{Offset: 3, Node: leaf(2, 1)},
	}})
	root := tree.NewInternal(tree.Internal{Symbol: 4, ParseSymbol: 4, Children: []tree.Child{
		{Offset: 0, Node: group},
		{Offset: 6, Node: leaf(2, 0)},
	}})
	return tree.New(root, []byte("ab cd ef"), lang{})
}

func TestDiff(t *testing.T) {
	e := incremental.Diff([]byte("ab cd ef"), []byte("ab cxd ef"))
	assert.Equal(t, uint32(4), e.StartByte)
	assert.Equal(t, uint32(4), e.OldEndByte)
	assert.Equal(t, uint32(5), e.NewEndByte)

	e = incremental.Diff([]byte("aaa"), []byte("aa"))
	assert.Equal(t, uint32(2), e.StartByte)
	assert.Equal(t, uint32(3), e.OldEndByte)
	assert.Equal(t, uint32(2), e.NewEndByte)

	e = incremental.Diff([]byte("x\nabc"), []byte("x\nazc"))
	assert.Equal(t, token.Point{Row: 1, Column: 1}, e.StartPoint)
	assert.Equal(t, token.Point{Row: 1, Column: 2}, e.NewEndPoint)

	e = incremental.Diff([]byte("same"), []byte("same"))
	assert.Equal(t, e.StartByte, e.OldEndByte)
	assert.Equal(t, e.StartByte, e.NewEndByte)
}

func TestApplyRejectsInvalidEdits(t *testing.T) {
	_, err := incremental.Apply(sample(), tree.Edit{StartByte: 5, OldEndByte: 20, NewEndByte: 6})
	assert.ErrorIs(t, err, incremental.ErrInvalidEdit)

	_, err = incremental.Apply(sample(), tree.Edit{StartByte: 5, OldEndByte: 4, NewEndByte: 6})
	assert.ErrorIs(t, err, incremental.ErrInvalidEdit)
}

func TestApplySequence(t *testing.T) {
	edited, err := incremental.Apply(sample(),
		tree.Edit{StartByte: 7, OldEndByte: 8, NewEndByte: 8},
		tree.Edit{StartByte: 8, OldEndByte: 8, NewEndByte: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), edited.Root().Size())
	assert.False(t, edited.Root().Children()[0].Node.HasChanges())
}

func TestIndexSkipsChangedSubtrees(t *testing.T) {
	old := sample()
	edited, err := incremental.Apply(old, tree.Edit{StartByte: 6, OldEndByte: 8, NewEndByte: 9})
	require.NoError(t, err)

	ix := incremental.NewIndex(edited)
	at0 := ix.At(0)
	require.Len(t, at0, 2)
	assert.Same(t, old.Root().Children()[0].Node, at0[0])
	assert.Equal(t, uint32(2), at0[1].Size())
	assert.Len(t, ix.At(3), 1)
	assert.Empty(t, ix.At(6))
	assert.Equal(t, 3, ix.Len())
}

func TestIndexOfNilTree(t *testing.T) {
	ix := incremental.NewIndex(nil)
	assert.Zero(t, ix.Len())
	assert.Empty(t, ix.At(0))
}

// recovered is "ab cd ??ef gh": "??" sits in an ERROR node, the lookahead
// of "cd" reaches it and "ef" starts where it ends.
func recovered() *tree.Tree {
	errNode := tree.NewInternal(tree.Internal{Symbol: 1, ParseSymbol: 1, Error: true, Children: []tree.Child{
		{Offset: 0, Node: leaf(2, 0)},
	}})
	root := tree.NewInternal(tree.Internal{Symbol: 4, ParseSymbol: 4, Children: []tree.Child{
		{Offset: 0, Node: leaf(2, 0)},
		{Offset: 3, Node: leaf(2, 1)},
		{Offset: 6, Node: errNode},
		{Offset: 8, Node: leaf(2, 1)},
		{Offset: 11, Node: leaf(2, 0)},
	}})
	return tree.New(root, []byte("ab cd ??ef gh"), lang{})
}

func TestIndexSkipsErrorsAndTheirNeighbours(t *testing.T) {
	ix := incremental.NewIndex(recovered())
	assert.Len(t, ix.At(0), 1)
	assert.Empty(t, ix.At(3), "lookahead reaches the error")
	assert.Empty(t, ix.At(6), "inside the error")
	assert.Empty(t, ix.At(8), "starts where the error ends")
	assert.Len(t, ix.At(11), 1)
	assert.Equal(t, 2, ix.Len())
}

func TestIndexOfErrorRoot(t *testing.T) {
	root := tree.NewInternal(tree.Internal{Symbol: 1, ParseSymbol: 1, Error: true, Children: []tree.Child{
		{Offset: 0, Node: leaf(2, 0)},
	}})
	ix := incremental.NewIndex(tree.New(root, []byte("ab"), lang{}))
	assert.Zero(t, ix.Len())
}
