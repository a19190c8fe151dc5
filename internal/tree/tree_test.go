package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/internal/tree"
	"fusor/token"
)

const (
	symNumber token.Symbol = iota + 2
	symPlus
	symSum
	symSep
	symSource
)

const (
	fieldLeft uint16 = iota + 1
	fieldRight
)

type testLanguage struct{}

var names = []string{"end", "ERROR", "number", "+", "sum", "_sep", "source"}

func (testLanguage) SymbolName(s token.Symbol) string { return names[s] }
func (testLanguage) SymbolNamed(s token.Symbol) bool { return s != symPlus && s != token.EOF }
func (testLanguage) SymbolVisible(s token.Symbol) bool {
	return s != symSep && s != token.EOF
}

func (testLanguage) FieldName(id uint16) string {
	return []string{"", "left", "right"}[id]
}

func (testLanguage) FieldID(name string) (uint16, bool) {
	switch name {
	case "left":
		return fieldLeft, true
	case "right":
		return fieldRight, true
	}
	return 0, false
}

func leaf(sym token.Symbol, size, lookahead uint32) *tree.Subtree {
	return tree.NewLeaf(tree.Leaf{Symbol: sym, ParseSymbol: sym, Size: size, Lookahead: lookahead})
}

func node(sym token.Symbol, children ...tree.Child) *tree.Subtree {
	return tree.NewInternal(tree.Internal{Symbol: sym, ParseSymbol: sym, Children: children})
}

func sum(lastLookahead uint32) *tree.Subtree {
	return node(symSum,
		tree.Child{Offset: 0, Field: fieldLeft, Node: leaf(symNumber, 1, 1)},
		tree.Child{Offset: 1, Node: leaf(symPlus, 1, 1)},
		tree.Child{Offset: 2, Field: fieldRight, Node: leaf(symNumber, 1, lastLookahead)},
	)
}

// sample builds the tree of "1+2 3+4".
func sample() *tree.Tree {
	root := node(symSource,
		tree.Child{Offset: 0, Node: sum(1)},
		tree.Child{Offset: 3, Node: leaf(symSep, 1, 1)},
		tree.Child{Offset: 4, Node: sum(0)},
	)
	return tree.New(root, []byte("1+2 3+4"), testLanguage{})
}

func TestSExpression(t *testing.T) {
	tr := sample()
	assert.Equal(t, "(source (sum left: (number) right: (number)) (sum left: (number) right: (number)))", tr.String())
	first := tr.RootNode().Child(0)
	assert.Equal(t, `(sum left: (number) "+" right: (number))`, first.SExpression(true))
}

func TestNodeAccessors(t *testing.T) {
	tr := sample()
	root := tr.RootNode()
	assert.Equal(t, uint32(7), root.EndByte())
	assert.Equal(t, 2, root.ChildCount())

	second := root.Child(1)
	assert.Equal(t, "sum", second.Kind())
	assert.Equal(t, uint32(4), second.StartByte())
	assert.Equal(t, "3+4", second.Text())
	assert.Equal(t, 3, second.ChildCount())
	assert.Equal(t, 2, second.NamedChildCount())
	assert.Equal(t, "4", second.ChildByFieldName("right").Text())
	assert.Equal(t, "left", second.FieldNameForChild(0))
	assert.Equal(t, "", second.FieldNameForChild(1))
	assert.True(t, second.ChildByFieldName("missing").IsNull())
	assert.Equal(t, "sum", second.Child(0).Parent().Kind())
	assert.True(t, root.Parent().IsNull())
	assert.False(t, second.Child(1).IsNamed())

	d := root.DescendantForByteRange(5, 6)
	assert.Equal(t, "+", d.Kind())
	assert.Equal(t, "sum", root.NamedDescendantForByteRange(5, 6).Kind())
}

func TestPoints(t *testing.T) {
	root := node(symSource, tree.Child{Offset: 2, Node: leaf(symNumber, 2, 0)})
	tr := tree.New(root, []byte("a\nbc"), testLanguage{})
	n := tr.RootNode().Child(0)
	assert.Equal(t, token.Point{Row: 1, Column: 0}, n.StartPoint())
	assert.Equal(t, token.Point{Row: 1, Column: 2}, n.EndPoint())
	assert.Equal(t, token.Point{Row: 0, Column: 1}, tr.Point(1))
}

func TestEditSharesCleanSubtrees(t *testing.T) {
	tr := sample()
	edited := tr.Edit(tree.Edit{StartByte: 6, OldEndByte: 7, NewEndByte: 7})

	old := tr.Root().Children()
	got := edited.Root().Children()
	assert.Same(t, old[0].Node, got[0].Node)
	assert.False(t, got[0].Node.HasChanges())
	assert.True(t, got[2].Node.HasChanges())
	assert.True(t, edited.Root().HasChanges())
	assert.Equal(t, uint32(7), edited.Root().Size())
	assert.True(t, edited.Edited())

	// The original is untouched.
	assert.False(t, tr.Root().HasChanges())
	assert.False(t, old[2].Node.HasChanges())
}

func TestEditShiftsFollowingSubtrees(t *testing.T) {
	tr := sample()
	edited := tr.Edit(tree.Edit{StartByte: 0, OldEndByte: 0, NewEndByte: 1})

	root := edited.Root()
	assert.Equal(t, uint32(8), root.Size())
	children := root.Children()
	assert.Same(t, tr.Root().Children()[2].Node, children[2].Node)
	assert.Equal(t, uint32(5), children[2].Offset)
	assert.True(t, children[0].Node.HasChanges())
}

func TestEditValidity(t *testing.T) {
	assert.True(t, tree.Edit{StartByte: 1, OldEndByte: 2, NewEndByte: 5}.Valid(7))
	assert.False(t, tree.Edit{StartByte: 3, OldEndByte: 2, NewEndByte: 5}.Valid(7))
	assert.False(t, tree.Edit{StartByte: 1, OldEndByte: 9, NewEndByte: 5}.Valid(7))
}

func TestErrors(t *testing.T) {
	errNode := tree.NewInternal(tree.Internal{
		Symbol:   token.Error,
		Error:    true,
		Extra:    true,
		Children: []tree.Child{{Offset: 0, Node: leaf(symPlus, 1, 0)}},
	})
	root := node(symSource,
		tree.Child{Offset: 0, Node: leaf(symNumber, 1, 1)},
		tree.Child{Offset: 1, Node: errNode},
	)
	tr := tree.New(root, []byte("1+"), testLanguage{})

	assert.True(t, tr.RootNode().HasError())
	assert.Equal(t, "(source (number) (ERROR))", tr.String())
	errs := tr.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, uint32(1), errs[0].StartByte)
	assert.Equal(t, uint32(2), errs[0].EndByte)
	assert.Equal(t, "+", errs[0].Text)
	assert.False(t, errs[0].Unexpected)
}

func TestChangedRanges(t *testing.T) {
	old := sample()
	assert.Empty(t, old.ChangedRanges(sample()))

	root := node(symSource,
		tree.Child{Offset: 0, Node: sum(1)},
		tree.Child{Offset: 3, Node: leaf(symSep, 1, 1)},
		tree.Child{Offset: 4, Node: node(symSum,
			tree.Child{Offset: 0, Field: fieldLeft, Node: leaf(symNumber, 1, 1)},
			tree.Child{Offset: 1, Node: leaf(symPlus, 1, 1)},
			tree.Child{Offset: 2, Field: fieldRight, Node: leaf(symNumber, 2, 0)},
		)},
	)
	updated := tree.New(root, []byte("1+2 3+45"), testLanguage{})
	ranges := updated.ChangedRanges(old)
	require.Len(t, ranges, 1)
	assert.Equal(t, uint32(6), ranges[0].StartByte)
	assert.Equal(t, uint32(8), ranges[0].EndByte)
}

func TestCursor(t *testing.T) {
	c := sample().Walk()
	assert.Equal(t, "source", c.Node().Kind())
	require.True(t, c.GotoFirstChild())
	require.True(t, c.GotoFirstChild())
	assert.Equal(t, "number", c.Node().Kind())
	assert.Equal(t, "left", c.FieldName())
	assert.Equal(t, 2, c.Depth())
	require.True(t, c.GotoNextSibling())
	assert.Equal(t, "+", c.Node().Kind())
	require.True(t, c.GotoNextSibling())
	assert.False(t, c.GotoNextSibling())
	require.True(t, c.GotoParent())
	require.True(t, c.GotoNextSibling())
	assert.Equal(t, uint32(4), c.Node().StartByte())
	require.True(t, c.GotoParent())
	assert.False(t, c.GotoParent())
	assert.True(t, c.GotoFirstChildForByte(5))
	assert.Equal(t, uint32(4), c.Node().StartByte())
}

func TestEqual(t *testing.T) {
	assert.True(t, tree.Equal(sample().Root(), sample().Root()))
	assert.False(t, tree.Equal(sample().Root(), sum(1)))
	assert.Equal(t, symNumber, sum(1).FirstLeaf().Symbol())
}
