package tree

import (
	"sort"
	"sync"

	"fusor/token"
)

// Language provides the symbol and field metadata needed to present a tree.
type Language interface {
	SymbolName(sym token.Symbol) string
	SymbolNamed(sym token.Symbol) bool
	SymbolVisible(sym token.Symbol) bool
	FieldName(id uint16) string
	FieldID(name string) (uint16, bool)
}

// Tree is a parsed document. It is immutable and safe for concurrent reads.
type Tree struct {
	root   *Subtree
	source []byte
	lang   Language
	edited bool

	linesOnce sync.Once
	lines     []uint32
}

// New wraps a root subtree. The source is retained and must not be modified.
func New(root *Subtree, source []byte, lang Language) *Tree {
	return &Tree{root: root, source: source, lang: lang}
}

func (t *Tree) Root() *Subtree { return t.root }
func (t *Tree) Source() []byte { return t.source }
func (t *Tree) Language() Language { return t.lang }

// Edited reports whether the tree was produced by Edit and no longer
// corresponds to its source text.
func (t *Tree) Edited() bool { return t.edited }

func (t *Tree) RootNode() Node {
	return Node{tree: t, subtree: t.root}
}

// Text returns the source of the whole document.
func (t *Tree) Text() string { return string(t.source) }

// String renders the tree as an S-expression of named nodes.
func (t *Tree) String() string {
	return t.RootNode().String()
}

// Point converts a byte offset into a row and byte column.
func (t *Tree) Point(offset uint32) token.Point {
	t.linesOnce.Do(func() {
		t.lines = lineStarts(t.source)
	})
	row := sort.Search(len(t.lines), func(i int) bool { return t.lines[i] > offset }) - 1
	if row < 0 {
		return token.Point{}
	}
	return token.Point{Row: uint32(row), Column: offset - t.lines[row]}
}

func lineStarts(src []byte) []uint32 {
	lines := []uint32{0}
	for i, c := range src {
		if c == '\n' {
			lines = append(lines, uint32(i+1))
		}
	}
	return lines
}

// Edit describes a change to the source: the bytes in [StartByte,
// OldEndByte) were replaced by text ending at NewEndByte.
type Edit struct {
	StartByte   uint32
	OldEndByte  uint32
	NewEndByte  uint32
	StartPoint  token.Point
	OldEndPoint token.Point
	NewEndPoint token.Point
}

// Valid reports whether the edit is well formed for a document of size
// bytes.
func (e Edit) Valid(size uint32) bool {
	return e.StartByte <= e.OldEndByte && e.StartByte <= e.NewEndByte && e.OldEndByte <= size
}

func (e Edit) mapStart(p uint32) uint32 {
	switch {
	case p <= e.StartByte:
		return p
	case p < e.OldEndByte:
		return e.NewEndByte
	default:
		return p - e.OldEndByte + e.NewEndByte
	}
}

func (e Edit) mapEnd(p uint32) uint32 {
	switch {
	case p < e.StartByte:
		return p
	case p < e.OldEndByte:
		return e.NewEndByte
	default:
		return p - e.OldEndByte + e.NewEndByte
	}
}

// touches reports whether a node spanning [start, end) whose lexing looked
// lookahead bytes past its end depends on the edited range.
func (e Edit) touches(start, end, lookahead uint32) bool {
	return e.StartByte <= end+lookahead && e.OldEndByte >= start
}

// Edit returns a copy of the tree with positions shifted by the edit and
// every node that depends on the edited bytes marked as changed. Unaffected
// subtrees are shared with the receiver. The result has no source text; it
// is only useful as the old tree of a reparse.
func (t *Tree) Edit(e Edit) *Tree {
	return &Tree{root: editSubtree(t.root, 0, e), lang: t.lang, edited: true}
}

func editSubtree(s *Subtree, start uint32, e Edit) *Subtree {
	end := start + s.size
	if !e.touches(start, end, s.lookahead) {
		return s
	}
	n := *s
	n.flags |= flagChanged
	newStart := e.mapStart(start)
	n.size = e.mapEnd(end) - newStart
	if len(s.children) > 0 {
		n.children = make([]Child, len(s.children))
		for i, c := range s.children {
			cs := start + c.Offset
			mapped := e.mapStart(cs)
			if mapped < newStart {
				mapped = newStart
			}
			n.children[i] = Child{
				Offset: mapped - newStart,
				Field:  c.Field,
				Node:   editSubtree(c.Node, cs, e),
			}
		}
	}
	return &n
}
