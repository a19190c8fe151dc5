// Package tree implements the concrete syntax tree produced by the engine.
//
// A Subtree is immutable and position independent: children store offsets
// relative to their parent, so an unedited subtree can be shared between an
// old tree and the tree produced by reparsing an edited document. Absolute
// positions are computed on demand by Node.
package tree

import (
	"fusor/token"
)

type flags uint8

const (
	flagExtra flags = 1 << iota
	flagError
	flagHasError
	flagFragile
	flagChanged
)

// Child links a subtree into its parent.
type Child struct {
	Offset uint32
	Field  uint16
	Node   *Subtree
}

// Subtree is a node without an absolute position.
type Subtree struct {
	symbol      token.Symbol
	parseSymbol token.Symbol
	size        uint32
	lookahead   uint32
	preState    token.StateID
	flags       flags
	dynPrec     int32
	children    []Child
	extStart    []byte
	extEnd      []byte
}

// Leaf describes a token node.
type Leaf struct {
	Symbol      token.Symbol
	ParseSymbol token.Symbol
	Size        uint32
	// Lookahead is the number of bytes after the token the lexer examined.
	Lookahead uint32
	PreState  token.StateID
	Extra     bool
	Error     bool
	Fragile   bool
	ExtStart  []byte
	ExtEnd    []byte
}

func NewLeaf(l Leaf) *Subtree {
	s := &Subtree{
		symbol:      l.Symbol,
		parseSymbol: l.ParseSymbol,
		size:        l.Size,
		lookahead:   l.Lookahead,
		preState:    l.PreState,
		extStart:    l.ExtStart,
		extEnd:      l.ExtEnd,
	}
	if l.Extra {
		s.flags |= flagExtra
	}
	if l.Error {
		s.flags |= flagError | flagHasError
	}
	if l.Fragile {
		s.flags |= flagFragile
	}
	return s
}

// Internal describes a node with children. Children offsets are relative
// to the node start.
type Internal struct {
	Symbol      token.Symbol
	ParseSymbol token.Symbol
	PreState    token.StateID
	Children    []Child
	// Size is a lower bound on the node size; it gives childless nodes their
	// width and lets a root cover trailing skipped bytes.
	Size uint32
	// Lookahead extends the node's dependency past its end, for instance to
	// the end of the token that caused the reduction.
	Lookahead   uint32
	Extra       bool
	Error       bool
	Fragile     bool
	DynamicPrec int32
	// ExtStart and ExtEnd are used for nodes without children.
	ExtStart []byte
	ExtEnd   []byte
}

func NewInternal(n Internal) *Subtree {
	s := &Subtree{
		symbol:      n.Symbol,
		parseSymbol: n.ParseSymbol,
		preState:    n.PreState,
		children:    n.Children,
		size:        n.Size,
		dynPrec:     n.DynamicPrec,
		extStart:    n.ExtStart,
		extEnd:      n.ExtEnd,
	}
	if n.Extra {
		s.flags |= flagExtra
	}
	if n.Error {
		s.flags |= flagError | flagHasError
	}
	if n.Fragile {
		s.flags |= flagFragile
	}
	var reach uint32
	for _, c := range n.Children {
		end := c.Offset + c.Node.size
		s.size = max(s.size, end)
		reach = max(reach, end+c.Node.lookahead)
		if c.Node.flags&flagHasError != 0 {
			s.flags |= flagHasError
		}
		if c.Node.flags&flagFragile != 0 {
			s.flags |= flagFragile
		}
		s.dynPrec += c.Node.dynPrec
	}
	if len(n.Children) > 0 {
		s.extStart = n.Children[0].Node.extStart
		s.extEnd = n.Children[len(n.Children)-1].Node.extEnd
	}
	s.lookahead = n.Lookahead
	if reach > s.size {
		s.lookahead = max(s.lookahead, reach-s.size)
	}
	return s
}

// Symbol returns the symbol shown in the tree, after aliasing.
func (s *Subtree) Symbol() token.Symbol { return s.symbol }

// ParseSymbol returns the symbol the automaton shifted or reduced.
func (s *Subtree) ParseSymbol() token.Symbol { return s.parseSymbol }

func (s *Subtree) Size() uint32 { return s.size }
func (s *Subtree) Lookahead() uint32 { return s.lookahead }
func (s *Subtree) PreState() token.StateID { return s.preState }
func (s *Subtree) Children() []Child { return s.children }
func (s *Subtree) ChildCount() int { return len(s.children) }
func (s *Subtree) IsLeaf() bool { return len(s.children) == 0 }
func (s *Subtree) IsExtra() bool { return s.flags&flagExtra != 0 }
func (s *Subtree) IsError() bool { return s.flags&flagError != 0 }
func (s *Subtree) HasError() bool { return s.flags&flagHasError != 0 }
func (s *Subtree) IsFragile() bool { return s.flags&flagFragile != 0 }
func (s *Subtree) HasChanges() bool { return s.flags&flagChanged != 0 }
func (s *Subtree) ExtStart() []byte { return s.extStart }
func (s *Subtree) ExtEnd() []byte { return s.extEnd }
func (s *Subtree) DynamicPrec() int32 { return s.dynPrec }

// WithSymbol returns a copy shown under another symbol.
func (s *Subtree) WithSymbol(sym token.Symbol) *Subtree {
	if s.symbol == sym {
		return s
	}
	c := *s
	c.symbol = sym
	return &c
}

// AsExtra returns a copy flagged as an extra.
func (s *Subtree) AsExtra() *Subtree {
	if s.IsExtra() {
		return s
	}
	c := *s
	c.flags |= flagExtra
	return &c
}

// WithPreState returns a copy recorded as pushed from state.
func (s *Subtree) WithPreState(state token.StateID) *Subtree {
	if s.preState == state {
		return s
	}
	c := *s
	c.preState = state
	return &c
}

// FirstLeaf returns the leftmost leaf, descending through zero-width
// children.
func (s *Subtree) FirstLeaf() *Subtree {
	n := s
	for len(n.children) > 0 {
		n = n.children[0].Node
	}
	return n
}

// Equal compares two subtrees by shape, symbols, fields, sizes and flags
// that are visible in the tree.
func Equal(a, b *Subtree) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.symbol != b.symbol || a.size != b.size || len(a.children) != len(b.children) {
		return false
	}
	const shown = flagExtra | flagError | flagHasError
	if a.flags&shown != b.flags&shown {
		return false
	}
	for i := range a.children {
		ca, cb := a.children[i], b.children[i]
		if ca.Offset != cb.Offset || ca.Field != cb.Field || !Equal(ca.Node, cb.Node) {
			return false
		}
	}
	return true
}
