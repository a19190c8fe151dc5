package model

import (
	"math/bits"

	"fusor/token"
)

// TerminalSet is a bit set over terminal symbols.
type TerminalSet []uint64

func NewTerminalSet(n int) TerminalSet {
	return make(TerminalSet, (n+63)/64)
}

func (s TerminalSet) Add(sym token.Symbol) {
	s[sym/64] |= 1 << (sym % 64)
}

func (s TerminalSet) Has(sym token.Symbol) bool {
	i := int(sym / 64)
	return i < len(s) && s[i]&(1<<(sym%64)) != 0
}

// Union adds every member of o and reports whether s grew.
func (s TerminalSet) Union(o TerminalSet) bool {
	changed := false
	for i := range o {
		if n := s[i] | o[i]; n != s[i] {
			s[i] = n
			changed = true
		}
	}
	return changed
}

// Covers reports whether every member of o is in s.
func (s TerminalSet) Covers(o TerminalSet) bool {
	for i := range o {
		if o[i]&^s[i] != 0 {
			return false
		}
	}
	return true
}

// Intersects reports whether s and o share a member.
func (s TerminalSet) Intersects(o TerminalSet) bool {
	for i := range o {
		if s[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

func (s TerminalSet) Equal(o TerminalSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s TerminalSet) Clone() TerminalSet {
	return append(TerminalSet(nil), s...)
}

func (s TerminalSet) Empty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

func (s TerminalSet) Len() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// Each calls fn for every member in ascending order.
func (s TerminalSet) Each(fn func(token.Symbol)) {
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(token.Symbol(i*64 + b))
			w &= w - 1
		}
	}
}
