// Package scanner defines the contract for external scanners: hand-written
// lexers for tokens that depend on hidden state, such as indentation.
//
// The engine calls Scan before its own lexer whenever at least one external
// token is valid. Scanners keep their state in a State buffer. The engine
// records the buffer before and after every token so that an incremental
// reparse can resume scanning in the middle of a document.
package scanner

import "bytes"

// Match is a token recognized by a scanner. Skip bytes before the token are
// treated as whitespace; Length bytes form the token. Kind indexes the
// grammar's externals declaration.
type Match struct {
	Kind   int
	Skip   int
	Length int
}

// ValidSet reports which external tokens the automaton accepts at the
// current position. It is indexed by external token index.
type ValidSet []bool

func (v ValidSet) Has(kind int) bool {
	return kind >= 0 && kind < len(v) && v[kind]
}

// Any reports whether any external token is valid.
func (v ValidSet) Any() bool {
	for _, ok := range v {
		if ok {
			return true
		}
	}
	return false
}

// Scanner recognizes external tokens. Implementations must be deterministic
// functions of the input and the state buffer and must not retain in.
type Scanner interface {
	Scan(in *Input, valid ValidSet, state *State) (Match, bool)
}

// Func adapts a function to the Scanner interface.
type Func func(in *Input, valid ValidSet, state *State) (Match, bool)

func (f Func) Scan(in *Input, valid ValidSet, state *State) (Match, bool) {
	return f(in, valid, state)
}

// Input is the scanner's read-only view of the source starting at the
// current position. It records how far the scanner looked ahead.
type Input struct {
	src      []byte
	pos      int
	examined int
}

func NewInput(src []byte, pos uint32) *Input {
	return &Input{src: src, pos: int(pos), examined: int(pos)}
}

// Peek returns the byte i positions ahead of the current position.
func (in *Input) Peek(i int) (byte, bool) {
	at := in.pos + i
	if at >= len(in.src) {
		in.examined = max(in.examined, len(in.src))
		return 0, false
	}
	in.examined = max(in.examined, at+1)
	return in.src[at], true
}

// AtEnd reports whether the input ends i bytes ahead.
func (in *Input) AtEnd(i int) bool {
	_, ok := in.Peek(i)
	return !ok
}

// Column returns the number of bytes between the start of the current line
// and the current position.
func (in *Input) Column() int {
	line := bytes.LastIndexByte(in.src[:in.pos], '\n')
	return in.pos - line - 1
}

// Offset returns the absolute position of the input.
func (in *Input) Offset() uint32 {
	return uint32(in.pos)
}

// Examined returns the absolute offset one past the last byte read.
func (in *Input) Examined() uint32 {
	return uint32(in.examined)
}

// State is the scanner's serialized state. The engine treats it as opaque.
type State struct {
	buf []byte
}

// Bytes returns the current state. Callers must not modify it.
func (s *State) Bytes() []byte {
	return s.buf
}

// Set replaces the state. The slice is retained.
func (s *State) Set(b []byte) {
	s.buf = b
}

// Snapshot returns a copy of the state suitable for storing in a tree.
func (s *State) Snapshot() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	return append([]byte(nil), s.buf...)
}

// Restore resets the state to a snapshot.
func (s *State) Restore(b []byte) {
	s.buf = append(s.buf[:0:0], b...)
}

// Equal compares two snapshots; nil and empty are the same state.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
