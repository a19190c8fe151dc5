// Package token holds the small value types shared by the grammar compiler,
// the lexer and the parse engine.
package token

import "fmt"

// Symbol identifies a terminal or nonterminal of a compiled grammar.
type Symbol uint16

const (
	EOF   Symbol = 0
	Error Symbol = 1
)

// StateID identifies an automaton state.
type StateID uint16

// NoState marks an empty goto cell.
const NoState StateID = 0xFFFF

// Point is a zero-based row and byte column.
type Point struct {
	Row    uint32
	Column uint32
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}

// Less reports whether p comes before o.
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

// Token is one lexeme produced by the lexer.
type Token struct {
	Symbol Symbol
	Start  uint32
	End    uint32
	// Examined is the absolute offset one past the last byte the lexer
	// looked at while producing this token.
	Examined uint32
	Extra    bool
	// Unexpected is set when no terminal matched and a single rune was
	// turned into an error token.
	Unexpected bool
	// Recovery is set for tokens lexed without parser context.
	Recovery   bool
	ScanBefore []byte
	ScanAfter  []byte
}

// Len returns the byte length of the token.
func (t Token) Len() uint32 {
	return t.End - t.Start
}

func (t Token) String() string {
	return fmt.Sprintf("#%d[%d:%d]", t.Symbol, t.Start, t.End)
}
