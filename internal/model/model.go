// Package model holds the validated, desugared form of a grammar: numbered
// symbols, flat productions and the lexical description of every terminal.
package model

import (
	"fmt"

	"fusor/internal/errors"
	"fusor/token"
)

// SymbolKind classifies a symbol. The set is closed; code switches over it.
type SymbolKind uint8

const (
	KindEnd SymbolKind = iota
	KindError
	KindToken
	KindLiteral
	KindPattern
	KindExternal
	KindRule
	KindAux
	KindStart
	KindAlias
)

func (k SymbolKind) String() string {
	switch k {
	case KindEnd:
		return "end"
	case KindError:
		return "error"
	case KindToken:
		return "token"
	case KindLiteral:
		return "literal"
	case KindPattern:
		return "pattern"
	case KindExternal:
		return "external"
	case KindRule:
		return "rule"
	case KindAux:
		return "aux"
	case KindStart:
		return "start"
	case KindAlias:
		return "alias"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Assoc is the associativity attached to a production or a precedence level.
type Assoc uint8

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
	AssocNonassoc
)

func (a Assoc) String() string {
	switch a {
	case AssocLeft:
		return "left"
	case AssocRight:
		return "right"
	case AssocNonassoc:
		return "nonassoc"
	}
	return "none"
}

// NoSymbol marks an absent symbol reference, such as a grammar without a
// word token.
const NoSymbol token.Symbol = 0xFFFF

// SymbolInfo describes one symbol of the grammar.
type SymbolInfo struct {
	Name      string
	Kind      SymbolKind
	Named     bool
	Visible   bool
	Supertype bool
}

// Terminal is the lexical description of a terminal symbol. Pattern is a
// regexp/syntax source in Perl flavour; it is empty for the end symbol, the
// error symbol and externals.
type Terminal struct {
	Symbol    token.Symbol
	Pattern   string
	Literal   bool
	Text      string
	Prec      int
	Immediate bool
	Keyword   bool
	Extra     bool
	// External is the index into Grammar.Externals, or -1.
	External int
}

// Production is one flattened alternative of a rule.
type Production struct {
	ID      int
	LHS     token.Symbol
	RHS     []token.Symbol
	Fields  []uint16
	Aliases []token.Symbol
	Prec    int
	Assoc   Assoc
	Dynamic int
	Pos     errors.Position
}

// Grammar is the validated grammar. Symbols [0, TerminalCount) are
// terminals, [TerminalCount, Start) are rules and auxiliary rules, Start is
// the augmented start symbol and everything after it is an alias.
type Grammar struct {
	Name          string
	Digest        [32]byte
	Symbols       []SymbolInfo
	Terminals     []Terminal
	TerminalCount int
	Start         token.Symbol
	StartRule     token.Symbol
	Productions   []Production
	Fields        []string
	Word          token.Symbol
	Extras        []token.Symbol
	Externals     []token.Symbol
	Conflicts     [][]token.Symbol
	Supertypes    []token.Symbol
	Warnings      []*errors.GrammarError

	origin   []token.Symbol
	symPos   []errors.Position
	levels   []int
	assocs   []Assoc
	byLHS    [][]int
	nullable []bool
	first    []TerminalSet
	names    map[string]token.Symbol
}

// SymbolCount returns the number of symbols that take part in parsing,
// excluding aliases.
func (g *Grammar) SymbolCount() int {
	return int(g.Start) + 1
}

// NonterminalCount returns the number of nonterminals including the
// augmented start symbol.
func (g *Grammar) NonterminalCount() int {
	return g.SymbolCount() - g.TerminalCount
}

func (g *Grammar) IsTerminal(sym token.Symbol) bool {
	return int(sym) < g.TerminalCount
}

// SymbolName returns the display name of a symbol.
func (g *Grammar) SymbolName(sym token.Symbol) string {
	if int(sym) < len(g.Symbols) {
		return g.Symbols[sym].Name
	}
	return fmt.Sprintf("#%d", sym)
}

// Lookup finds a rule, token or external by name.
func (g *Grammar) Lookup(name string) (token.Symbol, bool) {
	sym, ok := g.names[name]
	return sym, ok
}

// ProductionsOf returns the production indices whose left-hand side is sym.
func (g *Grammar) ProductionsOf(sym token.Symbol) []int {
	if g.IsTerminal(sym) || int(sym) >= g.SymbolCount() {
		return nil
	}
	return g.byLHS[int(sym)-g.TerminalCount]
}

// Origin maps an auxiliary rule to the rule it was generated from. Other
// symbols map to themselves.
func (g *Grammar) Origin(sym token.Symbol) token.Symbol {
	if int(sym) < len(g.origin) {
		return g.origin[sym]
	}
	return sym
}

// Nullable reports whether sym derives the empty string.
func (g *Grammar) Nullable(sym token.Symbol) bool {
	return !g.IsTerminal(sym) && g.nullable[sym]
}

// First returns FIRST(sym) over terminals.
func (g *Grammar) First(sym token.Symbol) TerminalSet {
	return g.first[sym]
}

// FirstOf returns FIRST of a symbol sequence and whether the whole sequence
// is nullable.
func (g *Grammar) FirstOf(seq []token.Symbol) (TerminalSet, bool) {
	out := NewTerminalSet(g.TerminalCount)
	for _, sym := range seq {
		out.Union(g.first[sym])
		if !g.Nullable(sym) {
			return out, false
		}
	}
	return out, true
}

// TerminalLevel returns the level and associativity a terminal was given in
// the precedence block. Level 0 means none.
func (g *Grammar) TerminalLevel(sym token.Symbol) (int, Assoc) {
	if !g.IsTerminal(sym) {
		return 0, AssocNone
	}
	return g.levels[sym], g.assocs[sym]
}

// Position returns where a symbol was declared.
func (g *Grammar) Position(sym token.Symbol) errors.Position {
	if int(sym) < len(g.symPos) {
		return g.symPos[sym]
	}
	return errors.Position{}
}

// IsExtra reports whether a terminal may appear anywhere.
func (g *Grammar) IsExtra(sym token.Symbol) bool {
	return g.IsTerminal(sym) && g.Terminals[sym].Extra
}

// IsHidden reports whether nodes of sym are spliced into their parent.
func (g *Grammar) IsHidden(sym token.Symbol) bool {
	return !g.Symbols[sym].Visible
}

// ProductionString renders a production for diagnostics.
func (g *Grammar) ProductionString(id int) string {
	p := &g.Productions[id]
	s := g.SymbolName(p.LHS) + " ->"
	if len(p.RHS) == 0 {
		return s + " ε"
	}
	for _, sym := range p.RHS {
		s += " " + g.displayRef(sym)
	}
	return s
}

func (g *Grammar) displayRef(sym token.Symbol) string {
	info := g.Symbols[sym]
	if info.Kind == KindLiteral {
		return fmt.Sprintf("%q", info.Name)
	}
	return info.Name
}
