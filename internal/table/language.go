// Package table compiles a grammar model into parse tables and holds the
// resulting immutable Language handle shared by every parse.
package table

import (
	"fmt"
	"sync"

	"fusor/internal/lex"
	"fusor/internal/model"
	"fusor/internal/scanner"
	"fusor/token"
)

// ActionKind is the closed set of parser actions.
type ActionKind uint8

const (
	ActionShift ActionKind = iota
	ActionReduce
	ActionAccept
)

func (k ActionKind) String() string {
	switch k {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

// Action is one entry of an action cell. For shifts, Production is the
// lowest production that shifts the token; it only orders the actions of a
// branching cell.
type Action struct {
	Kind       ActionKind
	State      token.StateID
	Production uint16
}

// ProductionInfo is what the engine needs to reduce a production.
type ProductionInfo struct {
	LHS     token.Symbol
	Length  uint16
	Fields  []uint16
	Aliases []token.Symbol
	Dynamic int32
}

// Tables is the serializable content of a Language.
type Tables struct {
	Name          string
	Digest        [32]byte
	Symbols       []model.SymbolInfo
	Terminals     []model.Terminal
	TerminalCount int
	SymbolCount   int
	Start         token.Symbol
	StartRule     token.Symbol
	Word          token.Symbol
	Fields        []string
	Externals     []token.Symbol
	Supertypes    []token.Symbol
	Productions   []ProductionInfo
	StateCount    int
	// ActionIndex maps state*TerminalCount+terminal to an entry of
	// ActionLists; entry 0 is the empty cell.
	ActionIndex []uint32
	ActionLists [][]Action
	// Goto maps state*NonterminalCount+(symbol-TerminalCount) to a state
	// or token.NoState.
	Goto []token.StateID
}

// Language is a compiled grammar. It is immutable and safe for concurrent
// use by any number of parses.
type Language struct {
	t *Tables

	fieldIDs map[string]uint16
	names    map[string]token.Symbol

	lexOnce sync.Once
	lexer   *lex.Lexer
	lexErr  error

	validOnce sync.Once
	valid     []model.TerminalSet
	extValid  []scanner.ValidSet
}

func newLanguage(t *Tables) *Language {
	l := &Language{
		t:        t,
		fieldIDs: make(map[string]uint16, len(t.Fields)),
		names:    make(map[string]token.Symbol, len(t.Symbols)),
	}
	for i, f := range t.Fields {
		if i > 0 {
			l.fieldIDs[f] = uint16(i)
		}
	}
	for i, s := range t.Symbols {
		if _, dup := l.names[s.Name]; !dup || s.Named {
			l.names[s.Name] = token.Symbol(i)
		}
	}
	return l
}

// Tables exposes the raw tables. Callers must not modify them.
func (l *Language) Tables() *Tables { return l.t }

func (l *Language) Name() string { return l.t.Name }
func (l *Language) Digest() [32]byte { return l.t.Digest }
func (l *Language) StateCount() int { return l.t.StateCount }
func (l *Language) TerminalCount() int { return l.t.TerminalCount }

// StartRule returns the rule a complete document reduces to.
func (l *Language) StartRule() token.Symbol { return l.t.StartRule }

// SymbolCount returns the number of symbols including aliases.
func (l *Language) SymbolCount() int { return len(l.t.Symbols) }

func (l *Language) nonterminals() int {
	return l.t.SymbolCount - l.t.TerminalCount
}

// Actions returns the actions for a terminal in a state. The slice is
// shared and must not be modified.
func (l *Language) Actions(state token.StateID, sym token.Symbol) []Action {
	if int(sym) >= l.t.TerminalCount || int(state) >= l.t.StateCount {
		return nil
	}
	return l.t.ActionLists[l.t.ActionIndex[int(state)*l.t.TerminalCount+int(sym)]]
}

// HasAction reports whether the terminal can follow in the state.
func (l *Language) HasAction(state token.StateID, sym token.Symbol) bool {
	return len(l.Actions(state, sym)) > 0
}

// Goto returns the state after a nonterminal, or token.NoState.
func (l *Language) Goto(state token.StateID, sym token.Symbol) token.StateID {
	if int(sym) < l.t.TerminalCount || int(sym) >= l.t.SymbolCount || int(state) >= l.t.StateCount {
		return token.NoState
	}
	return l.t.Goto[int(state)*l.nonterminals()+int(sym)-l.t.TerminalCount]
}

// Next returns the state reached from state over any symbol: the shift
// target for terminals and the goto target for nonterminals.
func (l *Language) Next(state token.StateID, sym token.Symbol) token.StateID {
	if int(sym) >= l.t.TerminalCount {
		return l.Goto(state, sym)
	}
	for _, a := range l.Actions(state, sym) {
		if a.Kind == ActionShift {
			return a.State
		}
	}
	return token.NoState
}

func (l *Language) Production(id uint16) *ProductionInfo {
	return &l.t.Productions[id]
}

func (l *Language) ProductionCount() int { return len(l.t.Productions) }

func (l *Language) SymbolName(sym token.Symbol) string {
	if int(sym) < len(l.t.Symbols) {
		return l.t.Symbols[sym].Name
	}
	return fmt.Sprintf("#%d", sym)
}

func (l *Language) SymbolNamed(sym token.Symbol) bool {
	return int(sym) < len(l.t.Symbols) && l.t.Symbols[sym].Named
}

func (l *Language) SymbolVisible(sym token.Symbol) bool {
	return int(sym) < len(l.t.Symbols) && l.t.Symbols[sym].Visible
}

func (l *Language) SymbolKind(sym token.Symbol) model.SymbolKind {
	return l.t.Symbols[sym].Kind
}

// SymbolForName looks a symbol up by its display name.
func (l *Language) SymbolForName(name string) (token.Symbol, bool) {
	sym, ok := l.names[name]
	return sym, ok
}

func (l *Language) FieldName(id uint16) string {
	if int(id) < len(l.t.Fields) {
		return l.t.Fields[id]
	}
	return ""
}

func (l *Language) FieldID(name string) (uint16, bool) {
	id, ok := l.fieldIDs[name]
	return id, ok
}

func (l *Language) FieldCount() int { return len(l.t.Fields) - 1 }

func (l *Language) Terminal(sym token.Symbol) *model.Terminal {
	return &l.t.Terminals[sym]
}

func (l *Language) IsExtra(sym token.Symbol) bool {
	return int(sym) < l.t.TerminalCount && l.t.Terminals[sym].Extra
}

// Externals returns the external token symbols in declaration order.
func (l *Language) Externals() []token.Symbol { return l.t.Externals }

func (l *Language) Supertypes() []token.Symbol { return l.t.Supertypes }

// Lexer returns the lexer for the grammar's terminals. It is built on first
// use.
func (l *Language) Lexer() (*lex.Lexer, error) {
	l.lexOnce.Do(func() {
		l.lexer, l.lexErr = lex.New(l.t.Terminals, l.t.Symbols, l.t.Word)
	})
	return l.lexer, l.lexErr
}

func (l *Language) computeValid() {
	l.valid = make([]model.TerminalSet, l.t.StateCount)
	l.extValid = make([]scanner.ValidSet, l.t.StateCount)
	for s := range l.t.StateCount {
		set := model.NewTerminalSet(l.t.TerminalCount)
		for t := range l.t.TerminalCount {
			if l.t.ActionIndex[s*l.t.TerminalCount+t] != 0 {
				set.Add(token.Symbol(t))
			}
		}
		l.valid[s] = set
		if len(l.t.Externals) == 0 {
			continue
		}
		ext := make(scanner.ValidSet, len(l.t.Externals))
		for i, sym := range l.t.Externals {
			ext[i] = set.Has(sym)
		}
		l.extValid[s] = ext
	}
}

// ValidTerminals returns the terminals that have an action in the state.
func (l *Language) ValidTerminals(state token.StateID) model.TerminalSet {
	l.validOnce.Do(l.computeValid)
	return l.valid[state]
}

// ValidExternals returns the external tokens that have an action in the
// state, indexed by external index. It is nil for grammars without
// externals.
func (l *Language) ValidExternals(state token.StateID) scanner.ValidSet {
	l.validOnce.Do(l.computeValid)
	return l.extValid[state]
}
