// Package lex turns source bytes into tokens for the parse engine. Lexing is
// context aware: only terminals the automaton can use next are considered,
// so the same text may lex differently in different states.
package lex

import (
	"fmt"

	"fusor/internal/model"
	"fusor/token"
)

// External lexes an external token at pos. afterExtra reports whether
// extras were skipped before pos during the current call.
type External func(pos uint32, afterExtra bool) (token.Token, bool)

type terminal struct {
	sym       token.Symbol
	prog      *program
	text      []byte
	literal   bool
	prec      int
	immediate bool
	extra     bool
	visible   bool
	// free terminals may be lexed without parser context. Immediate
	// tokens and hidden named tokens only make sense inside the
	// construct that expects them.
	free bool
}

// Lexer is immutable after New and safe for concurrent use.
type Lexer struct {
	terms    []*terminal
	extras   []*terminal
	word     *terminal
	keywords map[string]token.Symbol
}

// New compiles the lexical part of a grammar. symbols supplies visibility
// for every terminal.
func New(terminals []model.Terminal, symbols []model.SymbolInfo, word token.Symbol) (*Lexer, error) {
	l := &Lexer{keywords: make(map[string]token.Symbol)}
	for _, t := range terminals {
		if t.Pattern == "" || t.External >= 0 {
			continue
		}
		term := &terminal{
			sym:       t.Symbol,
			literal:   t.Literal,
			prec:      t.Prec,
			immediate: t.Immediate,
			extra:     t.Extra,
			visible:   symbols[t.Symbol].Visible,
		}
		info := symbols[t.Symbol]
		term.free = t.Extra || (!t.Immediate && (info.Visible || info.Kind != model.KindToken))
		if t.Literal {
			term.text = []byte(t.Text)
		} else {
			prog, err := compile(t.Pattern)
			if err != nil {
				return nil, fmt.Errorf("terminal %s: %w", symbols[t.Symbol].Name, err)
			}
			term.prog = prog
		}
		if t.Keyword && word != model.NoSymbol {
			l.keywords[t.Text] = t.Symbol
			continue
		}
		if t.Symbol == word {
			l.word = term
		}
		l.terms = append(l.terms, term)
		if t.Extra {
			l.extras = append(l.extras, term)
		}
	}
	return l, nil
}

type match struct {
	term     *terminal
	end      int
	examined int
}

func (m match) better(o match) bool {
	if o.term == nil {
		return true
	}
	if m.end != o.end {
		return m.end > o.end
	}
	if m.term.prec != o.term.prec {
		return m.term.prec > o.term.prec
	}
	if m.term.literal != o.term.literal {
		return m.term.literal
	}
	return m.term.sym < o.term.sym
}

func (t *terminal) scan(src []byte, pos int) (end, examined int, ok bool) {
	if t.prog != nil {
		return t.prog.longest(src, pos)
	}
	for i, c := range t.text {
		if pos+i >= len(src) {
			return 0, len(src), false
		}
		if src[pos+i] != c {
			return 0, pos + i + 1, false
		}
	}
	return pos + len(t.text), pos + len(t.text), len(t.text) > 0
}

func (l *Lexer) keywordValid(valid model.TerminalSet) bool {
	for _, sym := range l.keywords {
		if valid.Has(sym) {
			return true
		}
	}
	return false
}

// longest finds the best candidate at pos. A nil valid set admits every
// free terminal.
func (l *Lexer) longest(src []byte, pos int, valid model.TerminalSet, afterExtra bool) (match, int) {
	var best match
	examined := pos
	wordOK := valid == nil || (l.word != nil && (valid.Has(l.word.sym) || l.keywordValid(valid)))
	for _, t := range l.terms {
		if t.immediate && afterExtra {
			continue
		}
		if valid == nil && !t.free {
			continue
		}
		if valid != nil && !t.extra && !valid.Has(t.sym) && !(t == l.word && wordOK) {
			continue
		}
		end, ex, ok := t.scan(src, pos)
		examined = max(examined, ex)
		if !ok {
			continue
		}
		m := match{term: t, end: end, examined: ex}
		if m.better(best) {
			best = m
		}
	}
	return best, examined
}

// Next returns the next token at or after pos. Invisible extras are skipped;
// visible extras are returned with Extra set unless the state can shift
// them. When no valid terminal matches, the free terminals compete and the
// token is marked as a recovery token; a nil valid set starts there. When
// nothing matches, a single rune becomes an Unexpected error token.
func (l *Lexer) Next(src []byte, pos uint32, valid model.TerminalSet, ext External) token.Token {
	if valid == nil {
		return l.scan(src, pos, nil, nil, true)
	}
	return l.scan(src, pos, valid, ext, false)
}

// Recover lexes at pos while the parser repairs an error. The terminals in
// set are tried first, then the free terminals. Every token is a recovery
// token.
func (l *Lexer) Recover(src []byte, pos uint32, set model.TerminalSet) token.Token {
	return l.scan(src, pos, set, nil, true)
}

func (l *Lexer) scan(src []byte, pos uint32, first model.TerminalSet, ext External, recovering bool) token.Token {
	examined := pos
	afterExtra := false
	for {
		if ext != nil {
			if tok, ok := ext(pos, afterExtra); ok {
				tok.Examined = max(tok.Examined, examined)
				return tok
			}
		}
		if int(pos) >= len(src) {
			return token.Token{
				Symbol:   token.EOF,
				Start:    uint32(len(src)),
				End:      uint32(len(src)),
				Examined: max(examined, uint32(len(src))),
				Recovery: recovering,
			}
		}

		recovery := recovering
		set := first
		var best match
		if set != nil {
			var ex int
			best, ex = l.longest(src, int(pos), set, afterExtra)
			examined = max(examined, uint32(ex))
		}
		if best.term == nil {
			var ex int
			set = nil
			best, ex = l.longest(src, int(pos), nil, afterExtra)
			examined = max(examined, uint32(ex))
			recovery = true
		}
		if best.term == nil {
			_, w := decode(src, int(pos))
			end := pos + uint32(max(w, 1))
			return token.Token{
				Symbol:     token.Error,
				Start:      pos,
				End:        end,
				Examined:   max(examined, end),
				Unexpected: true,
				Recovery:   true,
			}
		}

		sym := best.term.sym
		if best.term == l.word {
			if kw, ok := l.keywords[string(src[pos:best.end])]; ok {
				if set == nil || set.Has(kw) || !set.Has(l.word.sym) {
					sym = kw
				}
			}
		}
		shiftable := !recovery && set.Has(sym)
		if best.term.extra && !best.term.visible && !shiftable {
			pos = uint32(best.end)
			afterExtra = true
			continue
		}
		return token.Token{
			Symbol:   sym,
			Start:    pos,
			End:      uint32(best.end),
			Examined: examined,
			Extra:    best.term.extra && !shiftable,
			Recovery: recovery,
		}
	}
}

// IsKeyword reports whether text is one of the grammar's keywords.
func (l *Lexer) IsKeyword(text string) bool {
	_, ok := l.keywords[text]
	return ok
}
