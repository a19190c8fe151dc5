package engine

import (
	"fmt"
	"slices"

	"fusor/internal/errors"
	"fusor/internal/lex"
	"fusor/internal/model"
	"fusor/internal/scanner"
	"fusor/token"
)

// maxEmptyExternals caps the zero-length external tokens accepted at one
// position.
const maxEmptyExternals = 64

// lex reads the next token with the terminals valid in any live stack.
// Scanner state before and after the token is recorded on it.
func (p *parse) lex(heads []head, pos uint32) token.Token {
	valid, ext := p.validSets(heads)
	var hook lex.External
	if p.scanner != nil && ext.Any() {
		hook = p.external(ext)
	}
	before := p.state.Snapshot()
	tok := p.lexer.Next(p.src, pos, valid, hook)
	if tok.Recovery {
		// Nothing valid matched. Prefer terminals some enclosing state
		// could use so that recovery can resume on them.
		tok = p.lexer.Recover(p.src, pos, p.recoverySet(heads))
	}
	tok.ScanBefore, tok.ScanAfter = before, p.state.Snapshot()
	if tok.Unexpected {
		p.scanError(tok)
	}
	return tok
}

func (p *parse) validSets(heads []head) (model.TerminalSet, scanner.ValidSet) {
	valid := p.lang.ValidTerminals(heads[0].state())
	ext := p.lang.ValidExternals(heads[0].state())
	if len(heads) == 1 {
		return valid, ext
	}
	valid = valid.Clone()
	ext = slices.Clone(ext)
	for _, h := range heads[1:] {
		valid.Union(p.lang.ValidTerminals(h.state()))
		for i, ok := range p.lang.ValidExternals(h.state()) {
			if ok {
				ext[i] = true
			}
		}
	}
	return valid, ext
}

// recoverySet returns the terminals valid in any state on the live stacks.
func (p *parse) recoverySet(heads []head) model.TerminalSet {
	set := p.lang.ValidTerminals(heads[0].state()).Clone()
	seen := make(map[*stackNode]bool)
	for _, h := range heads {
		for n := h.top; n != nil && !seen[n]; n = n.prev {
			seen[n] = true
			set.Union(p.lang.ValidTerminals(n.state))
		}
	}
	return set
}

// external adapts the scanner to the lexer. A failed scan leaves the
// scanner state untouched.
func (p *parse) external(valid scanner.ValidSet) lex.External {
	externals := p.lang.Externals()
	return func(pos uint32, _ bool) (token.Token, bool) {
		if pos == p.emptyPos && p.emptyCount >= maxEmptyExternals {
			return token.Token{}, false
		}
		before := p.state.Snapshot()
		in := scanner.NewInput(p.src, pos)
		m, ok := p.scanner.Scan(in, valid, &p.state)
		if !ok || !valid.Has(m.Kind) || m.Skip < 0 || m.Length < 0 || int(pos)+m.Skip+m.Length > len(p.src) {
			p.state.Restore(before)
			return token.Token{}, false
		}
		start := pos + uint32(m.Skip)
		end := start + uint32(m.Length)
		if end == pos {
			if p.emptyPos != pos {
				p.emptyPos, p.emptyCount = pos, 0
			}
			p.emptyCount++
			if p.emptyCount == maxEmptyExternals {
				p.report(&errors.ScanError{
					Code:     errors.ErrorScannerStalled,
					Message:  fmt.Sprintf("external scanner produced %d empty tokens without progress", maxEmptyExternals),
					Offset:   pos,
					Position: p.position(pos),
				}, pos)
			}
		}
		return token.Token{
			Symbol:   externals[m.Kind],
			Start:    start,
			End:      end,
			Examined: max(in.Examined(), end),
		}, true
	}
}

func (p *parse) scanError(tok token.Token) {
	p.report(&errors.ScanError{
		Code:     errors.ErrorUnexpectedCharacter,
		Message:  fmt.Sprintf("unexpected character %q", p.src[tok.Start:tok.End]),
		Offset:   tok.Start,
		Length:   tok.Len(),
		Position: p.position(tok.Start),
	}, tok.Start)
}

func (p *parse) syntaxError(tok token.Token) {
	err := &errors.SyntaxError{
		Code:       errors.ErrorUnexpectedToken,
		Message:    fmt.Sprintf("unexpected %s", p.describe(tok)),
		Offset:     tok.Start,
		Length:     tok.Len(),
		Position:   p.position(tok.Start),
		Unexpected: p.lang.SymbolName(tok.Symbol),
	}
	if tok.Symbol == token.EOF {
		err.Code = errors.ErrorUnexpectedEOF
		err.Message = "unexpected end of input"
	}
	p.diags = append(p.diags, err)
}

// report records a diagnostic once per offset; relexing a position must not
// repeat it.
func (p *parse) report(err error, offset uint32) {
	if p.reported[offset] {
		return
	}
	p.reported[offset] = true
	p.diags = append(p.diags, err)
}

func (p *parse) describe(tok token.Token) string {
	if p.lang.SymbolNamed(tok.Symbol) {
		return fmt.Sprintf("%s %q", p.lang.SymbolName(tok.Symbol), p.src[tok.Start:tok.End])
	}
	return fmt.Sprintf("%q", p.src[tok.Start:tok.End])
}

func (p *parse) position(offset uint32) errors.Position {
	if p.lines == nil {
		p.lines = []uint32{0}
		for i, c := range p.src {
			if c == '\n' {
				p.lines = append(p.lines, uint32(i+1))
			}
		}
	}
	row, found := slices.BinarySearch(p.lines, offset)
	if !found {
		row--
	}
	return errors.Position{Line: row + 1, Column: int(offset-p.lines[row]) + 1, Offset: int(offset)}
}
