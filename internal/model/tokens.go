package model

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"fusor/grammar"
	"fusor/internal/errors"
)

const (
	tokenPending = iota
	tokenActive
	tokenDone
)

// tokenShape is the lexical form of a token expression.
type tokenShape struct {
	pattern   string
	literal   bool
	text      string
	prec      int
	immediate bool
}

// resolveToken lowers a named token declaration to a pattern. Token bodies
// may refer to other tokens; those are inlined.
func (b *builder) resolveToken(decl *grammar.TokenDecl) (string, bool) {
	e := b.terms[b.names[decl.Name].idx]
	switch b.tokenState[decl.Name] {
	case tokenDone:
		return e.pattern, e.pattern != ""
	case tokenActive:
		b.errorf(errors.ErrorCyclicRule, decl.Pos, "token %s refers to itself", decl.Name)
		return "", false
	}
	b.tokenState[decl.Name] = tokenActive
	shape := b.lowerToken(decl.Body)
	b.tokenState[decl.Name] = tokenDone

	e.pattern, e.literal, e.text = shape.pattern, shape.literal, shape.text
	e.prec, e.immediate = shape.prec, shape.immediate
	if !b.checkPattern(e.pattern, decl.Pos) {
		e.pattern = ""
		return "", false
	}
	return e.pattern, true
}

func (b *builder) lowerToken(e *grammar.Expr) tokenShape {
	var shape tokenShape
	for _, alt := range e.Alts {
		for _, ann := range alt.Annotations {
			if ann.Kind != "%prec" || ann.Arg == nil || ann.Arg.Level == nil {
				b.errorf(errors.ErrorInvalidAnnotation, ann.Pos, "tokens accept only %%prec(N), not %s", ann)
				continue
			}
			shape.prec = max(shape.prec, *ann.Arg.Level)
		}
	}
	if text, immediate, ok := singleLiteral(e); ok {
		shape.literal, shape.text, shape.immediate = true, text, immediate
		shape.pattern = regexp.QuoteMeta(text)
		return shape
	}
	shape.pattern = b.tokenExpr(e, &shape)
	return shape
}

// singleLiteral recognizes a body that is exactly one quoted string,
// optionally wrapped in immediate(...).
func singleLiteral(e *grammar.Expr) (string, bool, bool) {
	if len(e.Alts) != 1 || e.Alts[0].Empty || len(e.Alts[0].Items) != 1 {
		return "", false, false
	}
	item := e.Alts[0].Items[0]
	if item.Quant != "" || item.Field != "" || item.Alias != nil {
		return "", false, false
	}
	switch {
	case item.Atom.Literal != nil:
		text, err := grammar.Unquote(*item.Atom.Literal)
		return text, false, err == nil
	case item.Atom.Immediate != nil:
		text, _, ok := singleLiteral(item.Atom.Immediate)
		return text, true, ok
	}
	return "", false, false
}

func (b *builder) tokenExpr(e *grammar.Expr, shape *tokenShape) string {
	alts := make([]string, 0, len(e.Alts))
	for _, alt := range e.Alts {
		if !alt.Empty && len(alt.Items) == 0 {
			b.errorf(errors.ErrorEmptyAlternative, alt.Pos, "token alternative is empty")
		}
		var sb strings.Builder
		for _, item := range alt.Items {
			if item.Field != "" || item.Alias != nil {
				b.errorf(errors.ErrorInvalidLabel, item.Pos, "fields and aliases are not allowed inside tokens")
			}
			sb.WriteString(b.tokenAtom(item.Atom, shape))
			sb.WriteString(item.Quant)
		}
		alts = append(alts, sb.String())
	}
	return strings.Join(alts, "|")
}

func (b *builder) tokenAtom(atom *grammar.Atom, shape *tokenShape) string {
	switch {
	case atom.Literal != nil:
		text, err := grammar.Unquote(*atom.Literal)
		if err != nil {
			b.errorf(errors.ErrorGrammarSyntax, atom.Pos, "%v", err)
			return ""
		}
		return "(?:" + regexp.QuoteMeta(text) + ")"
	case atom.Pattern != nil:
		return "(?:" + grammar.PatternSource(*atom.Pattern) + ")"
	case atom.Group != nil:
		return "(?:" + b.tokenExpr(atom.Group, shape) + ")"
	case atom.Token != nil:
		return "(?:" + b.tokenExpr(atom.Token, shape) + ")"
	case atom.Immediate != nil:
		shape.immediate = true
		return "(?:" + b.tokenExpr(atom.Immediate, shape) + ")"
	}

	sym, ok := b.names[atom.Name]
	if !ok {
		b.errorf(errors.ErrorUnresolvedSymbol, atom.Pos, "undefined symbol %s", atom.Name)
		return ""
	}
	decl, isToken := b.tokens[atom.Name]
	if !sym.term || !isToken {
		b.errorf(errors.ErrorInvalidTokenReference, atom.Pos, "token bodies may only refer to tokens; %s is not one", atom.Name)
		return ""
	}
	pattern, _ := b.resolveToken(decl)
	return "(?:" + pattern + ")"
}

// literal returns the anonymous terminal for a quoted string.
func (b *builder) literal(text string, immediate bool, pos lexer.Position) int {
	key := text
	if immediate {
		key = "\x00" + text
	}
	if idx, ok := b.literals[key]; ok {
		return idx
	}
	if text == "" {
		b.errorf(errors.ErrorEmptyToken, pos, "empty string literal")
	}
	idx := len(b.terms)
	b.terms = append(b.terms, &termEntry{
		name:      text,
		kind:      KindLiteral,
		visible:   true,
		pattern:   regexp.QuoteMeta(text),
		literal:   true,
		text:      text,
		immediate: immediate,
		pos:       grammar.PositionOf(pos),
	})
	b.literals[key] = idx
	return idx
}

// pattern returns the anonymous, hidden terminal for an inline pattern.
func (b *builder) pattern(src string, immediate bool, prec int, pos lexer.Position) int {
	key := src
	if immediate {
		key = "\x00" + src
	}
	if idx, ok := b.patterns[key]; ok {
		b.terms[idx].prec = max(b.terms[idx].prec, prec)
		return idx
	}
	idx := len(b.terms)
	e := &termEntry{
		name:      "/" + src + "/",
		kind:      KindPattern,
		pattern:   src,
		prec:      prec,
		immediate: immediate,
		pos:       grammar.PositionOf(pos),
	}
	if !b.checkPattern(src, pos) {
		e.pattern = ""
	}
	b.terms = append(b.terms, e)
	b.patterns[key] = idx
	return idx
}

func (b *builder) anonymous(shape tokenShape, pos lexer.Position) int {
	if shape.literal {
		idx := b.literal(shape.text, shape.immediate, pos)
		b.terms[idx].prec = max(b.terms[idx].prec, shape.prec)
		return idx
	}
	return b.pattern(shape.pattern, shape.immediate, shape.prec, pos)
}

// checkPattern rejects patterns that do not compile or that match the
// empty string.
func (b *builder) checkPattern(src string, pos lexer.Position) bool {
	re, err := regexp.Compile(`^(?:` + src + `)$`)
	if err != nil {
		b.errorf(errors.ErrorInvalidPattern, pos, "invalid pattern /%s/: %v", src, err)
		return false
	}
	if re.MatchString("") {
		b.errorf(errors.ErrorEmptyToken, pos, "pattern /%s/ matches the empty string", src)
		return false
	}
	return true
}
