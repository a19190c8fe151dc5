package model

import (
	"fmt"

	"fusor/grammar"
	"fusor/internal/errors"
)

type label struct {
	name  string
	named bool
}

type element struct {
	ref   ref
	field string
	alias *label
}

type annot struct {
	prec    int
	hasPrec bool
	assoc   Assoc
	dynamic int
}

// variant is one flattened sequence produced while desugaring a rule body.
type variant struct {
	elems []element
	ann   annot
	pos   errors.Position
}

func (b *builder) expandRules() {
	// Auxiliary rules are appended while expanding and arrive with their
	// productions already built.
	for i := 0; i < len(b.rules); i++ {
		r := b.rules[i]
		if r.body == nil {
			continue
		}
		b.current = i
		prods, ok := b.expandExpr(r.body)
		if ok {
			r.prods = prods
		}
	}
}

func (b *builder) expandExpr(e *grammar.Expr) ([]variant, bool) {
	var out []variant
	for _, alt := range e.Alts {
		vs, ok := b.expandAlt(alt)
		if !ok {
			return nil, false
		}
		out = append(out, vs...)
		if len(out) > MaxVariants {
			b.errorf(errors.ErrorTooManyAlternatives, alt.Pos, "rule %s expands to more than %d alternatives", b.rules[b.current].name, MaxVariants)
			return nil, false
		}
	}
	return out, true
}

func (b *builder) expandAlt(alt *grammar.Alt) ([]variant, bool) {
	ann, ok := b.annotations(alt.Annotations)
	if !ok {
		return nil, false
	}
	switch {
	case alt.Empty && len(alt.Items) > 0:
		b.errorf(errors.ErrorEmptyAlternative, alt.Pos, "`empty` must be the only item of its alternative")
		return nil, false
	case !alt.Empty && len(alt.Items) == 0:
		b.errorf(errors.ErrorEmptyAlternative, alt.Pos, "alternative of %s is empty; write `empty` to allow it", b.rules[b.current].name)
		return nil, false
	}

	acc := []variant{{ann: ann, pos: grammar.PositionOf(alt.Pos)}}
	for _, item := range alt.Items {
		opts, ok := b.expandItem(item)
		if !ok {
			return nil, false
		}
		next := make([]variant, 0, len(acc)*len(opts))
		for _, a := range acc {
			for _, o := range opts {
				v := variant{
					elems: append(append([]element(nil), a.elems...), o.elems...),
					ann:   a.ann,
					pos:   a.pos,
				}
				if !v.ann.hasPrec && o.ann.hasPrec {
					v.ann.prec, v.ann.assoc, v.ann.hasPrec = o.ann.prec, o.ann.assoc, true
				}
				if v.ann.dynamic == 0 {
					v.ann.dynamic = o.ann.dynamic
				}
				next = append(next, v)
			}
		}
		if len(next) > MaxVariants {
			b.errorf(errors.ErrorTooManyAlternatives, item.Pos, "rule %s expands to more than %d alternatives", b.rules[b.current].name, MaxVariants)
			return nil, false
		}
		acc = next
	}
	return acc, true
}

func (b *builder) expandItem(item *grammar.Item) ([]variant, bool) {
	field := item.FieldName()
	var base []variant

	if item.Atom.Group != nil {
		if item.Alias != nil {
			b.errorf(errors.ErrorInvalidLabel, item.Pos, "an alias needs a single symbol, not a group")
			return nil, false
		}
		vs, ok := b.expandExpr(item.Atom.Group)
		if !ok {
			return nil, false
		}
		base = withField(vs, field)
	} else {
		r, ok := b.atomRef(item.Atom)
		if !ok {
			return nil, false
		}
		el := element{ref: r, field: field}
		if item.Alias != nil {
			l, ok := b.aliasLabel(item.Alias)
			if !ok {
				return nil, false
			}
			el.alias = l
		}
		base = []variant{{elems: []element{el}}}
	}

	switch item.Quant {
	case "?":
		return append(base, variant{}), true
	case "+":
		return []variant{{elems: []element{{ref: b.repeat(base, item)}}}}, true
	case "*":
		return []variant{{elems: []element{{ref: b.repeat(base, item)}}}, {}}, true
	}
	return base, true
}

func withField(vs []variant, field string) []variant {
	if field == "" {
		return vs
	}
	out := make([]variant, len(vs))
	for i, v := range vs {
		elems := make([]element, len(v.elems))
		for j, el := range v.elems {
			if el.field == "" {
				el.field = field
			}
			elems[j] = el
		}
		out[i] = variant{elems: elems, ann: v.ann, pos: v.pos}
	}
	return out
}

// repeat introduces a hidden left-recursive rule matching one or more
// occurrences of base.
func (b *builder) repeat(base []variant, item *grammar.Item) ref {
	owner := b.rules[b.current]
	b.auxCount[b.current]++
	self := ref{idx: len(b.rules)}
	aux := &ruleEntry{
		name:   fmt.Sprintf("%s_repeat%d", owner.name, b.auxCount[b.current]),
		kind:   KindAux,
		origin: owner.origin,
		pos:    grammar.PositionOf(item.Pos),
	}
	aux.prods = append(aux.prods, base...)
	for _, v := range base {
		elems := append([]element{{ref: self}}, v.elems...)
		aux.prods = append(aux.prods, variant{elems: elems, ann: v.ann, pos: v.pos})
	}
	b.rules = append(b.rules, aux)
	return self
}

func (b *builder) aliasLabel(r *grammar.Ref) (*label, bool) {
	if r.Literal == nil {
		return &label{name: r.Name, named: true}, true
	}
	text, err := grammar.Unquote(*r.Literal)
	if err != nil {
		b.errorf(errors.ErrorGrammarSyntax, r.Pos, "%v", err)
		return nil, false
	}
	return &label{name: text}, true
}

// atomRef resolves a non-group atom to a symbol, creating anonymous
// terminals for inline literals and patterns.
func (b *builder) atomRef(atom *grammar.Atom) (ref, bool) {
	var r ref
	switch {
	case atom.Name != "":
		sym, ok := b.names[atom.Name]
		if !ok {
			b.errorf(errors.ErrorUnresolvedSymbol, atom.Pos, "undefined symbol %s", atom.Name)
			return ref{}, false
		}
		r = sym
	case atom.Literal != nil:
		text, err := grammar.Unquote(*atom.Literal)
		if err != nil {
			b.errorf(errors.ErrorGrammarSyntax, atom.Pos, "%v", err)
			return ref{}, false
		}
		r = ref{term: true, idx: b.literal(text, false, atom.Pos)}
	case atom.Pattern != nil:
		r = ref{term: true, idx: b.pattern(grammar.PatternSource(*atom.Pattern), false, 0, atom.Pos)}
	case atom.Token != nil:
		r = ref{term: true, idx: b.anonymous(b.lowerToken(atom.Token), atom.Pos)}
	case atom.Immediate != nil:
		shape := b.lowerToken(atom.Immediate)
		shape.immediate = true
		r = ref{term: true, idx: b.anonymous(shape, atom.Pos)}
	default:
		b.errorf(errors.ErrorGrammarSyntax, atom.Pos, "empty symbol")
		return ref{}, false
	}
	if r.term {
		b.terms[r.idx].used = true
	}
	return r, true
}

func (b *builder) annotations(anns []*grammar.Annotation) (annot, bool) {
	var ann annot
	for _, a := range anns {
		switch a.Kind {
		case "%prec", "%left", "%right", "%nonassoc":
			level, assoc := 0, AssocNone
			if a.Arg == nil && a.Kind == "%prec" {
				b.errorf(errors.ErrorInvalidAnnotation, a.Pos, "%%prec needs a level")
				return ann, false
			}
			if a.Arg != nil {
				if a.Arg.Level != nil {
					level = *a.Arg.Level
				} else {
					lvl, as, ok := b.levelOf(a.Arg.Ref)
					if !ok {
						b.errorf(errors.ErrorInvalidPrecedence, a.Pos, "%s is not in the precedence block", a.Arg.Ref)
						return ann, false
					}
					level, assoc = lvl, as
				}
			}
			switch a.Kind {
			case "%left":
				assoc = AssocLeft
			case "%right":
				assoc = AssocRight
			case "%nonassoc":
				assoc = AssocNonassoc
			}
			ann.prec, ann.assoc, ann.hasPrec = level, assoc, true
		case "%dynamic":
			if a.Arg == nil || a.Arg.Level == nil {
				b.errorf(errors.ErrorInvalidAnnotation, a.Pos, "%%dynamic needs a number")
				return ann, false
			}
			ann.dynamic = *a.Arg.Level
		default:
			b.errorf(errors.ErrorInvalidAnnotation, a.Pos, "unknown annotation %s", a.Kind)
			return ann, false
		}
	}
	return ann, true
}
