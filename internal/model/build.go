package model

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"fusor/grammar"
	"fusor/internal/errors"
	"fusor/token"
)

// MaxVariants bounds the number of productions a single rule alternative
// may expand into.
const MaxVariants = 4096

type ref struct {
	term bool
	idx  int
}

type termEntry struct {
	name      string
	kind      SymbolKind
	named     bool
	visible   bool
	pattern   string
	literal   bool
	text      string
	prec      int
	immediate bool
	keyword   bool
	extra     bool
	used      bool
	pseudo    bool
	level     int
	assoc     Assoc
	pos       errors.Position
}

type ruleEntry struct {
	name      string
	kind      SymbolKind
	visible   bool
	origin    int
	supertype bool
	pos       errors.Position
	body      *grammar.Expr
	prods     []variant
}

type builder struct {
	file  *grammar.File
	errs  errors.List
	terms []*termEntry
	rules []*ruleEntry
	names map[string]ref
	decls map[string]errors.Position

	tokens     map[string]*grammar.TokenDecl
	tokenState map[string]int
	literals   map[string]int
	patterns   map[string]int

	startName  *grammar.StartDecl
	word       int
	extras     []int
	externals  []int
	conflicts  [][]int
	supertypes []int
	start      int

	current  int
	auxCount map[int]int
}

// Build validates a parsed grammar and lowers it to numbered symbols and
// flat productions. Every problem found is reported; the returned error is
// an errors.List of *errors.GrammarError.
func Build(file *grammar.File) (*Grammar, error) {
	b := &builder{
		file:       file,
		names:      make(map[string]ref),
		decls:      make(map[string]errors.Position),
		tokens:     make(map[string]*grammar.TokenDecl),
		tokenState: make(map[string]int),
		literals:   make(map[string]int),
		patterns:   make(map[string]int),
		word:       -1,
		start:      -1,
		auxCount:   make(map[int]int),
	}

	b.declare()
	b.declarePrecedence()
	b.declareWord()
	b.declareExtras()
	b.expandRules()
	b.checkPrecedenceUse()
	b.markKeywords()
	b.resolveStart()
	b.resolveSupertypes()
	b.resolveConflicts()
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	g := b.assemble()
	if err := g.analyze(); err != nil {
		return nil, err
	}
	return g, nil
}

func (b *builder) errorf(code string, pos lexer.Position, format string, args ...any) *errors.GrammarError {
	err := errors.NewGrammarError(code, fmt.Sprintf(format, args...), grammar.PositionOf(pos)).Build()
	b.errs = append(b.errs, err)
	return err
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// declare registers every rule, token and external name.
func (b *builder) declare() {
	register := func(name string, pos lexer.Position, r ref) bool {
		if first, ok := b.decls[name]; ok {
			err := b.errorf(errors.ErrorDuplicateRule, pos, "%s is defined more than once", name)
			err.Notes = append(err.Notes, fmt.Sprintf("first defined at %s", first))
			return false
		}
		b.decls[name] = grammar.PositionOf(pos)
		b.names[name] = r
		return true
	}

	for _, d := range b.file.Decls {
		switch {
		case d.Start != nil:
			b.startName = d.Start
		case d.Token != nil:
			if register(d.Token.Name, d.Token.Pos, ref{term: true, idx: len(b.terms)}) {
				b.tokens[d.Token.Name] = d.Token
				b.terms = append(b.terms, &termEntry{
					name:    d.Token.Name,
					kind:    KindToken,
					named:   true,
					visible: !isHidden(d.Token.Name),
					pos:     grammar.PositionOf(d.Token.Pos),
				})
			}
		case d.Externals != nil:
			for _, id := range d.Externals.Names {
				if register(id.Value, id.Pos, ref{term: true, idx: len(b.terms)}) {
					b.externals = append(b.externals, len(b.terms))
					b.terms = append(b.terms, &termEntry{
						name:    id.Value,
						kind:    KindExternal,
						named:   true,
						visible: !isHidden(id.Value),
						used:    true,
						pos:     grammar.PositionOf(id.Pos),
					})
				}
			}
		case d.Rule != nil:
			if register(d.Rule.Name, d.Rule.Pos, ref{idx: len(b.rules)}) {
				b.rules = append(b.rules, &ruleEntry{
					name:    d.Rule.Name,
					kind:    KindRule,
					visible: !isHidden(d.Rule.Name),
					origin:  len(b.rules),
					pos:     grammar.PositionOf(d.Rule.Pos),
					body:    d.Rule.Body,
				})
			}
		}
	}

	for _, d := range b.file.Decls {
		if d.Token != nil && b.tokens[d.Token.Name] == d.Token {
			b.resolveToken(d.Token)
		}
	}
}

func (b *builder) precedenceLevels() []*grammar.PrecLevel {
	var levels []*grammar.PrecLevel
	for _, d := range b.file.Decls {
		if d.Precedence != nil {
			levels = append(levels, d.Precedence.Levels...)
		}
	}
	return levels
}

// declarePrecedence numbers precedence levels from 1; later lines bind
// tighter.
func (b *builder) declarePrecedence() {
	for i, lvl := range b.precedenceLevels() {
		var assoc Assoc
		switch lvl.Assoc {
		case "%left":
			assoc = AssocLeft
		case "%right":
			assoc = AssocRight
		case "%nonassoc":
			assoc = AssocNonassoc
		case "%prec":
			assoc = AssocNone
		default:
			b.errorf(errors.ErrorInvalidAnnotation, lvl.Pos, "%s is not an associativity", lvl.Assoc)
			continue
		}
		for _, r := range lvl.Symbols {
			idx := -1
			if r.Literal != nil {
				text, err := grammar.Unquote(*r.Literal)
				if err != nil {
					b.errorf(errors.ErrorGrammarSyntax, r.Pos, "%v", err)
					continue
				}
				idx = b.literal(text, false, r.Pos)
			} else {
				sym, ok := b.names[r.Name]
				if !ok || !sym.term {
					b.errorf(errors.ErrorInvalidPrecedence, r.Pos, "precedence entry %s is not a token", r.Name)
					continue
				}
				idx = sym.idx
			}
			b.terms[idx].level = i + 1
			b.terms[idx].assoc = assoc
		}
	}
}

func (b *builder) checkPrecedenceUse() {
	for _, e := range b.terms {
		if e.kind == KindLiteral && e.level > 0 && !e.used {
			if !e.pseudo {
				b.errs = append(b.errs, errors.NewGrammarError(errors.ErrorInvalidPrecedence,
					fmt.Sprintf("precedence names %q but nothing uses it", e.text), e.pos).Build())
				continue
			}
			// Referenced only from %prec annotations: a named level, never lexed.
			e.pattern = ""
		}
	}
}

// levelOf resolves a %prec(ref) argument to its declared level.
func (b *builder) levelOf(r *grammar.Ref) (int, Assoc, bool) {
	idx := -1
	if r.Literal != nil {
		text, err := grammar.Unquote(*r.Literal)
		if err != nil {
			return 0, AssocNone, false
		}
		i, ok := b.literals[text]
		if !ok {
			return 0, AssocNone, false
		}
		idx = i
	} else {
		sym, ok := b.names[r.Name]
		if !ok || !sym.term {
			return 0, AssocNone, false
		}
		idx = sym.idx
	}
	e := b.terms[idx]
	if e.level == 0 {
		return 0, AssocNone, false
	}
	if !e.used {
		e.pseudo = true
	}
	return e.level, e.assoc, true
}

func (b *builder) declareWord() {
	for _, d := range b.file.Decls {
		if d.Word == nil {
			continue
		}
		sym, ok := b.names[d.Word.Name]
		if !ok || !sym.term || b.terms[sym.idx].kind != KindToken {
			b.errorf(errors.ErrorInvalidTokenReference, d.Word.Pos, "word %s must name a token", d.Word.Name)
			continue
		}
		b.word = sym.idx
	}
}

func (b *builder) declareExtras() {
	seen := make(map[int]bool)
	for _, d := range b.file.Decls {
		if d.Extras == nil {
			continue
		}
		for _, atom := range d.Extras.Items {
			if atom.Group != nil {
				b.errorf(errors.ErrorInvalidTokenReference, atom.Pos, "extras entries must be tokens")
				continue
			}
			if atom.Name != "" {
				sym, ok := b.names[atom.Name]
				if !ok {
					b.errorf(errors.ErrorUnresolvedSymbol, atom.Pos, "undefined symbol %s", atom.Name)
					continue
				}
				if !sym.term {
					b.errorf(errors.ErrorInvalidTokenReference, atom.Pos, "extras entry %s is a rule, not a token", atom.Name)
					continue
				}
			}
			r, ok := b.atomRef(atom)
			if !ok {
				continue
			}
			b.terms[r.idx].extra = true
			if !seen[r.idx] {
				seen[r.idx] = true
				b.extras = append(b.extras, r.idx)
			}
		}
	}
}

func (b *builder) markKeywords() {
	if b.word < 0 || b.terms[b.word].pattern == "" {
		return
	}
	re, err := regexp.Compile(`^(?:` + b.terms[b.word].pattern + `)$`)
	if err != nil {
		return
	}
	for _, e := range b.terms {
		if e.kind == KindLiteral && !e.immediate && e.pattern != "" && re.MatchString(e.text) {
			e.keyword = true
		}
	}
}

func (b *builder) resolveStart() {
	if b.startName == nil {
		if len(b.rules) == 0 {
			b.errorf(errors.ErrorInvalidStart, b.file.Pos, "grammar %s has no rules", b.file.Name)
			return
		}
		b.start = 0
		if !b.rules[0].visible {
			b.errorf(errors.ErrorInvalidStart, b.file.Pos, "first rule %s is hidden; declare a start rule", b.rules[0].name)
		}
		return
	}
	name, pos := b.startName.Name, b.startName.Pos
	sym, ok := b.names[name]
	switch {
	case !ok:
		b.errorf(errors.ErrorInvalidStart, pos, "start rule %s is not defined", name)
	case sym.term:
		b.errorf(errors.ErrorInvalidStart, pos, "start symbol %s must be a rule", name)
	case !b.rules[sym.idx].visible:
		b.errorf(errors.ErrorInvalidStart, pos, "start rule %s must not be hidden", name)
	default:
		b.start = sym.idx
	}
}

func (b *builder) resolveSupertypes() {
	for _, d := range b.file.Decls {
		if d.Supertypes == nil {
			continue
		}
		for _, id := range d.Supertypes.Names {
			sym, ok := b.names[id.Value]
			switch {
			case !ok:
				b.errorf(errors.ErrorUnresolvedSymbol, id.Pos, "undefined symbol %s", id.Value)
			case sym.term || b.rules[sym.idx].visible:
				b.errorf(errors.ErrorInvalidSupertype, id.Pos, "supertype %s must be a hidden rule", id.Value)
			default:
				b.rules[sym.idx].supertype = true
				b.supertypes = append(b.supertypes, sym.idx)
			}
		}
	}
}

func (b *builder) resolveConflicts() {
	for _, d := range b.file.Decls {
		if d.Conflicts == nil {
			continue
		}
		for _, group := range d.Conflicts.Groups {
			var set []int
			for _, id := range group.Names {
				sym, ok := b.names[id.Value]
				if !ok || sym.term {
					b.errorf(errors.ErrorUnresolvedSymbol, id.Pos, "conflicts entry %s is not a rule", id.Value)
					continue
				}
				set = append(set, sym.idx)
			}
			b.conflicts = append(b.conflicts, set)
		}
	}
}

// assemble numbers the symbols: end and ERROR, terminals in declaration
// order, rules followed by auxiliary rules, the augmented start symbol and
// finally alias symbols.
func (b *builder) assemble() *Grammar {
	nterm := len(b.terms)
	termSym := func(i int) token.Symbol { return token.Symbol(2 + i) }
	ruleSym := func(i int) token.Symbol { return token.Symbol(2 + nterm + i) }
	symOf := func(r ref) token.Symbol {
		if r.term {
			return termSym(r.idx)
		}
		return ruleSym(r.idx)
	}

	g := &Grammar{
		Name:          b.file.Name,
		Digest:        sha256.Sum256([]byte(grammar.Format(b.file))),
		TerminalCount: 2 + nterm,
		Start:         ruleSym(len(b.rules)),
		StartRule:     ruleSym(b.start),
		Fields:        []string{""},
		Word:          NoSymbol,
		names:         make(map[string]token.Symbol),
	}

	g.Symbols = append(g.Symbols,
		SymbolInfo{Name: "end", Kind: KindEnd},
		SymbolInfo{Name: "ERROR", Kind: KindError, Named: true, Visible: true},
	)
	g.Terminals = append(g.Terminals,
		Terminal{Symbol: token.EOF, External: -1},
		Terminal{Symbol: token.Error, External: -1},
	)
	g.symPos = append(g.symPos, errors.Position{}, errors.Position{})
	for i, e := range b.terms {
		g.Symbols = append(g.Symbols, SymbolInfo{Name: e.name, Kind: e.kind, Named: e.named, Visible: e.visible})
		g.Terminals = append(g.Terminals, Terminal{
			Symbol:    termSym(i),
			Pattern:   e.pattern,
			Literal:   e.literal,
			Text:      e.text,
			Prec:      e.prec,
			Immediate: e.immediate,
			Keyword:   e.keyword,
			Extra:     e.extra,
			External:  -1,
		})
		g.symPos = append(g.symPos, e.pos)
	}
	for _, e := range b.rules {
		g.Symbols = append(g.Symbols, SymbolInfo{
			Name:      e.name,
			Kind:      e.kind,
			Named:     e.kind == KindRule,
			Visible:   e.visible,
			Supertype: e.supertype,
		})
		g.origin = append(g.origin, ruleSym(e.origin))
		g.symPos = append(g.symPos, e.pos)
	}
	g.Symbols = append(g.Symbols, SymbolInfo{Name: b.rules[b.start].name + "'", Kind: KindStart})
	g.symPos = append(g.symPos, b.rules[b.start].pos)

	for name, r := range b.names {
		g.names[name] = symOf(r)
	}
	for i, idx := range b.externals {
		g.Externals = append(g.Externals, termSym(idx))
		g.Terminals[termSym(idx)].External = i
	}
	for _, idx := range b.extras {
		g.Extras = append(g.Extras, termSym(idx))
	}
	for _, idx := range b.supertypes {
		g.Supertypes = append(g.Supertypes, ruleSym(idx))
	}
	for _, set := range b.conflicts {
		syms := make([]token.Symbol, len(set))
		for i, idx := range set {
			syms[i] = ruleSym(idx)
		}
		g.Conflicts = append(g.Conflicts, syms)
	}
	if b.word >= 0 {
		g.Word = termSym(b.word)
	}

	fieldIDs := make(map[string]uint16)
	fieldID := func(name string) uint16 {
		if name == "" {
			return 0
		}
		if id, ok := fieldIDs[name]; ok {
			return id
		}
		id := uint16(len(g.Fields))
		g.Fields = append(g.Fields, name)
		fieldIDs[name] = id
		return id
	}

	type aliasKey struct {
		name  string
		named bool
	}
	aliases := make(map[aliasKey]token.Symbol)
	for sym, info := range g.Symbols {
		if !info.Visible {
			continue
		}
		key := aliasKey{info.Name, info.Named}
		if _, ok := aliases[key]; !ok {
			aliases[key] = token.Symbol(sym)
		}
	}
	aliasSym := func(l *label) token.Symbol {
		key := aliasKey{l.name, l.named}
		if sym, ok := aliases[key]; ok {
			return sym
		}
		sym := token.Symbol(len(g.Symbols))
		g.Symbols = append(g.Symbols, SymbolInfo{Name: l.name, Kind: KindAlias, Named: l.named, Visible: true})
		aliases[key] = sym
		return sym
	}

	g.Productions = append(g.Productions, Production{
		ID:      0,
		LHS:     g.Start,
		RHS:     []token.Symbol{g.StartRule},
		Fields:  []uint16{0},
		Aliases: []token.Symbol{0},
	})
	for i, r := range b.rules {
		for _, v := range r.prods {
			p := Production{
				ID:      len(g.Productions),
				LHS:     ruleSym(i),
				RHS:     make([]token.Symbol, len(v.elems)),
				Fields:  make([]uint16, len(v.elems)),
				Aliases: make([]token.Symbol, len(v.elems)),
				Dynamic: v.ann.dynamic,
				Pos:     v.pos,
			}
			for j, el := range v.elems {
				p.RHS[j] = symOf(el.ref)
				p.Fields[j] = fieldID(el.field)
				if el.alias != nil {
					p.Aliases[j] = aliasSym(el.alias)
				}
			}
			if v.ann.hasPrec {
				p.Prec, p.Assoc = v.ann.prec, v.ann.assoc
			} else {
				for j := len(v.elems) - 1; j >= 0; j-- {
					if el := v.elems[j]; el.ref.term && b.terms[el.ref.idx].level > 0 {
						p.Prec, p.Assoc = b.terms[el.ref.idx].level, b.terms[el.ref.idx].assoc
						break
					}
				}
			}
			g.Productions = append(g.Productions, p)
		}
	}

	g.byLHS = make([][]int, g.NonterminalCount())
	for _, p := range g.Productions {
		n := int(p.LHS) - g.TerminalCount
		g.byLHS[n] = append(g.byLHS[n], p.ID)
	}

	// Origin is indexed by symbol; terminals map to themselves.
	origin := make([]token.Symbol, 0, g.SymbolCount())
	for i := 0; i < g.TerminalCount; i++ {
		origin = append(origin, token.Symbol(i))
	}
	origin = append(origin, g.origin...)
	origin = append(origin, g.Start)
	g.origin = origin

	g.levels = make([]int, g.TerminalCount)
	g.assocs = make([]Assoc, g.TerminalCount)
	for i, e := range b.terms {
		g.levels[termSym(i)] = e.level
		g.assocs[termSym(i)] = e.assoc
	}
	return g
}
