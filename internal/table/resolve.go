package table

import (
	"fmt"
	"slices"
	"strings"

	"fusor/internal/errors"
	"fusor/internal/model"
	"fusor/token"
)

// Resolution records how a cell with several candidate actions was settled.
type Resolution uint8

const (
	ResolvedByPrecedence Resolution = iota
	ResolvedByAssociativity
	ResolvedByOrder
	// Branch keeps every candidate; the engine explores them in parallel.
	Branch
	Unresolved
)

func (r Resolution) String() string {
	switch r {
	case ResolvedByPrecedence:
		return "precedence"
	case ResolvedByAssociativity:
		return "associativity"
	case ResolvedByOrder:
		return "declaration order"
	case Branch:
		return "branch"
	case Unresolved:
		return "unresolved"
	}
	return fmt.Sprintf("resolution(%d)", uint8(r))
}

// Conflict is a cell where more than one action was viable.
type Conflict struct {
	State      int
	Lookahead  token.Symbol
	Candidates []Action
	Kept       []Action
	Resolution Resolution
}

type candidate struct {
	action  Action
	prec    int
	assoc   model.Assoc
	origins []token.Symbol
}

type cell struct {
	shift   *candidate
	reduces []candidate
}

type stateResult struct {
	actions   map[token.Symbol][]Action
	gotos     map[token.Symbol]token.StateID
	conflicts []Conflict
	errs      []error
	warnings  []*errors.GrammarError
}

type resolver struct {
	a    *automaton
	opts Options
}

func addOrigin(list []token.Symbol, sym token.Symbol) []token.Symbol {
	if slices.Contains(list, sym) {
		return list
	}
	return append(list, sym)
}

func (r *resolver) resolveState(id int) stateResult {
	a := r.a
	g := a.g
	st := a.states[id]
	res := stateResult{
		actions: make(map[token.Symbol][]Action),
		gotos:   make(map[token.Symbol]token.StateID),
	}
	for sym, target := range st.trans {
		if !g.IsTerminal(sym) {
			res.gotos[sym] = token.StateID(target)
		}
	}

	cells := make(map[token.Symbol]*cell)
	get := func(sym token.Symbol) *cell {
		c, ok := cells[sym]
		if !ok {
			c = &cell{}
			cells[sym] = c
		}
		return c
	}
	for _, it := range a.closure(st.kernel) {
		prod := &g.Productions[it.prod]
		sym, ok := a.next(it.item)
		if ok {
			if !g.IsTerminal(sym) {
				continue
			}
			c := get(sym)
			if c.shift == nil {
				level, assoc := g.TerminalLevel(sym)
				c.shift = &candidate{
					action: Action{Kind: ActionShift, State: token.StateID(st.trans[sym]), Production: uint16(it.prod)},
					prec:   level,
					assoc:  assoc,
				}
			}
			c.shift.prec = max(c.shift.prec, r.shiftPrec(st, it.item))
			c.shift.action.Production = min(c.shift.action.Production, uint16(it.prod))
			for _, o := range r.shiftOrigins(st, it.item) {
				c.shift.origins = addOrigin(c.shift.origins, o)
			}
			continue
		}
		kind := ActionReduce
		if it.prod == 0 {
			kind = ActionAccept
		}
		it.la.Each(func(t token.Symbol) {
			c := get(t)
			c.reduces = append(c.reduces, candidate{
				action:  Action{Kind: kind, Production: uint16(it.prod)},
				prec:    prod.Prec,
				assoc:   prod.Assoc,
				origins: []token.Symbol{g.Origin(prod.LHS)},
			})
		})
	}

	syms := make([]token.Symbol, 0, len(cells))
	for sym := range cells {
		syms = append(syms, sym)
	}
	slices.Sort(syms)
	for _, sym := range syms {
		c := cells[sym]
		var all []candidate
		if c.shift != nil {
			all = append(all, *c.shift)
		}
		all = append(all, c.reduces...)
		if len(all) == 1 {
			res.actions[sym] = []Action{all[0].action}
			continue
		}
		res.actions[sym] = r.resolveCell(id, sym, all, &res)
	}
	return res
}

// shiftPrec returns the precedence of an item shifting a token. Items
// predicted by the closure also carry the precedence of the kernel items
// that predicted them.
func (r *resolver) shiftPrec(st *lrState, it item) int {
	g := r.a.g
	prec := g.Productions[it.prod].Prec
	if it.dot > 0 {
		return prec
	}
	lhs := g.Productions[it.prod].LHS
	for _, k := range st.kernel {
		next, ok := r.a.next(k.item)
		if ok && r.a.predicts(next, lhs) {
			prec = max(prec, g.Productions[k.prod].Prec)
		}
	}
	return prec
}

// shiftOrigins returns the rules an item shifting a token belongs to. Items
// predicted by the closure are attributed to the kernel items that
// predicted them.
func (r *resolver) shiftOrigins(st *lrState, it item) []token.Symbol {
	g := r.a.g
	lhs := g.Productions[it.prod].LHS
	if it.dot > 0 {
		return []token.Symbol{g.Origin(lhs)}
	}
	var out []token.Symbol
	for _, k := range st.kernel {
		next, ok := r.a.next(k.item)
		if ok && r.a.predicts(next, lhs) {
			out = addOrigin(out, g.Origin(g.Productions[k.prod].LHS))
		}
	}
	return out
}

func actionsOf(cands []candidate) []Action {
	out := make([]Action, len(cands))
	for i, c := range cands {
		out[i] = c.action
	}
	slices.SortFunc(out, func(x, y Action) int {
		if x.Production != y.Production {
			return int(x.Production) - int(y.Production)
		}
		return int(x.Kind) - int(y.Kind)
	})
	return out
}

// resolveCell applies, in order: precedence, associativity, declared
// conflicts and finally declaration order.
func (r *resolver) resolveCell(state int, sym token.Symbol, all []candidate, res *stateResult) []Action {
	conflict := Conflict{State: state, Lookahead: sym, Candidates: actionsOf(all)}
	record := func(kept []candidate, how Resolution) []Action {
		conflict.Kept = actionsOf(kept)
		conflict.Resolution = how
		res.conflicts = append(res.conflicts, conflict)
		return conflict.Kept
	}

	top := all[0].prec
	for _, c := range all[1:] {
		top = max(top, c.prec)
	}
	remaining := all[:0:0]
	for _, c := range all {
		if c.prec == top {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 1 {
		return record(remaining, ResolvedByPrecedence)
	}

	hasShift := remaining[0].action.Kind == ActionShift
	if hasShift {
		left, right, nonassoc := true, true, false
		for _, c := range remaining[1:] {
			left = left && c.assoc == model.AssocLeft
			right = right && c.assoc == model.AssocRight
			nonassoc = nonassoc || c.assoc == model.AssocNonassoc
		}
		switch {
		case nonassoc:
			res.errs = append(res.errs, r.conflictError(errors.ErrorNonAssociative, state, sym, remaining,
				"operator is non-associative"))
			return record(remaining, Unresolved)
		case left:
			remaining = remaining[1:]
		case right:
			remaining = remaining[:1]
		}
		if len(remaining) == 1 {
			return record(remaining, ResolvedByAssociativity)
		}
	}

	if r.declared(remaining) {
		if len(remaining) > r.opts.MaxFanout {
			res.errs = append(res.errs, r.conflictError(errors.ErrorFanoutExceeded, state, sym, remaining,
				fmt.Sprintf("declared conflict has %d actions, more than the limit of %d", len(remaining), r.opts.MaxFanout)))
			return record(remaining, Unresolved)
		}
		return record(remaining, Branch)
	}

	winner := remaining[0]
	for _, c := range remaining[1:] {
		if c.action.Production < winner.action.Production {
			winner = c
		}
	}
	if r.opts.Strict {
		res.errs = append(res.errs, r.conflictError(errors.ErrorUnresolvedConflict, state, sym, remaining,
			"ambiguity is only resolved by declaration order"))
		return record(remaining, Unresolved)
	}
	res.warnings = append(res.warnings, r.orderWarning(state, sym, remaining, winner))
	return record([]candidate{winner}, ResolvedByOrder)
}

// declared reports whether every rule involved in the candidates is listed
// in one conflicts group.
func (r *resolver) declared(cands []candidate) bool {
	var involved []token.Symbol
	for _, c := range cands {
		for _, o := range c.origins {
			involved = addOrigin(involved, o)
		}
	}
	if len(involved) == 0 {
		return false
	}
	for _, group := range r.a.g.Conflicts {
		covered := true
		for _, sym := range involved {
			if !slices.Contains(group, sym) {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	return false
}

func (r *resolver) describe(c candidate) string {
	g := r.a.g
	switch c.action.Kind {
	case ActionShift:
		return fmt.Sprintf("shift (%s)", g.ProductionString(int(c.action.Production)))
	case ActionAccept:
		return "accept"
	}
	return "reduce " + g.ProductionString(int(c.action.Production))
}

func (r *resolver) position(cands []candidate) errors.Position {
	for _, c := range cands {
		if c.action.Kind == ActionReduce {
			return r.a.g.Productions[c.action.Production].Pos
		}
	}
	return r.a.g.Productions[cands[0].action.Production].Pos
}

func (r *resolver) conflictError(code string, state int, sym token.Symbol, cands []candidate, msg string) *errors.ConflictError {
	actions := make([]string, len(cands))
	for i, c := range cands {
		actions[i] = r.describe(c)
	}
	return &errors.ConflictError{
		Code:      code,
		State:     state,
		Lookahead: r.a.g.SymbolName(sym),
		Actions:   actions,
		Message:   msg,
		Position:  r.position(cands),
	}
}

func (r *resolver) orderWarning(state int, sym token.Symbol, cands []candidate, winner candidate) *errors.GrammarError {
	others := make([]string, 0, len(cands)-1)
	for _, c := range cands {
		if c.action != winner.action {
			others = append(others, r.describe(c))
		}
	}
	b := errors.NewGrammarError(errors.WarningDeclarationOrder,
		fmt.Sprintf("conflict on %q in state %d resolved by declaration order: %s", r.a.g.SymbolName(sym), state, r.describe(winner)),
		r.position([]candidate{winner}))
	b.WithNote("over " + strings.Join(others, ", "))
	return b.Build()
}
