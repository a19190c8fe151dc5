package table

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"fusor/internal/model"
	"fusor/token"
)

// Mode selects how LR(1) states with the same core are merged.
type Mode uint8

const (
	// ModePager merges states whose lookaheads are weakly compatible in
	// the sense of Pager (1977).
	ModePager Mode = iota
	// ModeLALR merges every pair of states with equal cores.
	ModeLALR
	// ModeCanonical never merges.
	ModeCanonical
)

func (m Mode) String() string {
	switch m {
	case ModePager:
		return "pager"
	case ModeLALR:
		return "lalr"
	case ModeCanonical:
		return "canonical"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode converts a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "pager":
		return ModePager, nil
	case "lalr":
		return ModeLALR, nil
	case "canonical", "lr1":
		return ModeCanonical, nil
	}
	return 0, fmt.Errorf("unknown automaton mode %q", s)
}

type item struct {
	prod int32
	dot  int32
}

type lrItem struct {
	item
	la model.TerminalSet
}

type lrState struct {
	kernel []lrItem
	core   string
	trans  map[token.Symbol]int
}

type suffix struct {
	first    model.TerminalSet
	nullable bool
}

type automaton struct {
	g      *model.Grammar
	mode   Mode
	states []*lrState
	byCore map[string][]int
	byFull map[string]int
	queue  []int
	queued []bool
	// suffixes[p][d] is FIRST of the right-hand side of p after position d.
	suffixes [][]suffix
	// corners[n] holds the nonterminals n can start with, n included.
	corners []model.TerminalSet
}

func newAutomaton(g *model.Grammar, mode Mode) *automaton {
	a := &automaton{
		g:      g,
		mode:   mode,
		byCore: make(map[string][]int),
		byFull: make(map[string]int),
	}
	a.suffixes = make([][]suffix, len(g.Productions))
	for p, prod := range g.Productions {
		rows := make([]suffix, len(prod.RHS)+1)
		for d := range rows {
			first, nullable := g.FirstOf(prod.RHS[d:])
			rows[d] = suffix{first, nullable}
		}
		a.suffixes[p] = rows
	}
	a.leftCorners()
	return a
}

// leftCorners computes, for each nonterminal, the nonterminals that the
// closure of an item expecting it predicts.
func (a *automaton) leftCorners() {
	g := a.g
	n := g.NonterminalCount()
	a.corners = make([]model.TerminalSet, n)
	for i := range n {
		set := model.NewTerminalSet(n)
		set.Add(token.Symbol(i))
		stack := []int{i}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, p := range g.ProductionsOf(token.Symbol(cur + g.TerminalCount)) {
				rhs := g.Productions[p].RHS
				if len(rhs) == 0 || g.IsTerminal(rhs[0]) {
					continue
				}
				next := int(rhs[0]) - g.TerminalCount
				if !set.Has(token.Symbol(next)) {
					set.Add(token.Symbol(next))
					stack = append(stack, next)
				}
			}
		}
		a.corners[i] = set
	}
}

// predicts reports whether an item expecting from has closure items for
// productions of to.
func (a *automaton) predicts(from, to token.Symbol) bool {
	tc := a.g.TerminalCount
	if a.g.IsTerminal(from) || a.g.IsTerminal(to) {
		return false
	}
	return a.corners[int(from)-tc].Has(token.Symbol(int(to) - tc))
}

func (a *automaton) next(it item) (token.Symbol, bool) {
	rhs := a.g.Productions[it.prod].RHS
	if int(it.dot) >= len(rhs) {
		return 0, false
	}
	return rhs[it.dot], true
}

// closure adds the items predicted by the kernel. Kernel items come first
// in the result. Lookaheads of the kernel are copied.
func (a *automaton) closure(kernel []lrItem) []lrItem {
	out := make([]lrItem, 0, len(kernel)*2)
	index := make(map[item]int, len(kernel)*2)
	var queue []int
	var queued []bool
	push := func(i int) {
		for len(queued) <= i {
			queued = append(queued, false)
		}
		if !queued[i] {
			queued[i] = true
			queue = append(queue, i)
		}
	}
	for _, k := range kernel {
		index[k.item] = len(out)
		out = append(out, lrItem{k.item, k.la.Clone()})
		push(len(out) - 1)
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false
		it := out[i]
		sym, ok := a.next(it.item)
		if !ok || a.g.IsTerminal(sym) {
			continue
		}
		rest := a.suffixes[it.prod][it.dot+1]
		la := rest.first.Clone()
		if rest.nullable {
			la.Union(it.la)
		}
		for _, p := range a.g.ProductionsOf(sym) {
			key := item{int32(p), 0}
			if j, ok := index[key]; ok {
				if out[j].la.Union(la) {
					push(j)
				}
				continue
			}
			index[key] = len(out)
			out = append(out, lrItem{key, la.Clone()})
			push(len(out) - 1)
		}
	}
	return out
}

func compareItems(x, y lrItem) int {
	if x.prod != y.prod {
		return int(x.prod - y.prod)
	}
	return int(x.dot - y.dot)
}

func coreKey(kernel []lrItem) string {
	buf := make([]byte, 0, len(kernel)*8)
	for _, k := range kernel {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(k.prod))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(k.dot))
	}
	return string(buf)
}

func fullKey(core string, kernel []lrItem) string {
	buf := []byte(core)
	for _, k := range kernel {
		for _, w := range k.la {
			buf = binary.LittleEndian.AppendUint64(buf, w)
		}
	}
	return string(buf)
}

// weaklyCompatible implements Pager's weak compatibility test: merging two
// states with the same core cannot introduce a reduce/reduce conflict that
// neither state had on its own.
func weaklyCompatible(x, y []lrItem) bool {
	for i := range x {
		for j := i + 1; j < len(x); j++ {
			if !x[i].la.Intersects(y[j].la) && !x[j].la.Intersects(y[i].la) {
				continue
			}
			if x[i].la.Intersects(x[j].la) || y[i].la.Intersects(y[j].la) {
				continue
			}
			return false
		}
	}
	return true
}

func (a *automaton) enqueue(id int) {
	for len(a.queued) <= id {
		a.queued = append(a.queued, false)
	}
	if !a.queued[id] {
		a.queued[id] = true
		a.queue = append(a.queue, id)
	}
}

func (a *automaton) create(kernel []lrItem, core string) int {
	id := len(a.states)
	a.states = append(a.states, &lrState{kernel: kernel, core: core})
	a.byCore[core] = append(a.byCore[core], id)
	if a.mode == ModeCanonical {
		a.byFull[fullKey(core, kernel)] = id
	}
	a.enqueue(id)
	return id
}

func (a *automaton) merge(id int, kernel []lrItem) {
	grew := false
	for i, k := range a.states[id].kernel {
		if k.la.Union(kernel[i].la) {
			grew = true
		}
	}
	if grew {
		a.enqueue(id)
	}
}

// add returns the state for a sorted kernel, merging it into an existing
// state when the mode allows.
func (a *automaton) add(kernel []lrItem) int {
	core := coreKey(kernel)
	switch a.mode {
	case ModeCanonical:
		if id, ok := a.byFull[fullKey(core, kernel)]; ok {
			return id
		}
	case ModeLALR:
		if ids := a.byCore[core]; len(ids) > 0 {
			a.merge(ids[0], kernel)
			return ids[0]
		}
	case ModePager:
		for _, id := range a.byCore[core] {
			if weaklyCompatible(a.states[id].kernel, kernel) {
				a.merge(id, kernel)
				return id
			}
		}
	}
	return a.create(kernel, core)
}

func (a *automaton) expand(id int) {
	st := a.states[id]
	groups := make(map[token.Symbol][]lrItem)
	for _, it := range a.closure(st.kernel) {
		sym, ok := a.next(it.item)
		if !ok {
			continue
		}
		groups[sym] = append(groups[sym], lrItem{item{it.prod, it.dot + 1}, it.la})
	}
	syms := make([]token.Symbol, 0, len(groups))
	for sym := range groups {
		syms = append(syms, sym)
	}
	slices.Sort(syms)
	trans := make(map[token.Symbol]int, len(syms))
	for _, sym := range syms {
		kernel := groups[sym]
		slices.SortFunc(kernel, compareItems)
		trans[sym] = a.add(kernel)
	}
	st.trans = trans
}

// build runs the worklist until no state's lookaheads change.
func (a *automaton) build(ctx context.Context) error {
	la := model.NewTerminalSet(a.g.TerminalCount)
	la.Add(token.EOF)
	start := []lrItem{{item{0, 0}, la}}
	a.create(start, coreKey(start))
	steps := 0
	for len(a.queue) > 0 {
		if steps%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		steps++
		id := a.queue[0]
		a.queue = a.queue[1:]
		a.queued[id] = false
		a.expand(id)
	}
	a.prune()
	if len(a.states) > int(token.NoState) {
		return fmt.Errorf("automaton has %d states, more than the table format allows", len(a.states))
	}
	return nil
}

// prune drops states that became unreachable when a transition was
// redirected, and renumbers the rest in creation order.
func (a *automaton) prune() {
	reach := make([]bool, len(a.states))
	reach[0] = true
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, t := range a.states[id].trans {
			if !reach[t] {
				reach[t] = true
				stack = append(stack, t)
			}
		}
	}
	renumber := make([]int, len(a.states))
	var kept []*lrState
	for id, st := range a.states {
		if reach[id] {
			renumber[id] = len(kept)
			kept = append(kept, st)
		}
	}
	for _, st := range kept {
		for sym, t := range st.trans {
			st.trans[sym] = renumber[t]
		}
	}
	a.states = kept
}
