package model

import (
	"fmt"
	"strings"

	"fusor/internal/errors"
	"fusor/token"
)

// analyze computes nullable and FIRST sets and rejects rules that can never
// match or that derive themselves without consuming input.
func (g *Grammar) analyze() error {
	g.computeNullable()
	g.computeFirst()

	var errs errors.List
	errs = append(errs, g.checkProductive()...)
	errs = append(errs, g.checkCycles()...)
	if len(errs) > 0 {
		return errs
	}
	g.checkReachable()
	return nil
}

func (g *Grammar) computeNullable() {
	g.nullable = make([]bool, g.SymbolCount())
	for changed := true; changed; {
		changed = false
		for _, p := range g.Productions {
			if g.nullable[p.LHS] {
				continue
			}
			all := true
			for _, sym := range p.RHS {
				if !g.Nullable(sym) {
					all = false
					break
				}
			}
			if all {
				g.nullable[p.LHS] = true
				changed = true
			}
		}
	}
}

func (g *Grammar) computeFirst() {
	g.first = make([]TerminalSet, g.SymbolCount())
	for i := range g.first {
		g.first[i] = NewTerminalSet(g.TerminalCount)
		if i < g.TerminalCount {
			g.first[i].Add(token.Symbol(i))
		}
	}
	for changed := true; changed; {
		changed = false
		for _, p := range g.Productions {
			for _, sym := range p.RHS {
				if g.first[p.LHS].Union(g.first[sym]) {
					changed = true
				}
				if !g.Nullable(sym) {
					break
				}
			}
		}
	}
}

func (g *Grammar) checkProductive() []error {
	productive := make([]bool, g.SymbolCount())
	for i := 0; i < g.TerminalCount; i++ {
		productive[i] = true
	}
	for changed := true; changed; {
		changed = false
		for _, p := range g.Productions {
			if productive[p.LHS] {
				continue
			}
			all := true
			for _, sym := range p.RHS {
				if !productive[sym] {
					all = false
					break
				}
			}
			if all {
				productive[p.LHS] = true
				changed = true
			}
		}
	}

	var errs []error
	for sym := g.TerminalCount; sym < int(g.Start); sym++ {
		if !productive[sym] && g.Symbols[sym].Kind == KindRule {
			errs = append(errs, errors.NewGrammarError(errors.ErrorUnproductiveRule,
				fmt.Sprintf("rule %s can never match: every alternative needs %s itself", g.Symbols[sym].Name, g.Symbols[sym].Name),
				g.symPos[sym]).Build())
		}
	}
	return errs
}

// checkCycles finds strongly connected components of the graph with an edge
// A -> B whenever A has a production whose symbols other than B are all
// nullable.
func (g *Grammar) checkCycles() []error {
	n := g.SymbolCount()
	edges := make([][]int, n)
	for _, p := range g.Productions {
		for i, sym := range p.RHS {
			if g.IsTerminal(sym) {
				continue
			}
			rest := true
			for j, other := range p.RHS {
				if j != i && !g.Nullable(other) {
					rest = false
					break
				}
			}
			if rest {
				edges[p.LHS] = append(edges[p.LHS], int(sym))
			}
		}
	}

	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var sccs [][]int
	next := 0

	var visit func(v int)
	visit = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range edges[v] {
			if index[w] < 0 {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		sccs = append(sccs, scc)
	}
	for v := g.TerminalCount; v < n; v++ {
		if index[v] < 0 {
			visit(v)
		}
	}

	var errs []error
	reported := make(map[token.Symbol]bool)
	for _, scc := range sccs {
		if len(scc) == 1 && !contains(edges[scc[0]], scc[0]) {
			continue
		}
		names := make([]string, 0, len(scc))
		rule := token.Symbol(scc[0])
		for _, v := range scc {
			names = append(names, g.Symbols[v].Name)
			if o := g.Origin(token.Symbol(v)); o < rule {
				rule = o
			}
		}
		rule = g.Origin(rule)
		if reported[rule] {
			continue
		}
		reported[rule] = true
		errs = append(errs, errors.NewGrammarError(errors.ErrorCyclicRule,
			fmt.Sprintf("rule %s derives itself without consuming input", g.Symbols[rule].Name),
			g.symPos[rule]).WithNote("cycle through "+strings.Join(names, ", ")).Build())
	}
	return errs
}

func contains(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (g *Grammar) checkReachable() {
	seen := make([]bool, g.SymbolCount())
	work := []token.Symbol{g.StartRule}
	seen[g.StartRule] = true
	for _, sym := range g.Extras {
		seen[sym] = true
	}
	for len(work) > 0 {
		sym := work[len(work)-1]
		work = work[:len(work)-1]
		for _, id := range g.ProductionsOf(sym) {
			for _, s := range g.Productions[id].RHS {
				if !seen[s] {
					seen[s] = true
					work = append(work, s)
				}
			}
		}
	}
	for sym := g.TerminalCount; sym < int(g.Start); sym++ {
		if !seen[sym] && g.Symbols[sym].Kind == KindRule {
			g.Warnings = append(g.Warnings, errors.NewGrammarError(errors.WarningUnusedRule,
				fmt.Sprintf("rule %s is not reachable from %s", g.Symbols[sym].Name, g.Symbols[g.StartRule].Name),
				g.symPos[sym]).Build())
		}
	}
}
