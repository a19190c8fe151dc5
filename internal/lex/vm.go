package lex

import (
	"fmt"
	"regexp/syntax"
	"unicode/utf8"
)

// program is a compiled token pattern executed as a Pike VM anchored at the
// token start. It reports the longest match and how far input was read.
type program struct {
	prog *syntax.Prog
}

func compile(pattern string) (*program, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("parse pattern %q: %w", pattern, err)
	}
	prog, err := syntax.Compile(re.Simplify())
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return &program{prog: prog}, nil
}

type queue struct {
	sparse []uint32
	dense  []uint32
}

func newQueue(n int) *queue {
	return &queue{sparse: make([]uint32, n), dense: make([]uint32, 0, n)}
}

func (q *queue) has(pc uint32) bool {
	i := q.sparse[pc]
	return int(i) < len(q.dense) && q.dense[i] == pc
}

func (q *queue) add(pc uint32) {
	q.sparse[pc] = uint32(len(q.dense))
	q.dense = append(q.dense, pc)
}

func (q *queue) clear() {
	q.dense = q.dense[:0]
}

func decode(src []byte, pos int) (rune, int) {
	if pos >= len(src) {
		return -1, 0
	}
	r, w := utf8.DecodeRune(src[pos:])
	return r, w
}

func prevRune(src []byte, pos int) rune {
	if pos == 0 {
		return -1
	}
	r, _ := utf8.DecodeLastRune(src[:pos])
	return r
}

type run struct {
	prog     *syntax.Prog
	end      int
	examined int
}

func (r *run) add(q *queue, pc uint32, pos int, prev, next rune, width int) {
	if q.has(pc) {
		return
	}
	q.add(pc)
	inst := &r.prog.Inst[pc]
	switch inst.Op {
	case syntax.InstAlt, syntax.InstAltMatch:
		r.add(q, inst.Out, pos, prev, next, width)
		r.add(q, inst.Arg, pos, prev, next, width)
	case syntax.InstCapture, syntax.InstNop:
		r.add(q, inst.Out, pos, prev, next, width)
	case syntax.InstEmptyWidth:
		r.examined = max(r.examined, pos+width)
		if syntax.EmptyOp(inst.Arg)&^syntax.EmptyOpContext(prev, next) == 0 {
			r.add(q, inst.Out, pos, prev, next, width)
		}
	case syntax.InstMatch:
		r.end = max(r.end, pos)
	}
}

func consumes(inst *syntax.Inst, c rune) bool {
	switch inst.Op {
	case syntax.InstRune, syntax.InstRune1:
		return inst.MatchRune(c)
	case syntax.InstRuneAny:
		return true
	case syntax.InstRuneAnyNotNL:
		return c != '\n'
	}
	return false
}

// longest returns the end of the longest non-empty match starting at start
// and the offset one past the last byte examined.
func (p *program) longest(src []byte, start int) (end, examined int, ok bool) {
	n := len(p.prog.Inst)
	clist, nlist := newQueue(n), newQueue(n)
	r := &run{prog: p.prog, end: -1, examined: start}

	pos := start
	c, w := decode(src, pos)
	prev := prevRune(src, pos)
	r.add(clist, uint32(p.prog.Start), pos, prev, c, w)
	for len(clist.dense) > 0 {
		if pos >= len(src) {
			r.examined = max(r.examined, len(src))
			break
		}
		r.examined = max(r.examined, pos+w)
		next := pos + w
		nc, nw := decode(src, next)
		nlist.clear()
		for _, pc := range clist.dense {
			inst := &p.prog.Inst[pc]
			if consumes(inst, c) {
				r.add(nlist, inst.Out, next, c, nc, nw)
			}
		}
		clist, nlist = nlist, clist
		pos, prev, c, w = next, c, nc, nw
	}
	return r.end, r.examined, r.end > start
}
