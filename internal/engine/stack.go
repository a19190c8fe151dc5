package engine

import (
	"slices"

	"fusor/internal/tree"
	"fusor/token"
)

// stackNode is one entry of a persistent parse stack. Versions share their
// common prefix, so forking a stack is a struct copy.
type stackNode struct {
	state   token.StateID
	subtree *tree.Subtree
	start   uint32
	prev    *stackNode
}

func (n *stackNode) end() uint32 {
	if n.subtree == nil {
		return n.start
	}
	return n.start + n.subtree.Size()
}

func (n *stackNode) isExtra() bool {
	return n.subtree != nil && n.subtree.IsExtra()
}

// entries returns the nodes above the bottom sentinel, bottom first.
func (n *stackNode) entries() []*stackNode {
	var out []*stackNode
	for ; n != nil && n.subtree != nil; n = n.prev {
		out = append(out, n)
	}
	slices.Reverse(out)
	return out
}

// head is one live stack version with its ranking data.
type head struct {
	top     *stackNode
	dynPrec int32
	errors  int
	// path holds the index of the action taken at every branching cell.
	path []uint16
}

func newHead() head {
	return head{top: &stackNode{}}
}

func (h *head) state() token.StateID {
	return h.top.state
}

func (h *head) push(state token.StateID, s *tree.Subtree, start uint32) {
	h.top = &stackNode{state: state, subtree: s, start: start, prev: h.top}
}

func (h head) fork(choice int) head {
	h.path = append(slices.Clip(h.path), uint16(choice))
	return h
}

// compareHeads orders heads best first: higher dynamic precedence, then
// fewer errors, then the lexicographically smaller choice path.
func compareHeads(a, b head) int {
	if a.dynPrec != b.dynPrec {
		if a.dynPrec > b.dynPrec {
			return -1
		}
		return 1
	}
	if a.errors != b.errors {
		return a.errors - b.errors
	}
	return slices.Compare(a.path, b.path)
}

func best(heads []head) head {
	return slices.MinFunc(heads, compareHeads)
}

// merge drops heads whose stacks are equivalent to a better head's and
// keeps at most limit heads, best first. Two stacks are equivalent when
// they hold the same states over the same spans; heads that only share a
// top state still differ in what they can reduce later and are all kept.
func merge(heads []head, limit int) []head {
	slices.SortStableFunc(heads, compareHeads)
	out := heads[:0]
	for _, h := range heads {
		if slices.ContainsFunc(out, func(o head) bool { return sameStack(o.top, h.top) }) {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

func sameStack(a, b *stackNode) bool {
	for a != b {
		if a == nil || b == nil || a.state != b.state || a.start != b.start ||
			a.end() != b.end() || a.isExtra() != b.isExtra() {
			return false
		}
		a, b = a.prev, b.prev
	}
	return true
}
