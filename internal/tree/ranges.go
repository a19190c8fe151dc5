package tree

import (
	"fusor/token"
)

// Range is a byte span with the corresponding points.
type Range struct {
	StartByte  uint32
	EndByte    uint32
	StartPoint token.Point
	EndPoint   token.Point
}

// ErrorLocation is one ERROR node of a tree.
type ErrorLocation struct {
	Range
	// Unexpected is set for a single unrecognized character.
	Unexpected bool
	// Text is the source covered by the error.
	Text string
}

// Errors returns the outermost ERROR nodes in document order.
func (t *Tree) Errors() []ErrorLocation {
	var out []ErrorLocation
	t.RootNode().Walk(func(n Node) bool {
		if !n.IsError() {
			return n.HasError()
		}
		out = append(out, ErrorLocation{
			Range:      n.Range(),
			Unexpected: n.subtree.IsLeaf(),
			Text:       n.Text(),
		})
		return false
	})
	return out
}

type leafSpan struct {
	symbol     token.Symbol
	start, end uint32
}

func (t *Tree) leaves() []leafSpan {
	var out []leafSpan
	var visit func(s *Subtree, start uint32)
	visit = func(s *Subtree, start uint32) {
		if s.IsLeaf() {
			out = append(out, leafSpan{s.symbol, start, start + s.size})
			return
		}
		for _, c := range s.children {
			visit(c.Node, start+c.Offset)
		}
	}
	visit(t.root, 0)
	return out
}

// ChangedRanges returns the span of t whose tokens differ from those of
// old. Tokens are compared by symbol and position from the start of the
// document, then by symbol and distance from its end. The result is empty
// when both trees have the same tokens.
func (t *Tree) ChangedRanges(old *Tree) []Range {
	a, b := old.leaves(), t.leaves()
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	if prefix == len(a) && prefix == len(b) {
		return nil
	}
	aEnd, bEnd := old.root.size, t.root.size
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix {
		x, y := a[len(a)-1-suffix], b[len(b)-1-suffix]
		if x.symbol != y.symbol || aEnd-x.start != bEnd-y.start || aEnd-x.end != bEnd-y.end {
			break
		}
		suffix++
	}
	start := bEnd
	if prefix < len(b) {
		start = b[prefix].start
	}
	end := start
	if last := len(b) - 1 - suffix; last >= prefix {
		end = b[last].end
	}
	if prefix > 0 && prefix <= len(b) && start > b[prefix-1].end {
		start = b[prefix-1].end
	}
	return []Range{{
		StartByte:  start,
		EndByte:    end,
		StartPoint: t.Point(start),
		EndPoint:   t.Point(end),
	}}
}
