// Package incremental prepares an old tree for reuse: it applies edits,
// derives edits from text changes and indexes the subtrees a reparse may
// take over unchanged.
package incremental

import (
	"cmp"
	stderrors "errors"
	"fmt"
	"slices"

	"fusor/internal/tree"
	"fusor/token"
)

// ErrInvalidEdit is returned for edits that do not fit the tree.
var ErrInvalidEdit = stderrors.New("invalid edit")

// Apply applies edits in order and returns the edited tree. The input tree
// is not modified.
func Apply(t *tree.Tree, edits ...tree.Edit) (*tree.Tree, error) {
	for i, e := range edits {
		size := t.Root().Size()
		if !e.Valid(size) {
			return nil, fmt.Errorf("%w: edit %d replaces [%d, %d) with text ending at %d in a %d byte document",
				ErrInvalidEdit, i, e.StartByte, e.OldEndByte, e.NewEndByte, size)
		}
		t = t.Edit(e)
	}
	return t, nil
}

// Diff returns the single edit turning old into new, found by trimming the
// common prefix and suffix.
func Diff(old, new []byte) tree.Edit {
	prefix := 0
	for prefix < len(old) && prefix < len(new) && old[prefix] == new[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(old)-prefix && suffix < len(new)-prefix &&
		old[len(old)-1-suffix] == new[len(new)-1-suffix] {
		suffix++
	}
	oldEnd, newEnd := len(old)-suffix, len(new)-suffix
	return tree.Edit{
		StartByte:   uint32(prefix),
		OldEndByte:  uint32(oldEnd),
		NewEndByte:  uint32(newEnd),
		StartPoint:  PointAt(old, prefix),
		OldEndPoint: PointAt(old, oldEnd),
		NewEndPoint: PointAt(new, newEnd),
	}
}

// PointAt returns the row and byte column of offset in src.
func PointAt(src []byte, offset int) token.Point {
	var p token.Point
	for _, c := range src[:min(offset, len(src))] {
		if c == '\n' {
			p.Row++
			p.Column = 0
		} else {
			p.Column++
		}
	}
	return p
}

// Index holds the reusable subtrees of an edited tree by start byte.
type Index struct {
	byStart map[uint32][]*tree.Subtree
	count   int
}

type span struct {
	start, end uint32
}

// NewIndex collects every subtree of t that is unaffected by edits, has a
// width, contains no error and was not built while the parser was
// branching or recovering. ERROR nodes are not searched, and subtrees
// whose text or lookahead reaches an ERROR node are left out: recovery
// depends on the whole stack, not only on the state a subtree starts in.
// Candidates at one position are ordered widest first.
func NewIndex(t *tree.Tree) *Index {
	ix := &Index{byStart: make(map[uint32][]*tree.Subtree)}
	if t == nil || t.Root().IsError() {
		return ix
	}
	type candidate struct {
		node  *tree.Subtree
		start uint32
	}
	var (
		errs  []span
		cands []candidate
	)
	var visit func(s *tree.Subtree, start uint32)
	visit = func(s *tree.Subtree, start uint32) {
		if s.IsError() {
			errs = append(errs, span{start, start + s.Size()})
			return
		}
		if reusable(s) {
			cands = append(cands, candidate{s, start})
		}
		for _, c := range s.Children() {
			visit(c.Node, start+c.Offset)
		}
	}
	for _, c := range t.Root().Children() {
		visit(c.Node, c.Offset)
	}
	for _, c := range cands {
		if nearError(errs, c.start, c.start+c.node.Size()+c.node.Lookahead()) {
			continue
		}
		ix.byStart[c.start] = append(ix.byStart[c.start], c.node)
		ix.count++
	}
	for _, list := range ix.byStart {
		slices.SortStableFunc(list, func(a, b *tree.Subtree) int {
			return int(b.Size()) - int(a.Size())
		})
	}
	return ix
}

// nearError reports whether [start, end] meets one of the sorted,
// disjoint error spans, touching included.
func nearError(errs []span, start, end uint32) bool {
	i, _ := slices.BinarySearchFunc(errs, start, func(e span, pos uint32) int {
		return cmp.Compare(e.end, pos)
	})
	return i < len(errs) && errs[i].start <= end
}

func reusable(s *tree.Subtree) bool {
	return !s.HasChanges() && !s.HasError() && !s.IsFragile() && !s.IsExtra() && s.Size() > 0
}

// At returns the candidates starting at pos, widest first.
func (ix *Index) At(pos uint32) []*tree.Subtree {
	return ix.byStart[pos]
}

// Len returns the number of indexed subtrees.
func (ix *Index) Len() int { return ix.count }
