package tree

import (
	"fusor/token"
)

// Node is a positioned view of a subtree. The zero Node is null.
type Node struct {
	tree    *Tree
	subtree *Subtree
	start   uint32
	field   uint16
	parent  *Node
}

func (n Node) IsNull() bool { return n.subtree == nil }
func (n Node) Subtree() *Subtree { return n.subtree }
func (n Node) Tree() *Tree { return n.tree }
func (n Node) Symbol() token.Symbol { return n.subtree.symbol }

// Kind returns the node's symbol name.
func (n Node) Kind() string {
	return n.tree.lang.SymbolName(n.subtree.symbol)
}

func (n Node) IsNamed() bool {
	return n.subtree.symbol == token.Error || n.tree.lang.SymbolNamed(n.subtree.symbol)
}

func (n Node) IsExtra() bool { return n.subtree.IsExtra() }
func (n Node) IsError() bool { return n.subtree.symbol == token.Error }
func (n Node) HasError() bool { return n.subtree.HasError() }
func (n Node) HasChanges() bool { return n.subtree.HasChanges() }

// IsMissing is always false: recovery never invents tokens.
func (n Node) IsMissing() bool { return false }

func (n Node) StartByte() uint32 { return n.start }
func (n Node) EndByte() uint32 { return n.start + n.subtree.size }

func (n Node) StartPoint() token.Point { return n.tree.Point(n.StartByte()) }
func (n Node) EndPoint() token.Point { return n.tree.Point(n.EndByte()) }

// Range returns the node's byte and point span.
func (n Node) Range() Range {
	return Range{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: n.StartPoint(),
		EndPoint:   n.EndPoint(),
	}
}

// Text returns the source covered by the node, or "" when the tree has no
// source.
func (n Node) Text() string {
	src := n.tree.source
	if int(n.EndByte()) > len(src) {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// FieldName returns the field this node fills in its parent.
func (n Node) FieldName() string {
	if n.field == 0 {
		return ""
	}
	return n.tree.lang.FieldName(n.field)
}

// Parent returns the enclosing visible node, or a null node for the root.
func (n Node) Parent() Node {
	if n.parent == nil {
		return Node{}
	}
	return *n.parent
}

// Children returns the visible children. Invisible internal children are
// flattened into their parent.
func (n Node) Children() []Node {
	if n.subtree == nil {
		return nil
	}
	var out []Node
	self := n
	n.collect(&self, n.subtree, n.start, 0, &out)
	return out
}

func (n Node) collect(parent *Node, s *Subtree, start uint32, inherited uint16, out *[]Node) {
	for _, c := range s.children {
		field := c.Field
		if field == 0 {
			field = inherited
		}
		cs := start + c.Offset
		if n.visible(c.Node) {
			*out = append(*out, Node{tree: n.tree, subtree: c.Node, start: cs, field: field, parent: parent})
			continue
		}
		n.collect(parent, c.Node, cs, field, out)
	}
}

func (n Node) visible(s *Subtree) bool {
	return s.symbol == token.Error || n.tree.lang.SymbolVisible(s.symbol)
}

func (n Node) ChildCount() int {
	return len(n.Children())
}

// Child returns the i-th visible child or a null node.
func (n Node) Child(i int) Node {
	children := n.Children()
	if i < 0 || i >= len(children) {
		return Node{}
	}
	return children[i]
}

// NamedChildren returns the visible children that are named.
func (n Node) NamedChildren() []Node {
	var out []Node
	for _, c := range n.Children() {
		if c.IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

func (n Node) NamedChildCount() int {
	return len(n.NamedChildren())
}

func (n Node) NamedChild(i int) Node {
	children := n.NamedChildren()
	if i < 0 || i >= len(children) {
		return Node{}
	}
	return children[i]
}

// ChildByFieldName returns the first child filling the field.
func (n Node) ChildByFieldName(name string) Node {
	children := n.ChildrenByFieldName(name)
	if len(children) == 0 {
		return Node{}
	}
	return children[0]
}

func (n Node) ChildrenByFieldName(name string) []Node {
	id, ok := n.tree.lang.FieldID(name)
	if !ok {
		return nil
	}
	var out []Node
	for _, c := range n.Children() {
		if c.field == id {
			out = append(out, c)
		}
	}
	return out
}

// FieldNameForChild returns the field of the i-th visible child.
func (n Node) FieldNameForChild(i int) string {
	return n.Child(i).fieldName()
}

func (n Node) fieldName() string {
	if n.subtree == nil {
		return ""
	}
	return n.FieldName()
}

// DescendantForByteRange returns the smallest visible node spanning
// [start, end).
func (n Node) DescendantForByteRange(start, end uint32) Node {
	cur := n
	for {
		next := Node{}
		for _, c := range cur.Children() {
			if c.StartByte() <= start && end <= c.EndByte() && (c.EndByte() > c.StartByte() || start == end) {
				next = c
				break
			}
		}
		if next.IsNull() {
			return cur
		}
		cur = next
	}
}

// NamedDescendantForByteRange is DescendantForByteRange restricted to named
// nodes.
func (n Node) NamedDescendantForByteRange(start, end uint32) Node {
	d := n.DescendantForByteRange(start, end)
	for !d.IsNull() && !d.IsNamed() {
		d = d.Parent()
	}
	if d.IsNull() {
		return n
	}
	return d
}

// Walk visits the node and its visible descendants in pre-order. Returning
// false from fn skips the node's children.
func (n Node) Walk(fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}
