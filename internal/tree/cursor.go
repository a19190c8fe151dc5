package tree

// Cursor walks the visible nodes of a tree.
type Cursor struct {
	stack []cursorFrame
}

type cursorFrame struct {
	node     Node
	siblings []Node
	index    int
}

// Walk returns a cursor positioned on the root node.
func (t *Tree) Walk() *Cursor {
	return &Cursor{stack: []cursorFrame{{node: t.RootNode(), index: -1}}}
}

func (c *Cursor) top() *cursorFrame {
	return &c.stack[len(c.stack)-1]
}

// Node returns the current node.
func (c *Cursor) Node() Node {
	return c.top().node
}

// FieldName returns the field of the current node.
func (c *Cursor) FieldName() string {
	return c.top().node.FieldName()
}

// Depth returns the number of ancestors of the current node.
func (c *Cursor) Depth() int {
	return len(c.stack) - 1
}

func (c *Cursor) GotoFirstChild() bool {
	children := c.top().node.Children()
	if len(children) == 0 {
		return false
	}
	c.stack = append(c.stack, cursorFrame{node: children[0], siblings: children, index: 0})
	return true
}

func (c *Cursor) GotoNextSibling() bool {
	f := c.top()
	if f.index < 0 || f.index+1 >= len(f.siblings) {
		return false
	}
	f.index++
	f.node = f.siblings[f.index]
	return true
}

func (c *Cursor) GotoParent() bool {
	if len(c.stack) == 1 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

// GotoFirstChildForByte moves to the first child that ends after offset.
func (c *Cursor) GotoFirstChildForByte(offset uint32) bool {
	children := c.top().node.Children()
	for i, ch := range children {
		if ch.EndByte() > offset {
			c.stack = append(c.stack, cursorFrame{node: ch, siblings: children, index: i})
			return true
		}
	}
	return false
}
