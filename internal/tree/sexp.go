package tree

import (
	"strconv"
	"strings"
)

// String renders the node as an S-expression of named nodes, with field
// labels, for example (sum left: (number) right: (number)).
func (n Node) String() string {
	if n.IsNull() {
		return "()"
	}
	var b strings.Builder
	n.write(&b, false, "")
	return b.String()
}

// SExpression renders the node like String, optionally including anonymous
// nodes as quoted strings.
func (n Node) SExpression(anonymous bool) string {
	if n.IsNull() {
		return "()"
	}
	var b strings.Builder
	n.write(&b, anonymous, "")
	return b.String()
}

func (n Node) write(b *strings.Builder, anonymous bool, field string) {
	shown := n.IsNamed() || anonymous
	if shown {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		if field != "" {
			b.WriteString(field)
			b.WriteString(": ")
		}
		if !n.IsNamed() {
			b.WriteString(strconv.Quote(n.Kind()))
			return
		}
		b.WriteByte('(')
		b.WriteString(n.Kind())
	}
	for _, c := range n.Children() {
		c.write(b, anonymous, c.FieldName())
	}
	if shown {
		b.WriteByte(')')
	}
}
