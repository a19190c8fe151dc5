package scanner

import "encoding/binary"

// Token kinds produced by Indent, in the order the grammar must declare
// them in its externals block.
const (
	KindNewline = iota
	KindIndent
	KindDedent
)

// Indent is an offside-rule scanner. A newline token consumes a line break
// and any blank lines after it; at the start of a line, deeper indentation
// produces an indent token covering the leading blanks and shallower
// indentation produces one zero-length dedent per closed level. At the end
// of input open levels are closed and a final newline is produced if one is
// expected.
//
// The indentation stack is the scanner state, stored as uvarints without
// the implicit outermost level 0.
type Indent struct{}

func decodeStack(b []byte) []uint64 {
	stack := []uint64{0}
	for len(b) > 0 {
		v, n := binary.Uvarint(b)
		if n <= 0 {
			break
		}
		stack = append(stack, v)
		b = b[n:]
	}
	return stack
}

func encodeStack(stack []uint64) []byte {
	var out []byte
	for _, v := range stack[1:] {
		out = binary.AppendUvarint(out, v)
	}
	return out
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func (Indent) Scan(in *Input, valid ValidSet, state *State) (Match, bool) {
	stack := decodeStack(state.Bytes())
	top := stack[len(stack)-1]

	// Width of the blanks ahead.
	width := 0
	for {
		c, ok := in.Peek(width)
		if !ok || !isBlank(c) {
			break
		}
		width++
	}

	if in.AtEnd(width) {
		if len(stack) > 1 && valid.Has(KindDedent) {
			state.Set(encodeStack(stack[:len(stack)-1]))
			return Match{Kind: KindDedent}, true
		}
		if valid.Has(KindNewline) {
			return Match{Kind: KindNewline, Skip: width}, true
		}
		return Match{}, false
	}

	if in.Column() == 0 {
		next, _ := in.Peek(width)
		if next != '\n' && next != '\r' {
			switch {
			case uint64(width) > top && valid.Has(KindIndent):
				state.Set(encodeStack(append(stack, uint64(width))))
				return Match{Kind: KindIndent, Length: width}, true
			case uint64(width) < top && valid.Has(KindDedent):
				state.Set(encodeStack(stack[:len(stack)-1]))
				return Match{Kind: KindDedent}, true
			}
		}
	}

	if !valid.Has(KindNewline) {
		return Match{}, false
	}
	length := lineBreak(in, width)
	if length == 0 {
		return Match{}, false
	}
	// Swallow blank lines so the next line starts with its indentation.
	for {
		blanks := 0
		for {
			c, ok := in.Peek(width + length + blanks)
			if !ok || !isBlank(c) {
				break
			}
			blanks++
		}
		n := lineBreak(in, width+length+blanks)
		if n == 0 {
			break
		}
		length += blanks + n
	}
	return Match{Kind: KindNewline, Skip: width, Length: length}, true
}

// lineBreak returns the length of a line break at offset i, or 0.
func lineBreak(in *Input, i int) int {
	c, ok := in.Peek(i)
	if !ok {
		return 0
	}
	switch c {
	case '\n':
		return 1
	case '\r':
		if n, ok := in.Peek(i + 1); ok && n == '\n' {
			return 2
		}
		return 1
	}
	return 0
}
