package lsp

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// offsetAt converts an LSP position, whose character is counted in UTF-16
// code units, to a byte offset. Positions past the end of a line clamp to
// the line end and positions past the last line clamp to the text end.
func offsetAt(text []byte, pos protocol.Position) uint32 {
	offset := 0
	for line := uint32(0); line < pos.Line; line++ {
		i := bytes.IndexByte(text[offset:], '\n')
		if i < 0 {
			return uint32(len(text))
		}
		offset += i + 1
	}
	units := uint32(0)
	for offset < len(text) && text[offset] != '\n' && units < pos.Character {
		r, size := utf8.DecodeRune(text[offset:])
		units += uint32(utf16.RuneLen(r))
		offset += size
	}
	return uint32(offset)
}

// positionAt converts a byte offset to an LSP position.
func positionAt(text []byte, offset uint32) protocol.Position {
	var pos protocol.Position
	end := min(int(offset), len(text))
	for i := 0; i < end; {
		r, size := utf8.DecodeRune(text[i:])
		if r == '\n' {
			pos.Line++
			pos.Character = 0
		} else {
			pos.Character += uint32(utf16.RuneLen(r))
		}
		i += size
	}
	return pos
}

func rangeOf(text []byte, start, end uint32) protocol.Range {
	return protocol.Range{Start: positionAt(text, start), End: positionAt(text, end)}
}
