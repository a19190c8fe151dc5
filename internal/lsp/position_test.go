package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestUTF16Positions(t *testing.T) {
	text := []byte("aé😀b\nx")
	b := uint32(1 + 2 + 4)

	assert.Equal(t, protocol.Position{Line: 0, Character: 4}, positionAt(text, b))
	assert.Equal(t, b, offsetAt(text, protocol.Position{Line: 0, Character: 4}))
	assert.Equal(t, uint32(9), offsetAt(text, protocol.Position{Line: 1, Character: 0}))
	assert.Equal(t, protocol.Position{Line: 1, Character: 1}, positionAt(text, uint32(len(text))))
}

func TestOffsetsClamp(t *testing.T) {
	text := []byte("ab\ncd")
	assert.Equal(t, uint32(2), offsetAt(text, protocol.Position{Line: 0, Character: 40}))
	assert.Equal(t, uint32(len(text)), offsetAt(text, protocol.Position{Line: 7, Character: 0}))
}
