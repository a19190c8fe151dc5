package lsp

import (
	"strings"
	"unicode"

	"fusor/internal/tree"
)

// SemanticTokenTypes is the legend advertised to clients.
var SemanticTokenTypes = []string{
	"namespace",
	"type",
	"function",
	"variable",
	"parameter",
	"property",
	"keyword",
	"number",
	"string",
	"comment",
	"operator",
}

// SemanticTokenModifiers is the modifier legend advertised to clients.
var SemanticTokenModifiers = []string{
	"declaration",
	"definition",
	"readonly",
}

const modDeclaration = 1 << 0

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask based on SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

func tokenType(name string) int {
	for i, t := range SemanticTokenTypes {
		if t == name {
			return i
		}
	}
	return -1
}

// collectSemanticTokens classifies the leaves of t. Tokens spanning several
// lines are skipped since the encoding cannot express them.
func collectSemanticTokens(text []byte, t *tree.Tree) []SemanticToken {
	var tokens []SemanticToken
	if t == nil {
		return tokens
	}
	t.RootNode().Walk(func(n tree.Node) bool {
		if n.IsError() {
			return true
		}
		kind, mods, ok := classify(n)
		if !ok {
			return true
		}
		start := positionAt(text, n.StartByte())
		end := positionAt(text, n.EndByte())
		if start.Line == end.Line && end.Character > start.Character {
			tokens = append(tokens, SemanticToken{
				Line:           start.Line,
				StartChar:      start.Character,
				Length:         end.Character - start.Character,
				TokenType:      tokenType(kind),
				TokenModifiers: mods,
			})
		}
		// Strings and comments are reported whole.
		return kind != "string" && kind != "comment"
	})
	return tokens
}

func classify(n tree.Node) (string, int, bool) {
	kind := n.Kind()
	switch {
	case n.IsExtra() && strings.Contains(kind, "comment"):
		return "comment", 0, true
	case n.IsNamed() && (kind == "string" || strings.HasSuffix(kind, "string_fragment") || kind == "escape_sequence"):
		return "string", 0, true
	case n.ChildCount() > 0:
		return "", 0, false
	case n.IsNamed():
		return classifyName(n)
	case isWord(kind):
		return "keyword", 0, true
	case strings.ContainsAny(kind, "(){}[],;."):
		return "", 0, false
	}
	return "operator", 0, true
}

// classifyName looks at where a named leaf sits to pick its token type.
func classifyName(n tree.Node) (string, int, bool) {
	if strings.Contains(n.Kind(), "number") {
		return "number", 0, true
	}
	parent := n.Parent()
	if parent.IsNull() {
		return "variable", 0, true
	}
	field := n.FieldName()
	switch parent.Kind() {
	case "number":
		return "type", 0, true
	case "func_def":
		if field == "name" {
			return "function", modDeclaration, true
		}
	case "binding":
		if field == "name" || field == "rename" {
			if grand := parent.Parent(); !grand.IsNull() && grand.Kind() != "var_def" {
				return "parameter", modDeclaration, true
			}
			return "variable", modDeclaration, true
		}
	case "read_prop", "field":
		if field == "name" {
			return "property", 0, true
		}
	}
	if field == "return_type" || field == "type" {
		return "type", 0, true
	}
	return "variable", 0, true
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '_' {
			return false
		}
	}
	return true
}

// encodeSemanticTokens packs tokens into the relative LSP wire format.
func encodeSemanticTokens(tokens []SemanticToken) []uint32 {
	var data []uint32
	var prevLine, prevStart uint32
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		var deltaStart uint32
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		} else {
			deltaStart = token.StartChar
		}
		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))
		prevLine = token.Line
		prevStart = token.StartChar
	}
	return data
}
