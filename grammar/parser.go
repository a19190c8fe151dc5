package grammar

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"fusor/internal/errors"
)

var fileParser = participle.MustBuild[File](
	participle.Lexer(GrammarLexer),
	participle.Elide("Whitespace", "Comment", "BlockComment"),
	participle.UseLookahead(3),
)

// ParseFile reads and parses a grammar file.
func ParseFile(path string) (*File, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseSource(path, string(source))
}

// ParseSource parses grammar text. Syntax errors are returned as
// *errors.GrammarError carrying the source position.
func ParseSource(filename, source string) (*File, error) {
	file, err := fileParser.ParseString(filename, source)
	if err != nil {
		return nil, toGrammarError(err)
	}
	return file, nil
}

func toGrammarError(err error) error {
	var pe participle.Error
	if !stderrors.As(err, &pe) {
		return errors.NewGrammarError(errors.ErrorGrammarSyntax, err.Error(), errors.Position{}).Build()
	}
	return errors.NewGrammarError(errors.ErrorGrammarSyntax, pe.Message(), PositionOf(pe.Position())).Build()
}

// PositionOf converts a participle position.
func PositionOf(pos lexer.Position) errors.Position {
	return errors.Position{Line: pos.Line, Column: pos.Column, Offset: pos.Offset}
}

// Unquote returns the text of a single or double quoted literal.
func Unquote(raw string) (string, error) {
	if len(raw) < 2 || (raw[0] != '\'' && raw[0] != '"') || raw[len(raw)-1] != raw[0] {
		return "", fmt.Errorf("malformed literal %s", raw)
	}
	body := raw[1 : len(raw)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("dangling escape in %s", raw)
		}
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String(), nil
}

// Quote renders text as a single quoted literal.
func Quote(text string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\'', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// PatternSource strips the slashes of a /regex/ literal and unescapes
// embedded slashes. Other escapes are left for the regexp parser.
func PatternSource(raw string) string {
	body := strings.TrimSuffix(strings.TrimPrefix(raw, "/"), "/")
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			if body[i+1] == '/' {
				b.WriteByte('/')
			} else {
				b.WriteByte('\\')
				b.WriteByte(body[i+1])
			}
			i++
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
