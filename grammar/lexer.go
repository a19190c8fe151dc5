package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// GrammarLexer tokenizes .fsg grammar sources.
var GrammarLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Whitespace", `[ \t\r\n]+`, nil},

		// Comments (before Regex, both start with a slash)
		{"Comment", `//[^\n]*`, nil},
		{"BlockComment", `/\*([^*]|\*+[^*/])*\*+/`, nil},

		// Terminals
		{"Regex", `/(\\.|[^/\\\n])+/`, nil},
		{"String", `'(\\.|[^'\\\n])*'|"(\\.|[^"\\\n])*"`, nil},

		// Annotations such as %left and %prec
		{"Annot", `%[a-z]+`, nil},
		{"Int", `-?[0-9]+`, nil},

		// Field labels are written without a space before the colon (order matters)
		{"Field", `[A-Za-z_][A-Za-z0-9_]*:`, nil},
		{"Ident", `[A-Za-z_][A-Za-z0-9_]*`, nil},

		{"Punct", `[=;|?*+(){}\[\],]`, nil},
	},
})
