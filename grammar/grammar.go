package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed grammar source.
type File struct {
	Pos   lexer.Position
	Name  string  `"grammar" @Ident ";"`
	Decls []*Decl `@@*`
}

type Decl struct {
	Pos        lexer.Position
	Start      *StartDecl      `  @@`
	Word       *WordDecl       `| @@`
	Extras     *ExtrasDecl     `| @@`
	Externals  *ExternalsDecl  `| @@`
	Conflicts  *ConflictsDecl  `| @@`
	Supertypes *SupertypesDecl `| @@`
	Precedence *PrecedenceDecl `| @@`
	Rule       *RuleDecl       `| @@`
	Token      *TokenDecl      `| @@`
}

type StartDecl struct {
	Pos  lexer.Position
	Name string `"start" @Ident ";"`
}

type WordDecl struct {
	Pos  lexer.Position
	Name string `"word" @Ident ";"`
}

type ExtrasDecl struct {
	Pos   lexer.Position
	Items []*Atom `"extras" "{" @@* "}"`
}

type ExternalsDecl struct {
	Pos   lexer.Position
	Names []*PosIdent `"externals" "{" @@* "}"`
}

type ConflictsDecl struct {
	Pos    lexer.Position
	Groups []*ConflictGroup `"conflicts" "{" @@* "}"`
}

type ConflictGroup struct {
	Pos   lexer.Position
	Names []*PosIdent `"[" @@ ( "," @@ )* "]" ";"?`
}

type SupertypesDecl struct {
	Pos   lexer.Position
	Names []*PosIdent `"supertypes" "{" @@* "}"`
}

type PrecedenceDecl struct {
	Pos    lexer.Position
	Levels []*PrecLevel `"precedence" "{" @@* "}"`
}

// PrecLevel is one line of a precedence block. Levels bind tighter the
// later they appear.
type PrecLevel struct {
	Pos     lexer.Position
	Assoc   string `@Annot`
	Symbols []*Ref `@@+ ";"`
}

type RuleDecl struct {
	Pos  lexer.Position
	Name string `"rule" @Ident "="`
	Body *Expr  `@@ ";"`
}

type TokenDecl struct {
	Pos  lexer.Position
	Name string `"token" @Ident "="`
	Body *Expr  `@@ ";"`
}

type PosIdent struct {
	Pos   lexer.Position
	Value string `@Ident`
}

// Ref names a symbol either by identifier or by literal text.
type Ref struct {
	Pos     lexer.Position
	Name    string  `  @Ident`
	Literal *string `| @String`
}

// Expr is a choice between alternatives.
type Expr struct {
	Pos  lexer.Position
	Alts []*Alt `@@ ( "|" @@ )*`
}

type Alt struct {
	Pos         lexer.Position
	Annotations []*Annotation `@@*`
	Empty       bool          `@"empty"?`
	Items       []*Item       `@@*`
}

// Annotation is one of %prec, %left, %right, %nonassoc or %dynamic with an
// optional level argument.
type Annotation struct {
	Pos  lexer.Position
	Kind string   `@Annot`
	Arg  *PrecArg `( "(" @@ ")" )?`
}

type PrecArg struct {
	Pos   lexer.Position
	Level *int `  @Int`
	Ref   *Ref `| @@`
}

type Item struct {
	Pos   lexer.Position
	Field string `@Field?`
	Atom  *Atom  `@@`
	Quant string `@( "?" | "*" | "+" )?`
	Alias *Ref   `( "as" @@ )?`
}

type Atom struct {
	Pos       lexer.Position
	Token     *Expr   `  "token" "(" @@ ")"`
	Immediate *Expr   `| "immediate" "(" @@ ")"`
	Group     *Expr   `| "(" @@ ")"`
	Name      string  `| @Ident`
	Literal   *string `| @String`
	Pattern   *string `| @Regex`
}

// FieldName returns the label without its trailing colon.
func (i *Item) FieldName() string {
	if i.Field == "" {
		return ""
	}
	return i.Field[:len(i.Field)-1]
}

// Rules returns the rule declarations in source order.
func (f *File) Rules() []*RuleDecl {
	var out []*RuleDecl
	for _, d := range f.Decls {
		if d.Rule != nil {
			out = append(out, d.Rule)
		}
	}
	return out
}

// Tokens returns the token declarations in source order.
func (f *File) Tokens() []*TokenDecl {
	var out []*TokenDecl
	for _, d := range f.Decls {
		if d.Token != nil {
			out = append(out, d.Token)
		}
	}
	return out
}
