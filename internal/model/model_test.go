package model_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/grammar"
	"fusor/internal/errors"
	"fusor/internal/model"
	"fusor/token"
)

func build(t *testing.T, src string) (*model.Grammar, error) {
	t.Helper()
	file, err := grammar.ParseSource("test.fsg", src)
	require.NoError(t, err)
	return model.Build(file)
}

func codes(err error) []string {
	var out []string
	for _, e := range errors.Flatten(err) {
		var gerr *errors.GrammarError
		if stderrors.As(e, &gerr) {
			out = append(out, gerr.Code)
		}
	}
	return out
}

func TestBuildExpressionGrammar(t *testing.T) {
	g, err := build(t, `grammar expr;
precedence { %left '+'; }
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
`)
	require.NoError(t, err)

	assert.Equal(t, "expr", g.Name)
	assert.Equal(t, 4, g.TerminalCount)
	assert.Equal(t, "end", g.SymbolName(token.EOF))
	assert.Equal(t, "ERROR", g.SymbolName(token.Error))

	number, ok := g.Lookup("number")
	require.True(t, ok)
	assert.True(t, g.IsTerminal(number))
	source, ok := g.Lookup("source")
	require.True(t, ok)
	assert.Equal(t, source, g.StartRule)
	assert.Equal(t, model.KindStart, g.Symbols[g.Start].Kind)

	require.Len(t, g.Productions, 4)
	assert.Equal(t, g.Start, g.Productions[0].LHS)
	assert.Equal(t, "expr -> expr \"+\" expr", g.ProductionString(2))

	binary := g.Productions[2]
	assert.Equal(t, 1, binary.Prec)
	assert.Equal(t, model.AssocLeft, binary.Assoc)
	assert.Equal(t, 0, g.Productions[3].Prec)

	plus := binary.RHS[1]
	level, assoc := g.TerminalLevel(plus)
	assert.Equal(t, 1, level)
	assert.Equal(t, model.AssocLeft, assoc)
	assert.Equal(t, model.KindLiteral, g.Symbols[plus].Kind)
	assert.True(t, g.Symbols[plus].Visible)
	assert.False(t, g.Symbols[plus].Named)

	expr, _ := g.Lookup("expr")
	assert.True(t, g.First(expr).Has(number))
	assert.False(t, g.First(expr).Has(plus))
	assert.False(t, g.Nullable(expr))
}

func TestDesugarRepeatAndOptional(t *testing.T) {
	g, err := build(t, `grammar lists;
rule list = '(' items:item* ')';
rule item = name ','?;
token name = /[a-z]+/;
`)
	require.NoError(t, err)

	list, _ := g.Lookup("list")
	prods := g.ProductionsOf(list)
	require.Len(t, prods, 2)
	assert.Len(t, g.Productions[prods[0]].RHS, 3)
	assert.Len(t, g.Productions[prods[1]].RHS, 2)

	aux := g.Productions[prods[0]].RHS[1]
	assert.Equal(t, model.KindAux, g.Symbols[aux].Kind)
	assert.True(t, g.IsHidden(aux))
	assert.Equal(t, list, g.Origin(aux))
	assert.Equal(t, "list_repeat1", g.SymbolName(aux))

	auxProds := g.ProductionsOf(aux)
	require.Len(t, auxProds, 2)
	single := g.Productions[auxProds[0]]
	require.Len(t, single.RHS, 1)
	assert.Equal(t, "items", g.Fields[single.Fields[0]])
	again := g.Productions[auxProds[1]]
	require.Len(t, again.RHS, 2)
	assert.Equal(t, aux, again.RHS[0])
	assert.Equal(t, "items", g.Fields[again.Fields[1]])

	item, _ := g.Lookup("item")
	assert.Len(t, g.ProductionsOf(item), 2)
}

func TestAliasesAndKeywords(t *testing.T) {
	g, err := build(t, `grammar kw;
word identifier;
rule source = pair+;
rule pair = 'if' identifier as key '=' identifier;
token identifier = /[a-z]+/;
`)
	require.NoError(t, err)

	pair, _ := g.Lookup("pair")
	p := g.Productions[g.ProductionsOf(pair)[0]]
	require.Len(t, p.Aliases, 4)
	alias := p.Aliases[1]
	require.NotZero(t, alias)
	assert.Equal(t, "key", g.SymbolName(alias))
	assert.Equal(t, model.KindAlias, g.Symbols[alias].Kind)
	assert.True(t, g.Symbols[alias].Named)

	ifSym := p.RHS[0]
	assert.True(t, g.Terminals[ifSym].Keyword)
	assert.False(t, g.Terminals[p.RHS[2]].Keyword)

	word, _ := g.Lookup("identifier")
	assert.Equal(t, word, g.Word)
}

func TestExtrasAndExternals(t *testing.T) {
	g, err := build(t, `grammar ext;
externals { indent dedent }
extras { /\s+/ comment }
rule block = indent name dedent;
token name = /[a-z]+/;
token comment = /#[^\n]*/;
`)
	require.NoError(t, err)

	require.Len(t, g.Externals, 2)
	indent, _ := g.Lookup("indent")
	assert.Equal(t, indent, g.Externals[0])
	assert.Equal(t, 0, g.Terminals[indent].External)
	assert.Empty(t, g.Terminals[indent].Pattern)

	require.Len(t, g.Extras, 2)
	comment, _ := g.Lookup("comment")
	assert.True(t, g.IsExtra(comment))
	assert.True(t, g.IsHidden(g.Extras[0]))
	assert.False(t, g.IsHidden(comment))
}

func TestTokenBodies(t *testing.T) {
	g, err := build(t, `grammar tok;
rule source = number string;
token digit = /[0-9]/;
token number = %prec(2) digit+ ('.' digit+)?;
token string = immediate('"');
`)
	require.NoError(t, err)

	number, _ := g.Lookup("number")
	term := g.Terminals[number]
	assert.False(t, term.Literal)
	assert.Equal(t, 2, term.Prec)
	assert.Contains(t, term.Pattern, "[0-9]")

	str, _ := g.Lookup("string")
	assert.True(t, g.Terminals[str].Literal)
	assert.True(t, g.Terminals[str].Immediate)
	assert.Equal(t, `"`, g.Terminals[str].Text)
}

func TestUnusedRuleWarning(t *testing.T) {
	g, err := build(t, `grammar unused;
rule source = 'a';
rule orphan = 'b';
`)
	require.NoError(t, err)
	require.Len(t, g.Warnings, 1)
	assert.Equal(t, errors.WarningUnusedRule, g.Warnings[0].Code)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"unresolved symbol", "grammar g;\nrule s = missing;\n", errors.ErrorUnresolvedSymbol},
		{"duplicate rule", "grammar g;\nrule s = 'a';\nrule s = 'b';\n", errors.ErrorDuplicateRule},
		{"unknown precedence", "grammar g;\nrule s = %prec('*') 'a';\n", errors.ErrorInvalidPrecedence},
		{"unused precedence literal", "grammar g;\nprecedence { %left '*'; }\nrule s = 'a';\n", errors.ErrorInvalidPrecedence},
		{"bad annotation", "grammar g;\nrule s = %weird 'a';\n", errors.ErrorInvalidAnnotation},
		{"cycle", "grammar g;\nrule a = b;\nrule b = a | 'x';\n", errors.ErrorCyclicRule},
		{"nullable repeat", "grammar g;\nrule s = t*;\nrule t = 'x' | empty;\n", errors.ErrorCyclicRule},
		{"word is a rule", "grammar g;\nword s;\nrule s = 'a';\n", errors.ErrorInvalidTokenReference},
		{"extras rule", "grammar g;\nextras { s }\nrule s = 'a';\n", errors.ErrorInvalidTokenReference},
		{"empty alternative", "grammar g;\nrule s = 'a' | ;\n", errors.ErrorEmptyAlternative},
		{"visible supertype", "grammar g;\nsupertypes { s }\nrule s = 'a';\n", errors.ErrorInvalidSupertype},
		{"unproductive", "grammar g;\nrule s = s 'x';\n", errors.ErrorUnproductiveRule},
		{"invalid pattern", "grammar g;\nrule s = t;\ntoken t = /a(/;\n", errors.ErrorInvalidPattern},
		{"empty token", "grammar g;\nrule s = t;\ntoken t = /a*/;\n", errors.ErrorEmptyToken},
		{"hidden start", "grammar g;\nstart _s;\nrule _s = 'a';\n", errors.ErrorInvalidStart},
		{"missing start", "grammar g;\nstart nope;\nrule s = 'a';\n", errors.ErrorInvalidStart},
		{"group alias", "grammar g;\nrule s = ('a' 'b') as pair;\n", errors.ErrorInvalidLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, codes(err), tt.code)
		})
	}
}

func TestErrorsCarryPositions(t *testing.T) {
	_, err := build(t, "grammar g;\nrule s = 'a';\n\nrule t = missing;\n")
	require.Error(t, err)

	var gerr *errors.GrammarError
	require.True(t, stderrors.As(err, &gerr))
	assert.Equal(t, errors.ErrorUnresolvedSymbol, gerr.Code)
	assert.Equal(t, 4, gerr.Position.Line)
}

func TestTooManyAlternatives(t *testing.T) {
	src := "grammar g;\nrule s = "
	for i := 0; i < 13; i++ {
		src += "'a'? "
	}
	src += "'b';\n"
	_, err := build(t, src)
	require.Error(t, err)
	assert.Contains(t, codes(err), errors.ErrorTooManyAlternatives)
}

func TestTerminalSet(t *testing.T) {
	s := model.NewTerminalSet(130)
	s.Add(3)
	s.Add(129)
	assert.True(t, s.Has(3))
	assert.True(t, s.Has(129))
	assert.False(t, s.Has(4))
	assert.Equal(t, 2, s.Len())

	o := model.NewTerminalSet(130)
	o.Add(64)
	assert.True(t, s.Union(o))
	assert.False(t, s.Union(o))
	assert.True(t, s.Covers(o))

	var got []token.Symbol
	s.Each(func(sym token.Symbol) { got = append(got, sym) })
	assert.Equal(t, []token.Symbol{3, 64, 129}, got)
}
