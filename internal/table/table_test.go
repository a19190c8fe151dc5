package table_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/grammar"
	"fusor/internal/errors"
	"fusor/internal/model"
	"fusor/internal/table"
	"fusor/token"
)

func compile(t *testing.T, src string, opts table.Options) (*table.Language, *table.Report, error) {
	t.Helper()
	file, err := grammar.ParseSource("test.fsg", src)
	require.NoError(t, err)
	g, err := model.Build(file)
	require.NoError(t, err)
	return table.Compile(context.Background(), g, opts)
}

func conflictCodes(err error) []string {
	var out []string
	for _, e := range errors.Flatten(err) {
		var cerr *errors.ConflictError
		if stderrors.As(e, &cerr) {
			out = append(out, cerr.Code)
		}
	}
	return out
}

func binaryGrammar(assoc string) string {
	return `grammar expr;
precedence { ` + assoc + ` '+'; }
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
`
}

func plusCell(t *testing.T, report *table.Report) table.Conflict {
	t.Helper()
	require.Len(t, report.Conflicts, 1)
	return report.Conflicts[0]
}

func TestLeftAssociativityReduces(t *testing.T) {
	lang, report, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)
	require.NotNil(t, lang)

	c := plusCell(t, report)
	assert.Equal(t, table.ResolvedByAssociativity, c.Resolution)
	require.Len(t, c.Kept, 1)
	assert.Equal(t, table.ActionReduce, c.Kept[0].Kind)
	assert.Len(t, c.Candidates, 2)
	assert.Empty(t, report.Warnings)
}

func TestRightAssociativityShifts(t *testing.T) {
	_, report, err := compile(t, binaryGrammar("%right"), table.Options{})
	require.NoError(t, err)
	c := plusCell(t, report)
	require.Len(t, c.Kept, 1)
	assert.Equal(t, table.ActionShift, c.Kept[0].Kind)
}

func TestNonAssociativeIsAnError(t *testing.T) {
	lang, report, err := compile(t, binaryGrammar("%nonassoc"), table.Options{})
	require.Error(t, err)
	assert.Nil(t, lang)
	require.NotNil(t, report)
	assert.Equal(t, []string{errors.ErrorNonAssociative}, conflictCodes(err))

	var cerr *errors.ConflictError
	require.True(t, stderrors.As(errors.Flatten(err)[0], &cerr))
	assert.Equal(t, "+", cerr.Lookahead)
	assert.Len(t, cerr.Actions, 2)
	assert.Equal(t, 4, cerr.Position.Line)
}

const ambiguous = `grammar expr;
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
`

func TestDeclarationOrderWarns(t *testing.T) {
	lang, report, err := compile(t, ambiguous, table.Options{})
	require.NoError(t, err)
	require.NotNil(t, lang)

	c := plusCell(t, report)
	assert.Equal(t, table.ResolvedByOrder, c.Resolution)
	require.Len(t, c.Kept, 1)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, errors.WarningDeclarationOrder, report.Warnings[0].Code)
}

func TestStrictModeRejectsOrderResolution(t *testing.T) {
	_, _, err := compile(t, ambiguous, table.Options{Strict: true})
	require.Error(t, err)
	assert.Equal(t, []string{errors.ErrorUnresolvedConflict}, conflictCodes(err))
}

func TestDeclaredConflictBranches(t *testing.T) {
	src := `grammar expr;
conflicts { [expr]; }
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
`
	lang, report, err := compile(t, src, table.Options{})
	require.NoError(t, err)

	c := plusCell(t, report)
	assert.Equal(t, table.Branch, c.Resolution)
	require.Len(t, c.Kept, 2)
	assert.Equal(t, table.ActionShift, c.Kept[0].Kind)
	assert.Equal(t, table.ActionReduce, c.Kept[1].Kind)
	assert.Equal(t, 1, report.Branches())

	plus, ok := lang.SymbolForName("+")
	require.True(t, ok)
	assert.Len(t, lang.Actions(token.StateID(c.State), plus), 2)

	_, _, err = compile(t, src, table.Options{MaxFanout: 1})
	assert.Equal(t, []string{errors.ErrorFanoutExceeded}, conflictCodes(err))
}

const lr1Only = `grammar lr1;
rule s = 'a' x 'd' | 'b' y 'd' | 'a' y 'e' | 'b' x 'e';
rule x = 'c';
rule y = 'c';
`

func TestMergingModes(t *testing.T) {
	_, pager, err := compile(t, lr1Only, table.Options{Mode: table.ModePager})
	require.NoError(t, err)
	assert.Empty(t, pager.Conflicts)

	_, canonical, err := compile(t, lr1Only, table.Options{Mode: table.ModeCanonical})
	require.NoError(t, err)
	assert.Empty(t, canonical.Conflicts)
	assert.LessOrEqual(t, pager.States, canonical.States)

	_, lalr, err := compile(t, lr1Only, table.Options{Mode: table.ModeLALR})
	require.NoError(t, err)
	assert.Len(t, lalr.Conflicts, 2)
	assert.Less(t, lalr.States, pager.States)
	for _, c := range lalr.Conflicts {
		assert.Equal(t, table.ResolvedByOrder, c.Resolution)
	}
}

func TestParseMode(t *testing.T) {
	m, err := table.ParseMode("LALR")
	require.NoError(t, err)
	assert.Equal(t, table.ModeLALR, m)
	m, err = table.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, table.ModePager, m)
	_, err = table.ParseMode("slr")
	assert.Error(t, err)
}

func TestActionsAndGotos(t *testing.T) {
	lang, _, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)

	number, ok := lang.SymbolForName("number")
	require.True(t, ok)
	source, ok := lang.SymbolForName("source")
	require.True(t, ok)

	shift := lang.Actions(0, number)
	require.Len(t, shift, 1)
	assert.Equal(t, table.ActionShift, shift[0].Kind)
	assert.Equal(t, shift[0].State, lang.Next(0, number))

	accept := lang.Goto(0, source)
	require.NotEqual(t, token.NoState, accept)
	actions := lang.Actions(accept, token.EOF)
	require.Len(t, actions, 1)
	assert.Equal(t, table.ActionAccept, actions[0].Kind)

	assert.Equal(t, token.NoState, lang.Goto(0, number))
	assert.True(t, lang.ValidTerminals(0).Has(number))
	assert.False(t, lang.ValidTerminals(0).Has(token.EOF))
	assert.Nil(t, lang.ValidExternals(0))

	lx, err := lang.Lexer()
	require.NoError(t, err)
	tok := lx.Next([]byte("42"), 0, lang.ValidTerminals(0), nil)
	assert.Equal(t, number, tok.Symbol)

	var dump bytes.Buffer
	lang.Dump(&dump)
	assert.Contains(t, dump.String(), "state 0")
	assert.Contains(t, dump.String(), "accept")
}

func TestCompileIsDeterministic(t *testing.T) {
	a, _, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)
	b, _, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Tables(), b.Tables())
}

func TestCompileHonorsCancellation(t *testing.T) {
	file, err := grammar.ParseSource("test.fsg", binaryGrammar("%left"))
	require.NoError(t, err)
	g, err := model.Build(file)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = table.Compile(ctx, g, table.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBlobRoundTrip(t *testing.T) {
	lang, _, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)

	blob, err := table.EncodeBytes(lang)
	require.NoError(t, err)
	assert.Equal(t, []byte("FUSR"), blob[:4])

	digest, err := table.PeekDigest(blob)
	require.NoError(t, err)
	assert.Equal(t, lang.Digest(), digest)

	decoded, err := table.DecodeBytes(blob)
	require.NoError(t, err)
	assert.Equal(t, lang.StateCount(), decoded.StateCount())
	assert.Equal(t, lang.Tables().ActionIndex, decoded.Tables().ActionIndex)
	assert.Equal(t, lang.Tables().Goto, decoded.Tables().Goto)
	number, _ := decoded.SymbolForName("number")
	assert.Equal(t, lang.Actions(0, number), decoded.Actions(0, number))
}

func TestBlobVersionMismatch(t *testing.T) {
	lang, _, err := compile(t, binaryGrammar("%left"), table.Options{})
	require.NoError(t, err)
	blob, err := table.EncodeBytes(lang)
	require.NoError(t, err)

	blob[4]++
	_, err = table.DecodeBytes(blob)
	assert.ErrorIs(t, err, errors.ErrIncompatibleBlob)

	_, err = table.DecodeBytes([]byte("NOPE0000000000000000000000000000000000000000"))
	assert.ErrorIs(t, err, errors.ErrIncompatibleBlob)
}

func TestScannerStub(t *testing.T) {
	src := `grammar blocks;
externals { newline indent dedent }
rule source = stmt+;
rule stmt = name newline | name ':' newline indent stmt+ dedent;
token name = /[a-z]+/;
`
	lang, _, err := compile(t, src, table.Options{})
	require.NoError(t, err)

	newline, _ := lang.SymbolForName("newline")
	assert.Equal(t, model.KindExternal, lang.SymbolKind(newline))

	stub, err := table.GenerateScannerStub(lang, "blocks")
	require.NoError(t, err)
	out := string(stub)
	assert.Contains(t, out, "package blocks")
	assert.Contains(t, out, "KindNewline = iota")
	assert.Contains(t, out, "KindDedent")
	assert.Contains(t, out, "func (Scanner) Scan(")

	plain, _, err := compile(t, ambiguous, table.Options{})
	require.NoError(t, err)
	_, err = table.GenerateScannerStub(plain, "x")
	assert.Error(t, err)
}

const calls = `grammar calls;
rule source = stmt*;
rule stmt = bind | expr;
rule bind = name '=' expr;
rule expr = call | name | group;
rule call = %prec(5) expr group;
rule group = '(' expr ')';
token name = /[a-z]+/;
`

func TestPredictedShiftCarriesKernelPrecedence(t *testing.T) {
	_, report, err := compile(t, calls, table.Options{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)

	require.NotEmpty(t, report.Conflicts)
	for _, c := range report.Conflicts {
		assert.Equal(t, table.ResolvedByPrecedence, c.Resolution)
		require.Len(t, c.Kept, 1)
		assert.Equal(t, table.ActionShift, c.Kept[0].Kind)
	}
}
