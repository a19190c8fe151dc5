package engine_test

import (
	"context"
	stderrors "errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fusor/grammar"
	"fusor/internal/engine"
	"fusor/internal/errors"
	"fusor/internal/incremental"
	"fusor/internal/model"
	"fusor/internal/scanner"
	"fusor/internal/table"
	"fusor/internal/tree"
)

const arith = `grammar arith;
extras { /\s+/ comment }
precedence { %left '+'; }
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
token comment = /#[^\n]*/;
`

const branching = `grammar branching;
conflicts { [expr]; }
rule source = expr;
rule expr = expr '+' expr | number;
token number = /\d+/;
`

// forked needs two stacks that meet in the same state after 'x' and split
// again at the last token.
const forked = `grammar forked;
conflicts { [a, b]; }
rule source = a t 'z' | b t 'w';
rule a = 'q';
rule b = 'q';
rule t = 'x' 'y';
`

const blocks = `grammar blocks;
externals { newline indent dedent }
rule source = stmt+;
rule stmt = name newline | name ':' newline indent stmt+ dedent;
token name = /[a-z]+/;
`

func language(t *testing.T, src string) *table.Language {
	t.Helper()
	file, err := grammar.ParseSource("test.fsg", src)
	require.NoError(t, err)
	g, err := model.Build(file)
	require.NoError(t, err)
	lang, _, err := table.Compile(context.Background(), g, table.Options{})
	require.NoError(t, err)
	return lang
}

func parser(t *testing.T, src string, opts ...engine.Option) *engine.Parser {
	t.Helper()
	p, err := engine.NewParser(language(t, src), opts...)
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, p *engine.Parser, req engine.Request) *engine.Result {
	t.Helper()
	res, err := p.Parse(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, engine.StatusOK, res.Status)
	return res
}

func TestLeftAssociativeSum(t *testing.T) {
	res := parse(t, parser(t, arith), engine.Request{Source: []byte("1+2+3")})
	assert.Equal(t, "(source (expr (expr (expr (number)) (expr (number))) (expr (number))))", res.Tree.String())

	outer := res.Tree.RootNode().Child(0)
	assert.Equal(t, "1+2+3", outer.Text())
	assert.Equal(t, "1+2", outer.Child(0).Text())
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Diagnostics)
}

func TestWhitespaceAndComments(t *testing.T) {
	src := "1 # one\n+ 2\n"
	res := parse(t, parser(t, arith), engine.Request{Source: []byte(src)})
	assert.Equal(t, "(source (expr (expr (number)) (comment) (expr (number))))", res.Tree.String())

	root := res.Tree.RootNode()
	assert.Equal(t, uint32(len(src)), root.EndByte())
	comment := root.Child(0).Child(1)
	assert.True(t, comment.IsExtra())
	assert.Equal(t, "# one", comment.Text())
}

func TestMissingOperandBecomesError(t *testing.T) {
	res := parse(t, parser(t, arith), engine.Request{Source: []byte("1+")})
	assert.Equal(t, `(source (expr (number)) (ERROR "+"))`, res.Tree.RootNode().SExpression(true))
	assert.Equal(t, uint32(2), res.Tree.RootNode().EndByte())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, uint32(1), res.Errors[0].StartByte)
	assert.Equal(t, uint32(2), res.Errors[0].EndByte)
	assert.Equal(t, "+", res.Errors[0].Text)

	require.Len(t, res.Diagnostics, 1)
	var syntax *errors.SyntaxError
	require.True(t, stderrors.As(res.Diagnostics[0], &syntax))
	assert.Equal(t, errors.ErrorUnexpectedEOF, syntax.Code)
	assert.Equal(t, 1, res.Stats.Recoveries)
}

func TestUnexpectedCharacterIsCovered(t *testing.T) {
	res := parse(t, parser(t, arith), engine.Request{Source: []byte("1+$+2")})
	root := res.Tree.RootNode()
	assert.Equal(t, uint32(5), root.EndByte())
	assert.Equal(t, "(source (expr (expr (number)) (ERROR) (expr (number))))", res.Tree.String())

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "+$", res.Errors[0].Text)

	var codes []string
	for _, d := range res.Diagnostics {
		var scan *errors.ScanError
		var syntax *errors.SyntaxError
		switch {
		case stderrors.As(d, &scan):
			codes = append(codes, scan.Code)
		case stderrors.As(d, &syntax):
			codes = append(codes, syntax.Code)
		}
	}
	assert.Equal(t, []string{errors.ErrorUnexpectedCharacter, errors.ErrorUnexpectedToken}, codes)
}

func TestGarbageAlwaysCoversInput(t *testing.T) {
	p := parser(t, arith)
	for _, src := range []string{"", "+", "++1", "1 2 3", "$$$", "1+ +2", "# only a comment"} {
		res := parse(t, p, engine.Request{Source: []byte(src)})
		assert.Equal(t, uint32(len(src)), res.Tree.RootNode().EndByte(), src)
	}
}

func TestDeclaredConflictPrefersFirstAction(t *testing.T) {
	res := parse(t, parser(t, branching), engine.Request{Source: []byte("1+2+3")})
	assert.Equal(t, "(source (expr (expr (number)) (expr (expr (number)) (expr (number)))))", res.Tree.String())
	assert.Equal(t, 1, res.Stats.Forks)
	assert.Empty(t, res.Errors)
}

func TestReparseWithoutEditsReusesEverything(t *testing.T) {
	p := parser(t, arith)
	src := []byte("1+2+3")
	first := parse(t, p, engine.Request{Source: src})
	second := parse(t, p, engine.Request{Source: src, OldTree: first.Tree})
	assert.True(t, tree.Equal(first.Tree.Root(), second.Tree.Root()))
	assert.Equal(t, 1, second.Stats.Reused)
	assert.Equal(t, uint32(5), second.Stats.ReusedBytes)
}

func TestIncrementalMatchesFresh(t *testing.T) {
	p := parser(t, arith)
	old := []byte("1+2+3")
	first := parse(t, p, engine.Request{Source: old})

	updated := []byte("1+42+3")
	edit := incremental.Diff(old, updated)
	incr := parse(t, p, engine.Request{Source: updated, OldTree: first.Tree, Edits: []tree.Edit{edit}})
	fresh := parse(t, p, engine.Request{Source: updated})

	assert.True(t, tree.Equal(fresh.Tree.Root(), incr.Tree.Root()))
	assert.Equal(t, fresh.Tree.String(), incr.Tree.String())
	assert.Equal(t, 2, incr.Stats.Reused)
}

func TestIncrementalEditSequence(t *testing.T) {
	p := parser(t, arith)
	texts := []string{
		"1 + 2",
		"1 + 2 + 3",
		"1 + # note\n 2 + 3",
		"1 + + 3",
		"10 + 2 + 3",
		"",
		"7",
	}
	prev := parse(t, p, engine.Request{Source: []byte(texts[0])})
	for i, text := range texts[1:] {
		edit := incremental.Diff([]byte(texts[i]), []byte(text))
		incr := parse(t, p, engine.Request{Source: []byte(text), OldTree: prev.Tree, Edits: []tree.Edit{edit}})
		fresh := parse(t, p, engine.Request{Source: []byte(text)})
		assert.True(t, tree.Equal(fresh.Tree.Root(), incr.Tree.Root()), "step %d: %q", i+1, text)
		prev = incr
	}
}

func TestWholeDocumentEditIsIdempotent(t *testing.T) {
	p := parser(t, arith)
	src := []byte("1 + 2 + 3")
	first := parse(t, p, engine.Request{Source: src})
	whole := tree.Edit{OldEndByte: uint32(len(src)), NewEndByte: uint32(len(src))}
	again := parse(t, p, engine.Request{Source: src, OldTree: first.Tree, Edits: []tree.Edit{whole}})
	assert.True(t, tree.Equal(first.Tree.Root(), again.Tree.Root()))
	assert.Zero(t, again.Stats.Reused)
}

func TestInvalidEditIsRejected(t *testing.T) {
	p := parser(t, arith)
	first := parse(t, p, engine.Request{Source: []byte("1+2")})
	_, err := p.Parse(context.Background(), engine.Request{
		Source:  []byte("1+2"),
		OldTree: first.Tree,
		Edits:   []tree.Edit{{StartByte: 2, OldEndByte: 9, NewEndByte: 3}},
	})
	assert.ErrorIs(t, err, incremental.ErrInvalidEdit)
}

func TestReadCallback(t *testing.T) {
	src := []byte("1 + 2 + 3")
	read := func(offset uint32) []byte {
		if int(offset) >= len(src) {
			return nil
		}
		return src[offset:min(int(offset)+2, len(src))]
	}
	p := parser(t, arith)
	fromRead := parse(t, p, engine.Request{Read: read})
	fromBytes := parse(t, p, engine.Request{Source: src})
	assert.True(t, tree.Equal(fromBytes.Tree.Root(), fromRead.Tree.Root()))
	assert.Equal(t, string(src), fromRead.Tree.Text())
}

func TestCancelledParseReturnsPartialTree(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := parser(t, arith).Parse(ctx, engine.Request{Source: []byte("1+2")})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCancelled, res.Status)
	require.NotNil(t, res.Tree)
	assert.Equal(t, "source", res.Tree.RootNode().Kind())
}

func TestExternalIndentation(t *testing.T) {
	p := parser(t, blocks, engine.WithScanner(scanner.Indent{}))
	src := "a:\n  b\nc\n"
	res := parse(t, p, engine.Request{Source: []byte(src)})
	assert.Equal(t,
		"(source (stmt (name) (newline) (indent) (stmt (name) (newline)) (dedent)) (stmt (name) (newline)))",
		res.Tree.String())
	assert.Empty(t, res.Errors)

	updated := "a:\n  b\ncd\n"
	incr := parse(t, p, engine.Request{
		Source:  []byte(updated),
		OldTree: res.Tree,
		Edits:   []tree.Edit{incremental.Diff([]byte(src), []byte(updated))},
	})
	fresh := parse(t, p, engine.Request{Source: []byte(updated)})
	assert.True(t, tree.Equal(fresh.Tree.Root(), incr.Tree.Root()))
}

func TestNewParserValidation(t *testing.T) {
	_, err := engine.NewParser(nil)
	assert.ErrorIs(t, err, engine.ErrNoLanguage)

	_, err = engine.NewParser(language(t, blocks))
	assert.Error(t, err)
}

func TestStacksInTheSameStateStayApart(t *testing.T) {
	p := parser(t, forked)

	res := parse(t, p, engine.Request{Source: []byte("qxyz")})
	assert.Equal(t, "(source (a) (t))", res.Tree.String())
	assert.Empty(t, res.Errors)

	res = parse(t, p, engine.Request{Source: []byte("qxyw")})
	assert.Equal(t, "(source (b) (t))", res.Tree.String())
	assert.Empty(t, res.Errors)
	assert.Equal(t, 2, res.Stats.PeakStacks)
}

func TestMaxStacksCapsVersions(t *testing.T) {
	res := parse(t, parser(t, forked, engine.WithMaxStacks(1)), engine.Request{Source: []byte("qxyw")})
	assert.NotEmpty(t, res.Errors)
	assert.Equal(t, 1, res.Stats.PeakStacks)
	assert.Equal(t, uint32(4), res.Tree.RootNode().EndByte())
}

func TestIncrementalAroundErrorsMatchesFresh(t *testing.T) {
	p := parser(t, arith)
	texts := []string{
		"1 + 2 + 3",
		"1 + $ + 3",
		"1 + $ + 3 + 4",
		"1 + 2 + 3 + 4",
		"1 + + 3 + 4",
		"1 2 + 3 + 4",
		"1 22 + 3 + 4",
		"122 + 3 + 4",
	}
	prev := parse(t, p, engine.Request{Source: []byte(texts[0])})
	for i, text := range texts[1:] {
		edit := incremental.Diff([]byte(texts[i]), []byte(text))
		incr := parse(t, p, engine.Request{Source: []byte(text), OldTree: prev.Tree, Edits: []tree.Edit{edit}})
		fresh := parse(t, p, engine.Request{Source: []byte(text)})
		assert.True(t, tree.Equal(fresh.Tree.Root(), incr.Tree.Root()),
			"%q: got %s, want %s", text, incr.Tree.RootNode().SExpression(true), fresh.Tree.RootNode().SExpression(true))
		prev = incr
	}
}

func TestRandomEditsMatchFreshParse(t *testing.T) {
	p := parser(t, arith)
	pieces := []string{"1", "22", "+", " ", "# c\n", "$"}
	rng := rand.New(rand.NewPCG(7, 11))
	text := "1 + 2"
	prev := parse(t, p, engine.Request{Source: []byte(text)})
	for i := range 300 {
		var ins strings.Builder
		for range rng.IntN(3) {
			ins.WriteString(pieces[rng.IntN(len(pieces))])
		}
		start := rng.IntN(len(text) + 1)
		end := min(len(text), start+rng.IntN(3))
		next := text[:start] + ins.String() + text[end:]

		edit := incremental.Diff([]byte(text), []byte(next))
		incr := parse(t, p, engine.Request{Source: []byte(next), OldTree: prev.Tree, Edits: []tree.Edit{edit}})
		fresh := parse(t, p, engine.Request{Source: []byte(next)})
		if !assert.True(t, tree.Equal(fresh.Tree.Root(), incr.Tree.Root()), "edit %d: %q -> %q", i, text, next) {
			return
		}
		assert.Equal(t, uint32(len(next)), incr.Tree.RootNode().EndByte())
		text, prev = next, incr
	}
}
