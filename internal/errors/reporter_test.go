package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorReporter(t *testing.T) {
	source := `grammar demo;
rule source = expr ;
rule expr = nmber ;`

	reporter := NewErrorReporter("demo.fsg", source)

	err := NewGrammarError(ErrorUnresolvedSymbol, "undefined symbol 'nmber'", Position{Line: 3, Column: 13}).
		WithLength(5).
		WithNote("did you mean 'number'?").
		Build()
	formatted := reporter.Format(err)

	assert.Contains(t, formatted, "error["+ErrorUnresolvedSymbol+"]")
	assert.Contains(t, formatted, "undefined symbol 'nmber'")
	assert.Contains(t, formatted, "demo.fsg:3:13")
	assert.Contains(t, formatted, "did you mean 'number'?")
	assert.Contains(t, formatted, "rule expr = nmber ;")
}

func TestFormatList(t *testing.T) {
	reporter := NewErrorReporter("demo.fsg", "grammar demo;\n")
	list := List{
		NewGrammarError(ErrorDuplicateRule, "duplicate rule 'a'", Position{Line: 1, Column: 1}).Build(),
		&ConflictError{Code: ErrorNonAssociative, State: 4, Lookahead: "'+'", Message: "non-associative rule", Actions: []string{"shift", "reduce expr"}},
		fmt.Errorf("plain failure"),
	}

	formatted := reporter.Format(list)
	assert.Contains(t, formatted, "duplicate rule 'a'")
	assert.Contains(t, formatted, "state 4")
	assert.Contains(t, formatted, "candidate: reduce expr")
	assert.Contains(t, formatted, "plain failure")
}

func TestListHelpers(t *testing.T) {
	var l List
	assert.NoError(t, l.Err())

	l = append(l, &SyntaxError{Code: ErrorUnexpectedToken, Message: "unexpected '+'", Position: Position{Line: 1, Column: 2}})
	l = append(l, List{&ScanError{Code: ErrorUnexpectedCharacter, Message: "unexpected character", Position: Position{Line: 1, Column: 3}}})
	require.Error(t, l.Err())

	flat := Flatten(l)
	require.Len(t, flat, 2)

	var scanErr *ScanError
	assert.True(t, stderrors.As(l.Err(), &scanErr))
	assert.Equal(t, ErrorUnexpectedCharacter, scanErr.Code)
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, "Grammar", GetErrorCategory(ErrorCyclicRule))
	assert.Equal(t, "Conflict", GetErrorCategory(ErrorFanoutExceeded))
	assert.Equal(t, "Scan", GetErrorCategory(ErrorUnexpectedCharacter))
	assert.Equal(t, "Syntax", GetErrorCategory(ErrorUnexpectedToken))
	assert.Equal(t, "Warning", GetErrorCategory(WarningDeclarationOrder))

	assert.True(t, IsFatal(ErrorNonAssociative))
	assert.False(t, IsFatal(ErrorUnexpectedToken))
	assert.True(t, IsWarning(WarningDeclarationOrder))
	assert.False(t, IsWarning(ErrorUnresolvedSymbol))
	assert.NotEqual(t, "Unknown error code", GetErrorDescription(ErrorEmptyToken))
}
