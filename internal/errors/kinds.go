package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrIncompatibleBlob is returned when a table blob carries a format or ABI
// version this build does not understand.
var ErrIncompatibleBlob = stderrors.New("incompatible table blob")

// GrammarError is a compile-time error in the grammar source. It is fatal
// and blocks table generation.
type GrammarError struct {
	Code     string
	Message  string
	Position Position
	Length   int
	Notes    []string
}

func (e *GrammarError) Error() string {
	if e.Position.Line > 0 {
		return fmt.Sprintf("%s: %s", e.Position, e.Message)
	}
	return e.Message
}

func (e *GrammarError) Diagnostic() CompilerError {
	level := Error
	if IsWarning(e.Code) {
		level = Warning
	}
	return CompilerError{
		Level:    level,
		Code:     e.Code,
		Message:  e.Message,
		Position: e.Position,
		Length:   e.Length,
		Notes:    e.Notes,
	}
}

// GrammarErrorBuilder provides a fluent interface for creating grammar errors
type GrammarErrorBuilder struct {
	err GrammarError
}

// NewGrammarError creates a new grammar error builder
func NewGrammarError(code, message string, pos Position) *GrammarErrorBuilder {
	return &GrammarErrorBuilder{
		err: GrammarError{
			Code:     code,
			Message:  message,
			Position: pos,
			Length:   1,
		},
	}
}

// WithLength sets the length of the error span
func (b *GrammarErrorBuilder) WithLength(length int) *GrammarErrorBuilder {
	b.err.Length = length
	return b
}

// WithNote adds a note to the error
func (b *GrammarErrorBuilder) WithNote(note string) *GrammarErrorBuilder {
	b.err.Notes = append(b.err.Notes, note)
	return b
}

// Build returns the completed grammar error
func (b *GrammarErrorBuilder) Build() *GrammarError {
	err := b.err
	return &err
}

// ConflictError is raised when an ambiguity in the automaton cannot be
// settled by the resolution policy.
type ConflictError struct {
	Code      string
	State     int
	Lookahead string
	Actions   []string
	Message   string
	Position  Position
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("state %d on %s: %s [%s]", e.State, e.Lookahead, e.Message, strings.Join(e.Actions, ", "))
}

func (e *ConflictError) Diagnostic() CompilerError {
	notes := make([]string, 0, len(e.Actions)+1)
	notes = append(notes, fmt.Sprintf("in state %d with lookahead %s", e.State, e.Lookahead))
	for _, a := range e.Actions {
		notes = append(notes, "candidate: "+a)
	}
	return CompilerError{
		Level:    Error,
		Code:     e.Code,
		Message:  e.Message,
		Position: e.Position,
		Notes:    notes,
		HelpText: "add a precedence or associativity annotation, or declare the rules in `conflicts`",
	}
}

// ScanError records input the lexer or the external scanner could not
// classify. It is recovered and never aborts a parse.
type ScanError struct {
	Code     string
	Message  string
	Offset   uint32
	Length   uint32
	Position Position
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

func (e *ScanError) Diagnostic() CompilerError {
	return CompilerError{Level: Error, Code: e.Code, Message: e.Message, Position: e.Position, Length: int(e.Length)}
}

// SyntaxError records a point where the automaton had no action. It is
// recovered by inserting an error node.
type SyntaxError struct {
	Code       string
	Message    string
	Offset     uint32
	Length     uint32
	Position   Position
	Unexpected string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Position, e.Message)
}

func (e *SyntaxError) Diagnostic() CompilerError {
	return CompilerError{Level: Error, Code: e.Code, Message: e.Message, Position: e.Position, Length: int(e.Length)}
}

// List collects errors reported by one operation.
type List []error

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors:\n  %s", len(l), strings.Join(msgs, "\n  "))
}

func (l List) Unwrap() []error {
	return l
}

// Err returns nil for an empty list and the list itself otherwise.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Flatten expands nested lists into a flat slice.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var l List
	if stderrors.As(err, &l) {
		out := make([]error, 0, len(l))
		for _, e := range l {
			out = append(out, Flatten(e)...)
		}
		return out
	}
	return []error{err}
}
