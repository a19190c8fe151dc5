package lsp

import (
	stderrors "errors"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"fusor/internal/engine"
	"fusor/internal/errors"
)

const diagnosticSource = "fusor"

// convertDiagnostics turns a parse result into LSP diagnostics: one per
// error node, carrying the message of the first syntax or scan error
// reported inside it.
func convertDiagnostics(text []byte, res *engine.Result) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	used := make([]bool, len(res.Diagnostics))

	for _, loc := range res.Errors {
		code, message := "", fmt.Sprintf("syntax error near %q", loc.Text)
		for i, d := range res.Diagnostics {
			offset, c, m, ok := describe(d)
			if !ok || used[i] || offset < loc.StartByte || offset > loc.EndByte {
				continue
			}
			used[i] = true
			code, message = c, m
			break
		}
		diagnostics = append(diagnostics, diagnostic(rangeOf(text, loc.StartByte, loc.EndByte), code, message))
	}

	// Errors that did not end up inside an error node, such as a stalled
	// external scanner.
	for i, d := range res.Diagnostics {
		offset, code, message, ok := describe(d)
		if !ok || used[i] {
			continue
		}
		diagnostics = append(diagnostics, diagnostic(rangeOf(text, offset, offset), code, message))
	}
	return diagnostics
}

func describe(err error) (uint32, string, string, bool) {
	var syntax *errors.SyntaxError
	if stderrors.As(err, &syntax) {
		return syntax.Offset, syntax.Code, syntax.Message, true
	}
	var scan *errors.ScanError
	if stderrors.As(err, &scan) {
		return scan.Offset, scan.Code, scan.Message, true
	}
	return 0, "", "", false
}

func diagnostic(r protocol.Range, code, message string) protocol.Diagnostic {
	d := protocol.Diagnostic{
		Range:    r,
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString(diagnosticSource),
		Message:  message,
	}
	if code != "" {
		d.Code = &protocol.IntegerOrString{Value: code}
	}
	return d
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
