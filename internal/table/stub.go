package table

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"
	"unicode"
)

var stubTemplate = template.Must(template.New("stub").Parse(`// Code generated by fusor compile; edit the Scan method.

package {{.Package}}

import "fusor/internal/scanner"

// External token kinds of the {{.Grammar}} grammar, in declaration order.
const (
{{- range $i, $e := .Externals}}
	{{$e.Const}}{{if eq $i 0}} = iota{{end}}
{{- end}}
)

// Scanner recognizes the external tokens of the {{.Grammar}} grammar.
type Scanner struct{}

var _ scanner.Scanner = Scanner{}

func (Scanner) Scan(in *scanner.Input, valid scanner.ValidSet, state *scanner.State) (scanner.Match, bool) {
{{- range .Externals}}
	if valid.Has({{.Const}}) {
		// TODO: recognize {{.Name}}.
	}
{{- end}}
	return scanner.Match{}, false
}
`))

type stubExternal struct {
	Name  string
	Const string
}

// GenerateScannerStub returns Go source for an external scanner skeleton
// covering the language's external tokens.
func GenerateScannerStub(l *Language, pkg string) ([]byte, error) {
	if len(l.t.Externals) == 0 {
		return nil, fmt.Errorf("grammar %s declares no externals", l.t.Name)
	}
	data := struct {
		Package   string
		Grammar   string
		Externals []stubExternal
	}{Package: pkg, Grammar: l.t.Name}
	for _, sym := range l.t.Externals {
		name := l.SymbolName(sym)
		data.Externals = append(data.Externals, stubExternal{Name: name, Const: "Kind" + exportName(name)})
	}
	var buf bytes.Buffer
	if err := stubTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering scanner stub: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting scanner stub: %w", err)
	}
	return src, nil
}

func exportName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
