// Package fusor bundles the grammar of the fusor language together with its
// compiled parse tables.
package fusor

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"fusor/grammar"
	"fusor/internal/model"
	"fusor/internal/table"
)

//go:embed fusor.fsg
var source string

// MaxFanout is the branching limit the fusor tables are compiled with.
const MaxFanout = 16

// Source returns the grammar text the language is compiled from.
func Source() string { return source }

var compiled = sync.OnceValues(func() (*table.Language, error) {
	file, err := grammar.ParseSource("fusor.fsg", source)
	if err != nil {
		return nil, err
	}
	g, err := model.Build(file)
	if err != nil {
		return nil, err
	}
	lang, _, err := table.Compile(context.Background(), g, table.Options{MaxFanout: MaxFanout})
	return lang, err
})

// Language returns the compiled fusor language. The tables are built on the
// first call and shared afterwards.
func Language() *table.Language {
	lang, err := compiled()
	if err != nil {
		panic(fmt.Sprintf("fusor: embedded grammar is invalid: %v", err))
	}
	return lang
}
