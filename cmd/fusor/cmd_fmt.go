package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fusor/grammar"
	"fusor/internal/registry"
)

func newFmtCmd() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "fmt [grammar]",
		Short: "Pretty-print a grammar in the DSL",
		Long: `Pretty-print a grammar to stdout.

YAML and JSON grammars are printed in the DSL. Without a file the DSL is
read from stdin. Use -w to overwrite a .fsg file in place.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				source   []byte
				filename = "<stdin>"
				err      error
			)
			if len(args) == 0 {
				if overwrite {
					return fmt.Errorf("-w requires a file argument")
				}
				source, err = io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			} else {
				filename = args[0]
				if overwrite && filepath.Ext(filename) != ".fsg" {
					return fmt.Errorf("-w only rewrites .fsg files, got %s", filename)
				}
				source, err = os.ReadFile(filename)
				if err != nil {
					return fmt.Errorf("read file: %w", err)
				}
			}

			file, err := registry.Parse(filename, source)
			if err != nil {
				return reportSourceError(filename, err)
			}
			output := grammar.Format(file)
			if overwrite {
				return os.WriteFile(filename, []byte(output), 0o644)
			}
			_, err = io.WriteString(os.Stdout, output)
			return err
		},
	}

	cmd.Flags().BoolVarP(&overwrite, "write", "w", false, "overwrite the file in place")

	return cmd
}
