package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusor/internal/table"
)

func newCompileCmd(opts *options) *cobra.Command {
	var (
		output  string
		strict  bool
		stubPkg string
		stubOut string
	)

	cmd := &cobra.Command{
		Use:   "compile <grammar>",
		Short: "Compile a grammar to a table blob",
		Long: `Compile a .fsg (or .yaml/.json) grammar and write its parse tables as a
versioned blob next to the grammar, or to the path given with -o.

With --scanner-stub a Go skeleton for the grammar's external scanner is
written as well.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			reg, closeCache, err := opts.openRegistry(strict)
			if err != nil {
				return err
			}
			defer closeCache()

			entry, err := reg.Load(cmd.Context(), path)
			if err != nil {
				return reportSourceError(path, err)
			}
			if entry.Report != nil {
				reportWarnings(path, entry.Report.Warnings)
			}

			if output == "" {
				output = strings.TrimSuffix(path, filepath.Ext(path)) + BlobExt
			}
			blob, err := table.EncodeBytes(entry.Language)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, blob, 0o644); err != nil {
				return fmt.Errorf("write blob: %w", err)
			}

			if stubPkg != "" {
				src, err := table.GenerateScannerStub(entry.Language, stubPkg)
				if err != nil {
					return err
				}
				if stubOut == "" {
					stubOut = filepath.Join(filepath.Dir(path), "scanner.go")
				}
				if err := os.WriteFile(stubOut, src, 0o644); err != nil {
					return fmt.Errorf("write scanner stub: %w", err)
				}
			}

			color.Green("Compiled %s to %s (%s)", entry.Language.Name(), output, summary(entry.Language, entry.Report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "blob path (default: grammar path with "+BlobExt+")")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat conflicts resolved by declaration order as errors")
	cmd.Flags().StringVar(&stubPkg, "scanner-stub", "", "also write an external scanner skeleton in this Go package")
	cmd.Flags().StringVar(&stubOut, "stub-output", "", "scanner skeleton path (default: scanner.go beside the grammar)")

	return cmd
}

func summary(lang *table.Language, report *table.Report) string {
	if report == nil {
		return fmt.Sprintf("%d states, from cache", lang.StateCount())
	}
	return fmt.Sprintf("%d states, %d conflicts, %d branching, %s",
		report.States, len(report.Conflicts), report.Branches(), formatDuration(report.Duration))
}
