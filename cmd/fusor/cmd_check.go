package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusor/internal/table"
)

func newCheckCmd(opts *options) *cobra.Command {
	var (
		strict    bool
		conflicts bool
	)

	cmd := &cobra.Command{
		Use:   "check <grammar>...",
		Short: "Validate grammars without writing tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, closeCache, err := opts.openRegistry(strict)
			if err != nil {
				return err
			}
			defer closeCache()

			failed := 0
			for _, path := range args {
				entry, err := reg.Load(cmd.Context(), path)
				if err != nil {
					_ = reportSourceError(path, err)
					color.Red("%s: check failed", path)
					failed++
					continue
				}
				if entry.Report != nil {
					reportWarnings(path, entry.Report.Warnings)
					if conflicts {
						printConflicts(entry.Language, entry.Report)
					}
				}
				color.Green("%s: ok (%s)", path, summary(entry.Language, entry.Report))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d grammars failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat conflicts resolved by declaration order as errors")
	cmd.Flags().BoolVar(&conflicts, "conflicts", false, "list every conflict and how it was resolved")

	return cmd
}

func printConflicts(lang *table.Language, report *table.Report) {
	for _, c := range report.Conflicts {
		fmt.Printf("state %d on %s: %d candidates, %s\n",
			c.State, lang.SymbolName(c.Lookahead), len(c.Candidates), c.Resolution)
	}
}
