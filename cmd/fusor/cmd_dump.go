package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <language>",
		Short: "Print the parse tables of a grammar, blob or builtin language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := opts.loadLanguage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			lang.Dump(os.Stdout)
			return nil
		},
	}
}
