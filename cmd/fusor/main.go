// SPDX-License-Identifier: Apache-2.0
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"fusor/internal/config"
)

type options struct {
	configPath string
	verbose    int
	cfg        *config.Config
}

func main() {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "fusor",
		Short:         "Grammar compiler and incremental parser",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to fusor.toml (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().CountVarP(&opts.verbose, "verbose", "v", "increase log verbosity")

	rootCmd.AddCommand(newCompileCmd(opts))
	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newParseCmd(opts))
	rootCmd.AddCommand(newDumpCmd(opts))
	rootCmd.AddCommand(newFmtCmd())
	rootCmd.AddCommand(newWatchCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func (o *options) load() error {
	var err error
	if o.configPath != "" {
		o.cfg, err = config.Load(o.configPath)
	} else {
		o.cfg, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return err
	}
	var path *string
	if o.cfg.Log.File != "" {
		path = &o.cfg.Log.File
	}
	commonlog.Configure(o.cfg.Log.Verbosity+o.verbose, path)
	return nil
}
