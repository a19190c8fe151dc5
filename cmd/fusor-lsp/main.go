// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/tliron/glsp/server"

	"fusor/internal/config"
	"fusor/internal/engine"
	"fusor/internal/lsp"
	"fusor/language/fusor"
)

const lsName = "fusor"

func main() {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:          "fusor-lsp",
		Short:        "Language server for fusor sources over stdio",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, debug)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to fusor.toml")
	cmd.Flags().BoolVar(&debug, "debug", false, "log protocol traffic")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fusor-lsp:", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadOrDefault(".")
	}
	if err != nil {
		return err
	}

	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(cfg.Log.Verbosity, logPath)
	log := commonlog.GetLogger("fusor.lsp.main")

	p, err := engine.NewParser(fusor.Language(), cfg.ParserOptions()...)
	if err != nil {
		return fmt.Errorf("creating parser: %w", err)
	}

	handler := lsp.NewHandler(lsName, p)
	s := server.NewServer(handler.Protocol(), lsName, debug)

	log.Info("starting fusor language server")
	return s.RunStdio()
}
