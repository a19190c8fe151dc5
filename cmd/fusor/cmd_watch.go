package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusor/internal/metrics"
	"fusor/internal/registry"
	"fusor/internal/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "watch <grammar>",
		Short: "Recompile a grammar every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			reg, closeCache, err := opts.openRegistry(strict)
			if err != nil {
				return err
			}
			defer closeCache()

			if addr := opts.cfg.Metrics.Addr; addr != "" {
				srv := metrics.NewServer(addr)
				srv.Start()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Stop(ctx)
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var previous []byte
			build := func(source []byte) {
				if previous != nil {
					reg.Forget(previous)
				}
				previous = source
				rebuild(ctx, reg, path, source)
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			build(source)
			return watch.New(path, build).Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat conflicts resolved by declaration order as errors")

	return cmd
}

func rebuild(ctx context.Context, reg *registry.Registry, path string, source []byte) {
	entry, err := reg.Compile(ctx, path, source)
	if err != nil {
		_ = reportSourceError(path, err)
		color.Red("%s: compile failed", path)
		return
	}
	if entry.Report != nil {
		reportWarnings(path, entry.Report.Warnings)
	}
	color.Green("%s: ok (%s)", path, summary(entry.Language, entry.Report))
}
