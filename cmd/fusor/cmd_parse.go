package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusor/internal/engine"
	"fusor/internal/errors"
)

func newParseCmd(opts *options) *cobra.Command {
	var (
		scannerName string
		anonymous   bool
		quiet       bool
		stats       bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "parse <language> <file>...",
		Short: "Parse files and print their syntax trees",
		Long: `Parse files with a language and print each syntax tree as an S-expression.

The language is a grammar file, a compiled ` + BlobExt + ` blob, or the builtin
name "fusor". The command fails if any file contains syntax errors.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, err := opts.loadLanguage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ext, err := scannerFor(scannerName)
			if err != nil {
				return err
			}
			parserOpts := opts.cfg.ParserOptions()
			if ext != nil {
				parserOpts = append(parserOpts, engine.WithScanner(ext))
			}
			p, err := engine.NewParser(lang, parserOpts...)
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args[1:] {
				ok, err := parseFile(cmd.Context(), p, path, timeout, anonymous, quiet, stats)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files have syntax errors", failed, len(args)-1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scannerName, "scanner", "", "external scanner: indent or none")
	cmd.Flags().BoolVarP(&anonymous, "anonymous", "a", false, "include anonymous nodes in the output")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only report errors")
	cmd.Flags().BoolVar(&stats, "stats", false, "print parse statistics")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "cancel parses that take longer")

	return cmd
}

func parseFile(ctx context.Context, p *engine.Parser, path string, timeout time.Duration, anonymous, quiet, stats bool) (bool, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	res, err := p.Parse(ctx, engine.Request{Source: source})
	if err != nil {
		return false, err
	}

	if !quiet {
		fmt.Println(res.Tree.RootNode().SExpression(anonymous))
	}
	if len(res.Diagnostics) > 0 {
		fmt.Fprint(os.Stderr, errors.NewErrorReporter(path, string(source)).Format(errors.List(res.Diagnostics)))
	}
	if stats {
		s := res.Stats
		fmt.Fprintf(os.Stderr, "%s: %d tokens, %d recoveries, %d forks, peak %d stacks, %s\n",
			path, s.Tokens, s.Recoveries, s.Forks, s.PeakStacks, formatDuration(s.Duration))
	}
	if res.Status == engine.StatusCancelled {
		color.Yellow("%s: parse cancelled after %s", path, timeout)
		return false, nil
	}
	return len(res.Errors) == 0, nil
}
