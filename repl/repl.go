// Package repl SPDX-License-Identifier: Apache-2.0
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"fusor/internal/engine"
	"fusor/internal/incremental"
	"fusor/internal/tree"
)

const PROMPT = ">> "

// Session accumulates lines into one document and reparses it
// incrementally after each line.
type Session struct {
	parser *engine.Parser
	text   []byte
	tree   *tree.Tree
}

func NewSession(p *engine.Parser) *Session {
	return &Session{parser: p}
}

// Append adds line to the document and reparses it.
func (s *Session) Append(ctx context.Context, line string) (*engine.Result, error) {
	next := make([]byte, 0, len(s.text)+len(line)+1)
	next = append(next, s.text...)
	next = append(next, line...)
	next = append(next, '\n')
	return s.replace(ctx, next)
}

// Reset clears the document.
func (s *Session) Reset(ctx context.Context) (*engine.Result, error) {
	return s.replace(ctx, nil)
}

func (s *Session) replace(ctx context.Context, next []byte) (*engine.Result, error) {
	req := engine.Request{Source: next}
	if s.tree != nil {
		req.OldTree = s.tree
		req.Edits = []tree.Edit{incremental.Diff(s.text, next)}
	}
	res, err := s.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	s.text, s.tree = next, res.Tree
	return res, nil
}

func (s *Session) Text() string { return string(s.text) }

// Start reads lines from in until it is exhausted. Lines starting with a
// colon are commands: :reset clears the document and :text prints it.
func Start(in io.Reader, out io.Writer, p *engine.Parser) {
	scanner := bufio.NewScanner(in)
	session := NewSession(p)
	ctx := context.Background()

	for {
		fmt.Fprint(out, PROMPT)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}

		line := scanner.Text()
		var (
			res *engine.Result
			err error
		)
		switch strings.TrimSpace(line) {
		case ":text":
			fmt.Fprint(out, session.Text())
			continue
		case ":reset":
			res, err = session.Reset(ctx)
		default:
			res, err = session.Append(ctx, line)
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "%s\n", res.Tree.String())
		for _, loc := range res.Errors {
			fmt.Fprintf(out, "  error at %d:%d %q\n", loc.StartPoint.Row+1, loc.StartPoint.Column+1, loc.Text)
		}
		fmt.Fprintf(out, "  reused %d nodes (%d bytes) in %s\n", res.Stats.Reused, res.Stats.ReusedBytes, res.Stats.Duration)
	}
}
