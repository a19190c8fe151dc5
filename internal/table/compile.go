package table

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fusor/internal/errors"
	"fusor/internal/metrics"
	"fusor/internal/model"
	"fusor/token"
)

// DefaultMaxFanout bounds the number of actions a declared conflict cell
// may keep.
const DefaultMaxFanout = 8

var (
	log    = commonlog.GetLogger("fusor.table")
	tracer = otel.Tracer("fusor.table")
)

// Options controls table compilation.
type Options struct {
	Mode Mode
	// MaxFanout is the largest number of actions a branching cell may keep.
	// Zero means DefaultMaxFanout.
	MaxFanout int
	// Strict turns conflicts resolved by declaration order into errors.
	Strict bool
}

// Report describes a compilation.
type Report struct {
	Mode      Mode
	States    int
	Conflicts []Conflict
	// Warnings holds grammar warnings and conflicts settled by declaration
	// order.
	Warnings []*errors.GrammarError
	Duration time.Duration
}

// Branches returns the number of cells that keep several actions.
func (r *Report) Branches() int {
	n := 0
	for _, c := range r.Conflicts {
		if c.Resolution == Branch {
			n++
		}
	}
	return n
}

// Compile builds the parse tables for a grammar. On a fatal conflict the
// returned error is an errors.List of *errors.ConflictError and the report
// is still returned.
func Compile(ctx context.Context, g *model.Grammar, opts Options) (*Language, *Report, error) {
	ctx, span := tracer.Start(ctx, "table.Compile",
		trace.WithAttributes(
			attribute.String("grammar", g.Name),
			attribute.String("mode", opts.Mode.String()),
		),
	)
	defer span.End()
	started := time.Now()

	if opts.MaxFanout <= 0 {
		opts.MaxFanout = DefaultMaxFanout
	}
	a := newAutomaton(g, opts.Mode)
	if err := a.build(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("building automaton for %s: %w", g.Name, err)
	}

	r := &resolver{a: a, opts: opts}
	results := make([]stateResult, len(a.states))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for id := range a.states {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			results[id] = r.resolveState(id)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}

	report := &Report{Mode: opts.Mode, States: len(a.states)}
	report.Warnings = append(report.Warnings, g.Warnings...)
	var errs errors.List
	for _, res := range results {
		report.Conflicts = append(report.Conflicts, res.conflicts...)
		report.Warnings = append(report.Warnings, res.warnings...)
		errs = append(errs, res.errs...)
	}
	report.Duration = time.Since(started)
	metrics.CompileDuration.WithLabelValues(g.Name, opts.Mode.String()).Observe(report.Duration.Seconds())
	for _, c := range report.Conflicts {
		metrics.CompileConflicts.WithLabelValues(g.Name, c.Resolution.String()).Inc()
	}
	span.SetAttributes(
		attribute.Int("states", report.States),
		attribute.Int("conflicts", len(report.Conflicts)),
		attribute.Int("branches", report.Branches()),
	)
	if len(errs) > 0 {
		span.SetStatus(codes.Error, "unresolved conflicts")
		log.Warningf("%s: %d unresolved conflicts", g.Name, len(errs))
		return nil, report, errs
	}

	lang := newLanguage(assemble(g, a, results))
	log.Infof("compiled %s: %d states, %d conflicts (%d branching) in %s",
		g.Name, report.States, len(report.Conflicts), report.Branches(), report.Duration)
	return lang, report, nil
}

func assemble(g *model.Grammar, a *automaton, results []stateResult) *Tables {
	t := &Tables{
		Name:          g.Name,
		Digest:        g.Digest,
		Symbols:       g.Symbols,
		Terminals:     g.Terminals,
		TerminalCount: g.TerminalCount,
		SymbolCount:   g.SymbolCount(),
		Start:         g.Start,
		StartRule:     g.StartRule,
		Word:          g.Word,
		Fields:        g.Fields,
		Externals:     g.Externals,
		Supertypes:    g.Supertypes,
		StateCount:    len(a.states),
	}
	for _, p := range g.Productions {
		t.Productions = append(t.Productions, ProductionInfo{
			LHS:     p.LHS,
			Length:  uint16(len(p.RHS)),
			Fields:  p.Fields,
			Aliases: p.Aliases,
			Dynamic: int32(p.Dynamic),
		})
	}

	nt := g.NonterminalCount()
	t.ActionIndex = make([]uint32, len(a.states)*g.TerminalCount)
	t.ActionLists = [][]Action{nil}
	t.Goto = make([]token.StateID, len(a.states)*nt)
	for i := range t.Goto {
		t.Goto[i] = token.NoState
	}
	lists := make(map[string]uint32)
	for s, res := range results {
		for sym, actions := range res.actions {
			key := actionKey(actions)
			idx, ok := lists[key]
			if !ok {
				idx = uint32(len(t.ActionLists))
				lists[key] = idx
				t.ActionLists = append(t.ActionLists, actions)
			}
			t.ActionIndex[s*g.TerminalCount+int(sym)] = idx
		}
		for sym, target := range res.gotos {
			t.Goto[s*nt+int(sym)-g.TerminalCount] = target
		}
	}
	// Number lists by first use so equal grammars give equal tables.
	renumberLists(t)
	return t
}

func actionKey(actions []Action) string {
	var b strings.Builder
	for _, a := range actions {
		fmt.Fprintf(&b, "%d:%d:%d;", a.Kind, a.State, a.Production)
	}
	return b.String()
}

func renumberLists(t *Tables) {
	order := make([]uint32, len(t.ActionLists))
	lists := [][]Action{nil}
	for i, idx := range t.ActionIndex {
		if idx == 0 {
			continue
		}
		if order[idx] == 0 {
			order[idx] = uint32(len(lists))
			lists = append(lists, t.ActionLists[idx])
		}
		t.ActionIndex[i] = order[idx]
	}
	t.ActionLists = lists
}

// Dump writes a readable listing of every state's actions and gotos.
func (l *Language) Dump(w io.Writer) {
	t := l.t
	for s := range t.StateCount {
		fmt.Fprintf(w, "state %d\n", s)
		for sym := range t.TerminalCount {
			actions := l.Actions(token.StateID(s), token.Symbol(sym))
			if len(actions) == 0 {
				continue
			}
			parts := make([]string, len(actions))
			for i, a := range actions {
				switch a.Kind {
				case ActionShift:
					parts[i] = fmt.Sprintf("shift %d", a.State)
				case ActionReduce:
					p := t.Productions[a.Production]
					parts[i] = fmt.Sprintf("reduce %s/%d", l.SymbolName(p.LHS), p.Length)
				case ActionAccept:
					parts[i] = "accept"
				}
			}
			fmt.Fprintf(w, "  %-16s %s\n", l.SymbolName(token.Symbol(sym)), strings.Join(parts, " | "))
		}
		var gotos []string
		for sym := t.TerminalCount; sym < t.SymbolCount; sym++ {
			if target := l.Goto(token.StateID(s), token.Symbol(sym)); target != token.NoState {
				gotos = append(gotos, fmt.Sprintf("%s->%d", l.SymbolName(token.Symbol(sym)), target))
			}
		}
		if len(gotos) > 0 {
			slices.Sort(gotos)
			fmt.Fprintf(w, "  goto %s\n", strings.Join(gotos, " "))
		}
	}
}
