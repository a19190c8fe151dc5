// Package engine runs compiled parse tables over source text. It is a
// generalized LR parser: conflicting actions fork the stack and the forks
// advance in lock-step, one token at a time, until they merge or die. Syntax
// errors are recovered by wrapping the offending input in ERROR nodes, so a
// parse always produces a tree covering the whole document.
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fusor/internal/incremental"
	"fusor/internal/lex"
	"fusor/internal/metrics"
	"fusor/internal/scanner"
	"fusor/internal/table"
	"fusor/internal/tree"
	"fusor/token"
)

// DefaultMaxStacks bounds the number of stack versions alive at once.
const DefaultMaxStacks = 16

var (
	log    = commonlog.GetLogger("fusor.engine")
	tracer = otel.Tracer("fusor.engine")
)

// ErrNoLanguage is returned when a parser is created without a language.
var ErrNoLanguage = stderrors.New("no language")

// Status tells whether a parse ran to the end of input.
type Status int

const (
	StatusOK Status = iota
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Request describes one parse. Source is used unless Read is set, in which
// case the document is read in chunks starting at offset 0 until Read
// returns an empty slice.
//
// OldTree is the tree of the previous version of the document. Edits, if
// any, are applied to it first; alternatively the caller may pass a tree it
// already edited.
type Request struct {
	Source  []byte
	Read    func(offset uint32) []byte
	OldTree *tree.Tree
	Edits   []tree.Edit
}

func (r Request) source() []byte {
	if r.Read == nil {
		return r.Source
	}
	var buf []byte
	for {
		chunk := r.Read(uint32(len(buf)))
		if len(chunk) == 0 {
			return buf
		}
		buf = append(buf, chunk...)
	}
}

// Stats counts what a parse did.
type Stats struct {
	Tokens      int
	Reused      int
	ReusedBytes uint32
	Recoveries  int
	Forks       int
	PeakStacks  int
	Duration    time.Duration
}

// Result is the outcome of a parse. Errors lists the ERROR nodes of the
// tree; Diagnostics holds the *errors.ScanError and *errors.SyntaxError
// values reported along the way.
type Result struct {
	Tree        *tree.Tree
	Errors      []tree.ErrorLocation
	Diagnostics []error
	Status      Status
	Stats       Stats
}

// Parser parses documents of one language. It holds no per-parse state and
// may be used from several goroutines at once.
type Parser struct {
	lang      *table.Language
	scanner   scanner.Scanner
	maxStacks int
	reuse     bool
}

type Option func(*Parser)

// WithScanner sets the external scanner. It is required for languages that
// declare externals.
func WithScanner(s scanner.Scanner) Option {
	return func(p *Parser) { p.scanner = s }
}

// WithMaxStacks bounds the number of stack versions kept alive.
func WithMaxStacks(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxStacks = n
		}
	}
}

// WithReuse turns subtree reuse from old trees on or off. It is on by
// default.
func WithReuse(on bool) Option {
	return func(p *Parser) { p.reuse = on }
}

func NewParser(lang *table.Language, opts ...Option) (*Parser, error) {
	if lang == nil {
		return nil, ErrNoLanguage
	}
	p := &Parser{lang: lang, maxStacks: DefaultMaxStacks, reuse: true}
	for _, opt := range opts {
		opt(p)
	}
	if len(lang.Externals()) > 0 && p.scanner == nil {
		return nil, fmt.Errorf("language %s declares %d externals but no scanner was given", lang.Name(), len(lang.Externals()))
	}
	return p, nil
}

func (p *Parser) Language() *table.Language { return p.lang }

// Parse parses a document. Syntax errors never fail a parse; the error
// return is reserved for invalid requests. When ctx is cancelled the result
// holds the tree built so far and StatusCancelled.
func (p *Parser) Parse(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Parse",
		trace.WithAttributes(attribute.String("language", p.lang.Name())),
	)
	defer span.End()
	started := time.Now()

	lexer, err := p.lang.Lexer()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("building lexer for %s: %w", p.lang.Name(), err)
	}
	src := req.source()
	ps := &parse{
		lang:      p.lang,
		lexer:     lexer,
		scanner:   p.scanner,
		src:       src,
		maxStacks: p.maxStacks,
		reported:  make(map[uint32]bool),
	}
	if req.OldTree != nil {
		old, err := incremental.Apply(req.OldTree, req.Edits...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if p.reuse {
			ps.index = incremental.NewIndex(old)
		}
	}

	root, status := ps.run(ctx)
	t := tree.New(root, src, p.lang)
	res := &Result{
		Tree:        t,
		Errors:      t.Errors(),
		Diagnostics: ps.diags,
		Status:      status,
		Stats:       ps.stats,
	}
	res.Stats.Duration = time.Since(started)

	name := p.lang.Name()
	metrics.ParseDuration.WithLabelValues(name, status.String()).Observe(res.Stats.Duration.Seconds())
	metrics.ParsedBytes.WithLabelValues(name).Add(float64(len(src)))
	metrics.ReusedNodes.WithLabelValues(name).Add(float64(res.Stats.Reused))
	metrics.ErrorNodes.WithLabelValues(name).Add(float64(len(res.Errors)))
	metrics.PeakStacks.WithLabelValues(name).Observe(float64(res.Stats.PeakStacks))
	span.SetAttributes(
		attribute.Int("bytes", len(src)),
		attribute.Int("tokens", res.Stats.Tokens),
		attribute.Int("reused", res.Stats.Reused),
		attribute.Int("errors", len(res.Errors)),
		attribute.String("status", status.String()),
	)
	log.Debugf("parsed %d bytes of %s: %d tokens, %d reused, %d errors, %s",
		len(src), name, res.Stats.Tokens, res.Stats.Reused, len(res.Errors), status)
	return res, nil
}

// parse is the state of one Parse call.
type parse struct {
	lang      *table.Language
	lexer     *lex.Lexer
	scanner   scanner.Scanner
	src       []byte
	index     *incremental.Index
	maxStacks int
	state     scanner.State
	lines     []uint32

	emptyPos     uint32
	emptyCount   int
	recoverPos   uint32
	recoverCount int
	reported     map[uint32]bool
	// recovering is set from a recovery until the next token is shifted.
	// Nodes built meanwhile are fragile and nothing is reused.
	recovering bool

	diags []error
	stats Stats
}

type outcome int

const (
	advanced outcome = iota
	accepted
	failed
)

func (p *parse) run(ctx context.Context) (*tree.Subtree, Status) {
	heads := []head{newHead()}
	pos := uint32(0)
	for {
		if ctx.Err() != nil {
			return p.partial(best(heads), pos), StatusCancelled
		}
		tok := p.lex(heads, pos)
		p.stats.Tokens++
		if tok.Extra {
			fragile := len(heads) > 1 || p.recovering
			for i := range heads {
				state := heads[i].state()
				heads[i].push(state, p.leaf(tok, state, true, fragile), tok.Start)
			}
			pos = tok.End
			continue
		}

		next, end, out := p.step(heads, tok)
		switch out {
		case accepted:
			return p.accept(next[0]), StatusOK
		case advanced:
			heads, pos = next, end
			p.recovering = false
			p.stats.PeakStacks = max(p.stats.PeakStacks, len(heads))
		case failed:
			h, end, root := p.recover(best(next), tok, pos)
			if root != nil {
				return root, StatusOK
			}
			heads, pos = []head{h}, end
			p.recovering = true
		}
	}
}

// reductionBudget bounds the reductions performed for one token per live
// stack.
const reductionBudget = 1024

type pendingShift struct {
	h     head
	state token.StateID
}

// step feeds one token to every head. It returns the heads after the
// token was shifted, the single accepting head, or the heads that failed.
func (p *parse) step(heads []head, tok token.Token) ([]head, uint32, outcome) {
	work := append([]head(nil), heads...)
	fragile := len(heads) > 1 || p.recovering
	budget := reductionBudget * len(heads)
	var shifts []pendingShift
	var done, dead []head
	for len(work) > 0 {
		h := work[len(work)-1]
		work = work[:len(work)-1]
		actions := p.lang.Actions(h.state(), tok.Symbol)
		if len(actions) == 0 {
			dead = append(dead, h)
			continue
		}
		if len(actions) > 1 {
			fragile = true
			p.stats.Forks++
		}
		for i, a := range actions {
			next := h
			if len(actions) > 1 {
				next = h.fork(i)
			}
			switch a.Kind {
			case table.ActionShift:
				shifts = append(shifts, pendingShift{h: next, state: a.State})
			case table.ActionReduce:
				if budget == 0 {
					continue
				}
				budget--
				if r, ok := p.reduce(next, a.Production, tok, fragile); ok {
					work = append(work, r)
				}
			case table.ActionAccept:
				done = append(done, next)
			}
		}
	}

	if len(done) > 0 {
		return []head{best(done)}, tok.End, accepted
	}
	if len(shifts) == 0 {
		if len(dead) == 0 {
			dead = heads
		}
		return dead, tok.Start, failed
	}
	if len(shifts) == 1 && !fragile {
		if h, end, ok := p.reuse(shifts[0].h, tok); ok {
			return []head{h}, end, advanced
		}
	}
	out := make([]head, 0, len(shifts))
	for _, s := range shifts {
		h := s.h
		h.push(s.state, p.leaf(tok, h.state(), false, fragile), tok.Start)
		out = append(out, h)
	}
	return merge(out, p.maxStacks), tok.End, advanced
}

func (p *parse) leaf(tok token.Token, state token.StateID, extra, fragile bool) *tree.Subtree {
	var lookahead uint32
	if tok.Examined > tok.End {
		lookahead = tok.Examined - tok.End
	}
	return tree.NewLeaf(tree.Leaf{
		Symbol:      tok.Symbol,
		ParseSymbol: tok.Symbol,
		Size:        tok.Len(),
		Lookahead:   lookahead,
		PreState:    state,
		Extra:       extra,
		Error:       tok.Unexpected,
		Fragile:     fragile || tok.Recovery,
		ExtStart:    tok.ScanBefore,
		ExtEnd:      tok.ScanAfter,
	})
}

// reduce pops the children of a production and pushes the new node.
// Extras on top of the stack stay outside the node.
func (p *parse) reduce(h head, id uint16, la token.Token, fragile bool) (head, bool) {
	info := p.lang.Production(id)

	n := h.top
	var trailing []*stackNode
	for n.isExtra() {
		trailing = append(trailing, n)
		n = n.prev
	}
	popped := make([]*stackNode, 0, info.Length)
	for remaining := int(info.Length); remaining > 0; n = n.prev {
		if n.subtree == nil {
			return h, false
		}
		popped = append(popped, n)
		if !n.isExtra() {
			remaining--
		}
	}
	below := n

	var start, end uint32
	var extStart, extEnd []byte
	if len(popped) == 0 {
		start = below.end()
		end = start
		if below.subtree != nil {
			extStart = below.subtree.ExtEnd()
			extEnd = extStart
		}
	} else {
		start = popped[len(popped)-1].start
		end = popped[0].end()
	}

	children := make([]tree.Child, 0, len(popped))
	idx := 0
	for i := len(popped) - 1; i >= 0; i-- {
		e := popped[i]
		child := tree.Child{Offset: e.start - start, Node: e.subtree}
		if !e.isExtra() {
			if idx < len(info.Aliases) && info.Aliases[idx] != 0 {
				child.Node = child.Node.WithSymbol(info.Aliases[idx])
			}
			if idx < len(info.Fields) {
				child.Field = info.Fields[idx]
			}
			idx++
		}
		children = append(children, child)
	}

	var lookahead uint32
	if la.Examined > end {
		lookahead = la.Examined - end
	}
	node := tree.NewInternal(tree.Internal{
		Symbol:      info.LHS,
		ParseSymbol: info.LHS,
		PreState:    below.state,
		Children:    children,
		Lookahead:   lookahead,
		Fragile:     fragile,
		DynamicPrec: info.Dynamic,
		ExtStart:    extStart,
		ExtEnd:      extEnd,
	})
	next := p.lang.Goto(below.state, info.LHS)
	if next == token.NoState {
		return h, false
	}
	h.top = below
	h.push(next, node, start)
	for i := len(trailing) - 1; i >= 0; i-- {
		h.push(next, trailing[i].subtree, trailing[i].start)
	}
	h.dynPrec += info.Dynamic
	return h, true
}

// reuse pushes the widest subtree of the old tree that starts at the
// token and was built from the current parse state and scanner state.
func (p *parse) reuse(h head, tok token.Token) (head, uint32, bool) {
	if p.index == nil {
		return h, 0, false
	}
	state := h.state()
	for _, cand := range p.index.At(tok.Start) {
		if cand.PreState() != state || !scanner.Equal(cand.ExtStart(), tok.ScanBefore) {
			continue
		}
		first := cand.FirstLeaf()
		if first.ParseSymbol() != tok.Symbol || first.Size() != tok.Len() {
			continue
		}
		next := p.lang.Next(state, cand.ParseSymbol())
		if next == token.NoState {
			continue
		}
		sub := cand.WithSymbol(cand.ParseSymbol())
		h.push(next, sub, tok.Start)
		p.state.Restore(cand.ExtEnd())
		p.recoverCount = 0
		p.stats.Reused++
		p.stats.ReusedBytes += cand.Size()
		return h, tok.Start + cand.Size(), true
	}
	return h, 0, false
}

// accept builds the root. Extras around the start rule become children
// of the root, which always spans the whole document.
func (p *parse) accept(h head) *tree.Subtree {
	startRule := p.lang.StartRule()
	var children []tree.Child
	for _, e := range h.top.entries() {
		if !e.isExtra() && e.subtree.ParseSymbol() == startRule {
			for _, c := range e.subtree.Children() {
				children = append(children, tree.Child{Offset: e.start + c.Offset, Field: c.Field, Node: c.Node})
			}
			continue
		}
		children = append(children, tree.Child{Offset: e.start, Node: e.subtree})
	}
	return tree.NewInternal(tree.Internal{
		Symbol:      startRule,
		ParseSymbol: startRule,
		Children:    children,
		Size:        uint32(len(p.src)),
	})
}

// partial wraps what a cancelled parse has built so far.
func (p *parse) partial(h head, pos uint32) *tree.Subtree {
	var children []tree.Child
	for _, e := range h.top.entries() {
		children = append(children, tree.Child{Offset: e.start, Node: e.subtree})
	}
	return tree.NewInternal(tree.Internal{
		Symbol:      p.lang.StartRule(),
		ParseSymbol: p.lang.StartRule(),
		Children:    children,
		Size:        pos,
	})
}
