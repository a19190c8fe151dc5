// Package lsp serves parse trees to editors over the Language Server
// Protocol. Documents are kept in memory and reparsed incrementally on
// every change.
package lsp

import (
	"context"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"fusor/internal/engine"
	"fusor/internal/incremental"
	"fusor/internal/tree"
)

var log = commonlog.GetLogger("fusor.lsp")

type document struct {
	text  []byte
	tree  *tree.Tree
	stats engine.Stats
}

// Handler implements the LSP server handlers for one language.
type Handler struct {
	name   string
	parser *engine.Parser

	mu   sync.Mutex
	docs map[protocol.DocumentUri]*document
}

// NewHandler creates a handler parsing every document with p.
func NewHandler(name string, p *engine.Parser) *Handler {
	return &Handler{name: name, parser: p, docs: make(map[protocol.DocumentUri]*document)}
}

// Protocol wires the handler's methods into a glsp handler.
func (h *Handler) Protocol() *protocol.Handler {
	return &protocol.Handler{
		Initialize:                     h.Initialize,
		Initialized:                    h.Initialized,
		Shutdown:                       h.Shutdown,
		SetTrace:                       h.SetTrace,
		TextDocumentDidOpen:            h.TextDocumentDidOpen,
		TextDocumentDidChange:          h.TextDocumentDidChange,
		TextDocumentDidClose:           h.TextDocumentDidClose,
		TextDocumentFoldingRange:       h.TextDocumentFoldingRange,
		TextDocumentSemanticTokensFull: h.TextDocumentSemanticTokensFull,
	}
}

// Initialize responds to the LSP client's initialize request and advertises the server's capabilities
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindIncremental),
			},
			FoldingRangeProvider: true,
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{Name: h.name},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Info("shutdown")
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// TextDocumentDidOpen parses a newly opened document from scratch.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Debugf("opened %s", uri)

	text := []byte(params.TextDocument.Text)
	res, err := h.parser.Parse(context.Background(), engine.Request{Source: text})
	if err != nil {
		return fmt.Errorf("parsing %s: %w", uri, err)
	}

	h.mu.Lock()
	h.docs[uri] = &document{text: text, tree: res.Tree, stats: res.Stats}
	h.mu.Unlock()

	publish(ctx, uri, convertDiagnostics(text, res))
	return nil
}

// TextDocumentDidChange applies the client's edits to the stored text and
// tree and reparses, reusing what the edits left untouched.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	h.mu.Lock()
	doc, ok := h.docs[uri]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("change for unopened document %s", uri)
	}

	text := doc.text
	var edits []tree.Edit
	for _, change := range params.ContentChanges {
		var e tree.Edit
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEvent:
			text, e = applyChange(text, c)
		case protocol.TextDocumentContentChangeEventWhole:
			next := []byte(c.Text)
			e = incremental.Diff(text, next)
			text = next
		default:
			return fmt.Errorf("unsupported content change %T", change)
		}
		edits = append(edits, e)
	}

	res, err := h.parser.Parse(context.Background(), engine.Request{Source: text, OldTree: doc.tree, Edits: edits})
	if err != nil {
		return fmt.Errorf("reparsing %s: %w", uri, err)
	}
	log.Debugf("reparsed %s: reused %d nodes (%d bytes)", uri, res.Stats.Reused, res.Stats.ReusedBytes)

	h.mu.Lock()
	h.docs[uri] = &document{text: text, tree: res.Tree, stats: res.Stats}
	h.mu.Unlock()

	publish(ctx, uri, convertDiagnostics(text, res))
	return nil
}

// applyChange splices one ranged change into text and returns the edit
// describing it.
func applyChange(text []byte, c protocol.TextDocumentContentChangeEvent) ([]byte, tree.Edit) {
	if c.Range == nil {
		next := []byte(c.Text)
		return next, incremental.Diff(text, next)
	}
	start := offsetAt(text, c.Range.Start)
	end := max(offsetAt(text, c.Range.End), start)

	next := make([]byte, 0, len(text)-int(end-start)+len(c.Text))
	next = append(next, text[:start]...)
	next = append(next, c.Text...)
	next = append(next, text[end:]...)

	newEnd := start + uint32(len(c.Text))
	return next, tree.Edit{
		StartByte:   start,
		OldEndByte:  end,
		NewEndByte:  newEnd,
		StartPoint:  incremental.PointAt(text, int(start)),
		OldEndPoint: incremental.PointAt(text, int(end)),
		NewEndPoint: incremental.PointAt(next, int(newEnd)),
	}
}

// TextDocumentDidClose drops the document and clears its diagnostics.
func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	log.Debugf("closed %s", uri)

	h.mu.Lock()
	delete(h.docs, uri)
	h.mu.Unlock()

	publish(ctx, uri, []protocol.Diagnostic{})
	return nil
}

// TextDocumentFoldingRange offers every named node spanning several lines.
func (h *Handler) TextDocumentFoldingRange(ctx *glsp.Context, params *protocol.FoldingRangeParams) ([]protocol.FoldingRange, error) {
	doc, err := h.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}

	ranges := []protocol.FoldingRange{}
	root := doc.tree.RootNode()
	root.Walk(func(n tree.Node) bool {
		if n.Subtree() == root.Subtree() || !n.IsNamed() || n.IsError() {
			return true
		}
		start := positionAt(doc.text, n.StartByte())
		end := positionAt(doc.text, n.EndByte())
		if end.Line > start.Line {
			r := protocol.FoldingRange{StartLine: start.Line, EndLine: end.Line}
			if n.IsExtra() {
				r.Kind = ptrString(string(protocol.FoldingRangeKindComment))
			}
			ranges = append(ranges, r)
		}
		return true
	})
	return ranges, nil
}

// TextDocumentSemanticTokensFull handles semantic token requests for the entire document
func (h *Handler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	doc, err := h.document(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	tokens := collectSemanticTokens(doc.text, doc.tree)
	return &protocol.SemanticTokens{Data: encodeSemanticTokens(tokens)}, nil
}

func (h *Handler) document(uri protocol.DocumentUri) (*document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, ok := h.docs[uri]
	if !ok {
		return nil, fmt.Errorf("unknown document %s", uri)
	}
	return doc, nil
}

// Tree returns the current tree of an open document, or nil.
func (h *Handler) Tree(uri protocol.DocumentUri) *tree.Tree {
	h.mu.Lock()
	defer h.mu.Unlock()
	if doc, ok := h.docs[uri]; ok {
		return doc.tree
	}
	return nil
}

// Stats returns the statistics of the last parse of an open document.
func (h *Handler) Stats(uri protocol.DocumentUri) (engine.Stats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	doc, ok := h.docs[uri]
	if !ok {
		return engine.Stats{}, false
	}
	return doc.stats, true
}

func publish(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool {
	return &b
}

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
