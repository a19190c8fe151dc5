package engine

import (
	"slices"

	"fusor/internal/model"
	"fusor/internal/tree"
	"fusor/token"
)

// maxRecoveriesPerPosition is the number of times recovery may pop the
// stack without consuming input before it has to skip tokens.
const maxRecoveriesPerPosition = 3

// recover repairs a stack that has no action for tok. It looks for the
// fewest skipped tokens k and then the shallowest pop depth d such that the
// state d entries down can continue with the token after the skipped ones.
// The popped subtrees and skipped tokens become an ERROR extra. If nothing
// can continue even at end of input, the returned root is an ERROR node
// covering the document.
func (p *parse) recover(h head, tok token.Token, pos uint32) (head, uint32, *tree.Subtree) {
	if pos == p.recoverPos && p.recoverCount > 0 {
		p.recoverCount++
	} else {
		p.recoverPos, p.recoverCount = pos, 1
		p.syntaxError(tok)
	}
	force := p.recoverCount > maxRecoveriesPerPosition
	p.stats.Recoveries++
	h.errors++

	var skipped []token.Token
	var resume model.TerminalSet
	cur := tok
	depth := -1
	for {
		if !cur.Extra && (len(skipped) > 0 || !force) {
			minDepth := 1
			if len(skipped) > 0 {
				minDepth = 0
			}
			if d, ok := p.viable(h, cur.Symbol, minDepth); ok {
				depth = d
				break
			}
		}
		if cur.Symbol == token.EOF {
			log.Debugf("no recovery at %d, wrapping the document in an error", pos)
			return h, 0, p.rootError(h, skipped)
		}
		skipped = append(skipped, cur)
		if resume == nil {
			resume = p.recoverySet([]head{h})
		}
		cur = p.lexer.Recover(p.src, cur.End, resume)
		if cur.Unexpected {
			p.scanError(cur)
		}
	}

	n := h.top
	var popped []*stackNode
	for range depth {
		popped = append(popped, n)
		n = n.prev
	}
	slices.Reverse(popped)

	var items []tree.Child
	for _, e := range popped {
		if e.subtree.IsError() && e.isExtra() && e.subtree.ChildCount() > 0 {
			for _, c := range e.subtree.Children() {
				items = append(items, tree.Child{Offset: e.start + c.Offset, Node: c.Node})
			}
			continue
		}
		items = append(items, tree.Child{Offset: e.start, Node: e.subtree})
	}
	for _, t := range skipped {
		items = append(items, tree.Child{Offset: t.Start, Node: p.leaf(t, n.state, t.Extra, false)})
	}
	start := items[0].Offset
	for i := range items {
		items[i].Offset -= start
	}
	node := tree.NewInternal(tree.Internal{
		Symbol:      token.Error,
		ParseSymbol: token.Error,
		PreState:    n.state,
		Children:    items,
		Extra:       true,
		Error:       true,
	})
	h.top = n
	h.push(n.state, node, start)

	next := pos
	if len(skipped) > 0 {
		next = skipped[len(skipped)-1].End
	} else {
		// The token is lexed again in the recovered state.
		p.state.Restore(tok.ScanBefore)
	}
	log.Debugf("recovered at %d: popped %d, skipped %d", pos, depth, len(skipped))
	return h, next, nil
}

// viable returns the smallest depth of at least minDepth whose state has
// an action for sym.
func (p *parse) viable(h head, sym token.Symbol, minDepth int) (int, bool) {
	d := 0
	for n := h.top; n != nil; n = n.prev {
		if d >= minDepth && p.lang.HasAction(n.state, sym) {
			return d, true
		}
		if n.subtree == nil {
			break
		}
		d++
	}
	return 0, false
}

// rootError covers the whole document with an ERROR node holding the stack
// and every remaining token.
func (p *parse) rootError(h head, skipped []token.Token) *tree.Subtree {
	var children []tree.Child
	for _, e := range h.top.entries() {
		children = append(children, tree.Child{Offset: e.start, Node: e.subtree})
	}
	for _, t := range skipped {
		children = append(children, tree.Child{Offset: t.Start, Node: p.leaf(t, 0, t.Extra, false)})
	}
	return tree.NewInternal(tree.Internal{
		Symbol:      token.Error,
		ParseSymbol: token.Error,
		Children:    children,
		Size:        uint32(len(p.src)),
		Error:       true,
	})
}
