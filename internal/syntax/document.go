package syntax

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// BufferID identifies an editor buffer independently of its contents.
type BufferID string

// Document is one parsed version of a buffer. It is immutable: edits produce
// a new Document with a higher Version.
//
// Nodes of one Document may be walked from several goroutines. tree-sitter
// bindings memoize nodes per tree in an unguarded map, so every call that
// hands out a node goes through mu.
type Document struct {
	Buffer   BufferID
	Version  uint64
	Language string
	Source   []byte

	mu      sync.Mutex
	tree    *sitter.Tree
	grammar *sitter.Language
}

// Parse builds a Document from source text. language is the canonical
// language name recorded on the Document; grammar is its tree-sitter grammar.
func Parse(ctx context.Context, buf BufferID, version uint64, language string, grammar *sitter.Language, src []byte) (*Document, error) {
	if grammar == nil {
		return nil, fmt.Errorf("syntax: no grammar for %q", language)
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse %s: %w", buf, err)
	}
	return &Document{
		Buffer:   buf,
		Version:  version,
		Language: language,
		Source:   src,
		tree:     tree,
		grammar:  grammar,
	}, nil
}

// Root returns the tree's root node.
func (d *Document) Root() Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	return wrap(d.tree.RootNode(), d)
}

// Grammar returns the tree-sitter grammar the document was parsed with.
func (d *Document) Grammar() *sitter.Language {
	return d.grammar
}

// Walk runs fn with the tree held exclusively and passes it the raw root.
// fn must not call Node methods of this Document; it may wrap raw nodes with
// NodeOf.
func (d *Document) Walk(fn func(root *sitter.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.tree.RootNode())
}

// NodeSpanning returns the smallest named node covering [start, end). A caret
// at offset p is the empty range [p, p) and selects the node containing the
// byte at p; a caret at the end of the source selects the root. Offsets past
// the end of the source are clamped.
func (d *Document) NodeSpanning(start, end uint32) Node {
	size := uint32(len(d.Source))
	start, end = min(start, size), min(end, size)
	if end < start {
		start, end = end, start
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.tree.RootNode()
	if n == nil || n.IsNull() {
		return nil
	}
	for {
		next := namedChildCovering(n, start, end)
		if next == nil {
			return wrap(n, d)
		}
		n = next
	}
}

// namedChildCovering returns the named child of n covering [start, end), or
// nil. Children are ordered by position, so the scan stops at the first child
// starting past start.
func namedChildCovering(n *sitter.Node, start, end uint32) *sitter.Node {
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.IsNull() {
			continue
		}
		if c.StartByte() > start {
			return nil
		}
		if covers(c, start, end) {
			return c
		}
	}
	return nil
}

func covers(n *sitter.Node, start, end uint32) bool {
	if start == end {
		return n.StartByte() <= start && start < n.EndByte()
	}
	return n.StartByte() <= start && end <= n.EndByte()
}
