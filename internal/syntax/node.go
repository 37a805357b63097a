// Package syntax is a read-only view over tree-sitter concrete syntax trees.
//
// Nodes are compared by identity: a node's span and type never change within
// one tree version, so (start, end, type) names it uniquely for the lifetime
// of a Document. Callers should use ID, Same and Contains rather than
// comparing Node values directly.
package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Node is a single syntax node. Optional accessors return nil when the
// requested node does not exist.
type Node interface {
	// Type is the grammar's node type tag, e.g. "call" or "identifier".
	Type() string
	// Kind classifies the type tag into the forms the core treats specially.
	Kind() Kind
	StartByte() uint32
	EndByte() uint32
	// Parent returns nil for the root node.
	Parent() Node
	// ChildByField returns nil when the field is absent.
	ChildByField(name string) Node
	// Text returns the source bytes covered by the node.
	Text() []byte
}

// NodeID is the stable identity of a node within one tree version.
type NodeID struct {
	Start uint32
	End   uint32
	Type  string
}

// ID returns the identity of n.
func ID(n Node) NodeID {
	return NodeID{Start: n.StartByte(), End: n.EndByte(), Type: n.Type()}
}

// Same reports whether a and b denote the same node. Nil nodes are never the same.
func Same(a, b Node) bool {
	if a == nil || b == nil {
		return false
	}
	return ID(a) == ID(b)
}

// Contains reports whether outer's span includes inner's span.
func Contains(outer, inner Node) bool {
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// Size is the byte length of n's span.
func Size(n Node) uint32 {
	return n.EndByte() - n.StartByte()
}

// Ancestors returns every enclosing node of n, innermost first. n itself is
// not included.
func Ancestors(n Node) []Node {
	var out []Node
	for p := n.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// UpwardsUntil walks from n (inclusive) towards the root and returns the
// first node satisfying pred, or nil.
func UpwardsUntil(n Node, pred func(Node) bool) Node {
	for ; n != nil; n = n.Parent() {
		if pred(n) {
			return n
		}
	}
	return nil
}

// tsNode adapts a tree-sitter node to Node. doc supplies the source buffer.
type tsNode struct {
	n   *sitter.Node
	doc *Document
}

func wrap(n *sitter.Node, doc *Document) Node {
	if n == nil || n.IsNull() {
		return nil
	}
	return tsNode{n: n, doc: doc}
}

func (t tsNode) Type() string      { return t.n.Type() }
func (t tsNode) Kind() Kind        { return KindOf(t.n.Type()) }
func (t tsNode) StartByte() uint32 { return t.n.StartByte() }
func (t tsNode) EndByte() uint32   { return t.n.EndByte() }

func (t tsNode) Parent() Node {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	return wrap(t.n.Parent(), t.doc)
}

func (t tsNode) ChildByField(name string) Node {
	t.doc.mu.Lock()
	defer t.doc.mu.Unlock()
	return wrap(t.n.ChildByFieldName(name), t.doc)
}

func (t tsNode) Text() []byte {
	src := t.doc.Source
	start, end := t.n.StartByte(), t.n.EndByte()
	if int(end) > len(src) || start > end {
		return nil
	}
	return src[start:end]
}

func (t tsNode) String() string {
	return t.n.Type() + "@" + string(t.Text())
}

// NodeOf wraps a tree-sitter node belonging to doc's tree.
func NodeOf(n *sitter.Node, doc *Document) Node {
	return wrap(n, doc)
}
