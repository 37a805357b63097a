// Package resolve maps a reference under the cursor to the local
// definitions that bind it.
//
// Resolution is lexical. The scopes containing the reference are tried from
// innermost to outermost and the first scope with any match wins. A
// definition matches a scope when it lies inside the scope, has the same
// text as the reference, and its own nearest enclosing scope is an ancestor
// of the reference. The last condition keeps a definition in a sibling
// scope from binding a reference it cannot reach.
package resolve

import (
	"bytes"
	"context"
	"sort"

	"github.com/jward/scopelight/internal/syntax"
)

// Resolver resolves references against one classified capture set. It
// memoizes definition scopes and is not safe for concurrent use; build one
// per highlight pass.
type Resolver struct {
	caps     *Captures
	language string
	exclude  Excluder

	definingScope map[syntax.NodeID]syntax.Node
}

// New creates a Resolver. exclude may be nil.
func New(caps *Captures, language string, exclude Excluder) *Resolver {
	return &Resolver{
		caps:          caps,
		language:      language,
		exclude:       exclude,
		definingScope: make(map[syntax.NodeID]syntax.Node),
	}
}

// Captures returns the classified captures the resolver works from.
func (r *Resolver) Captures() *Captures { return r.caps }

// Resolve returns the definitions bound to the reference node, sorted by
// position. The result is empty, never nil, when node is not a reference, is
// itself a definition, is excluded for the language, or has no dominating
// definition.
func (r *Resolver) Resolve(ctx context.Context, node syntax.Node) []syntax.Node {
	if !r.isUse(ctx, node) {
		return []syntax.Node{}
	}

	ancestors := make(map[syntax.NodeID]bool)
	for _, a := range syntax.Ancestors(node) {
		ancestors[syntax.ID(a)] = true
	}

	for _, scope := range r.ContainingScopes(node) {
		if matches := r.matchIn(scope, node, ancestors); len(matches) > 0 {
			return matches
		}
	}
	return []syntax.Node{}
}

// Occurrences returns the binding node set for node: the definitions it
// resolves to plus every other reference in the file resolving to any of
// them. When node is itself a definition it stands for its own binding.
// The result is sorted by position and empty, never nil, when nothing binds.
func (r *Resolver) Occurrences(ctx context.Context, node syntax.Node) []syntax.Node {
	var targets []syntax.Node
	switch {
	case r.caps.IsDefinition(node):
		targets = []syntax.Node{node}
	default:
		targets = r.Resolve(ctx, node)
	}
	if len(targets) == 0 {
		return []syntax.Node{}
	}

	targetIDs := make(map[syntax.NodeID]bool, len(targets))
	for _, t := range targets {
		targetIDs[syntax.ID(t)] = true
	}

	out := append([]syntax.Node(nil), targets...)
	text := node.Text()
	for _, ref := range r.caps.References {
		if targetIDs[syntax.ID(ref)] || !bytes.Equal(ref.Text(), text) {
			continue
		}
		for _, def := range r.Resolve(ctx, ref) {
			if targetIDs[syntax.ID(def)] {
				out = append(out, ref)
				break
			}
		}
	}
	sortByPosition(out)
	return out
}

// ContainingScopes returns every captured scope whose span includes node,
// innermost (smallest) first.
func (r *Resolver) ContainingScopes(node syntax.Node) []syntax.Node {
	var out []syntax.Node
	for _, scope := range r.caps.Scopes {
		if syntax.Contains(scope, node) {
			out = append(out, scope)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return syntax.Size(out[i]) < syntax.Size(out[j])
	})
	return out
}

// isUse reports whether node is a reference the resolver should handle.
func (r *Resolver) isUse(ctx context.Context, node syntax.Node) bool {
	if node == nil || !r.caps.IsReference(node) || r.caps.IsDefinition(node) {
		return false
	}
	if r.exclude != nil && r.exclude.Excluded(ctx, r.language, node) {
		return false
	}
	return true
}

// matchIn returns the definitions inside scope that bind ref.
func (r *Resolver) matchIn(scope, ref syntax.Node, ancestors map[syntax.NodeID]bool) []syntax.Node {
	defs := r.caps.Definitions
	start, end := scope.StartByte(), scope.EndByte()
	text := ref.Text()

	var out []syntax.Node
	i := sort.Search(len(defs), func(i int) bool { return defs[i].StartByte() >= start })
	for ; i < len(defs) && defs[i].StartByte() < end; i++ {
		def := defs[i]
		if def.EndByte() > end || !bytes.Equal(def.Text(), text) {
			continue
		}
		ds := r.scopeOf(def)
		if ds == nil || !ancestors[syntax.ID(ds)] {
			continue
		}
		out = append(out, def)
	}
	return out
}

// scopeOf returns the nearest ancestor of def captured as a scope.
func (r *Resolver) scopeOf(def syntax.Node) syntax.Node {
	id := syntax.ID(def)
	if s, ok := r.definingScope[id]; ok {
		return s
	}
	var found syntax.Node
	for p := def.Parent(); p != nil; p = p.Parent() {
		if r.caps.IsScope(p) {
			found = p
			break
		}
	}
	r.definingScope[id] = found
	return found
}

func sortByPosition(nodes []syntax.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].StartByte() != nodes[j].StartByte() {
			return nodes[i].StartByte() < nodes[j].StartByte()
		}
		return nodes[i].EndByte() < nodes[j].EndByte()
	})
}
