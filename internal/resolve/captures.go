package resolve

import (
	"sort"

	"github.com/jward/scopelight/internal/syntax"
)

// Captures is the query output classified into scopes, definitions and
// references. Definitions are sorted by start offset so the resolver can
// binary-search the ones inside a scope.
type Captures struct {
	Scopes      []syntax.Node
	Definitions []syntax.Node
	References  []syntax.Node

	scopes      map[syntax.NodeID]bool
	definitions map[syntax.NodeID]bool
	references  map[syntax.NodeID]bool
}

// Classify sorts captures by normalized name. Capture names outside scope,
// definition.var, definition.parameter and reference are ignored. A node
// captured twice under the same class is kept once.
func Classify(captures []syntax.Capture) *Captures {
	c := &Captures{
		scopes:      make(map[syntax.NodeID]bool),
		definitions: make(map[syntax.NodeID]bool),
		references:  make(map[syntax.NodeID]bool),
	}
	for _, capture := range captures {
		id := syntax.ID(capture.Node)
		name := syntax.NormalizeCaptureName(capture.Name)
		switch {
		case name == syntax.CaptureScope:
			if !c.scopes[id] {
				c.scopes[id] = true
				c.Scopes = append(c.Scopes, capture.Node)
			}
		case syntax.IsDefinition(name):
			if !c.definitions[id] {
				c.definitions[id] = true
				c.Definitions = append(c.Definitions, capture.Node)
			}
		case name == syntax.CaptureReference:
			if !c.references[id] {
				c.references[id] = true
				c.References = append(c.References, capture.Node)
			}
		}
	}
	sort.SliceStable(c.Definitions, func(i, j int) bool {
		return c.Definitions[i].StartByte() < c.Definitions[j].StartByte()
	})
	return c
}

// IsScope reports whether n was captured as a scope.
func (c *Captures) IsScope(n syntax.Node) bool { return c.scopes[syntax.ID(n)] }

// IsDefinition reports whether n was captured as a definition.
func (c *Captures) IsDefinition(n syntax.Node) bool { return c.definitions[syntax.ID(n)] }

// IsReference reports whether n was captured as a reference.
func (c *Captures) IsReference(n syntax.Node) bool { return c.references[syntax.ID(n)] }
