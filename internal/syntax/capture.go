package syntax

import "strings"

// Capture names understood by the resolver, after normalization.
const (
	CaptureScope               = "scope"
	CaptureDefinitionVar       = "definition.var"
	CaptureDefinitionParameter = "definition.parameter"
	CaptureReference           = "reference"
)

// Capture is one (node, capture-name) pair produced by a query.
type Capture struct {
	Node Node
	Name string
}

// NormalizeCaptureName strips the "local." prefix used by newer query packs so
// that "local.definition.var" and "definition.var" classify the same way.
func NormalizeCaptureName(name string) string {
	return strings.TrimPrefix(name, "local.")
}

// IsDefinition reports whether a normalized capture name introduces a local
// binding the resolver tracks.
func IsDefinition(name string) bool {
	return name == CaptureDefinitionVar || name == CaptureDefinitionParameter
}
