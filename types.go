package scopelight

import (
	"github.com/jward/scopelight/internal/callsite"
	"github.com/jward/scopelight/internal/resolve"
	"github.com/jward/scopelight/internal/runtime"
	"github.com/jward/scopelight/internal/syntax"
)

// Public aliases for internal types that appear in the Engine API. These
// are Go type aliases (=), so no conversion is needed between them.

type Document = syntax.Document
type BufferID = syntax.BufferID
type Node = syntax.Node
type Capture = syntax.Capture
type ProbeOutcome = runtime.ProbeOutcome
type ExclusionRule = resolve.Rule
type CallForms = callsite.Forms

// Region is a half-open byte range [Start, End) in a buffer.
type Region struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Empty reports whether the region covers no bytes.
func (r Region) Empty() bool { return r.End <= r.Start }

// RegionOf returns the byte span of n.
func RegionOf(n Node) Region {
	return Region{Start: n.StartByte(), End: n.EndByte()}
}

func regionOfSpan(s callsite.Span) Region {
	return Region{Start: s.Start, End: s.End}
}

// Selection is an editor selection: A is the anchor, B the moving end. A
// caret is a selection with A == B; a caret at offset p sits before byte p.
type Selection struct {
	A uint32 `json:"a"`
	B uint32 `json:"b"`
}

// Caret returns the empty selection at offset p.
func Caret(p uint32) Selection { return Selection{A: p, B: p} }

// Empty reports whether the selection is a bare caret.
func (s Selection) Empty() bool { return s.A == s.B }

// Begin returns the smaller end of the selection.
func (s Selection) Begin() uint32 { return min(s.A, s.B) }

// End returns the larger end of the selection.
func (s Selection) End() uint32 { return max(s.A, s.B) }

// Layer names one independently rendered set of regions.
type Layer string

const (
	// LayerCaller marks the callee name of the call whose arguments hold
	// the caret.
	LayerCaller Layer = "caller"
	// LayerArgumentParens marks the delimiters of the argument list when the
	// caret is on a callee name.
	LayerArgumentParens Layer = "argument-parens"
	// LayerArgumentContents marks what lies between those delimiters.
	LayerArgumentContents Layer = "argument-contents"
	// LayerReferences marks the definitions a reference under the caret
	// resolves to.
	LayerReferences Layer = "references"
)

// Layers lists every layer in rendering order.
var Layers = []Layer{LayerCaller, LayerArgumentParens, LayerArgumentContents, LayerReferences}

// Highlights is the output of one highlight pass.
type Highlights struct {
	Caller           []Region `json:"caller"`
	ArgumentParens   []Region `json:"argument_parens"`
	ArgumentContents []Region `json:"argument_contents"`
	References       []Region `json:"references"`
}

// Layer returns the regions for l.
func (h Highlights) Layer(l Layer) []Region {
	switch l {
	case LayerCaller:
		return h.Caller
	case LayerArgumentParens:
		return h.ArgumentParens
	case LayerArgumentContents:
		return h.ArgumentContents
	case LayerReferences:
		return h.References
	}
	return nil
}

// OccurrenceKind distinguishes binding sites from uses.
type OccurrenceKind int

const (
	OccurrenceRead OccurrenceKind = iota
	OccurrenceWrite
)

func (k OccurrenceKind) String() string {
	if k == OccurrenceWrite {
		return "write"
	}
	return "read"
}

// Occurrence is one node of a binding: a definition (write) or a reference
// resolving to it (read).
type Occurrence struct {
	Region Region         `json:"region"`
	Kind   OccurrenceKind `json:"kind"`
}
