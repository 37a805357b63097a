// Package callsite finds the call expression around a caret and the parts of
// it an editor highlights: the callee name and the argument list.
package callsite

import (
	"github.com/jward/scopelight/internal/syntax"
)

// Span is a half-open byte range [Start, End).
type Span struct {
	Start, End uint32
}

// Empty reports whether the span covers no bytes.
func (s Span) Empty() bool { return s.End <= s.Start }

func spanOf(n syntax.Node) Span {
	return Span{Start: n.StartByte(), End: n.EndByte()}
}

// Forms describes how call nodes are shaped across grammars. Call and
// constructor node types come from syntax.KindOf.
type Forms struct {
	// CalleeFields are tried in order on a call node; the first present
	// field is the callee expression.
	CalleeFields []string

	// MemberName maps member-access node types to the field holding the
	// trailing name, e.g. "attribute" -> "attribute" for obj.name.
	MemberName map[string]string

	// ArgumentsField names the argument list field on a call node.
	ArgumentsField string
}

// DefaultForms covers the bundled grammars.
func DefaultForms() Forms {
	return Forms{
		CalleeFields: []string{"function", "constructor", "method", "name", "type"},
		MemberName: map[string]string{
			"attribute":            "attribute", // python
			"member_expression":    "property",  // javascript, typescript
			"selector_expression":  "field",     // go
			"field_expression":     "field",     // rust, c, cpp
			"scoped_identifier":    "name",      // rust
			"qualified_identifier": "name",      // cpp
		},
		ArgumentsField: "arguments",
	}
}

// Locator answers caller and argument questions for a caret.
type Locator struct {
	forms Forms
}

// New creates a Locator. A zero Forms uses DefaultForms.
func New(forms Forms) *Locator {
	if len(forms.CalleeFields) == 0 {
		forms = DefaultForms()
	}
	return &Locator{forms: forms}
}

// Arguments is the argument list of a located call.
type Arguments struct {
	Call   syntax.Node
	Callee syntax.Node
	List   syntax.Node

	// Delimited is false for argument lists without enclosing brackets,
	// such as Ruby command calls. Open and Close are zero then and Contents
	// is the whole list.
	Delimited bool
	Open      Span
	Close     Span
	Contents  Span
}

// Caller returns the callee name of the innermost call whose argument list
// holds caret strictly inside its delimiters, or nil. node is the node
// spanning the caret.
//
// A caret at offset p sits before byte p, so for a list spanning [s, e) the
// interior carets are s+1 through e-1.
func (l *Locator) Caller(node syntax.Node, caret uint32) syntax.Node {
	call := syntax.UpwardsUntil(node, func(n syntax.Node) bool {
		if !isCall(n) {
			return false
		}
		list := n.ChildByField(l.forms.ArgumentsField)
		if list == nil {
			return false
		}
		inner := interior(list)
		return inner.Start <= caret && caret <= inner.End
	})
	if call == nil {
		return nil
	}
	return l.CalleeName(call)
}

// Arguments returns the argument list of the nearest call enclosing node,
// provided caret lies on that call's callee name (ends inclusive). It
// returns nil otherwise.
func (l *Locator) Arguments(node syntax.Node, caret uint32) *Arguments {
	call := syntax.UpwardsUntil(node, isCall)
	if call == nil {
		return nil
	}
	callee := l.CalleeName(call)
	if callee == nil || caret < callee.StartByte() || caret > callee.EndByte() {
		return nil
	}
	list := call.ChildByField(l.forms.ArgumentsField)
	if list == nil {
		return nil
	}

	args := &Arguments{
		Call:      call,
		Callee:    callee,
		List:      list,
		Delimited: delimited(list),
		Contents:  interior(list),
	}
	if args.Delimited {
		s, e := list.StartByte(), list.EndByte()
		args.Open = Span{Start: s, End: s + 1}
		args.Close = Span{Start: e - 1, End: e}
	}
	return args
}

// CalleeName returns the node naming what call invokes. Member accesses
// resolve to their trailing name, so obj.method(x) yields method.
func (l *Locator) CalleeName(call syntax.Node) syntax.Node {
	var callee syntax.Node
	for _, field := range l.forms.CalleeFields {
		if callee = call.ChildByField(field); callee != nil {
			break
		}
	}
	if callee == nil {
		return nil
	}
	if callee.Kind() == syntax.KindMemberAccess {
		field, ok := l.forms.MemberName[callee.Type()]
		if !ok {
			return callee
		}
		return callee.ChildByField(field)
	}
	return callee
}

func isCall(n syntax.Node) bool {
	k := n.Kind()
	return k == syntax.KindCall || k == syntax.KindConstructor
}

var closers = map[byte]byte{'(': ')', '[': ']', '{': '}'}

func delimited(list syntax.Node) bool {
	text := list.Text()
	if len(text) < 2 {
		return false
	}
	want, ok := closers[text[0]]
	return ok && text[len(text)-1] == want
}

// interior is the span between the delimiters, or the whole list when it
// has none.
func interior(list syntax.Node) Span {
	if !delimited(list) {
		return spanOf(list)
	}
	return Span{Start: list.StartByte() + 1, End: list.EndByte() - 1}
}
