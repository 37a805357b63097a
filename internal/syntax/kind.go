package syntax

import "sync"

// Kind is the closed set of node forms the call-site locator and resolver
// distinguish. Grammar node types that map to none of them are KindOther and
// are still available through Node.Type.
type Kind int

const (
	KindOther Kind = iota
	KindIdentifier
	// KindCall is a call whose callee sits in a function, method or name field.
	KindCall
	// KindConstructor is a `new`-style construction form.
	KindConstructor
	// KindMemberAccess is `receiver.name`; the trailing name is the callee.
	KindMemberAccess
)

func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindCall:
		return "call"
	case KindConstructor:
		return "constructor"
	case KindMemberAccess:
		return "member"
	default:
		return "other"
	}
}

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Kind{
		"identifier": KindIdentifier,

		"call":                     KindCall, // python, ruby
		"call_expression":          KindCall, // javascript, typescript, go, rust, c, cpp
		"method_invocation":        KindCall, // java
		"function_call_expression": KindCall, // php
		"member_call_expression":   KindCall, // php

		"new_expression":             KindConstructor, // javascript, typescript, cpp
		"object_creation_expression": KindConstructor, // java, php

		"attribute":            KindMemberAccess, // python
		"member_expression":    KindMemberAccess, // javascript, typescript
		"selector_expression":  KindMemberAccess, // go
		"field_expression":     KindMemberAccess, // rust, c, cpp
		"scoped_identifier":    KindMemberAccess, // rust paths
		"qualified_identifier": KindMemberAccess, // cpp
	}
)

// KindOf classifies a grammar node type.
func KindOf(nodeType string) Kind {
	kindsMu.RLock()
	k := kinds[nodeType]
	kindsMu.RUnlock()
	return k
}

// RegisterKind maps an additional grammar node type to a Kind. It is meant
// for grammars whose call or member forms use names not listed above.
func RegisterKind(nodeType string, k Kind) {
	kindsMu.Lock()
	kinds[nodeType] = k
	kindsMu.Unlock()
}
