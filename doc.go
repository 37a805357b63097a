// Package scopelight highlights call sites and local variable bindings
// around an editor caret using tree-sitter syntax trees. It supports Go,
// TypeScript, JavaScript, Python, Rust and C reference resolution, and
// caller/argument highlighting for those plus C++, Java, PHP and Ruby.
//
// # Highlight layers
//
// A highlight pass produces four independent layers:
//
//   - [LayerCaller]: with the caret strictly inside an argument list, the
//     name of the function being called.
//   - [LayerArgumentParens] and [LayerArgumentContents]: with the caret on a
//     callee name, the argument list's delimiters and what lies between them.
//   - [LayerReferences]: with the caret on a variable use, the definitions
//     it resolves to.
//
// # Resolution
//
// References are resolved lexically from the captures of a locals.scm query
// (scope, definition.var, definition.parameter, reference). The scopes
// containing the reference are tried innermost first; the first with a
// matching definition wins. A definition only matches if its own enclosing
// scope is an ancestor of the reference, so sibling scopes never leak into
// each other. Language-specific exclusion rules drop captured identifiers
// that are not uses, such as keyword-argument labels; rules are built in or
// written as Risor scripts under scripts/rules.
//
// # Usage
//
//	e, err := scopelight.New()
//	if err != nil { ... }
//
//	h, err := e.Highlight(ctx, doc, []scopelight.Selection{scopelight.Caret(42)})
//
// Editors wire a [Coordinator] instead, which debounces selection changes
// per buffer and pushes layers to a [Sink]:
//
//	c := scopelight.NewCoordinator(e, workspace, sink)
//	defer c.Close()
//	c.SelectionChanged(buf, sels)
//
// # Query packs
//
// Query files live under scripts/queries/{language}/locals.scm. Patterns
// that depend on the grammar version go in locals.optional.scm as named
// fragments; each is checked against the grammar's node and field names
// once per process and appended only when supported. See [Engine.Probe].
package scopelight
