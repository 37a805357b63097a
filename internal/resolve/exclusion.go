package resolve

import (
	"context"

	"github.com/jward/scopelight/internal/syntax"
)

// Excluder filters syntactic positions a generic reference query captures
// as identifiers but that are not variable uses.
type Excluder interface {
	Excluded(ctx context.Context, language string, node syntax.Node) bool
}

// ExcluderFunc adapts a function to Excluder.
type ExcluderFunc func(ctx context.Context, language string, node syntax.Node) bool

func (f ExcluderFunc) Excluded(ctx context.Context, language string, node syntax.Node) bool {
	return f(ctx, language, node)
}

// Excluders excludes a node when any member does.
type Excluders []Excluder

func (ex Excluders) Excluded(ctx context.Context, language string, node syntax.Node) bool {
	for _, e := range ex {
		if e != nil && e.Excluded(ctx, language, node) {
			return true
		}
	}
	return false
}

// Rule is a pure predicate over a node and its parent. parent is never nil.
type Rule func(node, parent syntax.Node) bool

// RuleTable maps canonical language names to their exclusion rules.
type RuleTable map[string][]Rule

// DefaultRules returns the built-in rule table.
func DefaultRules() RuleTable {
	return RuleTable{
		"python": {
			FieldOf("keyword_argument", "name"),
			FieldOf("attribute", "attribute"),
		},
	}
}

func (t RuleTable) Excluded(_ context.Context, language string, node syntax.Node) bool {
	rules := t[language]
	if len(rules) == 0 {
		return false
	}
	parent := node.Parent()
	if parent == nil {
		return false
	}
	for _, rule := range rules {
		if rule(node, parent) {
			return true
		}
	}
	return false
}

// FieldOf matches a node sitting in field of a parent with type parentType,
// e.g. the label of a keyword argument or the trailing name of an attribute.
func FieldOf(parentType, field string) Rule {
	return func(node, parent syntax.Node) bool {
		return parent.Type() == parentType && syntax.Same(parent.ChildByField(field), node)
	}
}
