package runtime

import (
	"context"
	"log/slog"

	"github.com/risor-io/risor/object"

	"github.com/jward/scopelight/internal/syntax"
)

// nodeGlobals builds the globals a rule script sees for one candidate node:
//
//	node_type    string   the node's type tag
//	parent_type  string   the parent's type tag, "" at the root
//	text         string   the node's source text
//	is_field(f)  bool     whether the node is its parent's child in field f
func nodeGlobals(node syntax.Node) map[string]any {
	parent := node.Parent()
	parentType := ""
	if parent != nil {
		parentType = parent.Type()
	}
	return map[string]any{
		"node_type":   node.Type(),
		"parent_type": parentType,
		"text":        string(node.Text()),
		"is_field":    makeIsFieldFn(node, parent),
	}
}

// makeIsFieldFn creates the "is_field" host function.
//
// is_field(fieldName) → bool
func makeIsFieldFn(node, parent syntax.Node) *object.Builtin {
	return object.NewBuiltin("is_field", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("is_field", 1, len(args))
		}
		field, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("is_field: field must be a string, got %s", args[0].Type())
		}
		if parent == nil {
			return object.NewBool(false)
		}
		return object.NewBool(syntax.Same(parent.ChildByField(field.Value()), node))
	})
}

// logObject provides log.info/warn/error methods for Risor scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}

func (l *logObject) Error(msg string) {
	l.logger.Error(msg)
}
