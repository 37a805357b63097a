package scopelight

import (
	"errors"

	"github.com/jward/scopelight/internal/runtime"
)

// ErrUnknownScope is returned when a document's language or scope name has
// no grammar or no query file. Hosts skip highlighting for that pass.
var ErrUnknownScope = runtime.ErrUnknownScope

// ErrMissingTree is returned when a buffer has not been parsed yet.
var ErrMissingTree = errors.New("scopelight: missing tree")

// QuerySyntaxError reports a query file that does not compile against its
// grammar. Unwrap yields the tree-sitter *QueryError.
type QuerySyntaxError = runtime.QuerySyntaxError

// skippable reports whether err only means "nothing to highlight".
func skippable(err error) bool {
	return errors.Is(err, ErrUnknownScope) || errors.Is(err, ErrMissingTree)
}
