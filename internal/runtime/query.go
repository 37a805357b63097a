package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/scopelight/internal/syntax"
)

// ErrUnknownScope is returned when a scope name maps to no grammar or the
// grammar has no query file. Callers skip highlighting for the pass.
var ErrUnknownScope = errors.New("unknown scope")

// QuerySyntaxError reports a query pack that does not compile against its
// grammar.
type QuerySyntaxError struct {
	Language string
	File     string
	Offset   uint32
	Err      error
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query %s/%s: syntax error at offset %d: %v", e.Language, e.File, e.Offset, e.Err)
}

func (e *QuerySyntaxError) Unwrap() error { return e.Err }

// OptionalFile returns the name of the optional-fragment file paired with a
// query file: "locals.scm" pairs with "locals.optional.scm".
func OptionalFile(queryFile string) string {
	ext := path.Ext(queryFile)
	return strings.TrimSuffix(queryFile, ext) + ".optional" + ext
}

type cacheKey struct {
	buffer  syntax.BufferID
	version uint64
	file    string
}

type compiledKey struct {
	language string
	file     string
}

type probeKey struct {
	language string
	fragment string
}

// QueryEngine runs query packs against documents. It owns the process-scoped
// state: a single-slot capture cache keyed by (buffer, version, query file),
// compiled queries per (language, query file) and fragment probe outcomes per
// (language, fragment). One mutex guards all of it; a Query call holds it for
// the whole lookup-or-run step.
type QueryEngine struct {
	queries fs.FS
	logger  *slog.Logger

	mu       sync.Mutex
	key      cacheKey
	captures []syntax.Capture
	filled   bool
	compiled map[compiledKey]*sitter.Query
	vocab    map[string]vocabulary
	probes   map[probeKey]ProbeOutcome
}

// QueryOption configures a QueryEngine.
type QueryOption func(*QueryEngine)

// WithQueryLogger sets the logger used for cache and probe diagnostics.
func WithQueryLogger(logger *slog.Logger) QueryOption {
	return func(e *QueryEngine) {
		e.logger = logger
	}
}

// NewQueryEngine creates a QueryEngine reading query packs laid out as
// <language>/<query file> inside queries.
func NewQueryEngine(queries fs.FS, opts ...QueryOption) *QueryEngine {
	e := &QueryEngine{
		queries:  queries,
		logger:   slog.Default(),
		compiled: make(map[compiledKey]*sitter.Query),
		vocab:    make(map[string]vocabulary),
		probes:   make(map[probeKey]ProbeOutcome),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query returns every capture of queryFile run over doc's tree, in match
// order. Results are cached until the document's buffer or version changes.
// A failed query leaves the cache untouched.
func (e *QueryEngine) Query(ctx context.Context, doc *syntax.Document, queryFile string) ([]syntax.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lang, ok := LanguageForScope(doc.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, doc.Language)
	}
	grammar, _ := ParserForLanguage(lang)

	key := cacheKey{buffer: doc.Buffer, version: doc.Version, file: queryFile}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.filled && e.key == key {
		return e.captures, nil
	}

	q, err := e.compileLocked(lang, grammar, queryFile)
	if err != nil {
		return nil, err
	}

	captures := run(q, doc)
	e.key, e.captures, e.filled = key, captures, true
	e.logger.Debug("query cache refreshed",
		slog.String("buffer", string(doc.Buffer)),
		slog.Uint64("version", doc.Version),
		slog.String("language", lang),
		slog.Int("captures", len(captures)))
	return captures, nil
}

// Invalidate drops the cached captures.
func (e *QueryEngine) Invalidate() {
	e.mu.Lock()
	e.filled = false
	e.captures = nil
	e.mu.Unlock()
}

// HasQueries reports whether the pack carries queryFile for language.
func (e *QueryEngine) HasQueries(language, queryFile string) bool {
	lang, ok := LanguageForScope(language)
	if !ok {
		return false
	}
	_, err := fs.Stat(e.queries, path.Join(lang, queryFile))
	return err == nil
}

// Probe reports, for every optional fragment of queryFile, whether the
// language's grammar supports it. Outcomes are memoized per language and
// fragment for the life of the engine.
func (e *QueryEngine) Probe(language, queryFile string) ([]ProbeOutcome, error) {
	lang, ok := LanguageForScope(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, language)
	}
	grammar, _ := ParserForLanguage(lang)

	e.mu.Lock()
	defer e.mu.Unlock()

	fragments, err := e.fragments(lang, queryFile)
	if err != nil {
		return nil, err
	}
	out := make([]ProbeOutcome, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, e.probeLocked(lang, grammar, f))
	}
	return out, nil
}

func (e *QueryEngine) compileLocked(lang string, grammar *sitter.Language, queryFile string) (*sitter.Query, error) {
	ck := compiledKey{language: lang, file: queryFile}
	if q, ok := e.compiled[ck]; ok {
		return q, nil
	}

	base, err := fs.ReadFile(e.queries, path.Join(lang, queryFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s for %s", ErrUnknownScope, queryFile, lang)
		}
		return nil, fmt.Errorf("runtime: loading %s/%s: %w", lang, queryFile, err)
	}

	fragments, err := e.fragments(lang, queryFile)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.Write(base)
	for _, f := range fragments {
		if !e.probeLocked(lang, grammar, f).Supported {
			continue
		}
		text.WriteString("\n")
		text.WriteString(f.Text)
		text.WriteString("\n")
	}

	q, err := sitter.NewQuery([]byte(text.String()), grammar)
	if err != nil {
		qerr := &QuerySyntaxError{Language: lang, File: queryFile, Err: err}
		var tsErr *sitter.QueryError
		if errors.As(err, &tsErr) {
			qerr.Offset = tsErr.Offset
		}
		return nil, qerr
	}
	e.compiled[ck] = q
	return q, nil
}

// fragments reads the optional-fragment file for queryFile. A missing file
// means no fragments.
func (e *QueryEngine) fragments(lang, queryFile string) ([]Fragment, error) {
	data, err := fs.ReadFile(e.queries, path.Join(lang, OptionalFile(queryFile)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("runtime: loading fragments for %s/%s: %w", lang, queryFile, err)
	}
	return ParseFragments(string(data)), nil
}

func (e *QueryEngine) probeLocked(lang string, grammar *sitter.Language, f Fragment) ProbeOutcome {
	pk := probeKey{language: lang, fragment: f.Name}
	if outcome, ok := e.probes[pk]; ok {
		return outcome
	}
	vocab, ok := e.vocab[lang]
	if !ok {
		vocab = vocabularyOf(grammar)
		e.vocab[lang] = vocab
	}
	outcome := probe(lang, grammar, vocab, f)
	e.probes[pk] = outcome
	if !outcome.Supported {
		e.logger.Debug("query fragment unsupported",
			slog.String("language", lang),
			slog.String("fragment", f.Name),
			slog.Any("missing", outcome.Missing),
			slog.String("reason", outcome.Reason))
	}
	return outcome
}

// run executes q over the document root and flattens matches into captures
// with normalized names. The tree is held for the whole walk since the cursor
// hands out nodes on every match.
func run(q *sitter.Query, doc *syntax.Document) []syntax.Capture {
	out := []syntax.Capture{}
	doc.Walk(func(root *sitter.Node) {
		if root == nil {
			return
		}
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, root)

		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, doc.Source)
			for _, c := range match.Captures {
				node := syntax.NodeOf(c.Node, doc)
				if node == nil {
					continue
				}
				out = append(out, syntax.Capture{
					Node: node,
					Name: syntax.NormalizeCaptureName(q.CaptureNameForId(c.Index)),
				})
			}
		}
	})
	return out
}
