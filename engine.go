package scopelight

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"

	"github.com/jward/scopelight/internal/callsite"
	"github.com/jward/scopelight/internal/resolve"
	"github.com/jward/scopelight/internal/runtime"
	"github.com/jward/scopelight/internal/syntax"
	"github.com/jward/scopelight/scripts"
)

// DefaultQueryFile is the query file run for reference resolution.
const DefaultQueryFile = "locals.scm"

// Engine answers caller, argument and reference questions for parsed
// documents. It owns the query engine's process-scoped caches and is safe
// for concurrent use.
type Engine struct {
	queries *runtime.QueryEngine
	rules   *runtime.Runtime
	locator *callsite.Locator
	builtin resolve.RuleTable
	logger  *slog.Logger

	queryFile  string
	queriesFS  fs.FS
	queriesDir string
	rulesFS    fs.FS
	rulesDir   string
	forms      callsite.Forms

	// fileVersions numbers documents parsed from disk so two reads of the
	// same path never share a capture cache slot.
	fileVersions atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueriesFS loads query packs from fsys, laid out as
// <language>/<query file>. The bundled pack is used by default.
func WithQueriesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.queriesFS = fsys
	}
}

// WithQueriesDir loads query packs from a directory on disk. It takes
// precedence over WithQueriesFS.
func WithQueriesDir(dir string) Option {
	return func(e *Engine) {
		e.queriesDir = dir
	}
}

// WithRulesFS loads exclusion rule scripts (<language>.risor) from fsys.
func WithRulesFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.rulesFS = fsys
	}
}

// WithRulesDir loads exclusion rule scripts from a directory on disk. It
// takes precedence over WithRulesFS.
func WithRulesDir(dir string) Option {
	return func(e *Engine) {
		e.rulesDir = dir
	}
}

// WithLogger sets the Engine's logger. slog.Default is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithQueryFile selects the query file run for resolution.
func WithQueryFile(name string) Option {
	return func(e *Engine) {
		e.queryFile = name
	}
}

// WithExclusionRules adds built-in exclusion rules for a canonical language
// name, on top of the default table.
func WithExclusionRules(language string, rules ...ExclusionRule) Option {
	return func(e *Engine) {
		e.builtin[language] = append(e.builtin[language], rules...)
	}
}

// WithCallForms replaces the call-site table used to find callees and
// argument lists.
func WithCallForms(forms CallForms) Option {
	return func(e *Engine) {
		e.forms = forms
	}
}

// New creates an Engine. Query packs and rule scripts default to the
// bundled ones.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		builtin:   resolve.DefaultRules(),
		logger:    slog.Default(),
		queryFile: DefaultQueryFile,
		queriesFS: scripts.Queries(),
		rulesFS:   scripts.Rules(),
		forms:     callsite.DefaultForms(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.queriesDir != "" {
		if err := checkDir(e.queriesDir); err != nil {
			return nil, fmt.Errorf("scopelight: queries dir: %w", err)
		}
		e.queriesFS = os.DirFS(e.queriesDir)
	}

	var rtOpts []runtime.RuntimeOption
	rtOpts = append(rtOpts, runtime.WithRuntimeLogger(e.logger))
	if e.rulesDir != "" {
		if err := checkDir(e.rulesDir); err != nil {
			return nil, fmt.Errorf("scopelight: rules dir: %w", err)
		}
	} else if e.rulesFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.rulesFS))
	}

	e.queries = runtime.NewQueryEngine(e.queriesFS, runtime.WithQueryLogger(e.logger))
	e.rules = runtime.NewRuntime(e.rulesDir, rtOpts...)
	e.locator = callsite.New(e.forms)
	return e, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Callers returns the callee-name region for every caret sitting strictly
// inside a call's argument list. Non-empty selections contribute nothing.
func (e *Engine) Callers(doc *Document, sels []Selection) []Region {
	var out []Region
	for _, sel := range sels {
		if !sel.Empty() {
			continue
		}
		node := doc.NodeSpanning(sel.B, sel.B)
		if node == nil {
			continue
		}
		if callee := e.locator.Caller(node, sel.B); callee != nil {
			out = append(out, RegionOf(callee))
		}
	}
	return normalize(out)
}

// Arguments returns, for every caret on a callee name, the argument list's
// delimiter bytes and the region between them. Argument lists without
// delimiters contribute contents only.
func (e *Engine) Arguments(doc *Document, sels []Selection) (parens, contents []Region) {
	for _, sel := range sels {
		if !sel.Empty() {
			continue
		}
		node := doc.NodeSpanning(sel.B, sel.B)
		if node == nil {
			continue
		}
		args := e.locator.Arguments(node, sel.B)
		if args == nil {
			continue
		}
		if args.Delimited {
			parens = append(parens, regionOfSpan(args.Open), regionOfSpan(args.Close))
		}
		contents = append(contents, regionOfSpan(args.Contents))
	}
	return normalize(parens), normalize(contents)
}

// Captures runs the resolution query over doc. Results are cached per
// (buffer, version).
func (e *Engine) Captures(ctx context.Context, doc *Document) ([]Capture, error) {
	return e.queries.Query(ctx, doc, e.queryFile)
}

// References resolves the node under each selection to the definitions
// binding it and returns their regions, unioned across selections.
func (e *Engine) References(ctx context.Context, doc *Document, sels []Selection) ([]Region, error) {
	r, err := e.resolver(ctx, doc)
	if err != nil {
		return nil, err
	}
	var out []Region
	for _, sel := range sels {
		node := doc.NodeSpanning(sel.Begin(), sel.End())
		if node == nil {
			continue
		}
		for _, def := range r.Resolve(ctx, node) {
			out = append(out, RegionOf(def))
		}
	}
	return normalize(out), nil
}

// Occurrences returns every node sharing the binding of the node at offset:
// the definitions as writes and the references resolving to them as reads.
func (e *Engine) Occurrences(ctx context.Context, doc *Document, offset uint32) ([]Occurrence, error) {
	r, err := e.resolver(ctx, doc)
	if err != nil {
		return nil, err
	}
	node := doc.NodeSpanning(offset, offset)
	if node == nil {
		return []Occurrence{}, nil
	}
	caps := r.Captures()
	nodes := r.Occurrences(ctx, node)
	out := make([]Occurrence, 0, len(nodes))
	for _, n := range nodes {
		kind := OccurrenceRead
		if caps.IsDefinition(n) {
			kind = OccurrenceWrite
		}
		out = append(out, Occurrence{Region: RegionOf(n), Kind: kind})
	}
	return out, nil
}

// Highlight computes all four layers for one pass. Caller and argument
// layers never fail; a query failure leaves References empty and is
// returned alongside the partial result.
func (e *Engine) Highlight(ctx context.Context, doc *Document, sels []Selection) (Highlights, error) {
	var h Highlights
	h.Caller = e.Callers(doc, sels)
	h.ArgumentParens, h.ArgumentContents = e.Arguments(doc, sels)
	refs, err := e.References(ctx, doc, sels)
	if err != nil {
		h.References = []Region{}
		return h, err
	}
	h.References = refs
	return h, nil
}

// Probe reports which optional query fragments the language's grammar
// supports.
func (e *Engine) Probe(language string) ([]ProbeOutcome, error) {
	return e.queries.Probe(language, e.queryFile)
}

// HasQueries reports whether the query pack resolves references for
// language.
func (e *Engine) HasQueries(language string) bool {
	return e.queries.HasQueries(language, e.queryFile)
}

// HasRules reports whether an exclusion rule script exists for language.
func (e *Engine) HasRules(language string) bool {
	lang, ok := runtime.LanguageForScope(language)
	return ok && e.rules.HasRules(lang)
}

// Invalidate drops cached captures, e.g. after the query pack changed.
func (e *Engine) Invalidate() {
	e.queries.Invalidate()
}

func (e *Engine) resolver(ctx context.Context, doc *Document) (*resolve.Resolver, error) {
	if doc == nil {
		return nil, ErrMissingTree
	}
	captures, err := e.Captures(ctx, doc)
	if err != nil {
		return nil, err
	}
	lang, _ := runtime.LanguageForScope(doc.Language)
	exclude := resolve.Excluders{e.builtin, scriptExcluder{rules: e.rules, logger: e.logger}}
	return resolve.New(resolve.Classify(captures), lang, exclude), nil
}

// scriptExcluder consults the language's Risor rule script. A failing
// script excludes nothing and is logged.
type scriptExcluder struct {
	rules  *runtime.Runtime
	logger *slog.Logger
}

func (s scriptExcluder) Excluded(ctx context.Context, language string, node syntax.Node) bool {
	excluded, err := s.rules.Excluded(ctx, language, node)
	if err != nil {
		s.logger.Error("exclusion rule failed",
			slog.String("language", language),
			slog.String("node", node.Type()),
			slog.Any("error", err))
		return false
	}
	return excluded
}

// normalize sorts regions and drops duplicates. It returns an empty, non-nil
// slice when there are none.
func normalize(regions []Region) []Region {
	if len(regions) == 0 {
		return []Region{}
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Start != regions[j].Start {
			return regions[i].Start < regions[j].Start
		}
		return regions[i].End < regions[j].End
	})
	out := regions[:1]
	for _, r := range regions[1:] {
		if r != out[len(out)-1] {
			out = append(out, r)
		}
	}
	return out
}
