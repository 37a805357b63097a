package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"

	"github.com/jward/scopelight/internal/syntax"
)

// Runtime embeds a Risor VM and evaluates per-language exclusion rule
// scripts. A rule script is evaluated once per candidate reference node; its
// final expression decides whether the node is excluded from resolution.
type Runtime struct {
	rulesDir string
	fsys     fs.FS
	logger   *slog.Logger

	mu      sync.Mutex
	sources map[string]string // language → script source, "" when absent
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger backing the scripts' log object.
func WithRuntimeLogger(logger *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// NewRuntime creates a Runtime loading rule scripts from rulesDir.
// Accepts optional RuntimeOptions for configuration such as fs.FS-based script loading.
func NewRuntime(rulesDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		rulesDir: rulesDir,
		logger:   slog.Default(),
		sources:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RulePath returns the path to a language's exclusion rule script.
func RulePath(language string) string {
	return language + ".risor"
}

// HasRules reports whether a rule script exists for language.
func (r *Runtime) HasRules(language string) bool {
	src, err := r.ruleSource(language)
	return err == nil && src != ""
}

// Excluded evaluates the language's rule script for node. Languages without
// a script exclude nothing.
func (r *Runtime) Excluded(ctx context.Context, language string, node syntax.Node) (bool, error) {
	src, err := r.ruleSource(language)
	if err != nil || src == "" {
		return false, err
	}
	return r.eval(ctx, src, RulePath(language), nodeGlobals(node))
}

// RunSource evaluates Risor source against node. Useful for testing rules
// without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, node syntax.Node) (bool, error) {
	return r.eval(ctx, source, "<inline>", nodeGlobals(node))
}

func (r *Runtime) eval(ctx context.Context, source, label string, globals map[string]any) (bool, error) {
	globals["log"] = mustProxy(&logObject{logger: r.logger.With(slog.String("script", label))})

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return false, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil {
		return false, nil
	}
	if errObj, ok := result.(*object.Error); ok {
		return false, fmt.Errorf("runtime: script %s: %s", label, errObj.Inspect())
	}
	return result.IsTruthy(), nil
}

// ruleSource returns the cached script text for language, loading it on
// first use. A missing script is cached as "".
func (r *Runtime) ruleSource(language string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if src, ok := r.sources[language]; ok {
		return src, nil
	}
	src, err := r.LoadScript(RulePath(language))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		src = ""
	}
	r.sources[language] = src
	return src, nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with rulesDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// For fs.FS, strip any leading path separator so the path is
		// relative within the FS (e.g., "/go.risor" -> "go.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}
	if r.rulesDir == "" {
		return "", fmt.Errorf("runtime: loading script %s: %w", path, fs.ErrNotExist)
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.rulesDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
