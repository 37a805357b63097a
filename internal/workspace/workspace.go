// Package workspace tracks the buffers a host has open and their parsed
// documents.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/jward/scopelight/internal/runtime"
	"github.com/jward/scopelight/internal/syntax"
)

// ErrNotOpen is returned when updating a buffer that was never opened.
var ErrNotOpen = errors.New("workspace: buffer not open")

// ErrUnsupportedLanguage is returned when a buffer's language has no grammar.
var ErrUnsupportedLanguage = errors.New("workspace: unsupported language")

// Workspace holds the latest Document for each open buffer. Every Open or
// Update produces a Document with a version strictly greater than any the
// buffer had before, so caches keyed on (buffer, version) never see a stale
// hit after an edit.
type Workspace struct {
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[syntax.BufferID]*syntax.Document
	seq  map[syntax.BufferID]uint64
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the workspace logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		w.logger = logger
	}
}

// New creates an empty Workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		logger: slog.Default(),
		docs:   make(map[syntax.BufferID]*syntax.Document),
		seq:    make(map[syntax.BufferID]uint64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open parses src as language and tracks it under id, replacing any
// document already open there. language may be a canonical name, an editor
// scope name or an LSP language id.
func (w *Workspace) Open(ctx context.Context, id syntax.BufferID, language string, src []byte) (*syntax.Document, error) {
	lang, ok := runtime.LanguageForScope(language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return w.store(ctx, id, lang, src)
}

// OpenFile reads path from disk and opens it with the language implied by
// its extension. The buffer id is the path.
func (w *Workspace) OpenFile(ctx context.Context, path string) (*syntax.Document, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workspace: reading %s: %w", path, err)
	}
	return w.store(ctx, syntax.BufferID(path), lang, src)
}

// Update reparses an open buffer with new text and bumps its version.
func (w *Workspace) Update(ctx context.Context, id syntax.BufferID, src []byte) (*syntax.Document, error) {
	w.mu.RLock()
	doc, ok := w.docs[id]
	w.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, id)
	}
	return w.store(ctx, id, doc.Language, src)
}

// Close stops tracking id. Closing an unknown buffer is a no-op. The version
// counter survives so a reopened buffer continues past its old versions.
func (w *Workspace) Close(id syntax.BufferID) {
	w.mu.Lock()
	delete(w.docs, id)
	w.mu.Unlock()
}

// TreeFor returns the latest document for id, or false if the buffer is not
// open.
func (w *Workspace) TreeFor(id syntax.BufferID) (*syntax.Document, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	doc, ok := w.docs[id]
	return doc, ok
}

// Buffers returns the open buffer ids, sorted.
func (w *Workspace) Buffers() []syntax.BufferID {
	w.mu.RLock()
	out := make([]syntax.BufferID, 0, len(w.docs))
	for id := range w.docs {
		out = append(out, id)
	}
	w.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// store parses outside the lock, then installs the document unless a newer
// version landed in the meantime.
func (w *Workspace) store(ctx context.Context, id syntax.BufferID, lang string, src []byte) (*syntax.Document, error) {
	grammar, _ := runtime.ParserForLanguage(lang)

	w.mu.Lock()
	w.seq[id]++
	version := w.seq[id]
	w.mu.Unlock()

	doc, err := syntax.Parse(ctx, id, version, lang, grammar, src)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.docs[id]; ok && cur.Version > version {
		w.logger.Debug("dropping superseded parse",
			slog.String("buffer", string(id)),
			slog.Uint64("version", version),
			slog.Uint64("current", cur.Version))
		return cur, nil
	}
	w.docs[id] = doc
	return doc, nil
}
