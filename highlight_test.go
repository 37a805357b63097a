package scopelight

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopelight/internal/workspace"
)

// recordingSink keeps the latest regions per (buffer, layer) and counts
// calls.
type recordingSink struct {
	mu     sync.Mutex
	layers map[BufferID]map[Layer][]Region
	calls  int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{layers: make(map[BufferID]map[Layer][]Region)}
}

func (s *recordingSink) SetHighlightLayer(buf BufferID, layer Layer, regions []Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.layers[buf] == nil {
		s.layers[buf] = make(map[Layer][]Region)
	}
	s.layers[buf][layer] = regions
	s.calls++
}

func (s *recordingSink) get(buf BufferID, layer Layer) ([]Region, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.layers[buf][layer]
	return r, ok
}

func openBuffer(t *testing.T, ws *workspace.Workspace, buf BufferID, language, src string) {
	t.Helper()
	_, err := ws.Open(context.Background(), buf, language, []byte(src))
	require.NoError(t, err)
}

func TestCoordinator_AllLayers(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	c := NewCoordinator(newTestEngine(t), ws, sink, WithExecutor(Inline))
	defer c.Close()

	src := "def f(a, b):\n    return g(a, b)\n"
	openBuffer(t, ws, "buf", "source.python", src)

	c.SelectionChanged("buf", []Selection{caretAt(t, src, "a", 1), caretAt(t, src, "g", 0)})

	caller, _ := sink.get("buf", LayerCaller)
	assert.Equal(t, []Region{regionOf(t, src, "g", 0)}, caller)
	parens, _ := sink.get("buf", LayerArgumentParens)
	assert.Equal(t, []Region{regionOf(t, src, "(", 1), regionOf(t, src, ")", 1)}, parens)
	contents, _ := sink.get("buf", LayerArgumentContents)
	assert.Equal(t, []Region{regionOf(t, src, "a, b", 1)}, contents)
	refs, _ := sink.get("buf", LayerReferences)
	assert.Equal(t, []Region{regionOf(t, src, "a", 0)}, refs)
}

func TestCoordinator_MissingTreeClears(t *testing.T) {
	t.Parallel()
	sink := newRecordingSink()
	c := NewCoordinator(newTestEngine(t), workspace.New(), sink, WithExecutor(Inline))
	defer c.Close()

	c.SelectionChanged("unparsed", []Selection{Caret(0)})

	for _, l := range Layers {
		got, ok := sink.get("unparsed", l)
		assert.True(t, ok, "layer %s set", l)
		assert.Empty(t, got)
	}
}

func TestCoordinator_UnknownScopeSkipsReferences(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	e := newTestEngine(t, WithQueriesFS(fstest.MapFS{
		"python/locals.scm": &fstest.MapFile{Data: []byte("(module) @scope")},
	}))
	c := NewCoordinator(e, ws, sink, WithExecutor(Inline))
	defer c.Close()

	src := "int main() { return f(1); }"
	openBuffer(t, ws, "cc", "cpp", src)
	c.SelectionChanged("cc", []Selection{caretAt(t, src, "1", 0)})

	caller, _ := sink.get("cc", LayerCaller)
	assert.Equal(t, []Region{regionOf(t, src, "f", 0)}, caller)
	refs, ok := sink.get("cc", LayerReferences)
	assert.True(t, ok)
	assert.Empty(t, refs)
}

func TestCoordinator_QuerySyntaxErrorIsContained(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e := newTestEngine(t, WithQueriesFS(fstest.MapFS{
		"python/locals.scm":     &fstest.MapFile{Data: []byte("(module @scope")},
		"javascript/locals.scm": &fstest.MapFile{Data: []byte("(program) @scope\n(variable_declarator name: (identifier) @definition.var)\n(identifier) @reference\n")},
	}))
	ws := workspace.New()
	sink := newRecordingSink()
	c := NewCoordinator(e, ws, sink, WithExecutor(Inline), WithCoordinatorLogger(logger))
	defer c.Close()

	openBuffer(t, ws, "py", "python", "x = 1\nx\n")
	c.SelectionChanged("py", []Selection{Caret(6)})
	refs, ok := sink.get("py", LayerReferences)
	assert.True(t, ok)
	assert.Empty(t, refs)
	assert.Contains(t, logs.String(), "query does not compile")

	// Later passes for other buffers are unaffected.
	src := "let y = 1; y;"
	openBuffer(t, ws, "js", "javascript", src)
	c.SelectionChanged("js", []Selection{caretAt(t, src, "y", 1)})
	refs, _ = sink.get("js", LayerReferences)
	assert.Equal(t, []Region{regionOf(t, src, "y", 0)}, refs)
}

func TestCoordinator_CoalescesPerBuffer(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	m := &manualExecutor{}
	c := NewCoordinator(newTestEngine(t), ws, sink, WithExecutor(m.exec))
	defer c.Close()

	src := "f(a)\ng(b)\n"
	openBuffer(t, ws, "buf", "python", src)

	c.SelectionChanged("buf", []Selection{caretAt(t, src, "a", 0)})
	c.SelectionChanged("buf", []Selection{caretAt(t, src, "b", 0)})
	m.runAll()

	caller, _ := sink.get("buf", LayerCaller)
	assert.Equal(t, []Region{regionOf(t, src, "g", 0)}, caller)
	// One calls pass (three layers) and one references pass.
	assert.Equal(t, 4, sink.calls)
}

func TestCoordinator_SelectionsAreCopied(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	m := &manualExecutor{}
	c := NewCoordinator(newTestEngine(t), ws, sink, WithExecutor(m.exec))
	defer c.Close()

	src := "f(a)\ng(b)\n"
	openBuffer(t, ws, "buf", "python", src)

	sels := []Selection{caretAt(t, src, "a", 0)}
	c.SelectionChanged("buf", sels)
	sels[0] = caretAt(t, src, "b", 0)
	m.runAll()

	caller, _ := sink.get("buf", LayerCaller)
	assert.Equal(t, []Region{regionOf(t, src, "f", 0)}, caller)
}

func TestCoordinator_RecoversFromPanickingSink(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	openBuffer(t, ws, "buf", "python", "f(a)\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	sink := SinkFunc(func(BufferID, Layer, []Region) { panic("renderer gone") })
	c := NewCoordinator(newTestEngine(t), ws, sink, WithExecutor(Inline), WithCoordinatorLogger(logger))
	defer c.Close()

	assert.NotPanics(t, func() { c.SelectionChanged("buf", []Selection{Caret(2)}) })
	assert.Contains(t, logs.String(), "highlight pass panicked")
}

func TestCoordinator_Clear(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	c := NewCoordinator(newTestEngine(t), ws, sink, WithExecutor(Inline))
	defer c.Close()

	src := "f(a)\n"
	openBuffer(t, ws, "buf", "python", src)
	c.SelectionChanged("buf", []Selection{Caret(2)})
	caller, _ := sink.get("buf", LayerCaller)
	require.NotEmpty(t, caller)

	c.Clear("buf")
	for _, l := range Layers {
		got, _ := sink.get("buf", l)
		assert.Empty(t, got, "layer %s", l)
	}
}

func TestCoordinator_ClearReleasesBuffers(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	c := NewCoordinator(newTestEngine(t), ws, newRecordingSink(), WithExecutor(Inline))
	defer c.Close()

	for i := 0; i < 50; i++ {
		buf := BufferID(fmt.Sprintf("file%d.py", i))
		openBuffer(t, ws, buf, "python", "f(a)\n")
		c.SelectionChanged(buf, []Selection{Caret(2)})
		c.Clear(buf)
		ws.Close(buf)
	}
	assert.Equal(t, 0, c.debounce.Tracked())

	openBuffer(t, ws, "kept.py", "python", "f(a)\n")
	c.SelectionChanged("kept.py", []Selection{Caret(2)})
	assert.Equal(t, 2, c.debounce.Tracked(), "open buffers keep their tokens")
}

func TestCoordinator_DefaultQueue(t *testing.T) {
	t.Parallel()
	ws := workspace.New()
	sink := newRecordingSink()
	c := NewCoordinator(newTestEngine(t), ws, sink, WithDelay(0))

	src := "f(a)\n"
	openBuffer(t, ws, "buf", "python", src)
	c.SelectionChanged("buf", []Selection{Caret(2)})
	c.Close()

	caller, _ := sink.get("buf", LayerCaller)
	assert.Equal(t, []Region{{0, 1}}, caller)
}
