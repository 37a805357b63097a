package main

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/scopelight"
	"github.com/jward/scopelight/internal/workspace"
)

func newTestView(t *testing.T, src string) (viewModel, *workspace.Workspace, *layerStore) {
	t.Helper()
	e, err := scopelight.New()
	require.NoError(t, err)
	ws := workspace.New()
	doc, err := ws.Open(context.Background(), "view.py", "python", []byte(src))
	require.NoError(t, err)

	store := newLayerStore()
	coord := scopelight.NewCoordinator(e, ws, store, scopelight.WithExecutor(scopelight.Inline))
	t.Cleanup(coord.Close)
	return newViewModel(doc, coord, store), ws, store
}

func press(m viewModel, keys ...tea.KeyType) viewModel {
	for _, k := range keys {
		next, _ := m.Update(tea.KeyMsg{Type: k})
		m = next.(viewModel)
	}
	return m
}

func TestView_CaretMovesDriveHighlights(t *testing.T) {
	t.Parallel()
	m, _, store := newTestView(t, "f(a)\ng(b)\n")

	m = press(m, tea.KeyRight, tea.KeyRight)
	assert.Equal(t, uint32(2), m.caret)
	assert.Equal(t, []scopelight.Region{{Start: 0, End: 1}}, store.highlights().Caller)

	m = press(m, tea.KeyDown)
	assert.Equal(t, uint32(7), m.caret, "same column on the next line")
	assert.Equal(t, []scopelight.Region{{Start: 5, End: 6}}, store.highlights().Caller)
}

func TestView_CaretStaysInBounds(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestView(t, "ab\n")

	m = press(m, tea.KeyLeft, tea.KeyUp)
	assert.Equal(t, uint32(0), m.caret)

	m = press(m, tea.KeyEnd)
	assert.Equal(t, uint32(2), m.caret)

	m = press(m, tea.KeyDown, tea.KeyDown, tea.KeyRight, tea.KeyRight)
	assert.Equal(t, uint32(3), m.caret)

	m = press(m, tea.KeyHome)
	assert.Equal(t, uint32(3), m.caret)
}

func TestView_MultiByteCaret(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestView(t, "é = 1\n")

	m = press(m, tea.KeyRight)
	assert.Equal(t, uint32(2), m.caret)
	m = press(m, tea.KeyLeft)
	assert.Equal(t, uint32(0), m.caret)
}

func TestView_Quit(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestView(t, "x\n")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestView_FileChanged(t *testing.T) {
	t.Parallel()
	m, ws, store := newTestView(t, "f(a)\n")
	m = press(m, tea.KeyRight, tea.KeyRight)

	doc, err := ws.Update(context.Background(), "view.py", []byte("hh(c)\n"))
	require.NoError(t, err)
	next, _ := m.Update(fileChangedMsg{doc: doc})
	m = next.(viewModel)

	assert.Equal(t, uint64(2), m.doc.Version)
	assert.Equal(t, uint32(2), m.caret)
	assert.Equal(t, []scopelight.Region{{Start: 2, End: 3}, {Start: 4, End: 5}}, store.highlights().ArgumentParens)
	assert.Contains(t, m.View(), "python v2")

	next, _ = m.Update(fileChangedMsg{err: errors.New("file vanished")})
	m = next.(viewModel)
	assert.Contains(t, m.View(), "file vanished")
}

func TestView_ShrinkingFileClampsCaret(t *testing.T) {
	t.Parallel()
	m, ws, _ := newTestView(t, "value = 1\n")
	m = press(m, tea.KeyEnd)
	require.Equal(t, uint32(9), m.caret)

	doc, err := ws.Update(context.Background(), "view.py", []byte("v\n"))
	require.NoError(t, err)
	next, _ := m.Update(fileChangedMsg{doc: doc})
	assert.Equal(t, uint32(2), next.(viewModel).caret)
}

func TestView_Status(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestView(t, "f(a)\n")
	m = press(m, tea.KeyRight, tea.KeyRight)

	view := m.View()
	assert.Contains(t, view, "view.py")
	assert.Contains(t, view, "1:3 (2)")
	assert.Contains(t, view, "caller 1")
}
