package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jward/scopelight"
	"github.com/jward/scopelight/internal/workspace"
)

var flagWatch bool

var viewCmd = &cobra.Command{
	Use:   "view FILE",
	Short: "Preview highlights in the terminal while moving a caret",
	Long: `Opens FILE in a read-only terminal view. Moving the caret (arrows or
h/j/k/l, home/end) runs highlight passes exactly as an editor would. With
--watch the file is reloaded when it changes on disk. Press q to quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().DurationVar(&flagDebounce, "debounce", scopelight.DefaultDelay, "delay between a caret move and its highlight pass")
	viewCmd.Flags().BoolVar(&flagWatch, "watch", false, "reload the file when it changes on disk")
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	e, err := newEngine()
	if err != nil {
		return err
	}
	ws := workspace.New(workspace.WithLogger(logger))
	doc, err := ws.OpenFile(ctx, args[0])
	if err != nil {
		return err
	}

	store := newLayerStore()
	coord := scopelight.NewCoordinator(e, ws, store,
		scopelight.WithDelay(cfg.Debounce),
		scopelight.WithCoordinatorLogger(logger))
	defer coord.Close()

	program := tea.NewProgram(newViewModel(doc, coord, store),
		tea.WithContext(ctx),
		tea.WithAltScreen())
	store.setOnChange(func() { program.Send(layersChangedMsg{}) })

	if flagWatch {
		go func() {
			err := watchFile(ctx, args[0], cfg.Debounce, func() {
				src, err := os.ReadFile(args[0])
				if err != nil {
					program.Send(fileChangedMsg{err: err})
					return
				}
				next, err := ws.Update(ctx, doc.Buffer, src)
				program.Send(fileChangedMsg{doc: next, err: err})
			})
			if err != nil {
				program.Send(fileChangedMsg{err: fmt.Errorf("watching %s: %w", args[0], err)})
			}
		}()
	}

	_, err = program.Run()
	return err
}

// layersChangedMsg tells the view that the sink received new regions.
type layersChangedMsg struct{}

// fileChangedMsg carries a reparsed document after a reload.
type fileChangedMsg struct {
	doc *scopelight.Document
	err error
}

// layerStore is the view's sink. It keeps the latest regions of the single
// buffer on screen.
type layerStore struct {
	mu       sync.Mutex
	layers   map[scopelight.Layer][]scopelight.Region
	onChange func()
}

func newLayerStore() *layerStore {
	return &layerStore{layers: make(map[scopelight.Layer][]scopelight.Region)}
}

func (s *layerStore) setOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetHighlightLayer implements scopelight.Sink.
func (s *layerStore) SetHighlightLayer(_ scopelight.BufferID, layer scopelight.Layer, regions []scopelight.Region) {
	s.mu.Lock()
	s.layers[layer] = regions
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *layerStore) highlights() scopelight.Highlights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scopelight.Highlights{
		Caller:           s.layers[scopelight.LayerCaller],
		ArgumentParens:   s.layers[scopelight.LayerArgumentParens],
		ArgumentContents: s.layers[scopelight.LayerArgumentContents],
		References:       s.layers[scopelight.LayerReferences],
	}
}

// viewModel implements the Bubble Tea Model interface for the preview.
type viewModel struct {
	doc   *scopelight.Document
	ix    *lineIndex
	coord *scopelight.Coordinator
	store *layerStore

	caret uint32
	vp    viewport.Model
	err   error
}

func newViewModel(doc *scopelight.Document, coord *scopelight.Coordinator, store *layerStore) viewModel {
	m := viewModel{
		doc:   doc,
		ix:    newLineIndex(doc.Source),
		coord: coord,
		store: store,
		vp:    viewport.New(80, 20),
	}
	m.refresh()
	return m
}

// Init fulfills the Bubble Tea Model interface.
func (m viewModel) Init() tea.Cmd {
	return func() tea.Msg {
		m.notifySelection()
		return nil
	}
}

// Update applies incoming Bubble Tea messages to the model.
func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.vp.Width = msg.Width
		m.vp.Height = max(msg.Height-1, 1)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case layersChangedMsg:
		m.refresh()
		return m, nil
	case fileChangedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.doc = msg.doc
		m.ix = newLineIndex(msg.doc.Source)
		m.caret = min(m.caret, uint32(len(msg.doc.Source)))
		m.notifySelection()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m viewModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	src := m.doc.Source
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "left", "h":
		if m.caret > 0 {
			_, size := utf8.DecodeLastRune(src[:m.caret])
			m.caret -= uint32(size)
		}
	case "right", "l":
		if int(m.caret) < len(src) {
			_, size := utf8.DecodeRune(src[m.caret:])
			m.caret += uint32(size)
		}
	case "up", "k":
		m.caret = m.verticalMove(-1)
	case "down", "j":
		m.caret = m.verticalMove(1)
	case "home", "0":
		m.caret = m.ix.starts[m.ix.line(m.caret)]
	case "end", "$":
		m.caret = m.ix.lineEnd(m.ix.line(m.caret))
	default:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	m.notifySelection()
	m.refresh()
	return m, nil
}

// verticalMove returns the caret moved delta lines, keeping the byte column
// where the target line is long enough.
func (m viewModel) verticalMove(delta int) uint32 {
	line, col := m.ix.lineCol(m.caret)
	off, ok := m.ix.offsetAt(line+delta, col)
	if !ok {
		return m.caret
	}
	return off
}

// notifySelection reports the caret to the Coordinator.
func (m viewModel) notifySelection() {
	m.coord.SelectionChanged(m.doc.Buffer, []scopelight.Selection{scopelight.Caret(m.caret)})
}

// refresh re-renders the source and scrolls the caret line into view.
func (m *viewModel) refresh() {
	m.vp.SetContent(renderSource(m.doc.Source, m.store.highlights(), m.caret))
	line := m.ix.line(min(m.caret, uint32(len(m.doc.Source))))
	switch {
	case line < m.vp.YOffset:
		m.vp.SetYOffset(line)
	case line >= m.vp.YOffset+m.vp.Height:
		m.vp.SetYOffset(line - m.vp.Height + 1)
	}
}

// View renders the source and a status line.
func (m viewModel) View() string {
	return m.vp.View() + "\n" + m.status()
}

func (m viewModel) status() string {
	if m.err != nil {
		return errorStyle.Render(m.err.Error())
	}
	h := m.store.highlights()
	line, col := m.ix.lineCol(m.caret)
	return statusStyle.Render(fmt.Sprintf("%s  %s v%d  %d:%d (%d)  caller %d  args %d  refs %d  q quits",
		m.doc.Buffer, m.doc.Language, m.doc.Version, line, col, m.caret,
		len(h.Caller), len(h.ArgumentContents), len(h.References)))
}
