package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/jward/scopelight"
	"github.com/jward/scopelight/internal/runtime"
	"github.com/jward/scopelight/internal/workspace"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Serve highlights over the Language Server Protocol on stdio",
	Long: `Serves textDocument/documentHighlight for local variables, and pushes the
caller, argument and reference layers for every scopelight/selectionChanged
notification as scopelight/highlight notifications. Documents are synced in
full.`,
	Args: cobra.NoArgs,
	RunE: runLSP,
}

func init() {
	lspCmd.Flags().DurationVar(&flagDebounce, "debounce", scopelight.DefaultDelay, "delay between a selection change and its highlight pass")
}

// Custom protocol extensions.
const (
	methodSelectionChanged = "scopelight/selectionChanged"
	methodHighlight        = "scopelight/highlight"
)

// selectionChangedParams carries the client's selections. The caret of each
// range is its end.
type selectionChangedParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Selections   []protocol.Range                `json:"selections"`
}

// highlightParams replaces one layer's ranges for a document.
type highlightParams struct {
	URI     protocol.DocumentURI `json:"uri"`
	Version uint64               `json:"version"`
	Layer   string               `json:"layer"`
	Ranges  []protocol.Range     `json:"ranges"`
}

func runLSP(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	srv := newLSPServer(e, logger, scopelight.WithDelay(cfg.Debounce))
	return srv.serve(cmd.Context(), stdio{in: os.Stdin, out: os.Stdout})
}

// notifier is the part of *jsonrpc2.Conn the sink needs.
type notifier interface {
	Notify(ctx context.Context, method string, params any, opts ...jsonrpc2.CallOption) error
}

type indexedDoc struct {
	version uint64
	ix      *lineIndex
}

// lspServer adapts the Coordinator and Engine to LSP. It is the
// Coordinator's sink: every layer update becomes a notification.
type lspServer struct {
	engine *scopelight.Engine
	ws     *workspace.Workspace
	coord  *scopelight.Coordinator
	logger *slog.Logger

	mu       sync.Mutex
	conn     notifier
	indexes  map[scopelight.BufferID]indexedDoc
	shutdown bool

	exit     chan struct{}
	exitOnce sync.Once
}

func newLSPServer(e *scopelight.Engine, logger *slog.Logger, opts ...scopelight.CoordinatorOption) *lspServer {
	s := &lspServer{
		engine:  e,
		ws:      workspace.New(workspace.WithLogger(logger)),
		logger:  logger,
		indexes: make(map[scopelight.BufferID]indexedDoc),
		exit:    make(chan struct{}),
	}
	opts = append([]scopelight.CoordinatorOption{scopelight.WithCoordinatorLogger(logger)}, opts...)
	s.coord = scopelight.NewCoordinator(e, s.ws, s, opts...)
	return s
}

// serve runs until the client disconnects, sends exit, or ctx is done.
func (s *lspServer) serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	defer s.coord.Close()

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	defer conn.Close()

	select {
	case <-conn.DisconnectNotify():
	case <-s.exit:
	case <-ctx.Done():
	}
	return nil
}

func (s *lspServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.bind(conn)
	result, err := s.dispatch(ctx, req)
	if req.Notif {
		if err != nil {
			s.logger.Warn("notification failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		return nil, nil
	}
	return result, err
}

func (s *lspServer) dispatch(ctx context.Context, req *jsonrpc2.Request) (any, error) {
	s.mu.Lock()
	down := s.shutdown
	s.mu.Unlock()
	if down && req.Method != "exit" {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}

	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "initialized":
		return nil, nil
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "exit":
		s.exitOnce.Do(func() { close(s.exit) })
		return nil, nil

	case "textDocument/didOpen":
		var p protocol.DidOpenTextDocumentParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, s.didOpen(ctx, p)
	case "textDocument/didChange":
		var p protocol.DidChangeTextDocumentParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return nil, s.didChange(ctx, p)
	case "textDocument/didClose":
		var p protocol.DidCloseTextDocumentParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		s.didClose(p)
		return nil, nil
	case "textDocument/documentHighlight":
		var p protocol.DocumentHighlightParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.documentHighlight(ctx, p), nil
	case methodSelectionChanged:
		var p selectionChangedParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		s.selectionChanged(p)
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not supported: " + req.Method}
}

func decodeParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func (s *lspServer) bind(conn *jsonrpc2.Conn) {
	s.mu.Lock()
	if s.conn == nil {
		s.conn = conn
	}
	s.mu.Unlock()
}

func (s *lspServer) notifier() notifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *lspServer) initialize() protocol.InitializeResult {
	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync:          protocol.TextDocumentSyncKindFull,
			DocumentHighlightProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: "scopelight"},
	}
}

// languageFor prefers the client's language id and falls back to the
// document's extension.
func languageFor(id protocol.LanguageIdentifier, uri protocol.DocumentURI) (string, bool) {
	if lang, ok := runtime.LanguageForScope(string(id)); ok {
		return lang, true
	}
	return runtime.LanguageForFile(string(uri))
}

func (s *lspServer) didOpen(ctx context.Context, p protocol.DidOpenTextDocumentParams) error {
	lang, ok := languageFor(p.TextDocument.LanguageID, p.TextDocument.URI)
	if !ok {
		s.logger.Debug("ignoring document in unsupported language",
			slog.String("uri", string(p.TextDocument.URI)),
			slog.String("language", string(p.TextDocument.LanguageID)))
		return nil
	}
	_, err := s.ws.Open(ctx, scopelight.BufferID(p.TextDocument.URI), lang, []byte(p.TextDocument.Text))
	return err
}

func (s *lspServer) didChange(ctx context.Context, p protocol.DidChangeTextDocumentParams) error {
	if len(p.ContentChanges) == 0 {
		return nil
	}
	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	_, err := s.ws.Update(ctx, scopelight.BufferID(p.TextDocument.URI), []byte(text))
	if errors.Is(err, workspace.ErrNotOpen) {
		return nil
	}
	return err
}

func (s *lspServer) didClose(p protocol.DidCloseTextDocumentParams) {
	buf := scopelight.BufferID(p.TextDocument.URI)
	s.coord.Clear(buf)
	s.ws.Close(buf)
	s.mu.Lock()
	delete(s.indexes, buf)
	s.mu.Unlock()
}

func (s *lspServer) selectionChanged(p selectionChangedParams) {
	buf := scopelight.BufferID(p.TextDocument.URI)
	doc, ok := s.ws.TreeFor(buf)
	if !ok {
		s.coord.SelectionChanged(buf, nil)
		return
	}
	ix := s.index(doc)
	sels := make([]scopelight.Selection, 0, len(p.Selections))
	for _, r := range p.Selections {
		sels = append(sels, scopelight.Selection{A: ix.offset(r.Start), B: ix.offset(r.End)})
	}
	s.coord.SelectionChanged(buf, sels)
}

func (s *lspServer) documentHighlight(ctx context.Context, p protocol.DocumentHighlightParams) []protocol.DocumentHighlight {
	out := []protocol.DocumentHighlight{}
	doc, ok := s.ws.TreeFor(scopelight.BufferID(p.TextDocument.URI))
	if !ok {
		return out
	}
	ix := s.index(doc)
	occs, err := s.engine.Occurrences(ctx, doc, ix.offset(p.Position))
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, scopelight.ErrUnknownScope) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "document highlight failed",
			slog.String("uri", string(p.TextDocument.URI)),
			slog.Any("error", err))
		return out
	}
	for _, o := range occs {
		kind := protocol.DocumentHighlightKindRead
		if o.Kind == scopelight.OccurrenceWrite {
			kind = protocol.DocumentHighlightKindWrite
		}
		out = append(out, protocol.DocumentHighlight{
			Range: ix.lspRange(o.Region.Start, o.Region.End),
			Kind:  kind,
		})
	}
	return out
}

// index returns the line index of doc, rebuilding it when the version
// moved on.
func (s *lspServer) index(doc *scopelight.Document) *lineIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.indexes[doc.Buffer]; ok && cached.version == doc.Version {
		return cached.ix
	}
	ix := newLineIndex(doc.Source)
	s.indexes[doc.Buffer] = indexedDoc{version: doc.Version, ix: ix}
	return ix
}

// SetHighlightLayer implements scopelight.Sink.
func (s *lspServer) SetHighlightLayer(buf scopelight.BufferID, layer scopelight.Layer, regions []scopelight.Region) {
	params := highlightParams{
		URI:    protocol.DocumentURI(buf),
		Layer:  string(layer),
		Ranges: []protocol.Range{},
	}
	if doc, ok := s.ws.TreeFor(buf); ok {
		params.Version = doc.Version
		ix := s.index(doc)
		for _, r := range regions {
			params.Ranges = append(params.Ranges, ix.lspRange(r.Start, r.End))
		}
	}

	conn := s.notifier()
	if conn == nil {
		return
	}
	if err := conn.Notify(context.Background(), methodHighlight, params); err != nil {
		s.logger.Debug("highlight notification dropped",
			slog.String("uri", string(buf)),
			slog.String("layer", string(layer)),
			slog.Any("error", err))
	}
}

// stdio joins stdin and stdout into the connection's stream.
type stdio struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdio) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s stdio) Close() error {
	return errors.Join(s.in.Close(), s.out.Close())
}
