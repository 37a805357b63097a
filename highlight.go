package scopelight

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// DefaultDelay is how long the Coordinator waits after a selection change
// before running a pass.
const DefaultDelay = 50 * time.Millisecond

// TreeSource supplies the latest parsed document for a buffer. It returns
// false while the buffer has not been parsed.
type TreeSource interface {
	TreeFor(buf BufferID) (*Document, bool)
}

// Sink renders highlights. Each call replaces the full region set of one
// layer for one buffer; an empty slice clears it.
type Sink interface {
	SetHighlightLayer(buf BufferID, layer Layer, regions []Region)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(buf BufferID, layer Layer, regions []Region)

func (f SinkFunc) SetHighlightLayer(buf BufferID, layer Layer, regions []Region) {
	f(buf, layer, regions)
}

// Coordinator turns selection changes into highlight passes. Caller and
// argument highlighting and reference highlighting are debounced
// independently per buffer, and each runs off the caller's goroutine unless
// an inline executor is configured.
type Coordinator struct {
	engine *Engine
	trees  TreeSource
	sink   Sink
	logger *slog.Logger

	delay    time.Duration
	exec     Executor
	queue    *TaskQueue // owned; nil when exec was supplied
	debounce *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithDelay sets the debounce delay of the default task queue.
func WithDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.delay = d
	}
}

// WithExecutor runs passes on exec instead of the default task queue.
func WithExecutor(exec Executor) CoordinatorOption {
	return func(c *Coordinator) {
		c.exec = exec
	}
}

// WithCoordinatorLogger sets the Coordinator's logger. The Engine's logger
// is not shared implicitly.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator. Call Close to stop its task queue.
func NewCoordinator(engine *Engine, trees TreeSource, sink Sink, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		engine: engine,
		trees:  trees,
		sink:   sink,
		logger: slog.Default(),
		delay:  DefaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.queue = NewTaskQueue(c.delay, 64, c.logger)
		c.exec = c.queue.Submit
	}
	c.debounce = NewDebouncer(c.exec)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Close cancels pending passes and waits for the owned task queue to drain.
func (c *Coordinator) Close() {
	c.cancel()
	if c.queue != nil {
		c.queue.Close()
	}
}

// SelectionChanged schedules a highlight pass for buf. Passes scheduled
// earlier for the same buffer that have not started yet are dropped.
func (c *Coordinator) SelectionChanged(buf BufferID, sels []Selection) {
	sels = slices.Clone(sels)
	c.debounce.Schedule(callsToken(buf), func() {
		c.guard(buf, "calls", func() { c.highlightCalls(buf, sels) })
	})
	c.debounce.Schedule(referencesToken(buf), func() {
		c.guard(buf, "references", func() { c.highlightReferences(buf, sels) })
	})
}

// Clear empties every layer of buf, e.g. when the buffer closes. It is
// ordered after passes already scheduled for buf, and the buffer's debounce
// state is released once it has run.
func (c *Coordinator) Clear(buf BufferID) {
	c.debounce.ScheduleLast(callsToken(buf), func() {
		c.clear(buf, LayerCaller, LayerArgumentParens, LayerArgumentContents)
	})
	c.debounce.ScheduleLast(referencesToken(buf), func() {
		c.clear(buf, LayerReferences)
	})
}

func callsToken(buf BufferID) string      { return string(buf) + "\x00calls" }
func referencesToken(buf BufferID) string { return string(buf) + "\x00references" }

func (c *Coordinator) highlightCalls(buf BufferID, sels []Selection) {
	doc, ok := c.trees.TreeFor(buf)
	if !ok {
		c.logger.Debug("no tree yet", slog.String("buffer", string(buf)))
		c.clear(buf, LayerCaller, LayerArgumentParens, LayerArgumentContents)
		return
	}
	callers := c.engine.Callers(doc, sels)
	parens, contents := c.engine.Arguments(doc, sels)
	c.sink.SetHighlightLayer(buf, LayerCaller, callers)
	c.sink.SetHighlightLayer(buf, LayerArgumentParens, parens)
	c.sink.SetHighlightLayer(buf, LayerArgumentContents, contents)
}

func (c *Coordinator) highlightReferences(buf BufferID, sels []Selection) {
	if c.ctx.Err() != nil {
		return
	}
	doc, ok := c.trees.TreeFor(buf)
	if !ok {
		c.logger.Debug("no tree yet", slog.String("buffer", string(buf)))
		c.clear(buf, LayerReferences)
		return
	}

	start := time.Now()
	refs, err := c.engine.References(c.ctx, doc, sels)
	if err != nil {
		var qerr *QuerySyntaxError
		switch {
		case skippable(err):
			c.logger.Debug("reference pass skipped",
				slog.String("buffer", string(buf)),
				slog.String("language", doc.Language),
				slog.Any("error", err))
		case errors.As(err, &qerr):
			c.logger.Error("query does not compile",
				slog.String("language", qerr.Language),
				slog.String("file", qerr.File),
				slog.Any("error", err))
		case errors.Is(err, context.Canceled):
			return
		default:
			c.logger.Error("reference pass failed",
				slog.String("buffer", string(buf)),
				slog.Any("error", err))
		}
		c.clear(buf, LayerReferences)
		return
	}
	c.sink.SetHighlightLayer(buf, LayerReferences, refs)
	c.logger.Debug("reference pass",
		slog.String("buffer", string(buf)),
		slog.Uint64("version", doc.Version),
		slog.Int("regions", len(refs)),
		slog.Duration("took", time.Since(start)))
}

func (c *Coordinator) clear(buf BufferID, layers ...Layer) {
	for _, l := range layers {
		c.sink.SetHighlightLayer(buf, l, []Region{})
	}
}

// guard keeps a panicking pass from taking down the executor's goroutine.
func (c *Coordinator) guard(buf BufferID, pass string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("highlight pass panicked",
				slog.String("buffer", string(buf)),
				slog.String("pass", pass),
				slog.Any("panic", r))
		}
	}()
	fn()
}
