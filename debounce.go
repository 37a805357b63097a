package scopelight

import (
	"log/slog"
	"sync"
	"time"
)

// Executor runs a task, usually later and on another goroutine.
type Executor func(task func())

// Inline runs each task immediately on the caller's goroutine.
func Inline(task func()) { task() }

// AfterDelay returns an Executor that runs each task on its own timer
// goroutine once d has elapsed.
func AfterDelay(d time.Duration) Executor {
	return func(task func()) {
		time.AfterFunc(d, task)
	}
}

// Debouncer coalesces rapid requests per token. Each Schedule gives the
// token a new generation; a task only runs if its generation is still the
// latest when the executor gets to it, so of several requests scheduled
// before any runs, exactly the last one does work. Generations come from one
// sequence shared by all tokens and are never reused, so a token can be
// forgotten without reviving stale tasks.
type Debouncer struct {
	exec Executor

	mu     sync.Mutex
	seq    uint64
	latest map[string]uint64
}

// NewDebouncer creates a Debouncer handing tasks to exec.
func NewDebouncer(exec Executor) *Debouncer {
	if exec == nil {
		exec = Inline
	}
	return &Debouncer{exec: exec, latest: make(map[string]uint64)}
}

// Schedule registers task as the latest request for token.
func (d *Debouncer) Schedule(token string, task func()) {
	gen := d.register(token)
	d.exec(func() {
		if d.current(token, gen) {
			task()
		}
	})
}

// ScheduleLast is Schedule for a token's final request, such as clearing a
// closed buffer. Once task has run the token is forgotten. A later Schedule
// supersedes it as usual and keeps the token alive.
func (d *Debouncer) ScheduleLast(token string, task func()) {
	gen := d.register(token)
	d.exec(func() {
		if !d.current(token, gen) {
			return
		}
		defer d.forget(token, gen)
		task()
	})
}

// Generation returns the generation of token's latest request, or 0 when
// the token is not tracked.
func (d *Debouncer) Generation(token string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest[token]
}

// Tracked returns the number of tokens with a live generation.
func (d *Debouncer) Tracked() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.latest)
}

func (d *Debouncer) register(token string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.latest[token] = d.seq
	return d.seq
}

func (d *Debouncer) current(token string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest[token] == gen
}

func (d *Debouncer) forget(token string, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest[token] == gen {
		delete(d.latest, token)
	}
}

// TaskQueue runs tasks one at a time on a single worker goroutine. Each task
// waits until delay has passed since it was submitted, so tasks that turn
// out to be stale cost nothing beyond their own check.
type TaskQueue struct {
	delay  time.Duration
	logger *slog.Logger
	tasks  chan queued
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

type queued struct {
	at   time.Time
	task func()
}

// NewTaskQueue starts a queue with the given per-task delay and buffer size.
func NewTaskQueue(delay time.Duration, size int, logger *slog.Logger) *TaskQueue {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	q := &TaskQueue{
		delay:  delay,
		logger: logger,
		tasks:  make(chan queued, size),
		done:   make(chan struct{}),
	}
	go q.work()
	return q
}

// Submit enqueues task. It blocks while the buffer is full and drops the
// task once the queue is closed. Submit is an Executor.
func (q *TaskQueue) Submit(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.tasks <- queued{at: time.Now(), task: task}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *TaskQueue) work() {
	defer close(q.done)
	for item := range q.tasks {
		if wait := q.delay - time.Since(item.at); wait > 0 {
			time.Sleep(wait)
		}
		q.run(item.task)
	}
}

func (q *TaskQueue) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", slog.Any("panic", r))
		}
	}()
	task()
}
