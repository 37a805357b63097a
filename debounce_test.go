package scopelight

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualExecutor holds tasks until the test runs them.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (m *manualExecutor) exec(task func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
}

func (m *manualExecutor) runAll() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

func TestDebouncer_CoalescesToLatest(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var ran []int
	d.Schedule("calls", func() { ran = append(ran, 1) })
	d.Schedule("calls", func() { ran = append(ran, 2) })
	m.runAll()

	assert.Equal(t, []int{2}, ran, "exactly one execution, the second")
	assert.Equal(t, uint64(2), d.Generation("calls"))
}

func TestDebouncer_TokensAreIndependent(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var calls, refs int
	d.Schedule("calls", func() { calls++ })
	d.Schedule("references", func() { refs++ })
	d.Schedule("calls", func() { calls += 10 })
	m.runAll()

	assert.Equal(t, 10, calls)
	assert.Equal(t, 1, refs)
}

func TestDebouncer_RunsAgainAfterExecution(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var n int
	d.Schedule("t", func() { n++ })
	m.runAll()
	d.Schedule("t", func() { n++ })
	m.runAll()
	assert.Equal(t, 2, n)
}

func TestDebouncer_InlineNeverCoalesces(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(nil)

	var n int
	d.Schedule("t", func() { n++ })
	d.Schedule("t", func() { n++ })
	assert.Equal(t, 2, n)
}

func TestDebouncer_ScheduleLastForgetsToken(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var ran []string
	d.Schedule("buf", func() { ran = append(ran, "pass") })
	d.ScheduleLast("buf", func() { ran = append(ran, "clear") })
	assert.Equal(t, 1, d.Tracked())
	m.runAll()

	assert.Equal(t, []string{"clear"}, ran)
	assert.Equal(t, 0, d.Tracked())
	assert.Equal(t, uint64(0), d.Generation("buf"))
}

func TestDebouncer_ScheduleLastSuperseded(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var ran []string
	d.ScheduleLast("buf", func() { ran = append(ran, "clear") })
	d.Schedule("buf", func() { ran = append(ran, "reopened") })
	m.runAll()

	assert.Equal(t, []string{"reopened"}, ran)
	assert.Equal(t, 1, d.Tracked(), "a superseded final request keeps the token")
}

func TestDebouncer_StaleTaskAfterForget(t *testing.T) {
	t.Parallel()
	m := &manualExecutor{}
	d := NewDebouncer(m.exec)

	var ran []string
	d.Schedule("buf", func() { ran = append(ran, "stale") })
	stale := m.tasks[0]
	m.tasks = nil

	d.ScheduleLast("buf", func() { ran = append(ran, "clear") })
	m.runAll()
	require.Equal(t, 0, d.Tracked())

	// The token starts afresh; the old task must not pass for the new one.
	d.Schedule("buf", func() { ran = append(ran, "fresh") })
	stale()
	m.runAll()
	assert.Equal(t, []string{"clear", "fresh"}, ran)
}

func TestDebouncer_BurstOnTaskQueue(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(20*time.Millisecond, 128, nil)
	d := NewDebouncer(q.Submit)

	var ran atomic.Int64
	var last atomic.Int64
	for i := 1; i <= 50; i++ {
		d.Schedule("t", func() {
			ran.Add(1)
			last.Store(int64(i))
		})
	}
	q.Close()

	assert.Equal(t, int64(1), ran.Load())
	assert.Equal(t, int64(50), last.Load())
}

func TestTaskQueue_RunsInOrder(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(0, 4, nil)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Close()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestTaskQueue_WaitsForDelay(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(30*time.Millisecond, 1, nil)
	start := time.Now()
	var elapsed time.Duration
	q.Submit(func() { elapsed = time.Since(start) })
	q.Close()
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestTaskQueue_SurvivesPanicAndDropsAfterClose(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue(0, 2, nil)

	var ran atomic.Bool
	q.Submit(func() { panic("boom") })
	q.Submit(func() { ran.Store(true) })
	q.Close()
	assert.True(t, ran.Load())

	q.Submit(func() { t.Error("task submitted after Close ran") })
	q.Close()
}

func TestAfterDelay(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	AfterDelay(time.Millisecond)(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "task did not run")
	}
}
