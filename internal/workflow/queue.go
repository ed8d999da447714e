package workflow

import "sync"

// commandKind distinguishes queued engine commands.
type commandKind int

const (
	// cmdRun requests execution of a named step.
	cmdRun commandKind = iota + 1
	// cmdAdvance asks the engine to run the next eligible step, if
	// auto-progress is still on when the command is processed.
	cmdAdvance
	// cmdResume re-enables auto-progress and retries from the first failure.
	cmdResume
)

// command is one unit of work for the engine loop.
type command struct {
	kind commandKind
	step StepName // for cmdRun
}

// commandQueue is a thread-safe FIFO for engine commands.
//
// External callers (UI handlers, scheduled continuations) enqueue while the
// engine's single Run loop dequeues; that single-writer arrangement is what
// serializes step execution. Unbounded: auto-progress enqueues at most one
// continuation per completed step.
type commandQueue struct {
	mu     sync.Mutex
	cmds   []command
	closed bool
	signal chan struct{} // signals availability, buffered size 1
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		cmds:   make([]command, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a command. Returns false if the queue is closed.
// Thread-safe: may be called from any goroutine.
func (q *commandQueue) Enqueue(c command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.cmds = append(q.cmds, c)

	// Coalesce signals: buffer of 1 is enough to wake the loop.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *commandQueue) TryDequeue() (command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.cmds) == 0 {
		return command{}, false
	}
	c := q.cmds[0]
	q.cmds[0] = command{}
	if len(q.cmds) == 1 {
		q.cmds = q.cmds[:0]
	} else {
		q.cmds = q.cmds[1:]
	}
	return c, true
}

// Wait returns the availability signal channel for use in a select.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cmds)
}

// Closed reports whether the queue has been closed.
func (q *commandQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes all waiters.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
