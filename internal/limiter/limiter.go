// Package limiter provides a FIFO task scheduler with a fixed bound on the
// number of concurrently running tasks. It is the single admission-control
// point for every fan-out loop talking to an upstream host.
package limiter

import (
	"context"
	"sync"
)

// Task is a unit of work scheduled through the limiter.
type Task func(ctx context.Context) error

type item struct {
	ctx  context.Context
	task Task
	done chan error
}

// Limiter runs submitted tasks with at most N in flight, in submission
// order. Results are delivered per task, independent of completion order;
// no task is ever dropped.
type Limiter struct {
	mu     sync.Mutex
	queue  []*item
	active int
	max    int
}

// New builds a Limiter allowing up to max concurrent tasks.
func New(max int) *Limiter {
	if max <= 0 {
		max = 1
	}
	return &Limiter{max: max}
}

// Submit queues task and returns a channel that receives its result once.
// A task whose context is already canceled still runs its turn; tasks are
// expected to honor ctx themselves.
func (l *Limiter) Submit(ctx context.Context, task Task) <-chan error {
	it := &item{ctx: ctx, task: task, done: make(chan error, 1)}
	l.mu.Lock()
	l.queue = append(l.queue, it)
	l.mu.Unlock()
	l.dispatch()
	return it.done
}

// Do submits task and blocks until it finishes or ctx is done. On ctx
// cancellation the task keeps its queue slot but the caller stops waiting.
func (l *Limiter) Do(ctx context.Context, task Task) error {
	select {
	case err := <-l.Submit(ctx, task):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) dispatch() {
	l.mu.Lock()
	if l.active >= l.max || len(l.queue) == 0 {
		l.mu.Unlock()
		return
	}
	it := l.queue[0]
	l.queue = l.queue[1:]
	l.active++
	l.mu.Unlock()

	go func() {
		err := it.task(it.ctx)
		it.done <- err

		l.mu.Lock()
		l.active--
		l.mu.Unlock()
		l.dispatch()
	}()

	// More than one slot may be free after a burst of completions.
	l.dispatch()
}

// Active returns the number of currently running tasks.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
