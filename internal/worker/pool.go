package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClosed    = errors.New("worker: pool closed")
	ErrQueueFull = errors.New("worker: queue full")
)

// Task is one unit of background work. OnPanic, when set, is called with the
// recovered value so the owner can record the failure.
type Task struct {
	Name    string
	Run     func(ctx context.Context) error
	OnPanic func(recovered any)
}

// Pool runs tasks on a fixed number of goroutines. Task contexts derive from
// the pool's base context, never from the submitting request.
type Pool struct {
	logger zerolog.Logger
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.RWMutex
	closed bool
}

// NewPool starts size workers reading from a queue of capacity queueSize.
func NewPool(base context.Context, size, queueSize int, logger zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(base))
	p := &Pool{
		logger: logger,
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		group:  &errgroup.Group{},
	}
	for i := 0; i < size; i++ {
		id := i
		p.group.Go(func() error {
			p.loop(id)
			return nil
		})
	}
	logger.Info().Int("workers", size).Int("queue", queueSize).Msg("worker: pool started")
	return p
}

// Submit enqueues t without blocking.
func (p *Pool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued and running tasks to
// finish. When ctx expires first, running tasks are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) loop(id int) {
	for t := range p.queue {
		p.run(id, t)
	}
}

func (p *Pool) run(id int, t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int("worker", id).
				Str("task", t.Name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("worker: task panicked")
			if t.OnPanic != nil {
				t.OnPanic(r)
			}
		}
	}()

	p.logger.Debug().Int("worker", id).Str("task", t.Name).Msg("worker: picked task")
	if err := t.Run(p.ctx); err != nil {
		p.logger.Warn().Err(err).Int("worker", id).Str("task", t.Name).Msg("worker: task returned error")
	}
}
