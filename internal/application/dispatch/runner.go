package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tuition-notify/internal/domain"
)

var (
	ErrQueueFull     = errors.New("dispatch queue is full")
	ErrRunnerStopped = errors.New("dispatch runner is stopped")
)

// Job is one queued dispatch.
type Job struct {
	Event   domain.Event
	Content domain.Content
}

type dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event, content domain.Content) domain.DispatchOutcome
}

// Runner executes dispatches in the background so the triggering request
// never waits for, or fails because of, notification delivery.
type Runner struct {
	d       dispatcher
	workers int
	queue   chan Job

	mu      sync.Mutex
	closed  bool
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnOutcome, when set, is called after every dispatch. Tests use it.
	OnOutcome func(domain.DispatchOutcome)
}

func NewRunner(d dispatcher, workers, queueSize int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{d: d, workers: workers, queue: make(chan Job, queueSize), ctx: ctx, cancel: cancel}
}

// Start launches the workers. Calling it more than once is a no-op.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	log.Info().Int("workers", r.workers).Int("queue", cap(r.queue)).Msg("dispatch runner started")
}

// Submit queues a job without blocking.
func (r *Runner) Submit(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerStopped
	}
	select {
	case r.queue <- job:
		return nil
	default:
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(r.queue))
	}
}

// Stop refuses new jobs and waits for queued ones to finish. When ctx ends
// first, in-flight dispatches are cancelled and ctx.Err() is returned.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	started := r.started
	r.mu.Unlock()

	if !started {
		r.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *Runner) work(n int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.run(n, job)
	}
}

func (r *Runner) run(n int, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Int("worker", n).Str("event_id", job.Event.ID).Interface("panic", rec).Msg("dispatch worker recovered")
		}
	}()
	out := r.d.Dispatch(r.ctx, job.Event, job.Content)
	if r.OnOutcome != nil {
		r.OnOutcome(out)
	}
}
