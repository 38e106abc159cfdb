package service

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/observability"
)

// Processor handles one event. CaptureService is the production implementation.
type Processor interface {
	Process(ctx context.Context, event common.NotificationEvent) (Outcome, error)
}

// ResultFunc observes the outcome of every dispatched event.
type ResultFunc func(event common.NotificationEvent, outcome Outcome, err error)

// Dispatcher fans events out to a fixed pool of workers. Each event is processed
// independently; ordering across events is not preserved.
type Dispatcher struct {
	proc     Processor
	jobs     chan common.NotificationEvent
	workers  int
	onResult ResultFunc
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. workers <= 0 uses GOMAXPROCS; queueSize <= 0 uses workers*4.
func NewDispatcher(proc Processor, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	return &Dispatcher{
		proc:    proc,
		jobs:    make(chan common.NotificationEvent, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// OnResult registers fn to be called after each event. Must be called before Start.
func (d *Dispatcher) OnResult(fn ResultFunc) {
	d.onResult = fn
}

// Start launches the workers. Events queued after ctx is cancelled are dropped.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range d.jobs {
				observability.QueueDepth.Dec()
				if ctx.Err() != nil {
					d.logger.Warn("dispatcher stopped, dropping event", "package", event.SourcePackage)
					continue
				}
				outcome, err := d.proc.Process(ctx, event)
				if err != nil {
					d.logger.Debug("event failed", "package", event.SourcePackage, "outcome", outcome, "error", err)
				}
				if d.onResult != nil {
					d.onResult(event, outcome, err)
				}
			}
		}()
	}
	d.logger.Info("capture dispatcher started", "workers", d.workers, "queue_size", cap(d.jobs))
}

// Submit enqueues an event without blocking.
func (d *Dispatcher) Submit(event common.NotificationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return common.ErrQueueClosed
	}
	select {
	case d.jobs <- event:
		observability.QueueDepth.Inc()
		return nil
	default:
		return common.ErrQueueFull
	}
}

// SubmitWait enqueues an event, blocking until a slot frees up or ctx is done.
// Start must have been called, otherwise a full queue never drains.
func (d *Dispatcher) SubmitWait(ctx context.Context, event common.NotificationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return common.ErrQueueClosed
	}
	select {
	case d.jobs <- event:
		observability.QueueDepth.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, drains the queue and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("capture dispatcher stopped")
}
