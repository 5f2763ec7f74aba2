package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"call-classifier/internal/chain"
	"call-classifier/pkg/logger"
)

var (
	ErrQueueFull    = errors.New("dispatch queue is full")
	ErrShuttingDown = errors.New("dispatcher is shutting down")
)

// ResultHook observes every event a worker finished with.
type ResultHook func(out Dispatched, err error)

// Dispatcher feeds queued events to a pool of workers, each running them
// through the same Pipeline. A failing event is logged and counted; it does
// not stop its worker.
type Dispatcher struct {
	ingestionChan chan Envelope
	workerPool    []*Worker
	pipeline      *Pipeline
	validator     Validator
	onResult      ResultHook
	ctx           context.Context
	cancel        context.CancelFunc
	startTime     time.Time
	wg            sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type DispatcherOption func(*Dispatcher)

func WithResultHook(h ResultHook) DispatcherOption {
	return func(d *Dispatcher) { d.onResult = h }
}

func NewDispatcher(p *Pipeline, val Validator, workerCount, queueSize int, opts ...DispatcherOption) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		ingestionChan: make(chan Envelope, queueSize),
		pipeline:      p,
		validator:     val,
		ctx:           ctx,
		cancel:        cancel,
		startTime:     time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}

	log := logger.Get()
	log.Infow("starting dispatcher", "workers", workerCount, "queue_size", queueSize)

	for i := 0; i < workerCount; i++ {
		w := &Worker{
			id:         i + 1,
			jobChan:    d.ingestionChan,
			dispatcher: d,
			wg:         &d.wg,
		}
		d.workerPool = append(d.workerPool, w)
		w.Start(ctx)
	}

	log.Infow("dispatcher started", "worker_count", workerCount)
	return d
}

// Ingest queues ev without blocking and returns its event id.
func (d *Dispatcher) Ingest(ev chain.Event) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrShuttingDown
	}

	env := NewEnvelope(ev)
	select {
	case d.ingestionChan <- env:
	default:
		return "", ErrQueueFull
	}

	logger.Get().Debugw("event ingested", "event_id", env.ID, "type", ev["type"], "source", ev["source"])
	return env.ID, nil
}

// Shutdown stops accepting events, lets the workers drain the queue and
// waits for them. It is safe to call more than once.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	// close channel → lets workers finish draining
	close(d.ingestionChan)
	d.mu.Unlock()

	log := logger.Get()
	log.Info("initiating graceful shutdown")

	// cancel context → in case workers are blocked in select
	d.cancel()
	d.wg.Wait()

	log.Info("all workers stopped, shutdown complete")
}

func (d *Dispatcher) QueueDepth() int {
	return len(d.ingestionChan)
}

func (d *Dispatcher) WorkerCount() int {
	return len(d.workerPool)
}

func (d *Dispatcher) StartTime() time.Time {
	return d.startTime
}

func (d *Dispatcher) Context() context.Context {
	return d.ctx
}

func (d *Dispatcher) Metrics() *Metrics {
	return d.pipeline.Metrics()
}

type Worker struct {
	id         int
	jobChan    <-chan Envelope
	dispatcher *Dispatcher
	wg         *sync.WaitGroup
}

func (w *Worker) Start(ctx context.Context) {
	log := logger.Get().With("worker", w.id)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// queued jobs still run to completion after shutdown begins
		jobCtx := context.WithoutCancel(ctx)

		for {
			select {
			case job, ok := <-w.jobChan:
				if !ok {
					// channel closed, no more jobs
					log.Infow("worker exiting", "reason", "channel closed")
					return
				}
				w.processJob(jobCtx, job)

			case <-ctx.Done():
				// drain remaining jobs if any
				for job := range w.jobChan {
					w.processJob(jobCtx, job)
				}
				log.Infow("worker exiting", "reason", "context cancelled")
				return
			}
		}
	}()
}

func (w *Worker) processJob(ctx context.Context, job Envelope) {
	d := w.dispatcher
	log := logger.Get().With(
		"worker", w.id,
		"event_id", job.ID,
		"type", job.Event["type"],
		"source", job.Event["source"],
	)
	log.Debugw("event dequeued", "queued_ms", time.Since(job.ReceivedAt).Milliseconds())

	out := Dispatched{EventID: job.ID}
	var err error
	if d.validator != nil {
		err = d.validator.Validate(ctx, job.Event)
	}
	if err != nil {
		log.Warnw("validation failed", "error", err)
		d.pipeline.metrics.IncReceived()
		d.pipeline.metrics.IncFailed()
	} else {
		out, err = d.pipeline.Dispatch(ctx, job)
	}

	if d.onResult != nil {
		d.onResult(out, err)
	}
}
