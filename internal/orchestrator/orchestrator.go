// Package orchestrator fans each observed step count out to the local store and the remote targets.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/observability"
	"example.com/stepcount/internal/syncerr"
)

// ErrStopped is returned by Submit once the orchestrator has shut down.
var ErrStopped = errors.New("orchestrator stopped")

// ErrPublisherPanic wraps a panic raised inside a target's Publish.
var ErrPublisherPanic = errors.New("publisher panicked")

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Store is the local persistence step.
type Store interface {
	Insert(ctx context.Context, count int) (int64, error)
}

// Publisher mirrors one step count to a remote target.
type Publisher interface {
	Publish(ctx context.Context, sc domain.StepCount) error
}

// Target is a named remote destination. Detached targets run on their own goroutine and the
// worker does not wait for them.
type Target struct {
	Name      string
	Publisher Publisher
	Detached  bool
}

type job struct {
	correlationID string
	count         int
}

// Orchestrator runs the per-event sync sequence on a fixed pool of workers.
type Orchestrator struct {
	store     Store
	targets   []Target
	workers   int
	queueSize int
	queue     chan job
	logger    zerolog.Logger
	now       func() time.Time

	mu         sync.Mutex
	stopped    bool
	done       chan struct{}
	submitting sync.WaitGroup
	detached   sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTargets appends remote targets. Targets are attempted in the order given.
func WithTargets(targets ...Target) Option {
	return func(o *Orchestrator) { o.targets = append(o.targets, targets...) }
}

// WithWorkers sets the number of concurrent sync workers.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets how many submitted counts may wait for a worker.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.queueSize = n
		}
	}
}

// New builds an orchestrator around store. Call Serve to start the workers.
func New(store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		logger:    logging.Component("orchestrator"),
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.queue = make(chan job, o.queueSize)
	return o
}

// Submit queues count for syncing and returns without doing any I/O. When the queue is full
// it waits for a free slot, ctx cancellation, or shutdown. The correlation id on ctx, if any,
// follows the job into its log lines.
func (o *Orchestrator) Submit(ctx context.Context, count int) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrStopped
	}
	o.submitting.Add(1)
	o.mu.Unlock()
	defer o.submitting.Done()

	id := logging.CorrelationIDFromContext(ctx)
	if id == "" {
		id = logging.GenerateCorrelationID()
	}

	select {
	case o.queue <- job{correlationID: id, count: count}:
		observability.SetQueueDepth(len(o.queue))
		return nil
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve implements suture.Service. It runs the worker pool until ctx is cancelled, then
// processes whatever is still queued and waits for detached publishes to finish.
func (o *Orchestrator) Serve(ctx context.Context) error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return ErrStopped
	}
	o.mu.Unlock()

	o.logger.Info().Int("workers", o.workers).Int("queue_size", o.queueSize).Int("targets", len(o.targets)).Msg("sync orchestrator started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.workers; i++ {
		g.Go(func() error {
			o.work(gctx)
			return nil
		})
	}
	_ = g.Wait()

	o.shutdown(ctx)
	o.logger.Info().Msg("sync orchestrator stopped")
	return ctx.Err()
}

func (o *Orchestrator) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-o.queue:
			observability.SetQueueDepth(len(o.queue))
			o.process(ctx, j)
		}
	}
}

// shutdown rejects new submissions, then drains the queue. Drained jobs still reach the local
// store; remote publishes see the cancelled context and fail fast.
func (o *Orchestrator) shutdown(ctx context.Context) {
	o.mu.Lock()
	o.stopped = true
	close(o.done)
	o.mu.Unlock()

	o.submitting.Wait()

drain:
	for {
		select {
		case j := <-o.queue:
			o.process(ctx, j)
		default:
			break drain
		}
	}
	observability.SetQueueDepth(0)

	o.detached.Wait()
}

// process runs the sync sequence for one count. Each step is independent: a failed local
// insert does not stop the remote publishes, and a failed publish does not affect the others.
// The local insert ignores cancellation so a dequeued count is never lost locally.
// A panic in any step is logged and ends only the current job.
func (o *Orchestrator) process(ctx context.Context, j job) {
	ctx = logging.ContextWithCorrelationID(ctx, j.correlationID)
	logger := logging.Ctx(ctx, o.logger)
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Int("count", j.count).Msg("sync job panicked")
		}
	}()

	sc := domain.StepCount{Count: j.count}
	id, err := o.store.Insert(context.WithoutCancel(ctx), j.count)
	observability.RecordLocalInsert(err)
	if err != nil {
		logger.Error().Err(err).Str("code", string(syncerr.CodeOf(err))).Int("count", j.count).Msg("failed to store step count locally")
	} else {
		sc.ID = id
		logger.Debug().Int64("id", id).Int("count", j.count).Msg("step count stored locally")
	}

	for _, t := range o.targets {
		if t.Detached {
			o.detached.Add(1)
			go func(t Target) {
				defer o.detached.Done()
				o.publish(ctx, t, sc)
			}(t)
			continue
		}
		o.publish(ctx, t, sc)
	}

	observability.RecordEventSynced(o.now())
}

func (o *Orchestrator) publish(ctx context.Context, t Target, sc domain.StepCount) {
	start := o.now()
	err := o.callPublisher(ctx, t, sc)
	observability.RecordPublish(t.Name, o.now().Sub(start), err)
	if err == nil {
		return
	}

	logger := logging.Ctx(ctx, o.logger)
	event := logger.Warn()
	switch {
	case errors.Is(err, ErrPublisherPanic):
		event = logger.Error()
	case t.Detached:
		event = logger.Debug()
	}
	event.Err(err).Str("target", t.Name).Str("code", string(syncerr.CodeOf(err))).Int("count", sc.Count).Msg("publish failed")
}

// callPublisher turns a panic in Publish into an error so it is counted and logged like any
// other failed publish. Detached publishes run on their own goroutine, where an unrecovered
// panic would take the process down.
func (o *Orchestrator) callPublisher(ctx context.Context, t Target, sc domain.StepCount) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Ctx(ctx, o.logger).Error().Bytes("stack", debug.Stack()).Str("target", t.Name).Msg("recovered publisher panic")
			err = fmt.Errorf("%w: %v", ErrPublisherPanic, r)
		}
	}()
	return t.Publisher.Publish(ctx, sc)
}

func (o *Orchestrator) String() string {
	return "sync-orchestrator"
}
