// Package scheduler turns a concurrent stream of element-parsing requests
// into batched inference calls. It is the only component allowed to submit
// work to the inference adapter: a single decision loop owns the pending
// queue and the memory-budget accounting, while dispatched batches execute
// concurrently up to the admission limit.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/inference"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// Config holds batch formation settings.
type Config struct {
	// MaxBatchSize caps requests per batch, 1..64.
	MaxBatchSize int

	// MemoryBudgetBytes caps the summed cost estimate per batch. A request
	// whose own estimate exceeds it is dispatched alone.
	MemoryBudgetBytes int64

	// MaxRequestBytes rejects a request outright when its estimate exceeds
	// this ceiling even in isolation. Zero disables the check.
	MaxRequestBytes int64

	// FormationWindow bounds how long the oldest pending request may wait
	// before a batch is forced out.
	FormationWindow time.Duration

	// MaxConcurrentBatches is the admission limit K. Default 1.
	MaxConcurrentBatches int
}

func (c *Config) normalize() {
	if c.MaxBatchSize < 1 {
		c.MaxBatchSize = 1
	}
	if c.MaxBatchSize > 64 {
		c.MaxBatchSize = 64
	}
	if c.MemoryBudgetBytes <= 0 {
		c.MemoryBudgetBytes = 256 << 20
	}
	if c.FormationWindow <= 0 {
		c.FormationWindow = 50 * time.Millisecond
	}
	if c.MaxConcurrentBatches < 1 {
		c.MaxConcurrentBatches = 1
	}
}

// Stats is a snapshot of scheduler counters for the status endpoint.
type Stats struct {
	QueueDepth        int   `json:"queue_depth"`
	InFlightBatches   int   `json:"in_flight_batches"`
	DispatchedBatches int64 `json:"dispatched_batches"`
	BatchedRequests   int64 `json:"batched_requests"`
	Rejected          int64 `json:"rejected"`
	TimedOut          int64 `json:"timed_out"`
	CancelledDrops    int64 `json:"cancelled_drops"`
}

// pending is one queued request plus its resolution promise.
type pending struct {
	req        domain.ElementRequest
	promise    *Promise
	cost       int64
	enqueuedAt time.Time
}

// batchJob is an ephemeral grouping between formation and dispatch.
type batchJob struct {
	items       []*pending
	submittedAt time.Time
}

type submitMsg struct {
	item *pending
}

// Scheduler is the element batcher.
type Scheduler struct {
	cfg    Config
	client inference.Client
	logger *observability.Logger

	submitCh chan submitMsg
	cancelCh chan string
	doneCh   chan struct{} // batch completion notifications
	stopCh   chan struct{}
	stopped  chan struct{}

	queueDepth atomic.Int64
	inFlight   atomic.Int64
	dispatched atomic.Int64
	batched    atomic.Int64
	rejected   atomic.Int64
	timedOut   atomic.Int64
	dropped    atomic.Int64
}

// New creates a scheduler and starts its decision loop.
func New(client inference.Client, cfg Config, logger *observability.Logger) *Scheduler {
	cfg.normalize()
	s := &Scheduler{
		cfg:      cfg,
		client:   client,
		logger:   logger.WithComponent("scheduler"),
		submitCh: make(chan submitMsg, 256),
		cancelCh: make(chan string, 64),
		doneCh:   make(chan struct{}, 64),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit enqueues one element request and returns its promise. It never
// blocks on batch execution. Oversized requests are rejected immediately.
func (s *Scheduler) Submit(req domain.ElementRequest) *Promise {
	p := newPromise()

	cost := s.client.EstimateCost(req.Crop.Width, req.Crop.Height)
	if s.cfg.MaxRequestBytes > 0 && cost > s.cfg.MaxRequestBytes {
		s.rejected.Add(1)
		p.resolve(Result{
			Outcome: OutcomeFailed,
			Err: domain.CapacityError(
				fmt.Sprintf("request estimate %d exceeds per-request ceiling %d", cost, s.cfg.MaxRequestBytes), nil),
		})
		return p
	}

	item := &pending{
		req:        req,
		promise:    p,
		cost:       cost,
		enqueuedAt: time.Now(),
	}

	select {
	case s.submitCh <- submitMsg{item: item}:
	case <-s.stopCh:
		p.resolve(Result{
			Outcome: OutcomeCancelled,
			Err:     domain.CancelledError("scheduler stopped", nil),
		})
	}
	return p
}

// CancelTask drops all still-queued requests of the task. Requests already
// inside a dispatched batch cannot be recalled; their results are discarded
// on arrival by the owning pipeline.
func (s *Scheduler) CancelTask(taskID string) {
	select {
	case s.cancelCh <- taskID:
	case <-s.stopCh:
	}
}

// Stop shuts the decision loop down, resolving all queued requests as
// cancelled. In-flight batches run to completion.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.stopped
}

// Stats returns a counter snapshot.
func (s *Scheduler) Stats() Stats {
	return Stats{
		QueueDepth:        int(s.queueDepth.Load()),
		InFlightBatches:   int(s.inFlight.Load()),
		DispatchedBatches: s.dispatched.Load(),
		BatchedRequests:   s.batched.Load(),
		Rejected:          s.rejected.Load(),
		TimedOut:          s.timedOut.Load(),
		CancelledDrops:    s.dropped.Load(),
	}
}

// run is the serialized decision loop. All queue mutation happens here.
func (s *Scheduler) run() {
	defer close(s.stopped)

	var queue []*pending
	inFlight := 0
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	timerSet := false

	resetTimer := func() {
		if timerSet {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timerSet = false
		}
		if len(queue) == 0 {
			return
		}
		wait := time.Until(queue[0].enqueuedAt.Add(s.cfg.FormationWindow))
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
		timerSet = true
	}

	maybeDispatch := func(windowExpired bool) {
		queue = s.dropExpired(queue)
		for inFlight < s.cfg.MaxConcurrentBatches && len(queue) > 0 {
			job, rest, forced := s.formBatch(queue)
			oldestExpired := windowExpired ||
				time.Since(queue[0].enqueuedAt) >= s.cfg.FormationWindow
			if !forced && !oldestExpired {
				break // keep accumulating until the window closes
			}
			queue = rest
			inFlight++
			s.inFlight.Store(int64(inFlight))
			s.dispatch(job)
			windowExpired = false
		}
		s.queueDepth.Store(int64(len(queue)))
		resetTimer()
	}

	for {
		select {
		case <-s.stopCh:
			for _, item := range queue {
				item.promise.resolve(Result{
					Outcome: OutcomeCancelled,
					Err:     domain.CancelledError("scheduler stopped", nil),
				})
			}
			s.queueDepth.Store(0)
			return

		case msg := <-s.submitCh:
			queue = append(queue, msg.item)
			maybeDispatch(false)

		case taskID := <-s.cancelCh:
			kept := queue[:0]
			for _, item := range queue {
				if item.req.TaskID == taskID {
					s.dropped.Add(1)
					item.promise.resolve(Result{
						Outcome: OutcomeCancelled,
						Err:     domain.CancelledError("task cancelled", nil),
					})
					continue
				}
				kept = append(kept, item)
			}
			queue = kept
			maybeDispatch(false)

		case <-timer.C:
			timerSet = false
			maybeDispatch(true)

		case <-s.doneCh:
			inFlight--
			s.inFlight.Store(int64(inFlight))
			maybeDispatch(false)
		}
	}
}

// dropExpired removes queued requests whose deadline passed before they were
// ever batched. They fail with Timeout and consume no batch slot.
func (s *Scheduler) dropExpired(queue []*pending) []*pending {
	now := time.Now()
	kept := queue[:0]
	for _, item := range queue {
		if !item.req.Deadline.IsZero() && now.After(item.req.Deadline) {
			s.timedOut.Add(1)
			item.promise.resolve(Result{
				Outcome: OutcomeFailed,
				Err:     domain.TimeoutError("request deadline exceeded while queued", nil),
			})
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// formBatch cuts a batch from the head of the queue. It returns the job,
// the remaining queue, and whether the cut is forced (size cap reached or
// the next request no longer fits the memory budget), in which case the
// batch dispatches without waiting for the formation window.
func (s *Scheduler) formBatch(queue []*pending) (*batchJob, []*pending, bool) {
	job := &batchJob{submittedAt: time.Now()}
	var total int64
	sizeCap := s.cfg.MaxBatchSize

	i := 0
	for ; i < len(queue); i++ {
		item := queue[i]
		if len(job.items) == 0 {
			// An oversized request occupies a batch by itself.
			job.items = append(job.items, item)
			total = item.cost
			sizeCap = s.requestCap(item.req)
			if item.cost >= s.cfg.MemoryBudgetBytes {
				i++
				return job, queue[i:], true
			}
			continue
		}
		if len(job.items) >= sizeCap {
			return job, queue[i:], true
		}
		if c := s.requestCap(item.req); c < sizeCap {
			if len(job.items)+1 > c {
				return job, queue[i:], true
			}
			sizeCap = c
		}
		if total+item.cost > s.cfg.MemoryBudgetBytes {
			return job, queue[i:], true
		}
		job.items = append(job.items, item)
		total += item.cost
	}

	forced := len(job.items) >= sizeCap
	return job, queue[i:], forced
}

// requestCap is the batch size cap a request imposes: its own limit when it
// carries one tighter than the scheduler's, the configured cap otherwise.
func (s *Scheduler) requestCap(req domain.ElementRequest) int {
	if req.MaxBatchSize >= 1 && req.MaxBatchSize < s.cfg.MaxBatchSize {
		return req.MaxBatchSize
	}
	return s.cfg.MaxBatchSize
}

// dispatch executes one batch asynchronously. Request-result correspondence
// is positional within the batch.
func (s *Scheduler) dispatch(job *batchJob) {
	s.dispatched.Add(1)
	s.batched.Add(int64(len(job.items)))

	go func() {
		defer func() { s.doneCh <- struct{}{} }()

		reqs := make([]inference.Request, len(job.items))
		for i, item := range job.items {
			reqs[i] = inference.Request{Prompt: item.req.Prompt, Image: item.req.Crop}
		}

		start := time.Now()
		outputs, err := s.client.InferBatch(context.Background(), reqs)
		if err != nil {
			s.logger.Error().
				Int("batch_size", len(job.items)).
				Err(err).
				Msg("Batch inference failed")
			for _, item := range job.items {
				item.promise.resolve(Result{
					Outcome: OutcomeFailed,
					Err:     domain.InferenceFailure("batch inference failed", err),
				})
			}
			return
		}

		s.logger.Debug().
			Int("batch_size", len(job.items)).
			Dur("latency", time.Since(start)).
			Msg("Batch dispatched and completed")

		for i, item := range job.items {
			item.promise.resolve(Result{Outcome: OutcomeOK, Text: outputs[i]})
		}
	}()
}
