package scheduler

import (
	"context"
	"sync"
)

// Outcome is the tri-state resolution of an element request.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// Result is delivered to the producer when its request resolves.
type Result struct {
	Outcome Outcome
	Text    string
	Err     error
}

// Promise is resolved exactly once by the scheduler when the request's
// result is available. Producers wait on it instead of blocking a worker.
type Promise struct {
	once sync.Once
	done chan struct{}
	res  Result
}

func newPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// resolve sets the result. Later calls are no-ops; resolution is final.
func (p *Promise) resolve(r Result) {
	p.once.Do(func() {
		p.res = r
		close(p.done)
	})
}

// Wait blocks until the promise resolves or the context is done.
func (p *Promise) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Done returns a channel closed on resolution.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}
