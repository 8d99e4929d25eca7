package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromise_ResolvesOnce(t *testing.T) {
	p := newPromise()

	p.resolve(Result{Outcome: OutcomeOK, Text: "first"})
	p.resolve(Result{Outcome: OutcomeFailed, Text: "second"})

	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "first", res.Text)
}

func TestPromise_ConcurrentResolve(t *testing.T) {
	p := newPromise()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.resolve(Result{Outcome: OutcomeOK})
		}()
	}
	wg.Wait()

	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, res.Outcome)
}

func TestPromise_WaitHonorsContext(t *testing.T) {
	p := newPromise()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
