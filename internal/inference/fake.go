package inference

import (
	"context"
	"sync"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
)

// FakeClient is an in-memory Client for tests. It answers from a scripted
// table keyed by prompt and records every batch it receives.
type FakeClient struct {
	mu sync.Mutex

	// Responses maps a prompt to the canned output. Unknown prompts get
	// DefaultOutput.
	Responses     map[string]string
	DefaultOutput string

	// Latency is applied to every call before answering.
	Latency time.Duration

	// FailNext makes the next n batch calls fail with an InferenceFailure.
	FailNext int

	// FailPrompts fails any batch containing one of these prompts.
	FailPrompts map[string]bool

	// FailPromptCounts fails the next n batches containing the prompt,
	// decrementing per failure. Used to script transient failures.
	FailPromptCounts map[string]int

	// CostPerPixel overrides the estimate slope (default 1 byte per pixel
	// keeps test arithmetic simple).
	CostPerPixel int64

	batches [][]Request
}

// NewFakeClient creates a fake inference client.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Responses:        make(map[string]string),
		DefaultOutput:    "fake output",
		FailPrompts:      make(map[string]bool),
		FailPromptCounts: make(map[string]int),
		CostPerPixel:     1,
	}
}

// Infer implements Client.
func (f *FakeClient) Infer(ctx context.Context, prompt string, image domain.ImageRef) (string, error) {
	outputs, err := f.InferBatch(ctx, []Request{{Prompt: prompt, Image: image}})
	if err != nil {
		return "", err
	}
	return outputs[0], nil
}

// InferBatch implements Client.
func (f *FakeClient) InferBatch(ctx context.Context, reqs []Request) ([]string, error) {
	if f.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, domain.TimeoutError("inference call cancelled", ctx.Err())
		case <-time.After(f.Latency):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, append([]Request(nil), reqs...))

	if f.FailNext > 0 {
		f.FailNext--
		return nil, domain.InferenceFailure("scripted batch failure", nil)
	}
	for _, r := range reqs {
		if f.FailPrompts[r.Prompt] {
			return nil, domain.InferenceFailure("scripted failure for prompt", nil)
		}
		if f.FailPromptCounts[r.Prompt] > 0 {
			f.FailPromptCounts[r.Prompt]--
			return nil, domain.InferenceFailure("scripted transient failure", nil)
		}
	}

	outputs := make([]string, len(reqs))
	for i, r := range reqs {
		if out, ok := f.Responses[r.Prompt]; ok {
			outputs[i] = out
		} else {
			outputs[i] = f.DefaultOutput
		}
	}
	return outputs, nil
}

// EstimateCost implements Client.
func (f *FakeClient) EstimateCost(width, height int) int64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	return int64(width) * int64(height) * f.CostPerPixel
}

// Batches returns a copy of all batch calls received so far.
func (f *FakeClient) Batches() [][]Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]Request, len(f.batches))
	copy(out, f.batches)
	return out
}

// CallCount returns the number of batch calls received.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}
