// Package registry tracks task lifecycle for asynchronous polling clients.
// It owns the lifecycle transitions; persistence and expiry belong to the
// backing Store.
package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// Registry manages task records. Reads may run concurrently with polling;
// each task has a single writer (its owning pipeline), enforced here with a
// per-registry write lock around read-modify-write transitions.
type Registry struct {
	store  Store
	logger *observability.Logger

	mu sync.Mutex // serializes transitions

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Counts is a task counter snapshot for the status endpoint.
type Counts struct {
	Active    int64 `json:"active_tasks"`
	Completed int64 `json:"completed_tasks"`
	Failed    int64 `json:"failed_tasks"`
}

// New creates a task registry over the given store.
func New(store Store, logger *observability.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.WithComponent("registry"),
	}
}

// Create admits a new pending task and returns it.
func (r *Registry) Create(ctx context.Context, cfg domain.ProcessingConfig) (*domain.Task, error) {
	task := domain.NewTask(cfg)
	if err := r.store.Put(ctx, task); err != nil {
		return nil, err
	}
	r.active.Add(1)
	r.logger.Debug().Str("task_id", task.ID).Msg("Task created")
	return task, nil
}

// Get retrieves a task. Returns ErrNotFound for unknown or expired ids.
func (r *Registry) Get(ctx context.Context, id string) (*domain.Task, error) {
	return r.store.Get(ctx, id)
}

// MarkProcessing moves a pending task into processing at the given stage.
func (r *Registry) MarkProcessing(ctx context.Context, id string, stage domain.TaskStage) error {
	return r.transition(ctx, id, func(t *domain.Task) error {
		if t.Status.Terminal() {
			return domain.ValidationError("task already terminal", nil)
		}
		if t.StartedAt == nil {
			now := time.Now().UTC()
			t.StartedAt = &now
		}
		t.Status = domain.StatusProcessing
		t.Stage = stage
		return nil
	})
}

// UpdateStage advances the pipeline stage of a processing task.
func (r *Registry) UpdateStage(ctx context.Context, id string, stage domain.TaskStage) error {
	return r.transition(ctx, id, func(t *domain.Task) error {
		if t.Status != domain.StatusProcessing {
			return domain.ValidationError("task is not processing", nil)
		}
		t.Stage = stage
		return nil
	})
}

// Complete finalizes a task with its parse result.
func (r *Registry) Complete(ctx context.Context, id string, result *domain.ParseResult) error {
	err := r.transition(ctx, id, func(t *domain.Task) error {
		if t.Status.Terminal() {
			return domain.ValidationError("task already terminal", nil)
		}
		now := time.Now().UTC()
		t.Status = domain.StatusCompleted
		t.Stage = ""
		t.CompletedAt = &now
		t.Result = result
		return nil
	})
	if err == nil {
		r.active.Add(-1)
		r.completed.Add(1)
	}
	return err
}

// Fail finalizes a task with an error. Never silently dropped: the error
// info carries the originating code and failing element id.
func (r *Registry) Fail(ctx context.Context, id string, info *domain.ErrorInfo) error {
	err := r.transition(ctx, id, func(t *domain.Task) error {
		if t.Status.Terminal() {
			return domain.ValidationError("task already terminal", nil)
		}
		now := time.Now().UTC()
		t.Status = domain.StatusFailed
		t.Stage = ""
		t.CompletedAt = &now
		t.Error = info
		return nil
	})
	if err == nil {
		r.active.Add(-1)
		r.failed.Add(1)
	}
	return err
}

// Cancel marks a non-terminal task cancelled.
func (r *Registry) Cancel(ctx context.Context, id string) error {
	err := r.transition(ctx, id, func(t *domain.Task) error {
		if t.Status.Terminal() {
			return domain.ValidationError("task already terminal", nil)
		}
		now := time.Now().UTC()
		t.Status = domain.StatusCancelled
		t.Stage = ""
		t.CompletedAt = &now
		return nil
	})
	if err == nil {
		r.active.Add(-1)
	}
	return err
}

// Counts returns the task counter snapshot.
func (r *Registry) Counts() Counts {
	return Counts{
		Active:    r.active.Load(),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
	}
}

// transition applies a mutation under the write lock and persists it.
func (r *Registry) transition(ctx context.Context, id string, mutate func(*domain.Task) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := mutate(task); err != nil {
		return err
	}
	return r.store.Put(ctx, task)
}
