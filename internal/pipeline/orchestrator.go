// Package pipeline drives one document parse end to end: layout analysis,
// concurrent element parsing through the scheduler, and reassembly of the
// ordered result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/imaging"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/layout"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/registry"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/scheduler"
)

// Stage-2 task prompts, one per element type. Figures resolve locally
// without an inference call.
const (
	PromptText    = "Read text in the image."
	PromptTable   = "Parse the table in the image."
	PromptFormula = "Read formula in the image."
)

// Config holds per-task processing settings.
type Config struct {
	MaxRetries      int
	FailurePolicy   domain.FailurePolicy
	RequestDeadline time.Duration
	MergeGapPx      float64
	MaxCropSide     int
}

func (c *Config) normalize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = domain.BestEffort
	}
	if c.RequestDeadline <= 0 {
		c.RequestDeadline = 120 * time.Second
	}
	if c.MergeGapPx <= 0 {
		c.MergeGapPx = 50
	}
	if c.MaxCropSide <= 0 {
		c.MaxCropSide = 1536
	}
}

// ElementError marks a permanent element-level failure with its element id.
type ElementError struct {
	ElementID string
	Err       error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %s: %v", e.ElementID, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// Orchestrator runs the per-task state machine:
// pending -> analyzing -> parsing -> assembling -> completed, with failed
// reachable from any state.
type Orchestrator struct {
	analyzer *layout.Analyzer
	sched    *scheduler.Scheduler
	reg      *registry.Registry
	cfg      Config
	logger   *observability.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an orchestrator.
func New(analyzer *layout.Analyzer, sched *scheduler.Scheduler, reg *registry.Registry, cfg Config, logger *observability.Logger) *Orchestrator {
	cfg.normalize()
	return &Orchestrator{
		analyzer: analyzer,
		sched:    sched,
		reg:      reg,
		cfg:      cfg,
		logger:   logger.WithComponent("pipeline"),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Run processes the task asynchronously. The task must already be admitted
// to the registry.
func (o *Orchestrator) Run(task *domain.Task, image []byte) {
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[task.ID] = cancel
	o.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.cancels, task.ID)
			o.mu.Unlock()
		}()
		o.Execute(ctx, task, image)
	}()
}

// Cancel aborts a running task. Queued element requests are dropped from
// unformed batches; already-dispatched requests run to completion and their
// results are discarded.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	if err := o.reg.Cancel(ctx, taskID); err != nil {
		return err
	}
	o.sched.CancelTask(taskID)

	o.mu.Lock()
	cancel, ok := o.cancels[taskID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	o.logger.Info().Str("task_id", taskID).Msg("Task cancelled")
	return nil
}

// Execute runs the task synchronously, driving registry transitions through
// to a terminal state, and returns the result.
func (o *Orchestrator) Execute(ctx context.Context, task *domain.Task, image []byte) (*domain.ParseResult, error) {
	result, err := o.process(ctx, task, image)
	if err != nil {
		if domain.IsType(err, domain.ErrorTypeCancelled) || errors.Is(err, context.Canceled) {
			// Cancel() marks the task terminal before firing the context,
			// but the caller's own context can also be cancelled mid-parse
			// (client disconnect, request timeout on the synchronous path).
			// Sweep the task to cancelled so it does not linger as
			// processing until store expiry; a no-op when Cancel() already
			// moved it.
			o.sched.CancelTask(task.ID)
			cerr := o.reg.Cancel(context.WithoutCancel(ctx), task.ID)
			if cerr != nil && !domain.IsType(cerr, domain.ErrorTypeValidation) && !errors.Is(cerr, registry.ErrNotFound) {
				o.logger.Error().Str("task_id", task.ID).Err(cerr).Msg("Failed to record task cancellation")
			}
			return nil, err
		}
		var ee *ElementError
		info := domain.InfoFromError(err, "")
		if errors.As(err, &ee) {
			info = domain.InfoFromError(ee.Err, ee.ElementID)
		}
		if ferr := o.reg.Fail(context.WithoutCancel(ctx), task.ID, info); ferr != nil {
			o.logger.Error().Str("task_id", task.ID).Err(ferr).Msg("Failed to record task failure")
		}
		o.logger.Warn().Str("task_id", task.ID).Err(err).Msg("Task failed")
		return nil, err
	}

	if cerr := o.reg.Complete(context.WithoutCancel(ctx), task.ID, result); cerr != nil {
		o.logger.Error().Str("task_id", task.ID).Err(cerr).Msg("Failed to record task completion")
		return nil, cerr
	}
	o.logger.Info().
		Str("task_id", task.ID).
		Int("elements", result.TotalElements).
		Int64("processing_ms", result.ProcessingTimeMs).
		Msg("Task completed")
	return result, nil
}

// elementWork is one anchor plus everything needed to parse it.
type elementWork struct {
	anchor domain.ElementAnchor
	crop   domain.ImageRef
	prompt string
}

func (o *Orchestrator) process(ctx context.Context, task *domain.Task, image []byte) (*domain.ParseResult, error) {
	start := time.Now()

	if err := o.reg.MarkProcessing(ctx, task.ID, domain.StageAnalyzing); err != nil {
		return nil, err
	}

	// Stage 1: layout analysis on the padded page.
	img, err := imaging.Decode(image)
	if err != nil {
		return nil, err
	}
	padded, dims := imaging.PadToSquare(img)
	pageRef, err := imaging.EncodeRef(padded)
	if err != nil {
		return nil, err
	}

	layoutElements, err := o.analyzer.Analyze(ctx, pageRef)
	if err != nil {
		return nil, err
	}

	// Build anchors and crops. Figures resolve locally.
	results := make([]domain.ParsedElement, len(layoutElements))
	done := make([]bool, len(layoutElements))
	anchors := make([]domain.ElementAnchor, len(layoutElements))
	var work []elementWork
	workIdx := make(map[string]int)

	for i, le := range layoutElements {
		rect := imaging.PixelRect(le.BBox, dims)
		anchor := domain.ElementAnchor{
			ElementID:    domain.NewElementID(),
			Type:         le.Type,
			BBox:         imaging.MapToOriginal(rect, dims),
			ReadingOrder: le.ReadingOrder,
		}
		anchors[i] = anchor

		if le.Type == domain.ElementFigure {
			results[i] = domain.ParsedElement{
				ElementID:    anchor.ElementID,
				Type:         anchor.Type,
				BBox:         anchor.BBox,
				Text:         "",
				Confidence:   1.0,
				ReadingOrder: anchor.ReadingOrder,
			}
			done[i] = true
			continue
		}

		crop := imaging.ResizeMax(imaging.Crop(padded, rect), o.cfg.MaxCropSide)
		ref, err := imaging.EncodeRef(crop)
		if err != nil {
			return nil, err
		}
		work = append(work, elementWork{anchor: anchor, crop: ref, prompt: promptFor(le.Type)})
		workIdx[anchor.ElementID] = i
	}

	// Stage 2: submit all element requests concurrently and await them.
	if err := o.reg.UpdateStage(ctx, task.ID, domain.StageParsing); err != nil {
		return nil, err
	}

	policy := task.Config.FailurePolicy
	if policy == "" {
		policy = o.cfg.FailurePolicy
	}

	gctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	// The first permanent failure under failFast is recorded here before the
	// task's siblings are cancelled, so it wins over the cancellation errors
	// their unwinding produces.
	var failMu sync.Mutex
	var failErr error

	g, gctx := errgroup.WithContext(gctx)
	for _, w := range work {
		w := w
		g.Go(func() error {
			elem, err := o.parseElement(gctx, task, w)
			if err != nil {
				if domain.IsType(err, domain.ErrorTypeCancelled) {
					return err
				}
				if policy == domain.FailFast {
					// Abort the rest of the task on first permanent failure.
					failMu.Lock()
					if failErr == nil {
						failErr = &ElementError{ElementID: w.anchor.ElementID, Err: err}
					}
					failMu.Unlock()
					o.sched.CancelTask(task.ID)
					return &ElementError{ElementID: w.anchor.ElementID, Err: err}
				}
				elem = placeholderElement(w.anchor, err)
			}
			i := workIdx[w.anchor.ElementID]
			results[i] = elem
			done[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failMu.Lock()
		if failErr != nil {
			err = failErr
		}
		failMu.Unlock()
		return nil, err
	}

	// Stage 3: reassembly in reading order.
	if err := o.reg.UpdateStage(ctx, task.ID, domain.StageAssembling); err != nil {
		return nil, err
	}

	for i, ok := range done {
		if !ok {
			return nil, &ElementError{
				ElementID: anchors[i].ElementID,
				Err:       domain.InferenceFailure("anchor has no parsed element", nil),
			}
		}
	}

	result := &domain.ParseResult{
		TotalElements:  len(results),
		Elements:       results,
		PageDimensions: domain.PageDimensions{Width: dims.OriginalW, Height: dims.OriginalH},
	}
	result.SortElements()

	if task.Config.MergeTextBlocks {
		result.Elements = MergeTextBlocks(result.Elements, o.cfg.MergeGapPx)
		result.TotalElements = len(result.Elements)
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// parseElement submits one element request, retrying transient inference
// failures. Each retry re-enters the scheduler queue as a fresh request
// carrying the same overall deadline.
func (o *Orchestrator) parseElement(ctx context.Context, task *domain.Task, w elementWork) (domain.ParsedElement, error) {
	deadline := time.Now().Add(o.cfg.RequestDeadline)

	for attempt := 0; ; attempt++ {
		req := domain.ElementRequest{
			TaskID:       task.ID,
			Anchor:       w.anchor,
			Crop:         w.crop,
			Prompt:       w.prompt,
			Deadline:     deadline,
			Retry:        attempt,
			MaxBatchSize: task.Config.MaxBatchSize,
		}

		res, err := o.sched.Submit(req).Wait(ctx)
		if err != nil {
			return domain.ParsedElement{}, domain.CancelledError("element parsing cancelled", err)
		}

		switch res.Outcome {
		case scheduler.OutcomeOK:
			text := cleanModelOutput(res.Text)
			return domain.ParsedElement{
				ElementID:    w.anchor.ElementID,
				Type:         w.anchor.Type,
				BBox:         w.anchor.BBox,
				Text:         text,
				Confidence:   scoreConfidence(text),
				ReadingOrder: w.anchor.ReadingOrder,
			}, nil

		case scheduler.OutcomeCancelled:
			return domain.ParsedElement{}, domain.CancelledError("element request cancelled", res.Err)

		default: // OutcomeFailed
			if retryable(res.Err) && attempt < o.cfg.MaxRetries {
				o.logger.Warn().
					Str("task_id", task.ID).
					Str("element_id", w.anchor.ElementID).
					Int("attempt", attempt+1).
					Err(res.Err).
					Msg("Element inference failed, retrying")
				continue
			}
			return domain.ParsedElement{}, res.Err
		}
	}
}

// retryable reports whether an element failure may re-enter the queue.
// Timeouts and capacity rejections are never retried.
func retryable(err error) bool {
	switch domain.TypeOf(err) {
	case domain.ErrorTypeInference, domain.ErrorTypeModel:
		return true
	}
	return false
}

// promptFor returns the stage-2 prompt for an element type.
func promptFor(t domain.ElementType) string {
	switch t {
	case domain.ElementTable:
		return PromptTable
	case domain.ElementFormula:
		return PromptFormula
	default:
		return PromptText
	}
}

// placeholderElement stands in for a permanently failed element under the
// bestEffort policy.
func placeholderElement(anchor domain.ElementAnchor, err error) domain.ParsedElement {
	return domain.ParsedElement{
		ElementID:    anchor.ElementID,
		Type:         anchor.Type,
		BBox:         anchor.BBox,
		Text:         "",
		Confidence:   0,
		ReadingOrder: anchor.ReadingOrder,
		Error:        err.Error(),
	}
}

// cleanModelOutput strips decoder artifacts from generated text.
func cleanModelOutput(s string) string {
	s = strings.ReplaceAll(s, "<pad>", "")
	s = strings.ReplaceAll(s, "</s>", "")
	s = strings.ReplaceAll(s, "<s>", "")
	return strings.TrimSpace(s)
}

// scoreConfidence grades a decode. The model reports no token scores, so
// this is a coarse heuristic: empty output is suspect, anything else clean.
func scoreConfidence(text string) float64 {
	if text == "" {
		return 0.2
	}
	return 1.0
}
