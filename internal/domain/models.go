// Package domain holds the core data model shared across the SmartDoc engine.
package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a parse task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TaskStage is the fine-grained pipeline stage within StatusProcessing.
type TaskStage string

const (
	StageAnalyzing  TaskStage = "analyzing"
	StageParsing    TaskStage = "parsing"
	StageAssembling TaskStage = "assembling"
)

// ElementType identifies the kind of document element.
type ElementType string

const (
	ElementText    ElementType = "text"
	ElementTable   ElementType = "table"
	ElementFigure  ElementType = "figure"
	ElementFormula ElementType = "formula"
)

// FailurePolicy governs how permanent element failures affect the task.
type FailurePolicy string

const (
	FailFast   FailurePolicy = "failFast"
	BestEffort FailurePolicy = "bestEffort"
)

// OutputFormat selects the rendered document format.
type OutputFormat string

const (
	FormatJSON       OutputFormat = "json"
	FormatMarkdown   OutputFormat = "markdown"
	FormatHTML       OutputFormat = "html"
	FormatStructured OutputFormat = "structured"
)

// ValidOutputFormat reports whether f is a supported output format.
func ValidOutputFormat(f OutputFormat) bool {
	switch f {
	case FormatJSON, FormatMarkdown, FormatHTML, FormatStructured:
		return true
	}
	return false
}

// BBox is a bounding box in original-image pixel coordinates.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Before orders boxes top-to-bottom then left-to-right. Used to break
// reading-order ties reported by the layout model.
func (b BBox) Before(other BBox) bool {
	if b.Y0 != other.Y0 {
		return b.Y0 < other.Y0
	}
	return b.X0 < other.X0
}

// Union returns the smallest box covering both boxes.
func (b BBox) Union(other BBox) BBox {
	u := b
	if other.X0 < u.X0 {
		u.X0 = other.X0
	}
	if other.Y0 < u.Y0 {
		u.Y0 = other.Y0
	}
	if other.X1 > u.X1 {
		u.X1 = other.X1
	}
	if other.Y1 > u.Y1 {
		u.Y1 = other.Y1
	}
	return u
}

// ImageRef carries encoded image bytes together with their pixel size.
type ImageRef struct {
	Data   []byte
	Width  int
	Height int
}

// ElementAnchor locates one detected element before content decoding.
// Produced once by the layout analyzer per page, immutable thereafter.
type ElementAnchor struct {
	ElementID    string      `json:"element_id"`
	Type         ElementType `json:"type"`
	BBox         BBox        `json:"bbox"`
	ReadingOrder int         `json:"reading_order"`
}

// NewElementID returns a fresh element identifier.
func NewElementID() string {
	return uuid.NewString()
}

// ElementRequest is one element-parsing request submitted to the scheduler.
// It is consumed exactly once.
type ElementRequest struct {
	TaskID   string
	Anchor   ElementAnchor
	Crop     ImageRef
	Prompt   string
	Deadline time.Time
	Retry    int

	// MaxBatchSize caps how many requests may share a batch with this one.
	// Zero means the scheduler's configured cap applies.
	MaxBatchSize int
}

// ParsedElement is the result of one element request. Immutable once produced.
type ParsedElement struct {
	ElementID    string      `json:"element_id"`
	Type         ElementType `json:"type"`
	BBox         BBox        `json:"bbox"`
	Text         string      `json:"text"`
	Confidence   float64     `json:"confidence"`
	ReadingOrder int         `json:"reading_order"`
	Error        string      `json:"error,omitempty"`
}

// ParseResult is the finalized ordered element list for one page.
type ParseResult struct {
	TotalElements    int             `json:"total_elements"`
	Elements         []ParsedElement `json:"elements"`
	PageDimensions   PageDimensions  `json:"page_dimensions"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
}

// PageDimensions is the source page size in pixels, before padding.
type PageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SortElements orders the result by reading order, element id as the
// last-resort tie-break so output is deterministic.
func (r *ParseResult) SortElements() {
	sort.Slice(r.Elements, func(i, j int) bool {
		if r.Elements[i].ReadingOrder != r.Elements[j].ReadingOrder {
			return r.Elements[i].ReadingOrder < r.Elements[j].ReadingOrder
		}
		return r.Elements[i].ElementID < r.Elements[j].ElementID
	})
}

// ProcessingConfig is the per-request configuration surface.
type ProcessingConfig struct {
	MaxBatchSize       int           `json:"max_batch_size"`
	OutputFormat       OutputFormat  `json:"output_format"`
	IncludeConfidence  bool          `json:"include_confidence"`
	IncludeCoordinates bool          `json:"include_coordinates"`
	MergeTextBlocks    bool          `json:"merge_text_blocks"`
	FailurePolicy      FailurePolicy `json:"failure_policy"`
}

// ErrorInfo is the task-level error surfaced to polling clients.
type ErrorInfo struct {
	Code      ErrorType `json:"code"`
	Message   string    `json:"message"`
	ElementID string    `json:"element_id,omitempty"`
}

// Task tracks one document parse through its lifecycle.
type Task struct {
	ID          string           `json:"task_id"`
	Status      TaskStatus       `json:"status"`
	Stage       TaskStage        `json:"stage,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Config      ProcessingConfig `json:"config"`
	Result      *ParseResult     `json:"result,omitempty"`
	Error       *ErrorInfo       `json:"error,omitempty"`
}

// NewTask creates a pending task with a fresh id.
func NewTask(cfg ProcessingConfig) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		Config:    cfg,
	}
}
