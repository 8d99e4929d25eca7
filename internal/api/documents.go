package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/format"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/observability"
)

// documentHandler serves the synchronous parse endpoint.
type documentHandler struct {
	deps   Deps
	logger *observability.Logger
}

// Parse handles POST /api/v1/documents/parse: multipart image in, formatted
// document out, no task polling.
func (h *documentHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	imageData, cfg, err := h.readRequest(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	task, err := h.deps.Registry.Create(ctx, cfg)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.logger.WithContext(ctx).Info().
		Str("task_id", task.ID).
		Str("output_format", string(cfg.OutputFormat)).
		Msg("Synchronous parse started")

	result, err := h.deps.Orchestrator.Execute(ctx, task, imageData)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	doc, err := format.Format(result, format.Options{
		Format:             cfg.OutputFormat,
		IncludeConfidence:  cfg.IncludeConfidence,
		IncludeCoordinates: cfg.IncludeCoordinates,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	body, contentType, err := format.Encode(doc)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Task-ID", task.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// readRequest parses the multipart form: the image file plus processing
// options.
func (h *documentHandler) readRequest(r *http.Request) ([]byte, domain.ProcessingConfig, error) {
	cfg := h.deps.Defaults

	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes); err != nil {
		return nil, cfg, domain.ValidationError("cannot parse multipart form", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, cfg, domain.ValidationError("missing file field", err)
	}
	defer file.Close()

	if header.Size > h.deps.MaxUploadBytes {
		return nil, cfg, domain.CapacityError("uploaded file exceeds size limit", nil)
	}
	if ct := header.Header.Get("Content-Type"); ct != "" && !allowedUploadType(ct) {
		return nil, cfg, domain.ValidationError("unsupported content type: "+ct, nil)
	}

	data, err := io.ReadAll(io.LimitReader(file, h.deps.MaxUploadBytes+1))
	if err != nil {
		return nil, cfg, domain.ValidationError("cannot read uploaded file", err)
	}
	if int64(len(data)) > h.deps.MaxUploadBytes {
		return nil, cfg, domain.CapacityError("uploaded file exceeds size limit", nil)
	}

	if v := r.FormValue("max_batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 64 {
			return nil, cfg, domain.ValidationError("max_batch_size must be in [1,64]", nil)
		}
		cfg.MaxBatchSize = n
	}
	if v := r.FormValue("output_format"); v != "" {
		f := domain.OutputFormat(v)
		if !domain.ValidOutputFormat(f) {
			return nil, cfg, domain.ValidationError("unsupported output_format: "+v, nil)
		}
		cfg.OutputFormat = f
	}
	if v := r.FormValue("failure_policy"); v != "" {
		switch domain.FailurePolicy(v) {
		case domain.FailFast, domain.BestEffort:
			cfg.FailurePolicy = domain.FailurePolicy(v)
		default:
			return nil, cfg, domain.ValidationError("failure_policy must be failFast or bestEffort", nil)
		}
	}
	cfg.IncludeConfidence = formBool(r, "include_confidence", cfg.IncludeConfidence)
	cfg.IncludeCoordinates = formBool(r, "include_coordinates", cfg.IncludeCoordinates)
	cfg.MergeTextBlocks = formBool(r, "merge_text_blocks", cfg.MergeTextBlocks)

	return data, cfg, nil
}

func formBool(r *http.Request, key string, def bool) bool {
	v := strings.ToLower(r.FormValue(key))
	switch v {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return def
}

func allowedUploadType(ct string) bool {
	switch {
	case strings.HasPrefix(ct, "image/jpeg"),
		strings.HasPrefix(ct, "image/png"),
		strings.HasPrefix(ct, "image/gif"),
		strings.HasPrefix(ct, "application/octet-stream"):
		return true
	}
	return false
}
