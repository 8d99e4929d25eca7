package api

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/domain"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/registry"
)

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

// writeDomainError maps a domain error onto an HTTP status.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "task not found")
		return
	}

	switch domain.TypeOf(err) {
	case domain.ErrorTypeImage, domain.ErrorTypeValidation:
		status, code = http.StatusBadRequest, string(domain.TypeOf(err))
	case domain.ErrorTypeNotFound:
		status, code = http.StatusNotFound, "not_found"
	case domain.ErrorTypeCapacity:
		status, code = http.StatusRequestEntityTooLarge, "capacity"
	case domain.ErrorTypeTimeout:
		status, code = http.StatusGatewayTimeout, "timeout"
	case domain.ErrorTypeCancelled:
		status, code = http.StatusConflict, "cancelled"
	case domain.ErrorTypeModel, domain.ErrorTypeInference:
		status, code = http.StatusBadGateway, string(domain.TypeOf(err))
	}

	writeError(w, r, status, code, err.Error())
}
