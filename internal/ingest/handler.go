package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/varvasar/double-adviser/internal/backend"
	"github.com/varvasar/double-adviser/internal/domain"
	"github.com/varvasar/double-adviser/internal/server"
)

const (
	// PreviewChars bounds result_preview in the response.
	PreviewChars = 400

	// DefaultMaxBodyBytes bounds the request body. Screenshots dominate.
	DefaultMaxBodyBytes int64 = 32 << 20
)

// Response is the success body of POST /process.
type Response struct {
	Status        string `json:"status"`
	ID            int    `json:"id"`
	ResultPreview string `json:"result_preview"`
	PersistError  string `json:"persist_error,omitempty"`
}

// ErrorResponse is the failure body of POST /process.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler serves POST /process.
type Handler struct {
	service      *Service
	maxBodyBytes int64
}

// NewHandler returns the HTTP handler for a Service. A non-positive
// maxBodyBytes selects DefaultMaxBodyBytes.
func NewHandler(service *Service, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{service: service, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := h.service.metrics

	var payload domain.Payload
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, http.StatusRequestEntityTooLarge, fmt.Errorf("payload exceeds %d bytes", tooLarge.Limit))
		} else {
			h.fail(w, r, http.StatusBadRequest, domain.InvalidRequest("invalid JSON: %v", err))
		}
		m.ObserveSubmission("", "invalid")
		return
	}

	server.AddLogField(ctx, "kind", payload.Type)

	sub, err := payload.Submission()
	if err != nil {
		m.ObserveSubmission(payload.Type, "invalid")
		h.fail(w, r, statusFor(err), err)
		return
	}

	out, err := h.service.Process(ctx, sub)
	if err != nil {
		m.ObserveSubmission(payload.Type, "invalid")
		h.fail(w, r, statusFor(err), err)
		return
	}
	m.ObserveSubmission(payload.Type, "ok")

	server.AddLogField(ctx, "entry_id", strconv.Itoa(out.Entry.ID))
	server.AddLogField(ctx, "ocr", strconv.FormatBool(h.service.extractor.OCR()))
	resp := Response{
		Status:        "ok",
		ID:            out.Entry.ID,
		ResultPreview: backend.Truncate(out.Entry.Result, PreviewChars),
	}
	if out.PersistErr != nil {
		server.AddError(ctx, out.PersistErr)
		resp.PersistError = out.PersistErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	server.AddError(r.Context(), err)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
