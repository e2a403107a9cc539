package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/service/extract"
)

// User-facing error messages.
const (
	msgInvalidBody     = "Invalid request body"
	msgNoTranscript    = "No transcript provided"
	msgConfig          = "Invalid LLM API key. Check your configuration."
	msgRateLimited     = "Request limit exceeded. Wait a moment and try again."
	msgMalformed       = "Error processing the AI response"
	msgIncomplete      = "Incomplete AI response"
	msgProcessingError = "Error processing the transcript"
)

type processRequest struct {
	Transcript string `json:"transcript"`
}

type processResponse struct {
	Data record.Record `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// process extracts a record from a transcript in one call.
func (h *handlers) process(w http.ResponseWriter, r *http.Request) {
	logger := log.With().
		Str("handler", "process").
		Str("requestId", middleware.GetReqID(r.Context())).
		Logger()

	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, msgNoTranscript)
		return
	}

	rec, err := h.app.Extractor.Extract(r.Context(), req.Transcript)
	if err != nil {
		status, msg := extractionStatus(err)
		logger.Error().Err(err).Int("status", status).Msg("Extraction failed")
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, processResponse{Data: rec})
}

// extractionStatus maps an extraction error to a status code and message.
func extractionStatus(err error) (int, string) {
	if errors.Is(err, extract.ErrEmptyTranscript) {
		return http.StatusBadRequest, msgNoTranscript
	}
	kind, _ := extract.KindOf(err)
	switch kind {
	case extract.KindConfig:
		return http.StatusInternalServerError, msgConfig
	case extract.KindRateLimited:
		return http.StatusTooManyRequests, msgRateLimited
	case extract.KindMalformed:
		return http.StatusInternalServerError, msgMalformed
	case extract.KindIncomplete:
		return http.StatusInternalServerError, msgIncomplete
	default:
		return http.StatusInternalServerError, msgProcessingError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
