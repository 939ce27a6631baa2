// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/loopcast/internal/fetch"
	"github.com/ManuGH/loopcast/internal/log"
	"github.com/ManuGH/loopcast/internal/source"
	"github.com/ManuGH/loopcast/internal/stream"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// serverFaults are reported by their sentinel text only; wrapped details may
// carry upstream URLs. Resolution failures wrap download failures, so the
// outermost sentinel comes first.
var serverFaults = []error{
	source.ErrResolutionFailed,
	stream.ErrProcessFault,
	fetch.ErrDownloadFailed,
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, stream.ErrStartCancelled):
		return http.StatusConflict
	case errors.Is(err, stream.ErrInvalidInput),
		errors.Is(err, stream.ErrAlreadyStreaming),
		errors.Is(err, stream.ErrNotStreaming),
		errors.Is(err, source.ErrInvalidSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	if statusForError(err) < http.StatusInternalServerError {
		return err.Error()
	}
	for _, sentinel := range serverFaults {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal server error"
}

// writeDomainError logs err and answers with its mapped status.
func writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusForError(err)
	logger := log.WithComponentFromContext(r.Context(), "api")
	var evt *zerolog.Event
	if code >= http.StatusInternalServerError {
		evt = logger.Error()
	} else {
		evt = logger.Warn()
	}
	evt.Err(err).
		Str(log.FieldEvent, op+".failed").
		Int("status", code).
		Msg("request failed")
	writeError(w, code, publicMessage(err))
}
