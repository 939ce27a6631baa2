// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/loopcast/internal/stream"
)

const maxControlBody = 64 << 10

// startRequest accepts the legacy field names next to the current ones.
type startRequest struct {
	DestinationEndpoint string `json:"destinationEndpoint"`
	StreamKey           string `json:"streamKey"`
	SourceReference     string `json:"sourceReference"`

	StreamURL string `json:"streamUrl"`
	VideoURL  string `json:"videoUrl"`
}

func (b startRequest) toStart() stream.StartRequest {
	req := stream.StartRequest{
		Destination:     b.DestinationEndpoint,
		StreamKey:       b.StreamKey,
		SourceReference: b.SourceReference,
	}
	if req.Destination == "" {
		req.Destination = b.StreamURL
	}
	if req.SourceReference == "" {
		req.SourceReference = b.VideoURL
	}
	return req
}

type controlResponse struct {
	Message string        `json:"message"`
	Status  stream.Status `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxControlBody))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := s.ctrl.Start(r.Context(), body.toStart())
	if err != nil {
		writeDomainError(w, r, "stream.start", err)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{Message: "Stream started successfully", Status: st})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.Stop(r.Context())
	if err != nil {
		writeDomainError(w, r, "stream.stop", err)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{Message: "Stream stopped successfully", Status: st})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
