// Package api serves the HTTP boundary: the /api/chat generation endpoint, the live
// websocket route, and the gRPC health service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxChatBodyBytes = 256 << 10

// ErrMalformedRequest rejects a chat request missing its required fields.
var ErrMalformedRequest = errors.New("malformed request")

// ChatRequest is the /api/chat body.
type ChatRequest struct {
	Type      string `json:"type"`
	Question  string `json:"question"`
	RawAnswer string `json:"raw_answer,omitempty"`
	Code      string `json:"code,omitempty"`
}

// ChatResponse carries the generated text.
type ChatResponse struct {
	Result string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ChatGenerator is the generation surface the boundary needs.
type ChatGenerator interface {
	Respond(ctx context.Context, questionTranscript, candidateText string) (string, error)
	Followup(ctx context.Context, questionBody, code string) (string, error)
}

// ChatHandler answers one-shot generation requests.
type ChatHandler struct {
	Logger    *slog.Logger
	Generator ChatGenerator
}

// Validate checks the request against its type's required fields.
func (r ChatRequest) Validate() error {
	switch r.Type {
	case "ai_response":
		if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.RawAnswer) == "" {
			return ErrMalformedRequest
		}
	case "dsa_followup":
		if strings.TrimSpace(r.Question) == "" || strings.TrimSpace(r.Code) == "" {
			return ErrMalformedRequest
		}
	default:
		return ErrMalformedRequest
	}
	return nil
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req ChatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxChatBodyBytes))
	if err := dec.Decode(&req); err != nil || req.Validate() != nil {
		logger.Info("chat request rejected", "type", req.Type)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	var (
		text string
		err  error
	)
	switch req.Type {
	case "ai_response":
		text, err = h.Generator.Respond(r.Context(), req.Question, req.RawAnswer)
	case "dsa_followup":
		text, err = h.Generator.Followup(r.Context(), req.Question, req.Code)
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty generation")
	}
	if err != nil {
		logger.Error("chat generation failed", "type", req.Type, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "generation failed"})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Result: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
