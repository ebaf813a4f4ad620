package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DachengChen/shelfcare/session"
)

const (
	listTimeout   = 8 * time.Second
	maxChatBody   = 64 << 10
	healthTimeout = 2 * time.Second
)

type errorResponse struct {
	Error string `json:"error"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id,omitempty"`
	Output    string `json:"output"`
	Error     bool   `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()

	products, err := s.deps.Dashboard.ListInventory(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list inventory")
		respondError(w, http.StatusInternalServerError, "Failed to fetch inventory data")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()

	orders, err := s.deps.Dashboard.ListOrders(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list orders")
		respondError(w, http.StatusInternalServerError, "Failed to fetch orders data")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleExpiry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), listTimeout)
	defer cancel()

	batches, err := s.deps.Dashboard.ListExpiry(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list expiry")
		respondError(w, http.StatusInternalServerError, "Failed to fetch expiry data")
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, res, err := s.deps.Chat.Chat(r.Context(), req.SessionID, req.Message)
	switch {
	case errors.Is(err, session.ErrInvalidID):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil && res == nil:
		s.logger.Error().Err(err).Str("session_id", id).Msg("chat")
		respondError(w, http.StatusInternalServerError, "Failed to load session")
		return
	case err != nil:
		// The answer exists; only persisting the turn failed.
		s.logger.Error().Err(err).Str("session_id", id).Msg("save session")
	}

	respondJSON(w, http.StatusOK, chatResponse{
		SessionID: id,
		RunID:     res.RunID,
		Output:    res.Output,
		Error:     res.Error,
		ErrorType: res.ErrorType,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
