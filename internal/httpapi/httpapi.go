// Package httpapi is the boundary adapter: it translates HTTP requests to
// engine calls and is not part of the queue state engine core.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tombailey/dueue/internal/queue"
)

// Engine is the subset of *engine.Engine the HTTP handlers depend on.
type Engine interface {
	Add(ctx context.Context, queueName string, value []byte, expiry time.Time) (*queue.Message, error)
	Next(ctx context.Context, queueName, subscriberID string, ackDuration time.Duration) (*queue.Message, error)
	Acknowledge(ctx context.Context, queueName, subscriberID, messageID string) error
}

// Server wires an Engine into an http.ServeMux.
type Server struct {
	engine Engine
	logger *slog.Logger
}

// New returns a Server ready to have its routes registered.
func New(engine Engine, logger *slog.Logger) *Server {
	return &Server{engine: engine, logger: logger}
}

// Register attaches dueue's routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /queues/{name}/messages", s.handleAddMessage)
	mux.HandleFunc("GET /queues/{name}/messages", s.handleReceiveMessage)
	mux.HandleFunc("DELETE /queues/{name}/messages/{id}", s.handleAcknowledgeMessage)
	mux.HandleFunc("GET /health", s.handleHealth)
}

type messageResponse struct {
	ID     string `json:"id"`
	Value  string `json:"value"`
	Expiry int64  `json:"expiry"`
}

func toMessageResponse(m *queue.Message) messageResponse {
	return messageResponse{
		ID:     m.ID,
		Value:  string(m.Value),
		Expiry: m.Expiry.Unix(),
	}
}

type addMessagePayload struct {
	Value  string `json:"value"`
	Expiry int64  `json:"expiry"`
}

func (s *Server) handleAddMessage(w http.ResponseWriter, r *http.Request) {
	queueName := r.PathValue("name")

	var payload addMessagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	expiry := time.Unix(payload.Expiry, 0).UTC()
	message, err := s.engine.Add(r.Context(), queueName, []byte(payload.Value), expiry)
	if err != nil {
		s.logger.Error("add message failed", "queue", queueName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toMessageResponse(message))
}

func (s *Server) handleReceiveMessage(w http.ResponseWriter, r *http.Request) {
	queueName := r.PathValue("name")
	subscriberID := r.URL.Query().Get("subscriberId")

	ackDurationRaw := r.URL.Query().Get("acknowledgementDuration")
	ackDurationSeconds, err := strconv.ParseInt(ackDurationRaw, 10, 64)
	if err != nil {
		http.Error(w, "invalid acknowledgementDuration", http.StatusBadRequest)
		return
	}

	message, err := s.engine.Next(r.Context(), queueName, subscriberID, time.Duration(ackDurationSeconds)*time.Second)
	if err != nil {
		s.logger.Error("receive message failed", "queue", queueName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if message == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, []messageResponse{toMessageResponse(message)})
}

func (s *Server) handleAcknowledgeMessage(w http.ResponseWriter, r *http.Request) {
	queueName := r.PathValue("name")
	messageID := r.PathValue("id")
	subscriberID := r.URL.Query().Get("subscriberId")

	err := s.engine.Acknowledge(r.Context(), queueName, subscriberID, messageID)
	if err != nil {
		s.logger.Error("acknowledge message failed", "queue", queueName, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "pass"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
