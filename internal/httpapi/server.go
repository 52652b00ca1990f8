// Package httpapi exposes magpie's operational HTTP surface: health probes,
// Prometheus metrics, connection status and system health, and the
// conversational endpoint.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magpie-ai/magpie/internal/agent"
	"github.com/magpie-ai/magpie/internal/health"
	"github.com/magpie-ai/magpie/internal/observe"
	"github.com/magpie-ai/magpie/internal/twitter"
)

// Server routes the operational API. The conversational endpoint is only
// served when an agent is configured; otherwise it answers 503.
type Server struct {
	facade  *twitter.Facade
	agent   *agent.Agent
	handler http.Handler
}

// New assembles the HTTP handler tree. agent may be nil.
func New(facade *twitter.Facade, ag *agent.Agent, probes *health.Handler, metrics *observe.Metrics) *Server {
	s := &Server{facade: facade, agent: ag}

	mux := http.NewServeMux()
	probes.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/system-health", s.handleSystemHealth)
	mux.HandleFunc("POST /v1/chat", s.handleChat)

	s.handler = observe.Middleware(metrics)(mux)
	return s
}

// Handler returns the fully wrapped handler tree.
func (s *Server) Handler() http.Handler { return s.handler }

// handleStatus forces a registry refresh and reports provider connectivity
// and the current tool inventory.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Status(r.Context()))
}

// handleSystemHealth reports the aggregate health verdict.
func (s *Server) handleSystemHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Health())
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleChat runs one agent turn for the posted message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no agent configured; set agent.provider and agent.model"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message must not be empty"))
		return
	}

	reply, err := s.agent.Respond(r.Context(), req.Message)
	if err != nil {
		observe.Logger(r.Context()).Error("agent turn failed", "err", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
