// Package server exposes the agent over HTTP: one endpoint per turn,
// plus classification, health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"spaceplan/internal/agent"
	"spaceplan/internal/brief"
	"spaceplan/internal/program"
	"spaceplan/internal/snapshot"
)

// TurnRequest is the wire shape of POST /v1/turn. The program snapshot
// travels with every request; the server holds no session state.
type TurnRequest struct {
	Prompt    string            `json:"prompt"`
	Selection program.Selection `json:"selection"`
	Program   snapshot.File     `json:"program"`
}

// ClassifyRequest is the wire shape of POST /v1/classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server owns the router and the HTTP listener.
type Server struct {
	orch   *agent.Orchestrator
	logger *zap.Logger
	http   *http.Server
}

// New builds the server. The prometheus gatherer backs /metrics; pass
// the same registry the agent metrics were registered on.
func New(addr string, orch *agent.Orchestrator, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{orch: orch, logger: logger.Named("server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/v1/turn", s.handleTurn)
	r.Post("/v1/classify", s.handleClassify)
	r.Get("/v1/healthz", s.handleHealthz)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks until the listener fails or Shutdown runs.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	snap := &program.Context{
		Nodes:       req.Program.Nodes,
		Groups:      req.Program.Groups,
		DetailLevel: req.Program.DetailLevel,
		Notes:       req.Program.Notes,
		Prompt:      req.Prompt,
	}
	if err := snapshot.Validate(snap); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid program: "+err.Error())
		return
	}

	// Requests the registry recognizes are answered without the
	// conversational loop; everything else goes through the agent.
	resp, handled := s.orch.RunDirect(r.Context(), req.Prompt, req.Selection, snap)
	if !handled {
		var err error
		resp, err = s.orch.RunTurn(r.Context(), req.Prompt, req.Selection, snap)
		if err != nil {
			s.logger.Error("turn failed", zap.Error(err))
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	cls := brief.Analyze(req.Text)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"category":   cls.Category,
		"confidence": cls.Confidence,
		"quality":    cls.Quality,
		"strategy":   cls.Strategy,
		"warnings":   cls.Warnings,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// logRequests is a minimal structured access log.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
