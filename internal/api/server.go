package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parleyworks/parley/internal/advisory"
	"github.com/parleyworks/parley/internal/report"
	"github.com/parleyworks/parley/internal/scenario"
	"github.com/parleyworks/parley/internal/session"
	"github.com/parleyworks/parley/internal/store"
)

// Deps are the pipeline components the HTTP surface exposes. Store, prober,
// and generator may be nil when their backing services are not configured.
type Deps struct {
	Controller *session.Controller
	Library    *scenario.Library
	Generator  *report.Generator
	Advisory   *advisory.Client
	Prober     *advisory.Prober
	Store      *store.Store
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
}

func NewServer(port int, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/parley", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/scenarios", s.scenarios)
		r.Post("/scenarios/{id}/select", s.selectScenario)
		r.Post("/connect", s.connect)
		r.Post("/disconnect", s.disconnect)
		r.Post("/messages", s.postMessage)
		r.Get("/metrics", s.metrics)
		r.Get("/transcript", s.transcript)
		r.Post("/report", s.generateReport)
		r.Get("/reports", s.listReports)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Controller.Status()
	resp := map[string]any{
		"agent":  "parley",
		"state":  string(st.State),
		"reason": st.DegradedReason,
	}
	if s.deps.Advisory != nil {
		resp["breaker"] = string(s.deps.Advisory.Breaker().State())
	}
	if s.deps.Prober != nil {
		resp["latency_ms"] = s.deps.Prober.LastLatency()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) scenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Library.List())
}

func (s *Server) selectScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pattern, ok := s.deps.Library.GetByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("scenario %s not found", id))
		return
	}
	s.deps.Controller.SetPattern(pattern)
	writeJSON(w, http.StatusOK, pattern)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Connect(); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Controller.Status())
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	s.deps.Controller.Disconnect()
	writeJSON(w, http.StatusOK, s.deps.Controller.Status())
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := s.deps.Controller.HandleOperatorMessage(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"samples":    s.deps.Controller.MetricsSnapshot(),
		"aggregates": s.deps.Controller.MetricsAggregate(),
	})
}

func (s *Server) transcript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Transcript())
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, "advisory channel not configured")
		return
	}

	transcript := s.deps.Controller.Transcript()
	agg := s.deps.Controller.MetricsAggregate()

	rep, err := s.deps.Generator.Generate(r.Context(), transcript, agg)
	if err != nil {
		// Report failures are explicit: no blank or partial report.
		status := http.StatusBadGateway
		if errors.Is(err, advisory.ErrInvalidPayload) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	if s.deps.Store != nil {
		scenarioID := ""
		if p := s.deps.Controller.Pattern(); p != nil {
			scenarioID = p.ID
		}
		summary := store.SessionSummary{
			ScenarioID: scenarioID,
			Messages:   len(transcript),
			Aggregates: agg,
		}
		if _, err := s.deps.Store.WriteReport(context.WithoutCancel(r.Context()), *rep, summary); err != nil {
			slog.Error("failed to persist report", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "report store not configured")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	reports, err := s.deps.Store.RecentReports(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
