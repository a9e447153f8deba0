// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/internal/adapters/repository"
	service "github.com/okian/xptrack/internal/app"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ReportDependencies
	CollectDependencies
	FormulaDependencies
}

// CollectResult mirrors the shape returned by a collection run.
type CollectResult = service.CollectResult

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	reportHandler  *ReportHandler
	collectHandler *CollectHandler
	formulaHandler *FormulaHandler
}

// NewServer creates a new API server with all handlers. title heads the HTML report.
func NewServer(deps Dependencies, statsProvider StatsProvider, title string) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		reportHandler:  NewReportHandler(deps, title),
		collectHandler: NewCollectHandler(deps),
		formulaHandler: NewFormulaHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/report", MetricsMiddleware(s.reportHandler.HandleReport, "report"))
	mux.HandleFunc("/report.md", MetricsMiddleware(s.reportHandler.HandleMarkdown, "report_md"))
	mux.HandleFunc("/report.html", MetricsMiddleware(s.reportHandler.HandleHTML, "report_html"))
	mux.HandleFunc("/latest", MetricsMiddleware(s.reportHandler.HandleLatest, "latest"))
	mux.HandleFunc("/formula", MetricsMiddleware(s.formulaHandler.HandleFormula, "formula"))
	mux.HandleFunc("/collect", MetricsMiddleware(s.collectHandler.HandleCollect, "collect"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps domain and adapter errors to an API kind.
func classify(err error) error {
	switch {
	case errors.Is(err, history.ErrInvalidWindow):
		return ErrBadRequest
	case errors.Is(err, model.ErrEmptySeries), errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, service.ErrAlreadyCollected), errors.Is(err, highscore.ErrStaleSnapshot):
		return ErrConflict
	case errors.Is(err, highscore.ErrUpstream), errors.Is(err, highscore.ErrCharacterNotFound):
		return ErrUpstream
	default:
		return ErrInternal
	}
}

// writeKindError writes err with the status of its API kind.
func writeKindError(w http.ResponseWriter, op string, err error) {
	kind := classify(err)
	err = WrapKind(op, kind, err)
	switch kind {
	case ErrBadRequest:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case ErrNotFound:
		writeError(w, http.StatusNotFound, "not_found", err)
	case ErrConflict:
		writeError(w, http.StatusConflict, "conflict", err)
	case ErrUpstream:
		writeError(w, http.StatusBadGateway, "upstream_error", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
