package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/okian/xptrack/internal/adapters/render"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/internal/domain/model"
	"github.com/okian/xptrack/pkg/metrics"
)

// ReportDependencies defines the read side of the history.
type ReportDependencies interface {
	Report(ctx context.Context, window history.Window) (history.Report, error)
	Latest(ctx context.Context) (model.Entry, error)
}

// ReportHandler serves enriched history in JSON, Markdown and HTML.
type ReportHandler struct {
	deps  ReportDependencies
	title string
}

// NewReportHandler creates a new report handler.
func NewReportHandler(deps ReportDependencies, title string) *ReportHandler {
	if title == "" {
		title = "Progress"
	}
	return &ReportHandler{deps: deps, title: title}
}

type latestResponse struct {
	Date string `json:"date"`
	model.Snapshot
}

func (h *ReportHandler) report(r *http.Request) (history.Report, error) {
	window, err := history.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		return history.Report{}, err
	}
	return h.deps.Report(r.Context(), window)
}

// HandleReport handles GET /report?window=N requests.
func (h *ReportHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	report, err := h.report(r)
	if err != nil {
		writeKindError(w, op, err)
		return
	}
	metrics.RecordReportRendered("json")
	writeJSON(w, http.StatusOK, report)
}

// HandleMarkdown handles GET /report.md requests.
func (h *ReportHandler) HandleMarkdown(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report_markdown"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	report, err := h.report(r)
	if err != nil {
		writeKindError(w, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(render.Markdown(report) + "\n"))
}

// HandleHTML handles GET /report.html requests.
func (h *ReportHandler) HandleHTML(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_report_html"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	report, err := h.report(r)
	if err != nil {
		writeKindError(w, op, err)
		return
	}
	var buf bytes.Buffer
	if err := render.HTML(&buf, h.title, report); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// HandleLatest handles GET /latest requests.
func (h *ReportHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_latest"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	entry, err := h.deps.Latest(r.Context())
	if err != nil {
		writeKindError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, latestResponse{Date: entry.DateKey(), Snapshot: entry.Snapshot})
}
