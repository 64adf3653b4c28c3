package handler

import (
	"log/slog"
	"net/http"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// ReportHandler serves risk-sized report endpoints.
type ReportHandler struct {
	reports *service.ReportService
	logger  *slog.Logger
}

// NewReportHandler creates a ReportHandler with the given service and logger.
func NewReportHandler(reports *service.ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// PositionReport returns the combined ledger state and risk-sized figures for
// one position. The profile query parameter overrides the position's own
// profile.
// GET /api/positions/{id}/report?profile=day_trader
func (h *ReportHandler) PositionReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.PositionReport(r.Context(),
		pathParam(r, "id"), r.URL.Query().Get("profile"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to build position report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Summary returns portfolio-level aggregates over all positions.
// GET /api/report/summary
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	// Summaries walk every matching position; an explicit limit=0 means no cap.
	opts := parseListOpts(r)
	if r.URL.Query().Get("limit") == "" {
		opts.Limit = 0
	}

	summary, err := h.reports.Summarize(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to build summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
