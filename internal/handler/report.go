package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/webpulse/webpulse/internal/dashboard"
	"github.com/webpulse/webpulse/internal/handler/dto"
	"github.com/webpulse/webpulse/internal/history"
	"github.com/webpulse/webpulse/internal/middleware"
	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/service"
)

// ReportHandler handles HTTP requests for analysis reports.
type ReportHandler struct {
	ctrl   *dashboard.Controller
	logger *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(ctrl *dashboard.Controller, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		ctrl:   ctrl,
		logger: logger,
	}
}

// Submit handles POST /api/v1/reports.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	out, err := h.ctrl.Submit(r.Context(), sessionID, req.URL)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("report_created",
		"report_id", out.Report.ID,
		"session_id", sessionID,
		"state", out.Report.State,
		"failed_sources", len(out.Report.Failures),
		"stale", out.Stale,
	)

	writeJSON(w, http.StatusCreated, dto.ToSubmitReportResponse(out))
}

// List handles GET /api/v1/reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.ctrl.History(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToReportListResponse(reports))
}

// Get handles GET /api/v1/reports/{id}.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Report ID is required")
		return
	}

	report, err := h.ctrl.Report(r.Context(), middleware.GetSessionID(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Session handles GET /api/v1/session.
func (h *ReportHandler) Session(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	writeJSON(w, http.StatusOK, dto.SessionResponse{
		SessionID:    sessionID,
		DisplayState: h.ctrl.Display(sessionID),
	})
}

// handleServiceError maps service errors to HTTP responses.
func (h *ReportHandler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	var aggErr *service.AggregationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_URL", verr.Error())
	case errors.As(err, &aggErr):
		msg := aggErr.PrimaryError()
		if msg == "" {
			msg = "All analysis sources failed"
		}
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{
			Error:    "Error: " + msg,
			Code:     "ALL_SOURCES_FAILED",
			Failures: aggErr.Failures,
		})
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found")
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
