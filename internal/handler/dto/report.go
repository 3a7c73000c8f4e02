// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/webpulse/webpulse/internal/dashboard"
	"github.com/webpulse/webpulse/internal/model"
)

// SubmitReportRequest represents the request body for submitting a URL.
type SubmitReportRequest struct {
	URL string `json:"url"`
}

// SubmitReportResponse is returned for a resolved submission.
type SubmitReportResponse struct {
	Sequence uint64                `json:"sequence"`
	Stale    bool                  `json:"stale"`
	Report   *model.AnalysisReport `json:"report"`
}

// ReportListResponse represents a session's history, oldest first.
type ReportListResponse struct {
	Data  []*model.AnalysisReport `json:"data"`
	Count int                     `json:"count"`
}

// SessionResponse represents the session's current display state.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	dashboard.DisplayState
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error    string                `json:"error"`
	Code     string                `json:"code"`
	Failures []model.SourceFailure `json:"failures,omitempty"`
}

// ToSubmitReportResponse converts a controller outcome to its DTO.
func ToSubmitReportResponse(out *dashboard.Outcome) *SubmitReportResponse {
	return &SubmitReportResponse{
		Sequence: out.Sequence,
		Stale:    out.Stale,
		Report:   out.Report,
	}
}

// ToReportListResponse wraps a history listing. A nil slice becomes empty.
func ToReportListResponse(reports []*model.AnalysisReport) *ReportListResponse {
	if reports == nil {
		reports = []*model.AnalysisReport{}
	}
	return &ReportListResponse{Data: reports, Count: len(reports)}
}
