package api

import (
	"net/http"
	"strings"
	"time"

	"dayplanner/internal/planner"
)

type cronPreviewRequest struct {
	Expr  string `json:"expr"`
	Now   string `json:"now,omitempty"`
	Count int    `json:"count,omitempty"`
}

type cronPreviewResponse struct {
	Expr      string   `json:"expr,omitempty"`
	Valid     bool     `json:"valid"`
	NextTimes []string `json:"next_times,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// handleCronPreview checks a refresh expression and lists its next firings.
// An empty body or expression previews the configured refresh job.
func (s *Server) handleCronPreview(w http.ResponseWriter, r *http.Request) {
	var req cronPreviewRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, cronPreviewResponse{Valid: false, Message: err.Error()})
			return
		}
	}
	expr := strings.TrimSpace(req.Expr)
	if expr == "" {
		expr = s.refresh
	}
	if expr == "" {
		writeJSON(w, http.StatusBadRequest, cronPreviewResponse{Valid: false, Message: "cron expression is required"})
		return
	}
	schedule, err := planner.ParseCron(expr)
	if err != nil {
		writeJSON(w, http.StatusOK, cronPreviewResponse{Expr: expr, Valid: false, Message: err.Error()})
		return
	}

	count := req.Count
	if count <= 0 || count > 10 {
		count = 5
	}

	loc := s.planner.Location()
	base := time.Now().In(loc)
	if req.Now != "" {
		if parsed, err := time.Parse(time.RFC3339, req.Now); err == nil {
			base = parsed.In(loc)
		}
	}

	times := planner.NextOccurrences(schedule, base, count)
	formatted := make([]string, 0, len(times))
	for _, t := range times {
		formatted = append(formatted, t.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, cronPreviewResponse{Expr: expr, Valid: true, NextTimes: formatted})
}
