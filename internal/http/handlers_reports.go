package http

import (
	"errors"
	"net/http"

	"fintrack/internal/charts"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

const topSpendingChartSize = 8

func (s *Server) reportQuery(r *http.Request) (services.ReportQuery, error) {
	return ParseReportQuery(r.URL.Query(), userID(r), s.now())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	d, err := s.app.Reports.Dashboard(r.Context(), q)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	respond(w, http.StatusOK, d)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	rows, err := s.app.Reports.ExportRows(r.Context(), q)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	if rows == nil {
		rows = []core.ExportRow{}
	}
	respond(w, http.StatusOK, rows)
}

type sheetsExport struct {
	Rows  int    `json:"rows"`
	Range string `json:"range,omitempty"`
}

// handleExportSheets pushes the export rows to the configured spreadsheet.
// An empty range is not sent at all.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := s.reportQuery(r)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	rows, err := s.app.Reports.ExportRows(ctx, q)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	if len(rows) == 0 {
		respond(w, http.StatusOK, sheetsExport{})
		return
	}
	ref, err := s.app.Exporter.AppendRows(ctx, rows)
	if err != nil {
		s.fail(w, r, applog.OpExport, &core.CollaboratorError{Collaborator: "sheets", Err: err})
		return
	}
	applog.FromContext(ctx).InfoContext(ctx, "Exported rows to sheet",
		applog.FieldComponent, applog.ComponentSheets,
		"rows", len(rows),
		"range", ref)
	respond(w, http.StatusOK, sheetsExport{Rows: len(rows), Range: ref})
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	points, err := s.app.Reports.Trend(r.Context(), q)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	s.writeChart(w, r, func() ([]byte, error) { return charts.Trend("Daily totals", points) })
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	q, err := s.reportQuery(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	buckets, err := s.app.Reports.CategoryBreakdown(r.Context(), q)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	if len(buckets) > topSpendingChartSize {
		buckets = buckets[:topSpendingChartSize]
	}
	s.writeChart(w, r, func() ([]byte, error) { return charts.Categories("Spending by category", buckets) })
}

// writeChart sends a PNG, or 204 when there is nothing to plot.
func (s *Server) writeChart(w http.ResponseWriter, r *http.Request, render func() ([]byte, error)) {
	png, err := render()
	if errors.Is(err, charts.ErrNoData) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Raw("image/png", png).Header("Cache-Control", "no-store").Write(w)
}

// Assistant

type suggestResponse struct {
	Suggested  bool                         `json:"suggested"`
	Suggestion *services.CategorySuggestion `json:"suggestion,omitempty"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpSuggest, err)
		return
	}
	sug, ok, err := s.app.Assistant.SuggestCategory(r.Context(), userID(r), req.Text)
	if err != nil {
		s.fail(w, r, applog.OpSuggest, err)
		return
	}
	if !ok {
		respond(w, http.StatusOK, suggestResponse{})
		return
	}
	respond(w, http.StatusOK, suggestResponse{Suggested: true, Suggestion: &sug})
}

type chatResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpChat, err)
		return
	}
	answer, err := s.app.Assistant.AnswerChat(r.Context(), userID(r), req.Question)
	if err != nil {
		s.fail(w, r, applog.OpChat, err)
		return
	}
	respond(w, http.StatusOK, chatResponse{Answer: answer})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := s.app.Assistant.ChatHistory(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	if logs == nil {
		logs = []core.ChatLog{}
	}
	respond(w, http.StatusOK, logs)
}
