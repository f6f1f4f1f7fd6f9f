package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"

	"github.com/mfgdash/mfgdash/internal/config"
	"github.com/mfgdash/mfgdash/internal/dashboard"
	"github.com/mfgdash/mfgdash/internal/export"
	"github.com/mfgdash/mfgdash/internal/insight"
	"github.com/mfgdash/mfgdash/internal/views"
	"github.com/mfgdash/mfgdash/internal/warehouse"
)

const maxInsightBodyBytes = 64 << 10

type insightRequest struct {
	LineID       *int64 `json:"line_id"`
	Resolved     *bool  `json:"resolved"`
	Search       string `json:"search"`
	SystemPrompt string `json:"system_prompt"`
}

type panelResponse struct {
	View        string           `json:"view"`
	Title       string           `json:"title"`
	State       string           `json:"state"`
	Columns     []string         `json:"columns"`
	Rows        [][]string       `json:"rows"`
	RowCount    int              `json:"row_count"`
	Fingerprint string           `json:"fingerprint"`
	DurationMs  int64            `json:"duration_ms"`
	Insight     *insightResponse `json:"insight,omitempty"`
}

type insightResponse struct {
	Heading  string `json:"heading"`
	Text     string `json:"text"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

func handleListViews(cfg config.Config, deps Dependencies, w http.ResponseWriter, _ *http.Request) {
	insightEnabled := deps.Dashboard != nil && deps.Dashboard.InsightEnabled()
	writeJSON(w, http.StatusOK, map[string]any{
		"views":                 views.All(),
		"line_ids":              views.LineIDOptions(),
		"default_system_prompt": cfg.Dashboard.SystemPrompt,
		"insight_enabled":       insightEnabled,
	})
}

func handleShowView(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireDashboard(deps, w, r) {
		return
	}
	sel, ok := selectionFromQuery(w, r)
	if !ok {
		return
	}
	panel, err := deps.Dashboard.Show(r.Context(), sel)
	if err != nil {
		writeDashboardError(r, w, sel.View, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, newPanelResponse(panel))
}

func handleViewInsight(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireDashboard(deps, w, r) {
		return
	}
	view, err := views.Parse(r.PathValue("view"))
	if err != nil {
		writeDashboardError(r, w, "", err, nil)
		return
	}

	var request insightRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInsightBodyBytes))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "failed to read request body", false, map[string]any{"details": err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid insight request body", false, map[string]any{"details": err.Error()})
			return
		}
	}

	sel := dashboard.Selection{
		View: view,
		Filters: views.Filters{
			LineID:   request.LineID,
			Resolved: request.Resolved,
			Search:   request.Search,
		},
	}
	panel, err := deps.Dashboard.Explain(r.Context(), sel, request.SystemPrompt)
	if err != nil {
		writeDashboardError(r, w, view, err, &panel)
		return
	}
	writeJSON(w, http.StatusOK, newPanelResponse(panel))
}

func handleExportView(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireDashboard(deps, w, r) {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, map[string]any{"supported": []export.Format{export.FormatCSV, export.FormatParquet}})
		return
	}
	sel, ok := selectionFromQuery(w, r)
	if !ok {
		return
	}
	panel, err := deps.Dashboard.Show(r.Context(), sel)
	if err != nil {
		writeDashboardError(r, w, sel.View, err, nil)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, panel.Table); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode table", false, map[string]any{"details": err.Error()})
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(sel.View.String(), format)+`"`)
	w.Header().Set("X-Table-Fingerprint", panel.Table.Fingerprint())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func requireDashboard(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Dashboard == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DASHBOARD_NOT_CONFIGURED", "dashboard dependencies are not configured", false, nil)
		return false
	}
	return true
}

func selectionFromQuery(w http.ResponseWriter, r *http.Request) (dashboard.Selection, bool) {
	view, err := views.Parse(r.PathValue("view"))
	if err != nil {
		writeDashboardError(r, w, "", err, nil)
		return dashboard.Selection{}, false
	}
	filters, err := filtersFromQuery(r.URL.Query())
	if err != nil {
		writeDashboardError(r, w, view, err, nil)
		return dashboard.Selection{}, false
	}
	return dashboard.Selection{View: view, Filters: filters}, true
}

func filtersFromQuery(values url.Values) (views.Filters, error) {
	lineID, err := views.ParseLineID(values.Get(views.FilterLineID))
	if err != nil {
		return views.Filters{}, err
	}
	resolved, err := views.ParseResolved(values.Get(views.FilterResolved))
	if err != nil {
		return views.Filters{}, err
	}
	return views.Filters{LineID: lineID, Resolved: resolved, Search: values.Get(views.FilterSearch)}, nil
}

func newPanelResponse(panel dashboard.Panel) panelResponse {
	columns := panel.Table.Columns
	if columns == nil {
		columns = []string{}
	}
	response := panelResponse{
		View:        panel.View.String(),
		Title:       panel.View.Info().Title,
		State:       string(panel.State),
		Columns:     columns,
		Rows:        panel.Table.Cells(),
		RowCount:    panel.Table.Len(),
		Fingerprint: panel.Table.Fingerprint(),
		DurationMs:  panel.Duration.Milliseconds(),
	}
	if panel.Insight != nil {
		response.Insight = &insightResponse{
			Heading:  panel.Insight.Heading,
			Text:     panel.Insight.Text,
			Model:    panel.Insight.Model,
			Provider: panel.Insight.Provider,
		}
	}
	return response
}

// writeDashboardError maps a dashboard failure onto the error envelope. When
// panel carries a table it is returned in the context so clients keep it on
// screen.
func writeDashboardError(r *http.Request, w http.ResponseWriter, view views.View, err error, panel *dashboard.Panel) {
	ctx := r.Context()
	extra := map[string]any{}
	if view != "" {
		extra["view"] = view.String()
	}

	var connErr *warehouse.ConnectionError
	var queryErr *warehouse.QueryError
	var reqErr *insight.RequestError
	switch {
	case errors.Is(err, views.ErrUnknownView):
		extra["views"] = viewSlugs()
		writeError(ctx, w, http.StatusNotFound, "VIEW_NOT_FOUND", err.Error(), false, extra)
	case errors.Is(err, views.ErrInvalidFilter):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_FILTER", err.Error(), false, extra)
	case errors.Is(err, dashboard.ErrInsightDisabled):
		writeError(ctx, w, http.StatusNotImplemented, "INSIGHT_NOT_CONFIGURED", "insight generation is not configured", false, extra)
	case errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusServiceUnavailable, "REQUEST_CANCELED", "request was canceled", true, extra)
	case errors.As(err, &connErr):
		extra["details"] = err.Error()
		writeError(ctx, w, http.StatusServiceUnavailable, "WAREHOUSE_UNAVAILABLE", "could not connect to the data warehouse", true, extra)
	case errors.As(err, &queryErr) && queryErr.Timeout:
		extra["details"] = err.Error()
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "the query for "+view.Info().Title+" timed out", true, extra)
	case errors.As(err, &queryErr):
		extra["details"] = err.Error()
		writeError(ctx, w, http.StatusBadGateway, "QUERY_FAILED", "the query for "+view.Info().Title+" failed", false, extra)
	case errors.As(err, &reqErr):
		status := http.StatusBadGateway
		if reqErr.Kind == insight.KindQuota {
			status = http.StatusTooManyRequests
		}
		extra["kind"] = string(reqErr.Kind)
		extra["details"] = err.Error()
		if reqErr.StatusCode != 0 {
			extra["upstream_status"] = reqErr.StatusCode
		}
		if panel != nil && panel.State != "" {
			extra["panel"] = newPanelResponse(*panel)
		}
		writeError(ctx, w, status, "INSIGHT_FAILED", "insight generation failed", reqErr.Retryable(), extra)
	default:
		extra["details"] = err.Error()
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected dashboard failure", true, extra)
	}
}

func viewSlugs() []string {
	all := views.All()
	out := make([]string, 0, len(all))
	for _, info := range all {
		out = append(out, info.View.String())
	}
	return out
}
