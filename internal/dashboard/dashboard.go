// Package dashboard runs one interaction: a view selection becomes a query,
// the query becomes a table, and on request the table becomes an insight.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mfgdash/mfgdash/internal/insight"
	"github.com/mfgdash/mfgdash/internal/observability"
	"github.com/mfgdash/mfgdash/internal/table"
	"github.com/mfgdash/mfgdash/internal/views"
)

var ErrInsightDisabled = errors.New("insight requester is not configured")

// State tags where an interaction ended. Idle and ViewChosen only exist in
// clients; the service reports DataShown or InsightShown.
type State string

const (
	StateIdle         State = "idle"
	StateViewChosen   State = "view_chosen"
	StateDataShown    State = "data_shown"
	StateInsightShown State = "insight_shown"
)

type Fetcher interface {
	Fetch(ctx context.Context, stmt views.Statement) (table.Table, error)
}

type Selection struct {
	View    views.View
	Filters views.Filters
}

type Insight struct {
	Heading  string
	Text     string
	Model    string
	Provider string
}

// Panel is what a client renders for one interaction. Insight is set only
// in StateInsightShown and was computed from Table.Text().
type Panel struct {
	View     views.View
	State    State
	Table    table.Table
	Duration time.Duration
	Insight  *Insight
}

type Service struct {
	Builder             *views.Builder
	Accessor            Fetcher
	Insight             insight.Requester
	DefaultSystemPrompt string
	Logger              *slog.Logger
}

func (s *Service) InsightEnabled() bool {
	return s.Insight != nil
}

// Show queries the selected view with its filters.
func (s *Service) Show(ctx context.Context, sel Selection) (Panel, error) {
	stmt, err := s.Builder.Build(sel.View, sel.Filters)
	if err != nil {
		return Panel{}, err
	}

	start := time.Now()
	result, err := s.Accessor.Fetch(ctx, stmt)
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveViewQuery(sel.View.String(), observability.OutcomeError, 0, elapsed)
		s.logger().WarnContext(ctx, "view query failed",
			slog.String("view", sel.View.String()),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return Panel{}, err
	}
	observability.ObserveViewQuery(sel.View.String(), observability.OutcomeOK, result.Len(), elapsed)

	return Panel{
		View:     sel.View,
		State:    StateDataShown,
		Table:    result,
		Duration: elapsed,
	}, nil
}

// Explain re-runs the view's query and sends the table text to the model
// with systemPrompt, or the default prompt when it is blank. When the model
// call fails the returned panel still carries the table.
func (s *Service) Explain(ctx context.Context, sel Selection, systemPrompt string) (Panel, error) {
	if !sel.View.Valid() {
		_, err := views.Parse(sel.View.String())
		return Panel{}, err
	}
	if s.Insight == nil {
		return Panel{}, ErrInsightDisabled
	}

	panel, err := s.Show(ctx, sel)
	if err != nil {
		return Panel{}, err
	}

	prompt := strings.TrimSpace(systemPrompt)
	if prompt == "" {
		prompt = s.DefaultSystemPrompt
	}

	start := time.Now()
	result, err := s.Insight.Generate(ctx, insight.Request{SystemPrompt: prompt, Data: panel.Table.Text()})
	elapsed := time.Since(start)
	if err != nil {
		observability.ObserveInsight(sel.View.String(), observability.OutcomeError, elapsed)
		s.logger().WarnContext(ctx, "insight request failed",
			slog.String("view", sel.View.String()),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return panel, err
	}
	observability.ObserveInsight(sel.View.String(), observability.OutcomeOK, elapsed)

	panel.State = StateInsightShown
	panel.Insight = &Insight{
		Heading:  sel.View.Info().InsightHeading,
		Text:     result.Text,
		Model:    result.Model,
		Provider: result.Provider,
	}
	return panel, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
