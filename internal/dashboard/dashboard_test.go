package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/mfgdash/mfgdash/internal/insight"
	"github.com/mfgdash/mfgdash/internal/table"
	"github.com/mfgdash/mfgdash/internal/views"
	"github.com/mfgdash/mfgdash/internal/warehouse"
)

func TestShowBuildsStatementAndReturnsTable(t *testing.T) {
	fetcher := &fakeFetcher{result: table.Table{Columns: []string{"LogID"}, Rows: [][]any{{int64(1)}}}}
	service := &Service{Builder: views.NewBuilder("MANUFACTURING_DATA.DEMO", views.Snowflake), Accessor: fetcher}

	lineID := int64(4)
	panel, err := service.Show(context.Background(), Selection{View: views.MachineLogs, Filters: views.Filters{LineID: &lineID}})
	if err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if panel.State != StateDataShown || panel.Insight != nil {
		t.Fatalf("panel = %+v", panel)
	}
	if panel.Table.Len() != 1 {
		t.Fatalf("rows = %d", panel.Table.Len())
	}
	if len(fetcher.statements) != 1 {
		t.Fatalf("fetches = %d", len(fetcher.statements))
	}
	stmt := fetcher.statements[0]
	if stmt.View != views.MachineLogs || len(stmt.Args) != 1 || stmt.Args[0] != int64(4) {
		t.Fatalf("statement = %+v", stmt)
	}
}

func TestShowUnknownView(t *testing.T) {
	fetcher := &fakeFetcher{}
	service := &Service{Builder: views.NewBuilder("", views.SQLite), Accessor: fetcher}
	_, err := service.Show(context.Background(), Selection{View: "inventory"})
	if !errors.Is(err, views.ErrUnknownView) {
		t.Fatalf("Show() error = %v", err)
	}
	if len(fetcher.statements) != 0 {
		t.Fatal("unknown view reached the warehouse")
	}
}

func TestShowPropagatesWarehouseErrors(t *testing.T) {
	want := &warehouse.QueryError{View: views.ProductDimension, Err: errors.New("boom")}
	service := &Service{Builder: views.NewBuilder("", views.SQLite), Accessor: &fakeFetcher{err: want}}
	_, err := service.Show(context.Background(), Selection{View: views.ProductDimension})
	var queryErr *warehouse.QueryError
	if !errors.As(err, &queryErr) || queryErr != want {
		t.Fatalf("Show() error = %v", err)
	}
}

func TestExplainSendsDisplayedTable(t *testing.T) {
	data := table.Table{
		Columns: []string{"ProductID", "ProductName"},
		Rows:    [][]any{{int64(1), "Gear Housing"}, {int64(2), nil}},
	}
	requester := &fakeRequester{result: insight.Result{Text: "Two products.", Model: "m", Provider: "p"}}
	service := &Service{
		Builder:             views.NewBuilder("", views.SQLite),
		Accessor:            &fakeFetcher{result: data},
		Insight:             requester,
		DefaultSystemPrompt: "default prompt",
	}

	panel, err := service.Explain(context.Background(), Selection{View: views.ProductDimension}, "  ")
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if panel.State != StateInsightShown {
		t.Fatalf("State = %s", panel.State)
	}
	if panel.Insight == nil || panel.Insight.Text != "Two products." || panel.Insight.Heading != "GPT Product Insights" {
		t.Fatalf("Insight = %+v", panel.Insight)
	}
	if len(requester.requests) != 1 {
		t.Fatalf("requests = %d", len(requester.requests))
	}
	sent := requester.requests[0]
	if sent.SystemPrompt != "default prompt" {
		t.Fatalf("SystemPrompt = %q", sent.SystemPrompt)
	}
	if sent.Data != panel.Table.Text() {
		t.Fatalf("sent data differs from displayed table:\n%s\n---\n%s", sent.Data, panel.Table.Text())
	}
}

func TestExplainUsesCustomPrompt(t *testing.T) {
	requester := &fakeRequester{result: insight.Result{Text: "ok"}}
	service := &Service{
		Builder:             views.NewBuilder("", views.SQLite),
		Accessor:            &fakeFetcher{},
		Insight:             requester,
		DefaultSystemPrompt: "default prompt",
	}
	if _, err := service.Explain(context.Background(), Selection{View: views.ProductionLines}, "Focus on downtime."); err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if requester.requests[0].SystemPrompt != "Focus on downtime." {
		t.Fatalf("SystemPrompt = %q", requester.requests[0].SystemPrompt)
	}
}

func TestExplainFailureKeepsTable(t *testing.T) {
	data := table.Table{Columns: []string{"LineID"}, Rows: [][]any{{int64(1)}}}
	reqErr := &insight.RequestError{Kind: insight.KindQuota, StatusCode: 429, Err: errors.New("rate limited")}
	service := &Service{
		Builder:  views.NewBuilder("", views.SQLite),
		Accessor: &fakeFetcher{result: data},
		Insight:  &fakeRequester{err: reqErr},
	}

	panel, err := service.Explain(context.Background(), Selection{View: views.ProductionLines}, "")
	var got *insight.RequestError
	if !errors.As(err, &got) || got.Kind != insight.KindQuota {
		t.Fatalf("Explain() error = %v", err)
	}
	if panel.State != StateDataShown || panel.Table.Len() != 1 || panel.Insight != nil {
		t.Fatalf("panel = %+v", panel)
	}
}

func TestExplainWithoutRequester(t *testing.T) {
	fetcher := &fakeFetcher{}
	service := &Service{Builder: views.NewBuilder("", views.SQLite), Accessor: fetcher}
	if service.InsightEnabled() {
		t.Fatal("InsightEnabled() = true")
	}
	_, err := service.Explain(context.Background(), Selection{View: views.ProductionLines}, "")
	if !errors.Is(err, ErrInsightDisabled) {
		t.Fatalf("Explain() error = %v", err)
	}
	if len(fetcher.statements) != 0 {
		t.Fatal("disabled insight still queried the warehouse")
	}
}

func TestExplainUnknownViewWinsOverDisabledInsight(t *testing.T) {
	service := &Service{Builder: views.NewBuilder("", views.SQLite), Accessor: &fakeFetcher{}}
	_, err := service.Explain(context.Background(), Selection{View: "nope"}, "")
	if !errors.Is(err, views.ErrUnknownView) {
		t.Fatalf("Explain() error = %v", err)
	}
}

type fakeFetcher struct {
	result     table.Table
	err        error
	statements []views.Statement
}

func (f *fakeFetcher) Fetch(_ context.Context, stmt views.Statement) (table.Table, error) {
	f.statements = append(f.statements, stmt)
	if f.err != nil {
		return table.Table{}, f.err
	}
	return f.result, nil
}

type fakeRequester struct {
	result   insight.Result
	err      error
	requests []insight.Request
}

func (f *fakeRequester) Generate(_ context.Context, req insight.Request) (insight.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return insight.Result{}, f.err
	}
	return f.result, nil
}
