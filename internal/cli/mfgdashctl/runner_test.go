package mfgdashctl

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

const panelJSON = `{"view":"machine-logs","title":"Machine Logs","state":"data_shown","columns":["LogID","Status"],"rows":[["1","RUNNING"],["12","IDLE"]],"row_count":2,"fingerprint":"0123456789abcdef","duration_ms":15}`

func TestRunShowCommand(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(panelJSON))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-line-id", "3",
		"show", "machine-logs",
	}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodGet || gotPath != "/v1/views/machine-logs" || gotQuery != "line_id=3" {
		t.Fatalf("request = %s %s?%s", gotMethod, gotPath, gotQuery)
	}
	want := "Machine Logs\nLogID  Status\n    1 RUNNING\n   12    IDLE\n2 rows in 15ms (fingerprint 0123456789ab)\n"
	if stdout.String() != want {
		t.Fatalf("stdout =\n%q\nwant\n%q", stdout.String(), want)
	}
}

func TestRunShowPrettyUsesBorders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(panelJSON))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "show", "machine-logs"}, Options{Stdout: &stdout, Pretty: true})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "RUNNING") || !strings.Contains(stdout.String(), "│") {
		t.Fatalf("stdout = %s", stdout.String())
	}

	stdout.Reset()
	code = Run(context.Background(), []string{"-base-url", srv.URL, "-plain", "show", "machine-logs"}, Options{Stdout: &stdout, Pretty: true})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(stdout.String(), "│") {
		t.Fatalf("-plain output has borders: %s", stdout.String())
	}
}

func TestRunInsightCommand(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"view":"failure-incidents","title":"Failure Incidents","state":"insight_shown","columns":["IncidentID"],"rows":[["4"]],"row_count":1,"fingerprint":"ff","duration_ms":3,"insight":{"heading":"GPT Insights","text":"Leaks cluster on line 2.","model":"gpt-4","provider":"azure"}}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{
		"-base-url", srv.URL,
		"-resolved", "false",
		"-search", "leak",
		"-prompt", "Be brief.",
		"insight", "failure-incidents",
	}, Options{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotPath != "/v1/views/failure-incidents/insight" {
		t.Fatalf("path = %s", gotPath)
	}
	if gotBody["resolved"] != false || gotBody["search"] != "leak" || gotBody["system_prompt"] != "Be brief." {
		t.Fatalf("body = %v", gotBody)
	}
	if _, ok := gotBody["line_id"]; ok {
		t.Fatalf("unexpected line_id in %v", gotBody)
	}
	if !strings.Contains(stdout.String(), "## GPT Insights\n\nLeaks cluster on line 2.") {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestRunInsightFailurePrintsTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error_code":"INSIGHT_FAILED","message":"insight generation failed","retryable":true,"context":{"details":"rate limited","panel":` + panelJSON + `},"trace_id":"t"}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "insight", "machine-logs"}, Options{Stdout: &stdout, Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "RUNNING") {
		t.Fatalf("table not printed: %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "INSIGHT_FAILED") || !strings.Contains(stderr.String(), "rate limited") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunInsightRejectsBadFlags(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-resolved", "maybe", "insight", "failure-incidents"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestRunViewsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/views" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"views":[{"view":"production-lines","title":"Production Lines","insight_label":"Generate GPT Suggestions","filters":[]},{"view":"machine-logs","title":"Machine Logs","insight_label":"Analyze with GPT","filters":["line_id"]}],"insight_enabled":false}`))
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "views"}, Options{Stdout: &stdout})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "machine-logs") || !strings.Contains(out, "line_id") || !strings.Contains(out, "not configured") {
		t.Fatalf("stdout = %s", out)
	}
}

func TestRunExportCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte("ProductID,ProductName\n1,Gear Housing\n"))
	}))
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "products.csv")
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "-output", output, "export", "product-dimension"}, Options{Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotQuery != "format=csv" {
		t.Fatalf("query = %s", gotQuery)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "ProductID,ProductName\n1,Gear Housing\n" {
		t.Fatalf("output = %q", data)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error_code":"WAREHOUSE_UNAVAILABLE","message":"could not connect to the data warehouse","retryable":true}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "show", "production-lines"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "WAREHOUSE_UNAVAILABLE") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{{"unknown"}, {"show"}, {}} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("%v: exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("%v: expected usage output", args)
		}
	}
}
