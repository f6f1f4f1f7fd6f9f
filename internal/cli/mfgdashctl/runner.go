package mfgdashctl

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
	// Pretty renders tables with borders and insights as markdown. Callers
	// enable it when stdout is a terminal.
	Pretty bool
	Width  int
}

type flags struct {
	lineID   string
	resolved string
	search   string
	prompt   string
	format   string
	output   string
	plain    bool
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("mfgdashctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "mfgdash API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 90s)")
	var opts flags
	fs.StringVar(&opts.lineID, "line-id", "", "Machine Logs: filter by line id")
	fs.StringVar(&opts.resolved, "resolved", "", "Failure Incidents: all, true or false")
	fs.StringVar(&opts.search, "search", "", "Failure Incidents: case-insensitive description search")
	fs.StringVar(&opts.prompt, "prompt", "", "insight: system prompt (defaults to the server's)")
	fs.StringVar(&opts.format, "format", "csv", "export: csv or parquet")
	fs.StringVar(&opts.output, "output", "", "export: output file (default stdout)")
	fs.BoolVar(&opts.plain, "plain", false, "disable table borders and markdown rendering")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	r := &runner{
		client:  client,
		baseURL: strings.TrimRight(*baseURL, "/"),
		stdout:  stdout,
		stderr:  stderr,
		render:  renderer{pretty: defaults.Pretty && !opts.plain, width: defaults.Width},
		flags:   opts,
	}

	command := strings.TrimSpace(fs.Arg(0))
	needsView := command == "show" || command == "insight" || command == "export"
	view := ""
	if needsView {
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintf(stderr, "%s requires a view\n\n", command)
			writeUsage(stderr)
			return 2
		}
		view = strings.TrimSpace(fs.Arg(1))
	}

	switch command {
	case "health":
		return r.printJSON(ctx, "/v1/health")
	case "ready":
		return r.printJSON(ctx, "/v1/ready")
	case "views":
		return r.views(ctx)
	case "show":
		return r.show(ctx, view)
	case "insight":
		return r.insight(ctx, view)
	case "export":
		return r.export(ctx, view)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

type runner struct {
	client  *http.Client
	baseURL string
	stdout  io.Writer
	stderr  io.Writer
	render  renderer
	flags   flags
}

type viewInfo struct {
	View           string   `json:"view"`
	Title          string   `json:"title"`
	InsightLabel   string   `json:"insight_label"`
	InsightHeading string   `json:"insight_heading"`
	Filters        []string `json:"filters"`
}

type viewCatalog struct {
	Views               []viewInfo `json:"views"`
	DefaultSystemPrompt string     `json:"default_system_prompt"`
	InsightEnabled      bool       `json:"insight_enabled"`
}

type panel struct {
	View        string     `json:"view"`
	Title       string     `json:"title"`
	State       string     `json:"state"`
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"row_count"`
	Fingerprint string     `json:"fingerprint"`
	DurationMs  int64      `json:"duration_ms"`
	Insight     *struct {
		Heading  string `json:"heading"`
		Text     string `json:"text"`
		Model    string `json:"model"`
		Provider string `json:"provider"`
	} `json:"insight"`
}

type errorEnvelope struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Context   struct {
		Details string `json:"details"`
		Panel   *panel `json:"panel"`
	} `json:"context"`
	TraceID string `json:"trace_id"`
}

func (r *runner) printJSON(ctx context.Context, path string) int {
	code, body, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return r.fail(err)
	}
	if code >= 400 {
		return r.httpFailure(code, body)
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(r.stdout, pretty)
		return 0
	}
	_, _ = fmt.Fprintln(r.stdout, string(body))
	return 0
}

func (r *runner) views(ctx context.Context) int {
	code, body, err := r.do(ctx, http.MethodGet, "/v1/views", nil)
	if err != nil {
		return r.fail(err)
	}
	if code >= 400 {
		return r.httpFailure(code, body)
	}
	var catalog viewCatalog
	if err := json.Unmarshal(body, &catalog); err != nil {
		return r.fail(fmt.Errorf("decode views: %w", err))
	}

	headers := []string{"VIEW", "TITLE", "FILTERS", "INSIGHT"}
	rows := make([][]string, 0, len(catalog.Views))
	for _, info := range catalog.Views {
		filters := strings.Join(info.Filters, ",")
		if filters == "" {
			filters = "-"
		}
		rows = append(rows, []string{info.View, info.Title, filters, info.InsightLabel})
	}
	_, _ = fmt.Fprintln(r.stdout, r.render.table(headers, rows))
	if !catalog.InsightEnabled {
		_, _ = fmt.Fprintln(r.stdout, "insight generation is not configured on the server")
	}
	return 0
}

func (r *runner) show(ctx context.Context, view string) int {
	code, body, err := r.do(ctx, http.MethodGet, withQuery(r.viewPath(view, ""), r.filterQuery(nil)), nil)
	if err != nil {
		return r.fail(err)
	}
	if code >= 400 {
		return r.httpFailure(code, body)
	}
	var result panel
	if err := json.Unmarshal(body, &result); err != nil {
		return r.fail(fmt.Errorf("decode panel: %w", err))
	}
	r.printPanel(result)
	return 0
}

func (r *runner) insight(ctx context.Context, view string) int {
	payload := map[string]any{"system_prompt": r.flags.prompt, "search": r.flags.search}
	if raw := strings.TrimSpace(r.flags.lineID); raw != "" {
		lineID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return r.usageError(fmt.Errorf("invalid -line-id %q", raw))
		}
		payload["line_id"] = lineID
	}
	switch strings.ToLower(strings.TrimSpace(r.flags.resolved)) {
	case "", "all":
	case "true":
		payload["resolved"] = true
	case "false":
		payload["resolved"] = false
	default:
		return r.usageError(fmt.Errorf("invalid -resolved %q (want all, true or false)", r.flags.resolved))
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return r.fail(err)
	}

	code, body, err := r.do(ctx, http.MethodPost, r.viewPath(view, "/insight"), requestBody)
	if err != nil {
		return r.fail(err)
	}
	if code >= 400 {
		return r.httpFailure(code, body)
	}
	var result panel
	if err := json.Unmarshal(body, &result); err != nil {
		return r.fail(fmt.Errorf("decode panel: %w", err))
	}
	r.printPanel(result)
	if result.Insight != nil {
		_, _ = fmt.Fprintln(r.stdout)
		_, _ = fmt.Fprintln(r.stdout, r.render.markdown("## "+result.Insight.Heading+"\n\n"+result.Insight.Text))
	}
	return 0
}

func (r *runner) export(ctx context.Context, view string) int {
	code, body, err := r.do(ctx, http.MethodGet, withQuery(r.viewPath(view, "/export"), r.filterQuery(url.Values{"format": {r.flags.format}})), nil)
	if err != nil {
		return r.fail(err)
	}
	if code >= 400 {
		return r.httpFailure(code, body)
	}
	if r.flags.output == "" || r.flags.output == "-" {
		_, _ = r.stdout.Write(body)
		return 0
	}
	if err := os.WriteFile(r.flags.output, body, 0o644); err != nil {
		return r.fail(fmt.Errorf("write %s: %w", r.flags.output, err))
	}
	_, _ = fmt.Fprintf(r.stderr, "wrote %d bytes to %s\n", len(body), r.flags.output)
	return 0
}

func (r *runner) printPanel(p panel) {
	_, _ = fmt.Fprintln(r.stdout, r.render.title(p.Title))
	_, _ = fmt.Fprintln(r.stdout, r.render.table(p.Columns, p.Rows))
	_, _ = fmt.Fprintf(r.stdout, "%d rows in %dms (fingerprint %s)\n", p.RowCount, p.DurationMs, shortFingerprint(p.Fingerprint))
}

func (r *runner) viewPath(view, suffix string) string {
	return "/v1/views/" + url.PathEscape(view) + suffix
}

func withQuery(path string, values url.Values) string {
	if encoded := values.Encode(); encoded != "" {
		return path + "?" + encoded
	}
	return path
}

func (r *runner) filterQuery(base url.Values) url.Values {
	values := url.Values{}
	for key, value := range base {
		values[key] = value
	}
	if v := strings.TrimSpace(r.flags.lineID); v != "" {
		values.Set("line_id", v)
	}
	if v := strings.TrimSpace(r.flags.resolved); v != "" {
		values.Set("resolved", v)
	}
	if r.flags.search != "" {
		values.Set("search", r.flags.search)
	}
	return values
}

func (r *runner) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// httpFailure prints the error envelope. A panel in the error context is
// still printed so the table stays visible when only the insight failed.
func (r *runner) httpFailure(code int, body []byte) int {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.ErrorCode == "" {
		_, _ = fmt.Fprintf(r.stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}
	if envelope.Context.Panel != nil {
		r.printPanel(*envelope.Context.Panel)
	}
	_, _ = fmt.Fprintf(r.stderr, "http %d %s: %s\n", code, envelope.ErrorCode, envelope.Message)
	if envelope.Context.Details != "" {
		_, _ = fmt.Fprintf(r.stderr, "  %s\n", envelope.Context.Details)
	}
	if envelope.Retryable {
		_, _ = fmt.Fprintln(r.stderr, "  the request can be retried")
	}
	return 1
}

func (r *runner) fail(err error) int {
	_, _ = fmt.Fprintf(r.stderr, "request failed: %v\n", err)
	return 1
}

func (r *runner) usageError(err error) int {
	_, _ = fmt.Fprintln(r.stderr, err.Error())
	return 2
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: mfgdashctl [flags] <command> [view]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health           GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready            GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  views            list views and their filters")
	_, _ = fmt.Fprintln(w, "  show <view>      query a view (-line-id, -resolved, -search)")
	_, _ = fmt.Fprintln(w, "  insight <view>   query a view and ask the model about it (-prompt)")
	_, _ = fmt.Fprintln(w, "  export <view>    download a view (-format csv|parquet, -output)")
}

func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
