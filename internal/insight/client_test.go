package insight

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestAzureClientSendsPromptAndTable(t *testing.T) {
	requests := make(chan chatRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s", r.Method)
		}
		if r.URL.Path != "/openai/deployments/manufacturing-demo/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != "2023-12-01-preview" {
			t.Fatalf("api-version = %q", got)
		}
		if got := r.Header.Get("api-key"); got != "azure-key" {
			t.Fatalf("api-key header = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatal("azure request must not send a bearer token")
		}
		var captured chatRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		requests <- captured
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4","choices":[{"message":{"role":"assistant","content":"  - Line 3 is idle most of the shift.\n  - Line 7 runs hot.\n"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider:   ProviderAzure,
		BaseURL:    server.URL + "/",
		APIVersion: "2023-12-01-preview",
		Deployment: "manufacturing-demo",
		APIKey:     "azure-key",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	result, err := client.Generate(context.Background(), Request{SystemPrompt: "Analyze this.", Data: "LineID Status\n     3   IDLE"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Text != "  - Line 3 is idle most of the shift.\n  - Line 7 runs hot.\n" {
		t.Fatalf("Text = %q", result.Text)
	}
	if result.Model != "gpt-4" || result.Provider != ProviderAzure {
		t.Fatalf("result = %+v", result)
	}
	captured := <-requests
	if captured.MaxTokens != defaultMaxTokens {
		t.Fatalf("max_tokens = %d", captured.MaxTokens)
	}
	if captured.Model != "" {
		t.Fatalf("azure payload carries model %q", captured.Model)
	}
	if len(captured.Messages) != 2 ||
		captured.Messages[0] != (chatMessage{Role: "system", Content: "Analyze this."}) ||
		captured.Messages[1] != (chatMessage{Role: "user", Content: "LineID Status\n     3   IDLE"}) {
		t.Fatalf("messages = %#v", captured.Messages)
	}
}

func TestOpenAIClientUsesBearerAndModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload["model"] != "gpt-4o-mini" {
			t.Fatalf("model = %v", payload["model"])
		}
		if payload["max_tokens"] != float64(250) {
			t.Fatalf("max_tokens = %v", payload["max_tokens"])
		}
		if payload["temperature"] != 0.2 {
			t.Fatalf("temperature = %v", payload["temperature"])
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		Provider:    ProviderOpenAI,
		BaseURL:     server.URL,
		Deployment:  "gpt-4o-mini",
		APIKey:      "sk-test",
		MaxTokens:   250,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	result, err := client.Generate(context.Background(), Request{SystemPrompt: "p", Data: "d"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Model != "gpt-4o-mini" || result.Provider != ProviderOpenAI {
		t.Fatalf("result = %+v", result)
	}
}

func TestGenerateClassifiesFailures(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		kind      Kind
		retryable bool
		message   string
	}{
		{name: "auth", status: http.StatusUnauthorized, body: `{"error":{"message":"Access denied due to invalid subscription key."}}`, kind: KindAuth, message: "invalid subscription key"},
		{name: "forbidden", status: http.StatusForbidden, body: `nope`, kind: KindAuth, message: "nope"},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"message":"Rate limit reached"}}`, kind: KindQuota, retryable: true},
		{name: "server", status: http.StatusBadGateway, body: ``, kind: KindStatus, retryable: true, message: "empty response body"},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"context_length_exceeded"}}`, kind: KindStatus},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, kind: KindMalformed, message: "empty chat completion choices"},
		{name: "missing message", status: http.StatusOK, body: `{"choices":[{}]}`, kind: KindMalformed},
		{name: "blank content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`, kind: KindMalformed},
		{name: "not json", status: http.StatusOK, body: `<html>`, kind: KindMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Generate(context.Background(), Request{SystemPrompt: "p", Data: "d"})
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("Generate() error = %T %v, want *RequestError", err, err)
			}
			if reqErr.Kind != tc.kind {
				t.Fatalf("Kind = %q, want %q", reqErr.Kind, tc.kind)
			}
			if reqErr.StatusCode != tc.status {
				t.Fatalf("StatusCode = %d", reqErr.StatusCode)
			}
			if reqErr.Retryable() != tc.retryable {
				t.Fatalf("Retryable() = %v", reqErr.Retryable())
			}
			if tc.message != "" && !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("error %q missing %q", err.Error(), tc.message)
			}
		})
	}
}

func TestGenerateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(t, url).Generate(context.Background(), Request{SystemPrompt: "p", Data: "d"})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != KindUnreachable || !reqErr.Retryable() {
		t.Fatalf("Generate() error = %v, want retryable unreachable", err)
	}
}

func TestGenerateHonorsClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient(Config{Provider: ProviderOpenAI, BaseURL: server.URL, Deployment: "m", APIKey: "k", Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = client.Generate(context.Background(), Request{})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Kind != KindUnreachable {
		t.Fatalf("Generate() error = %v, want unreachable", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	cases := []Config{
		{Provider: ProviderAzure, APIKey: "k", Deployment: "d", APIVersion: "v"},
		{Provider: ProviderAzure, BaseURL: "http://x", Deployment: "d", APIVersion: "v"},
		{Provider: ProviderAzure, BaseURL: "http://x", APIKey: "k", APIVersion: "v"},
		{Provider: ProviderAzure, BaseURL: "http://x", APIKey: "k", Deployment: "d"},
		{Provider: "anthropic", BaseURL: "http://x", APIKey: "k", Deployment: "d"},
	}
	for i, cfg := range cases {
		if _, err := NewClient(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{Provider: ProviderOpenAI, BaseURL: baseURL, Deployment: "gpt-test", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}
