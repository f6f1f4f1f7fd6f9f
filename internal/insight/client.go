package insight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"

	defaultMaxTokens = 1000
	maxErrorBody     = 512
)

type Config struct {
	Provider   string
	BaseURL    string
	APIVersion string
	// Deployment is the Azure deployment name, or the model name for
	// OpenAI-compatible endpoints.
	Deployment  string
	APIKey      string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client calls an Azure OpenAI deployment or an OpenAI-compatible chat
// completions endpoint. It is single-turn and never retries.
type Client struct {
	provider    string
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Deployment)
	if model == "" {
		return nil, fmt.Errorf("deployment is required")
	}

	var endpoint string
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderAzure, "":
		if strings.TrimSpace(cfg.APIVersion) == "" {
			return nil, fmt.Errorf("api version is required for azure")
		}
		endpoint = baseURL + "/openai/deployments/" + url.PathEscape(model) +
			"/chat/completions?api-version=" + url.QueryEscape(strings.TrimSpace(cfg.APIVersion))
		cfg.Provider = ProviderAzure
	case ProviderOpenAI:
		endpoint = baseURL + "/v1/chat/completions"
		cfg.Provider = ProviderOpenAI
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		provider:    cfg.Provider,
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	payload := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.Data},
		},
		MaxTokens: c.maxTokens,
	}
	if c.provider == ProviderOpenAI {
		payload.Model = c.model
	}
	if c.temperature != 0 {
		temperature := c.temperature
		payload.Temperature = &temperature
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.provider == ProviderAzure {
		httpReq.Header.Set("api-key", c.apiKey)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, &RequestError{Kind: KindUnreachable, Err: fmt.Errorf("request chat completion: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &RequestError{Kind: KindUnreachable, StatusCode: resp.StatusCode, Err: fmt.Errorf("read chat response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &RequestError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        errors.New(errorMessage(rawRespBody)),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return Result{}, malformed(resp.StatusCode, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return Result{}, malformed(resp.StatusCode, errors.New("empty chat completion choices"))
	}
	message := parsed.Choices[0].Message
	if message == nil || strings.TrimSpace(message.Content) == "" {
		return Result{}, malformed(resp.StatusCode, errors.New("chat completion has no message content"))
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return Result{
		Text:     message.Content,
		Model:    model,
		Provider: c.provider,
	}, nil
}

func malformed(status int, err error) *RequestError {
	return &RequestError{Kind: KindMalformed, StatusCode: status, Err: err}
}

// errorMessage prefers the provider's error.message field over the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "empty response body"
	}
	return text
}
