package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 2048
	defaultModel        = "claude-sonnet-4-5"
)

// systemPrompt instructs the model to emit exactly one JSON object in the
// generated-loop shape. The response is still validated; the model is an
// uncontrolled source.
const systemPrompt = `You are a checklist generator for a habit app. Given a short description, respond with exactly one JSON object and nothing else, in this shape:
{"name": string, "description": string, "color": one of "teal"|"coral"|"indigo"|"gold"|"sage", "resetRule": one of "manual"|"daily"|"weekly", "tasks": [{"description": string, "notes": string (optional), "isRecurring": boolean}]}
Rules: name is short and concrete; 3 to 10 tasks; recurring tasks for repeated habits, non-recurring for one-off errands; no markdown, no code fences, no commentary.`

// Provider produces a raw completion for a sanitized prompt.
type Provider interface {
	GenerateLoopJSON(ctx context.Context, prompt string) (string, error)
}

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	logger    zerolog.Logger
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

func WithMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.maxTokens = n }
}

func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = c }
}

func WithBaseURL(u string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = u }
}

// NewAnthropicProvider constructs a new Anthropic provider.
func NewAnthropicProvider(apiKey string, logger zerolog.Logger, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    apiKey,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		baseURL:   anthropicAPIBase,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger.With().Str("component", "aigen_provider").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ---- Anthropic wire types ----

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateLoopJSON sends a blocking completion request and returns the raw
// text of the response.
func (p *AnthropicProvider) GenerateLoopJSON(ctx context.Context, prompt string) (string, error) {
	ar := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(ar)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var ar2 anthropicResponse
	if err := json.Unmarshal(raw, &ar2); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if ar2.Error != nil {
		return "", fmt.Errorf("completion api error %s: %s", ar2.Error.Type, ar2.Error.Message)
	}

	var text string
	for _, block := range ar2.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("completion returned no text")
	}

	p.logger.Debug().
		Str("model", p.model).
		Str("stop_reason", ar2.StopReason).
		Int("in_tokens", ar2.Usage.InputTokens).
		Int("out_tokens", ar2.Usage.OutputTokens).
		Msg("completion received")
	return text, nil
}
