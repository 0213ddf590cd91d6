// Package ai produces reply text for customer reviews, either through a
// remote language-generation service or a deterministic rule-based fallback.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generation service defaults, overridable through configuration.
const (
	DefaultBaseURL          = "https://api.openai.com/v1"
	DefaultModel            = "gpt-4o-mini"
	DefaultTimeout          = 30 * time.Second
	DefaultTemperature      = 0.9
	DefaultTopP             = 0.95
	DefaultPresencePenalty  = 0.6
	DefaultFrequencyPenalty = 0.4
	DefaultMaxOutputTokens  = 400
)

// Sampling carries the sampling parameters sent with every generation call.
type Sampling struct {
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	MaxOutputTokens  int
}

// DefaultSampling returns the fixed default sampling parameters.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:      DefaultTemperature,
		TopP:             DefaultTopP,
		PresencePenalty:  DefaultPresencePenalty,
		FrequencyPenalty: DefaultFrequencyPenalty,
		MaxOutputTokens:  DefaultMaxOutputTokens,
	}
}

// Client is a minimal HTTP client for the generation service's responses
// endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	sampling   Sampling
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBaseURL overrides the service base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithModel overrides the model name.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithSampling overrides the sampling parameters.
func WithSampling(sampling Sampling) ClientOption {
	return func(c *Client) { c.sampling = sampling }
}

// NewClient creates a generation-service client for the given credential.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		model:      DefaultModel,
		sampling:   DefaultSampling(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generationRequest struct {
	Model            string  `json:"model"`
	Instructions     string  `json:"instructions"`
	Input            string  `json:"input"`
	Temperature      float64 `json:"temperature,omitempty"`
	TopP             float64 `json:"top_p,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	MaxOutputTokens  int     `json:"max_output_tokens,omitempty"`
}

type generationResponse struct {
	OutputText string             `json:"output_text"`
	Output     []generationOutput `json:"output"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type generationOutput struct {
	Type    string              `json:"type"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate performs one generation call and returns the raw output text.
func (c *Client) Generate(ctx context.Context, instructions, prompt string) (string, error) {
	payload := generationRequest{
		Model:            c.model,
		Instructions:     instructions,
		Input:            prompt,
		Temperature:      c.sampling.Temperature,
		TopP:             c.sampling.TopP,
		PresencePenalty:  c.sampling.PresencePenalty,
		FrequencyPenalty: c.sampling.FrequencyPenalty,
		MaxOutputTokens:  c.sampling.MaxOutputTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generation service returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed generationResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", fmt.Errorf("generation service error: %s", parsed.Error.Message)
	}

	return extractText(parsed), nil
}

// extractText takes the flat output-text field when present, else the first
// text-typed content block of the first message output.
func extractText(resp generationResponse) string {
	if resp.OutputText != "" {
		return resp.OutputText
	}
	for _, output := range resp.Output {
		if output.Type != "" && output.Type != "message" {
			continue
		}
		for _, content := range output.Content {
			if strings.Contains(content.Type, "text") && content.Text != "" {
				return content.Text
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
