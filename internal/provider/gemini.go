package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiOptions configures the Gemini provider.
type GeminiOptions struct {
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
}

// GeminiProvider implements Provider against the Gemini API.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	config  *genai.GenerateContentConfig
}

// NewGeminiProvider creates a Gemini provider. Without an API key the
// provider is created but reports itself unavailable.
func NewGeminiProvider(ctx context.Context, opts GeminiOptions) (*GeminiProvider, error) {
	p := &GeminiProvider{
		model:   opts.Model,
		timeout: opts.Timeout,
	}
	if p.model == "" {
		p.model = DefaultGeminiModel
	}
	if p.timeout == 0 {
		p.timeout = 2 * time.Minute
	}
	if opts.Temperature > 0 {
		p.config = &genai.GenerateContentConfig{Temperature: genai.Ptr(opts.Temperature)}
	}

	if opts.APIKey == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string { return "gemini" }

// DisplayName returns the human-friendly name.
func (p *GeminiProvider) DisplayName() string { return "Google Gemini" }

// Model returns the model used for generation.
func (p *GeminiProvider) Model() string { return p.model }

// Available reports whether an API client was configured.
func (p *GeminiProvider) Available() bool { return p.client != nil }

// Generate sends a prompt to Gemini and returns the response text.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.client == nil {
		return "", &APIError{Provider: p.Name(), Message: "API key not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &APIError{Provider: p.Name(), StatusCode: apiErr.Code, Message: apiErr.Message, Err: err}
		}
		return "", &APIError{Provider: p.Name(), Message: "request failed", Err: err}
	}

	text := cleanOutput(resp.Text())
	if text == "" {
		return "", &APIError{Provider: p.Name(), Message: "empty response"}
	}

	slog.Debug("Gemini response received",
		"model", p.model,
		"duration", time.Since(start),
		"chars", len(text))
	return text, nil
}

// cleanOutput trims whitespace and a surrounding markdown code fence.
func cleanOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
