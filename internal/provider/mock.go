package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider returns scripted responses. It backs offline runs and tests.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	calls     []string
	delay     time.Duration

	// Err, when set, is returned from every Generate call.
	Err error
}

// NewMockProvider creates a mock that replies with responses in order,
// repeating the last one. With no responses it echoes the prompt head.
func NewMockProvider(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// WithDelay makes each Generate call wait d before answering.
func (p *MockProvider) WithDelay(d time.Duration) *MockProvider {
	p.delay = d
	return p
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string { return "mock" }

// DisplayName returns the human-friendly name.
func (p *MockProvider) DisplayName() string { return "Mock (Simulated)" }

// Available always returns true for the mock provider.
func (p *MockProvider) Available() bool { return true }

// Generate returns the next scripted response.
func (p *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, prompt)
	if p.Err != nil {
		return "", p.Err
	}

	switch n := len(p.calls); {
	case len(p.responses) == 0:
		return fmt.Sprintf("Mock response to: %s... [Simulated content]", truncate(prompt, 50)), nil
	case n <= len(p.responses):
		return p.responses[n-1], nil
	default:
		return p.responses[len(p.responses)-1], nil
	}
}

// Calls returns the prompts received so far.
func (p *MockProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
