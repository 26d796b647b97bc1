package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// stubProvider is a minimal Provider for registry tests.
type stubProvider struct {
	name      string
	available bool
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) DisplayName() string { return strings.ToUpper(s.name) }
func (s *stubProvider) Available() bool     { return s.available }
func (s *stubProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return s.name, nil
}

func TestRegistry(t *testing.T) {
	t.Run("RegisterAndGet", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{name: "stub", available: true})

		got, err := r.Get("stub")
		if err != nil {
			t.Fatalf("failed to get provider: %v", err)
		}
		if got.Name() != "stub" {
			t.Errorf("wrong name: got %s, want stub", got.Name())
		}
	})

	t.Run("GetNonexistent", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Get("nonexistent"); err == nil {
			t.Error("expected error for nonexistent provider")
		}
	})

	t.Run("ListKeepsRegistrationOrder", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{name: "b", available: false})
		r.Register(&stubProvider{name: "a", available: true})
		r.Register(&stubProvider{name: "b", available: true})

		list := r.List()
		if len(list) != 2 || list[0].Name() != "b" || list[1].Name() != "a" {
			t.Errorf("unexpected list: %v", list)
		}
		if !list[0].Available() {
			t.Error("re-registering should replace the provider")
		}
	})

	t.Run("Available", func(t *testing.T) {
		r := NewRegistry()
		r.Register(&stubProvider{name: "a", available: true})
		r.Register(&stubProvider{name: "b", available: false})
		r.Register(&stubProvider{name: "c", available: true})

		if available := r.Available(); len(available) != 2 {
			t.Errorf("wrong count: got %d, want 2", len(available))
		}
	})

	t.Run("First", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.First("gemini"); !errors.Is(err, ErrNoProvider) {
			t.Errorf("expected ErrNoProvider, got %v", err)
		}

		r.Register(&stubProvider{name: "gemini", available: false})
		r.Register(&stubProvider{name: "mock", available: true})

		p, err := r.First("gemini")
		if err != nil {
			t.Fatal(err)
		}
		if p.Name() != "mock" {
			t.Errorf("expected fallback to mock, got %s", p.Name())
		}
	})
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("Scripted", func(t *testing.T) {
		p := NewMockProvider("one", "two")
		for _, want := range []string{"one", "two", "two"} {
			got, err := p.Generate(ctx, "prompt")
			if err != nil {
				t.Fatal(err)
			}
			if got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		}
		if len(p.Calls()) != 3 {
			t.Errorf("expected 3 calls, got %d", len(p.Calls()))
		}
	})

	t.Run("Echo", func(t *testing.T) {
		got, _ := NewMockProvider().Generate(ctx, "Is free will an illusion?")
		if !strings.Contains(got, "free will") {
			t.Errorf("unexpected echo: %q", got)
		}
	})

	t.Run("Error", func(t *testing.T) {
		p := NewMockProvider()
		p.Err = errors.New("boom")
		if _, err := p.Generate(ctx, "x"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		p := NewMockProvider("late").WithDelay(time.Second)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := p.Generate(cctx, "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestGeminiWithoutKey(t *testing.T) {
	p, err := NewGeminiProvider(context.Background(), GeminiOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Available() {
		t.Error("provider without key should be unavailable")
	}
	if p.Model() != DefaultGeminiModel {
		t.Errorf("wrong default model: %s", p.Model())
	}

	_, err = p.Generate(context.Background(), "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestCleanOutput(t *testing.T) {
	tests := map[string]string{
		"  plain  ":               "plain",
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\nfenced\n```":        "fenced",
		"text with ``` inside":    "text with ``` inside",
	}
	for in, want := range tests {
		if got := cleanOutput(in); got != want {
			t.Errorf("cleanOutput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAPIError(t *testing.T) {
	inner := errors.New("connection reset")
	err := &APIError{Provider: "gemini", Message: "request failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected wrapped error")
	}
	if err.Error() != "gemini API error: request failed (connection reset)" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	coded := &APIError{Provider: "gemini", StatusCode: 429, Message: "quota"}
	if coded.Error() != "gemini API error (429): quota" {
		t.Errorf("unexpected message: %s", coded.Error())
	}
}
