package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alienxp03/rhetor/internal/kv"
)

func TestCheckHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		p := NewMockProvider("2")
		status := CheckHealth(ctx, p)
		if !status.Available {
			t.Fatalf("expected available, got error %q", status.Error)
		}
		if calls := p.Calls(); len(calls) != 1 || calls[0] != HealthCheckPrompt {
			t.Errorf("unexpected calls: %v", calls)
		}
	})

	t.Run("InvalidResponse", func(t *testing.T) {
		status := CheckHealth(ctx, NewMockProvider("two"))
		if status.Available || status.Error == "" {
			t.Errorf("expected failure with message, got %+v", status)
		}
	})

	t.Run("GenerateError", func(t *testing.T) {
		p := NewMockProvider()
		p.Err = errors.New("quota exceeded")
		status := CheckHealth(ctx, p)
		if status.Available || status.Error != "quota exceeded" {
			t.Errorf("unexpected status: %+v", status)
		}
	})

	t.Run("Unconfigured", func(t *testing.T) {
		status := CheckHealth(ctx, &stubProvider{name: "off"})
		if status.Available || status.Error != "not configured" {
			t.Errorf("unexpected status: %+v", status)
		}
	})
}

func TestHealthCache(t *testing.T) {
	ctx := context.Background()
	cache := NewHealthCache(kv.NewMemoryStore(), time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	p := NewMockProvider("2")

	cache.Set(ctx, p.Name(), HealthStatus{Available: true, CheckedAt: now.Add(-30 * time.Second)})
	status := cache.Check(ctx, p)
	if !status.Available {
		t.Fatal("expected cached status")
	}
	if len(p.Calls()) != 0 {
		t.Error("fresh cache entry should skip the provider")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.GetFresh(ctx, p.Name()); ok {
		t.Error("expected stale entry")
	}
	cache.Check(ctx, p)
	if len(p.Calls()) != 1 {
		t.Errorf("expected one provider call, got %d", len(p.Calls()))
	}

	cache.Set(ctx, "broken", HealthStatus{Available: false, Error: "down", CheckedAt: now})
	if _, ok := cache.GetFresh(ctx, "broken"); ok {
		t.Error("failed checks must not be served from cache")
	}
}
