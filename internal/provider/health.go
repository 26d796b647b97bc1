package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alienxp03/rhetor/internal/kv"
)

const (
	// HealthCheckPrompt is the prompt sent to providers for health checks.
	HealthCheckPrompt = "1+1? One digit answer only"

	// DefaultHealthTTL is how long a successful check is trusted.
	DefaultHealthTTL = 30 * time.Minute

	healthCacheKey = "provider_health"
)

// HealthStatus is the outcome of one provider health check.
type HealthStatus struct {
	Available    bool          `json:"available"`
	ResponseTime time.Duration `json:"responseTime"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checkedAt"`
}

// CheckHealth sends a trivial prompt to p and validates the answer.
func CheckHealth(ctx context.Context, p Provider) HealthStatus {
	start := time.Now()
	if !p.Available() {
		return HealthStatus{Error: "not configured", CheckedAt: start}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	content, err := p.Generate(ctx, HealthCheckPrompt)
	elapsed := time.Since(start)
	if err == nil {
		err = validateHealthResponse(content)
	}
	if err != nil {
		return HealthStatus{
			ResponseTime: elapsed,
			Error:        err.Error(),
			CheckedAt:    time.Now(),
		}
	}

	return HealthStatus{
		Available:    true,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
	}
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "2" {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return fmt.Errorf("unexpected response: %q", trimmed)
}

// HealthCache remembers successful health checks in the key-value store so
// repeated status requests do not spend API calls.
type HealthCache struct {
	mu    sync.Mutex
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewHealthCache creates a cache over store. A non-positive ttl uses DefaultHealthTTL.
func NewHealthCache(store kv.Store, ttl time.Duration) *HealthCache {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	return &HealthCache{store: store, ttl: ttl, now: time.Now}
}

// GetFresh returns a cached successful status younger than the TTL.
func (c *HealthCache) GetFresh(ctx context.Context, name string) (HealthStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := kv.GetJSON(ctx, c.store, healthCacheKey, map[string]HealthStatus{})
	status, ok := data[name]
	if !ok || !status.Available || status.CheckedAt.IsZero() {
		return HealthStatus{}, false
	}
	if c.now().Sub(status.CheckedAt) > c.ttl {
		return HealthStatus{}, false
	}
	return status, true
}

// Set records status for name.
func (c *HealthCache) Set(ctx context.Context, name string, status HealthStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data := kv.GetJSON(ctx, c.store, healthCacheKey, map[string]HealthStatus{})
	data[name] = status
	kv.SetJSON(ctx, c.store, healthCacheKey, data)
}

// Check returns the cached status for p or runs a fresh check.
func (c *HealthCache) Check(ctx context.Context, p Provider) HealthStatus {
	if status, ok := c.GetFresh(ctx, p.Name()); ok {
		return status
	}
	status := CheckHealth(ctx, p)
	c.Set(ctx, p.Name(), status)
	return status
}
