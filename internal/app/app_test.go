package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alienxp03/rhetor/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendMemory
	cfg.Defaults.Provider = "mock"
	return cfg
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.Engine == nil || a.Handler == nil || a.Debates == nil || a.Learnings == nil {
		t.Fatal("app not fully wired")
	}

	rec := httptest.NewRecorder()
	a.Handler.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opponents", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestNewWithoutSpeechCredentials(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/stt-whisper", nil)
	a.Handler.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 without a Replicate token", rec.Code)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 9321
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if got := a.Server().Addr; got != ":9321" {
		t.Errorf("addr = %s", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Port = 0
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx); err != nil {
		t.Errorf("Run returned %v", err)
	}
}
