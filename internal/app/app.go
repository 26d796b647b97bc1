// Package app wires configuration, storage, providers and the HTTP API
// into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alienxp03/rhetor/internal/analysis"
	"github.com/alienxp03/rhetor/internal/config"
	"github.com/alienxp03/rhetor/internal/engine"
	"github.com/alienxp03/rhetor/internal/kv"
	"github.com/alienxp03/rhetor/internal/provider"
	"github.com/alienxp03/rhetor/internal/speech"
	"github.com/alienxp03/rhetor/internal/storage"
	"github.com/alienxp03/rhetor/web/handlers"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired server.
type App struct {
	Config    *config.Config
	Store     kv.Store
	Debates   *storage.DebateStore
	Learnings *storage.LearningStore
	Registry  *provider.Registry
	Engine    *engine.Engine
	Handler   *handlers.Handler
}

// New opens the store and builds every component from cfg.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	slog.Info("Store opened", "backend", cfg.Store.Backend)

	registry, err := cfg.CreateRegistry(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}

	p, err := registry.First(cfg.Defaults.Provider)
	if err != nil {
		slog.Warn("No AI provider available, opponent replies will fail until one is configured", "error", err)
		p, _ = registry.Get("gemini")
	} else {
		slog.Info("Using AI provider", "provider", p.Name())
	}

	debates := storage.NewDebateStore(store)
	learnings := storage.NewLearningStore(store)
	eng := engine.New(engine.Options{
		Store:           debates,
		Learnings:       learnings,
		Responder:       &engine.ProviderResponder{Provider: p},
		Analyzer:        analysis.New(p),
		AnalysisTimeout: cfg.Defaults.AnalysisTimeout,
	})

	opts := handlers.Options{
		Engine:      eng,
		Learnings:   learnings,
		Registry:    registry,
		Health:      provider.NewHealthCache(store, provider.DefaultHealthTTL),
		Speech:      speech.NewGoogleTTS(cfg.Speech.Google.Credentials()),
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	if client, err := cfg.ReplicateClient(); err == nil {
		opts.Transcriber = speech.NewWhisper(client, cfg.Speech.WhisperModel)
		opts.Voice = speech.NewKokoro(client, cfg.Speech.KokoroModel)
	} else {
		slog.Warn("Replicate speech disabled", "error", err)
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Debates:   debates,
		Learnings: learnings,
		Registry:  registry,
		Engine:    eng,
		Handler:   handlers.New(opts),
	}, nil
}

// Server returns an http.Server for the configured port.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:     a.Handler.Router(),
		ReadTimeout: 30 * time.Second,
		// SSE streams stay open, so writes are not bounded.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully and waits
// for background analysis to finish.
func (a *App) Run(ctx context.Context) error {
	server := a.Server()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting rhetor server", "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Graceful shutdown failed", "error", err)
	}
	a.Engine.Wait()
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
