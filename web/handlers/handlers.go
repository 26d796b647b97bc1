// Package handlers provides the HTTP API for the debate service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/rhetor/internal/engine"
	"github.com/alienxp03/rhetor/internal/format"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/provider"
	"github.com/alienxp03/rhetor/internal/speech"
	"github.com/alienxp03/rhetor/internal/storage"
	"github.com/alienxp03/rhetor/internal/tracker"
)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req speech.TranscribeRequest) (*speech.Transcription, error)
}

// VoiceSynthesizer renders text with a Replicate-hosted voice model.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, req speech.SynthesisRequest) ([]byte, error)
}

// SpeechSynthesizer renders text through a managed text-to-speech API.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req speech.SpeechRequest) ([]byte, error)
}

// Options holds the dependencies of a Handler. Speech dependencies are
// optional; requests to an unconfigured one fail with a 500.
type Options struct {
	Engine    *engine.Engine
	Learnings *storage.LearningStore
	Registry  *provider.Registry
	Health    *provider.HealthCache

	Transcriber Transcriber
	Voice       VoiceSynthesizer
	Speech      SpeechSynthesizer

	CORSOrigins []string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine      *engine.Engine
	learnings   *storage.LearningStore
	registry    *provider.Registry
	health      *provider.HealthCache
	transcriber Transcriber
	voice       VoiceSynthesizer
	speech      SpeechSynthesizer
	corsOrigins []string
}

// New creates a new Handler.
func New(opts Options) *Handler {
	return &Handler{
		engine:      opts.Engine,
		learnings:   opts.Learnings,
		registry:    opts.Registry,
		health:      opts.Health,
		transcriber: opts.Transcriber,
		voice:       opts.Voice,
		speech:      opts.Speech,
		corsOrigins: opts.CORSOrigins,
	}
}

// Router builds the chi router with every API route.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	if len(h.corsOrigins) > 0 {
		r.Use(CORS(h.corsOrigins))
	}

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all HTTP routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		// Speech
		r.Post("/stt-whisper", h.handleTranscribe)
		r.Post("/tts-kokoro", h.handleKokoro)
		r.Post("/tts", h.handleTTS)

		// Catalogs
		r.Get("/opponents", h.handleListOpponents)
		r.Get("/formats", h.handleListFormats)
		r.Get("/turns", h.handleTurnNames)
		r.Get("/providers", h.handleListProviders)
		r.Get("/providers/health", h.handleProvidersHealth)

		// Debates
		r.Post("/debates", h.handleCreateDebate)
		r.Get("/debates", h.handleListDebates)
		r.Route("/debates/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetDebate)
			r.Put("/", h.handleUpdateDebate)
			r.Delete("/", h.handleDeleteDebate)
			r.Get("/session", h.handleSession)
			r.Post("/steps/next", h.handleNextStep)
			r.Post("/steps/back", h.handleBackStep)
			r.Post("/start", h.handleStart)
			r.Post("/messages", h.handleSend)
			r.Post("/turn", h.handleTakeTurn)
			r.Post("/jump", h.handleJump)
			r.Post("/end", h.handleEnd)
			r.Post("/analysis/retry", h.handleRetryAnalysis)
			r.Get("/summary", h.handleSummary)
			r.Post("/finish", h.handleFinish)
			r.Get("/stream", h.handleDebateStream)
			r.Get("/export/{format}", h.handleExport)
		})

		// Learning bundles
		r.Post("/learnings", h.handleCreateLearning)
		r.Get("/learnings", h.handleListLearnings)
		r.Get("/learnings/{id}", h.handleGetLearning)
		r.Delete("/learnings/{id}", h.handleDeleteLearning)
		r.Post("/learnings/{id}/files", h.handleUploadFile)
		r.Get("/files/{id}", h.handleGetFile)
	})
}

// Catalog handlers

func (h *Handler) handleListOpponents(w http.ResponseWriter, r *http.Request) {
	h.json(w, persona.DefaultPersonas())
}

func (h *Handler) handleListFormats(w http.ResponseWriter, r *http.Request) {
	h.json(w, format.DefaultFormats())
}

func (h *Handler) handleTurnNames(w http.ResponseWriter, r *http.Request) {
	count := 3
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.jsonError(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
		count = n
	}
	h.json(w, map[string]interface{}{
		"count": count,
		"names": tracker.TurnNames(count),
	})
}

func (h *Handler) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := h.registry.List()
	result := make([]map[string]interface{}, 0, len(providers))

	for _, p := range providers {
		result = append(result, map[string]interface{}{
			"name":        p.Name(),
			"displayName": p.DisplayName(),
			"available":   p.Available(),
		})
	}

	h.json(w, result)
}

func (h *Handler) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result := make(map[string]interface{})

	for _, p := range h.registry.List() {
		var status provider.HealthStatus
		if h.health != nil {
			status = h.health.Check(ctx, p)
		} else {
			status = provider.CheckHealth(ctx, p)
		}

		result[p.Name()] = map[string]interface{}{
			"available":    status.Available,
			"responseTime": status.ResponseTime.Seconds(),
			"error":        status.Error,
			"checkedAt":    status.CheckedAt,
		}
	}

	h.json(w, map[string]interface{}{
		"providers": result,
	})
}

// Helper methods

func (h *Handler) json(w http.ResponseWriter, data interface{}) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	h.jsonStatus(w, code, map[string]string{"error": message})
}

// engineError maps session errors onto HTTP statuses.
func (h *Handler) engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrEmptyMessage),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrStepInvalid):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrInvalidPhase),
		errors.Is(err, engine.ErrNotYourTurn),
		errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrConfirmationRequired):
		h.jsonError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Request failed", "error", err)
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
