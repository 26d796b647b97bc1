// Package engine orchestrates debate sessions between a learner and an AI opponent.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/storage"
)

// Options configures an Engine.
type Options struct {
	Store     *storage.DebateStore
	Learnings *storage.LearningStore
	Responder Responder
	Analyzer  Analyzer

	// AnalysisTimeout bounds background analysis runs.
	AnalysisTimeout time.Duration
}

// Engine keeps the live sessions, keyed by debate id.
type Engine struct {
	store           *storage.DebateStore
	learnings       *storage.LearningStore
	responder       Responder
	analyzer        Analyzer
	analysisTimeout time.Duration
	now             func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

// New creates a new debate engine.
func New(opts Options) *Engine {
	timeout := opts.AnalysisTimeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}
	return &Engine{
		store:           opts.Store,
		learnings:       opts.Learnings,
		responder:       opts.Responder,
		analyzer:        opts.Analyzer,
		analysisTimeout: timeout,
		now:             time.Now,
		sessions:        make(map[string]*Session),
	}
}

// Create starts a new, empty debate for learningID and persists it.
func (e *Engine) Create(ctx context.Context, learningID string) (*Session, error) {
	cfg := core.NewConfiguration(learningID)
	cfg.ID = core.GenerateID()

	if res := e.store.Save(ctx, &cfg); !res.OK {
		return nil, fmt.Errorf("failed to create debate: %s", res.Reason)
	}

	s := e.newSession(cfg)
	e.mu.Lock()
	e.sessions[cfg.ID] = s
	e.mu.Unlock()

	slog.Debug("Created debate", "debate_id", cfg.ID, "learning_id", learningID)
	return s, nil
}

// Open returns the live session for id, loading it from the store on first
// visit. An id with no stored record gets an empty configuration that is
// only kept live once an edit to it has been persisted, so reads of unknown
// ids leave nothing behind.
func (e *Engine) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[id]; ok {
		return s, nil
	}

	if !e.store.Exists(ctx, id) {
		cfg := core.NewConfiguration("")
		cfg.ID = id
		s := e.newSession(cfg)
		s.adopt = e.adopt
		return s, nil
	}

	s := e.newSession(e.store.Load(ctx, id))
	s.restoreLocked(ctx)
	e.sessions[id] = s
	return s, nil
}

// adopt keeps s live unless another session for its id got there first.
func (e *Engine) adopt(s *Session) {
	id := s.ID()
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; !ok {
		e.sessions[id] = s
	}
}

// Get returns the configuration for id from the live session or the store.
func (e *Engine) Get(ctx context.Context, id string) (core.DebateConfiguration, error) {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if ok {
		return s.Config(), nil
	}

	if !e.store.Exists(ctx, id) {
		return core.DebateConfiguration{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.store.Load(ctx, id), nil
}

// List returns stored debates, all of them or only those for learningID.
func (e *Engine) List(ctx context.Context, learningID string) []core.DebateConfiguration {
	if learningID == "" {
		return e.store.List(ctx)
	}
	return e.store.ListByLearningID(ctx, learningID)
}

// Delete drops the live session and the stored debate.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()

	if !e.store.Exists(ctx, id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.store.Delete(ctx, id)
}

// TakeTurn passes the floor and starts analysis if the session completed.
func (e *Engine) TakeTurn(ctx context.Context, s *Session) error {
	if err := s.TakeTurn(ctx); err != nil {
		return err
	}
	e.analyzeIfPending(s)
	return nil
}

// End completes the session and starts analysis in the background.
func (e *Engine) End(ctx context.Context, s *Session, confirmed bool) error {
	if err := s.End(ctx, confirmed); err != nil {
		return err
	}
	e.analyzeIfPending(s)
	return nil
}

// RetryAnalysis re-runs a failed analysis in the background.
func (e *Engine) RetryAnalysis(s *Session) error {
	if err := s.RetryAnalysis(); err != nil {
		return err
	}
	e.analyzeIfPending(s)
	return nil
}

// Finish resets a completed session to a new empty debate and re-keys it.
func (e *Engine) Finish(s *Session) (string, error) {
	oldID := s.ID()
	newID, err := s.Finish()
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	delete(e.sessions, oldID)
	e.sessions[newID] = s
	e.mu.Unlock()
	return newID, nil
}

func (e *Engine) analyzeIfPending(s *Session) {
	if _, status := s.Summary(); status != AnalysisPending {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.analysisTimeout)
		defer cancel()
		// Failures are recorded on the session and logged there.
		_ = s.Analyze(ctx)
	}()
}

// Wait blocks until background analysis runs have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
