package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alienxp03/rhetor/internal/analysis"
	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/kv"
	"github.com/alienxp03/rhetor/internal/provider"
	"github.com/alienxp03/rhetor/internal/storage"
)

// countingAnalyzer records calls and returns a fixed record or error.
type countingAnalyzer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (a *countingAnalyzer) Analyze(ctx context.Context, cfg core.DebateConfiguration, msgs []core.DebateMessage) (*core.DebateSummaryRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &core.DebateSummaryRecord{
		Score:       75,
		Strengths:   "consistent",
		DebateName:  cfg.DebateName,
		AnalysisKey: analysis.Key(cfg.ID, msgs),
	}, nil
}

func (a *countingAnalyzer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type testEnv struct {
	engine    *Engine
	store     *storage.DebateStore
	learnings *storage.LearningStore
	analyzer  *countingAnalyzer
}

func setupTestEngine(t *testing.T, responder Responder) *testEnv {
	t.Helper()
	kvStore := kv.NewMemoryStore()
	env := &testEnv{
		store:     storage.NewDebateStore(kvStore),
		learnings: storage.NewLearningStore(kvStore),
		analyzer:  &countingAnalyzer{},
	}
	if responder == nil {
		responder = &ProviderResponder{Provider: provider.NewMockProvider("A fair point, but consider the opposite.")}
	}
	env.engine = New(Options{
		Store:     env.store,
		Learnings: env.learnings,
		Responder: responder,
		Analyzer:  env.analyzer,
	})
	return env
}

func strPtr(s string) *string { return &s }

func liveSessions(e *Engine) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// blockingAnalyzer holds the first call until release is closed and
// counts calls per debate id.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{
		started: make(chan struct{}),
		release: make(chan struct{}),
		calls:   make(map[string]int),
	}
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, cfg core.DebateConfiguration, msgs []core.DebateMessage) (*core.DebateSummaryRecord, error) {
	a.mu.Lock()
	a.calls[cfg.ID]++
	first := len(a.calls) == 1 && a.calls[cfg.ID] == 1
	a.mu.Unlock()

	if first {
		close(a.started)
		<-a.release
	}
	return &core.DebateSummaryRecord{Score: 70, AnalysisKey: analysis.Key(cfg.ID, msgs)}, nil
}

func (a *blockingAnalyzer) count(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[id]
}

// configure fills in every step so the session is ready to start.
func configure(t *testing.T, s *Session, topics ...string) {
	t.Helper()
	positions := make(map[string]string, len(topics))
	for _, topic := range topics {
		positions[topic] = "for"
	}
	err := s.UpdateConfig(context.Background(), ConfigPatch{
		DebateName: strPtr("Ethics practice"),
		Topics:     &topics,
		Positions:  positions,
		Opponent:   strPtr("kant"),
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
}

func startedSession(t *testing.T, env *testEnv, topics ...string) *Session {
	t.Helper()
	s, err := env.engine.Create(context.Background(), "L1")
	if err != nil {
		t.Fatal(err)
	}
	configure(t, s, topics...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestConfigurationSteps(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)

	s, err := env.engine.Create(ctx, "L1")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("ForwardBlocked", func(t *testing.T) {
		if err := s.Next(ctx); !errors.Is(err, ErrStepInvalid) {
			t.Fatalf("expected ErrStepInvalid, got %v", err)
		}
		if snap := s.Snapshot(); snap.Step != StepName {
			t.Errorf("step = %s, want name", snap.Step)
		}
	})

	t.Run("BackAlwaysAllowed", func(t *testing.T) {
		if err := s.Back(); err != nil {
			t.Fatalf("back at first step: %v", err)
		}
		s.UpdateConfig(ctx, ConfigPatch{DebateName: strPtr("X")})
		if err := s.Next(ctx); err != nil {
			t.Fatal(err)
		}
		if err := s.Back(); err != nil {
			t.Fatal(err)
		}
		if snap := s.Snapshot(); snap.Step != StepName {
			t.Errorf("step = %s, want name", snap.Step)
		}
	})

	t.Run("WalkToSession", func(t *testing.T) {
		topics := []string{"A"}
		s.UpdateConfig(ctx, ConfigPatch{Topics: &topics, Positions: map[string]string{"A": "pro"}, Opponent: strPtr("kant")})

		for i := 0; i < len(Steps); i++ {
			if err := s.Next(ctx); err != nil {
				t.Fatalf("next at step %d: %v", i, err)
			}
		}
		snap := s.Snapshot()
		if snap.Phase != PhaseSession {
			t.Fatalf("phase = %s, want session", snap.Phase)
		}
		if snap.Tracker == nil || snap.Tracker.TurnName != "Initial Position" || snap.Tracker.CurrentTopic != "A" {
			t.Errorf("unexpected tracker: %+v", snap.Tracker)
		}
		if snap.Speaker != core.SpeakerUser {
			t.Errorf("speaker = %s", snap.Speaker)
		}
		if !env.store.Exists(ctx, snap.ID) {
			t.Error("configuration not persisted")
		}
		if err := s.UpdateConfig(ctx, ConfigPatch{DebateName: strPtr("Y")}); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("expected ErrInvalidPhase, got %v", err)
		}
	})
}

func TestUpdateConfig(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)
	s, _ := env.engine.Create(ctx, "")

	t.Run("TooManyTopics", func(t *testing.T) {
		topics := []string{"1", "2", "3", "4", "5", "6"}
		if err := s.UpdateConfig(ctx, ConfigPatch{Topics: &topics}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("NormalizesAndPrunes", func(t *testing.T) {
		topics := []string{" A ", "B", "", "A"}
		if err := s.UpdateConfig(ctx, ConfigPatch{Topics: &topics, Positions: map[string]string{"A": "pro", "B": "con"}}); err != nil {
			t.Fatal(err)
		}
		cfg := s.Config()
		if len(cfg.Topics) != 2 || cfg.Topics[0] != "A" {
			t.Fatalf("topics = %v", cfg.Topics)
		}

		kept := []string{"B"}
		s.UpdateConfig(ctx, ConfigPatch{Topics: &kept})
		cfg = s.Config()
		if _, ok := cfg.Positions["A"]; ok {
			t.Error("position for removed topic kept")
		}
		if cfg.Positions["B"] != "con" {
			t.Error("position for kept topic lost")
		}
	})

	t.Run("RejectsUnknownValues", func(t *testing.T) {
		cases := []ConfigPatch{
			{Opponent: strPtr("plato-bot")},
			{DebateFormat: strPtr("parliamentary")},
			{TurnCount: func() *int { n := 4; return &n }()},
			{Positions: map[string]string{"missing": "pro"}},
		}
		for i, patch := range cases {
			if err := s.UpdateConfig(ctx, patch); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("case %d: expected ErrInvalidConfig, got %v", i, err)
			}
		}
	})

	t.Run("FiveTurns", func(t *testing.T) {
		n := 5
		if err := s.UpdateConfig(ctx, ConfigPatch{TurnCount: &n}); err != nil {
			t.Fatal(err)
		}
		if s.Config().TurnCount != 5 {
			t.Error("turn count not applied")
		}
	})
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("AppendsInOrder", func(t *testing.T) {
		var got ResponseRequest
		env := setupTestEngine(t, ResponderFunc(func(ctx context.Context, req ResponseRequest) (string, error) {
			got = req
			return "  Why do you think so?  ", nil
		}))
		s := startedSession(t, env, "A", "B")

		reply, err := s.Send(ctx, "  Duty matters.  ")
		if err != nil {
			t.Fatal(err)
		}
		if reply.Content != "Why do you think so?" || reply.Speaker != core.SpeakerOpponent {
			t.Errorf("unexpected reply: %+v", reply)
		}
		if got.Topic != "A" || got.TurnName != "Initial Position" || got.Message != "Duty matters." || got.Position != "for" {
			t.Errorf("unexpected request: %+v", got)
		}
		if len(got.History) != 0 {
			t.Errorf("history should hold earlier messages only, got %d", len(got.History))
		}

		msgs := s.Messages()
		if len(msgs) != 2 || msgs[0].Speaker != core.SpeakerUser || msgs[1].Speaker != core.SpeakerOpponent {
			t.Fatalf("unexpected messages: %+v", msgs)
		}
		if msgs[1].Timestamp.Before(msgs[0].Timestamp) {
			t.Error("timestamps decreased")
		}

		s.Send(ctx, "Second point.")
		if len(got.History) != 2 {
			t.Errorf("expected 2 history messages, got %d", len(got.History))
		}
	})

	t.Run("Rejections", func(t *testing.T) {
		env := setupTestEngine(t, nil)
		s := startedSession(t, env, "A")

		if _, err := s.Send(ctx, "   "); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("expected ErrEmptyMessage, got %v", err)
		}
		s.TakeTurn(ctx)
		if _, err := s.Send(ctx, "hello"); !errors.Is(err, ErrNotYourTurn) {
			t.Errorf("expected ErrNotYourTurn, got %v", err)
		}

		fresh, _ := env.engine.Create(ctx, "")
		if _, err := fresh.Send(ctx, "hello"); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("expected ErrInvalidPhase, got %v", err)
		}
	})

	t.Run("FailureLeavesHistoryUnchanged", func(t *testing.T) {
		fail := false
		env := setupTestEngine(t, ResponderFunc(func(ctx context.Context, req ResponseRequest) (string, error) {
			if fail {
				return "", errors.New("upstream unavailable")
			}
			return "Recovered.", nil
		}))
		s := startedSession(t, env, "A")

		if _, err := s.Send(ctx, "first"); err != nil {
			t.Fatal(err)
		}
		before := s.Messages()
		fail = true

		_, err := s.Send(ctx, "second")
		if err == nil {
			t.Fatal("expected error")
		}
		after := s.Snapshot()
		if len(after.Messages) != len(before) {
			t.Errorf("history changed: %d -> %d messages", len(before), len(after.Messages))
		}
		for _, m := range after.Messages {
			if m.Content == "second" {
				t.Error("failed user message left in history")
			}
		}
		if after.Speaker != core.SpeakerUser || after.Generating {
			t.Errorf("control not returned to user: speaker=%s generating=%v", after.Speaker, after.Generating)
		}
		if after.Error == "" {
			t.Error("expected a visible error")
		}

		fail = false
		if _, err := s.Send(ctx, "second"); err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if s.Snapshot().Error != "" {
			t.Error("error not cleared after success")
		}
	})

	t.Run("BusyWhileGenerating", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{})
		env := setupTestEngine(t, ResponderFunc(func(ctx context.Context, req ResponseRequest) (string, error) {
			close(entered)
			<-release
			return "done", nil
		}))
		s := startedSession(t, env, "A")

		errc := make(chan error, 1)
		go func() {
			_, err := s.Send(ctx, "first")
			errc <- err
		}()
		<-entered

		if snap := s.Snapshot(); !snap.Generating || snap.Speaker != core.SpeakerOpponent {
			t.Errorf("expected generating state, got %+v", snap)
		}
		if _, err := s.Send(ctx, "second"); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
		if err := s.End(ctx, true); !errors.Is(err, ErrBusy) {
			t.Errorf("expected ErrBusy from End, got %v", err)
		}

		close(release)
		if err := <-errc; err != nil {
			t.Fatal(err)
		}
		if len(s.Messages()) != 2 {
			t.Errorf("expected 2 messages, got %d", len(s.Messages()))
		}
	})
}

func TestTakeTurnCompletes(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)
	s := startedSession(t, env, "T1", "T2")

	s.Send(ctx, "opening")

	// Each slot takes two hand-overs: user to opponent, then back.
	for slot := 0; slot < 6; slot++ {
		if err := env.engine.TakeTurn(ctx, s); err != nil {
			t.Fatal(err)
		}
		if s.Snapshot().Speaker != core.SpeakerOpponent {
			t.Fatalf("slot %d: expected opponent to hold the floor", slot)
		}
		if err := env.engine.TakeTurn(ctx, s); err != nil {
			t.Fatal(err)
		}
		snap := s.Snapshot()
		if slot == 2 && (snap.Tracker.CurrentTopicIndex != 1 || snap.Tracker.CurrentTurnIndex != 0) {
			t.Errorf("after 3 slots expected topic 1 turn 0, got %+v", snap.Tracker.State)
		}
		if slot < 5 && snap.Phase != PhaseSession {
			t.Fatalf("completed too early at slot %d", slot)
		}
	}

	env.engine.Wait()
	snap := s.Snapshot()
	if snap.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", snap.Phase)
	}
	if snap.Analysis != AnalysisReady || snap.Summary == nil || snap.Summary.Score != 75 {
		t.Errorf("analysis not ready: %s %+v", snap.Analysis, snap.Summary)
	}
	if !env.store.Load(ctx, snap.ID).IsCompleted {
		t.Error("stored record not completed")
	}
	if len(env.store.LoadTranscript(ctx, snap.ID)) != 2 {
		t.Error("transcript not stored")
	}
}

func TestJumpToTopic(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)
	s := startedSession(t, env, "A", "B")

	s.TakeTurn(ctx)
	s.TakeTurn(ctx)

	res, err := s.JumpToTopic(1)
	if err != nil || !res.OK {
		t.Fatalf("jump failed: %v %+v", err, res)
	}
	snap := s.Snapshot()
	if snap.Tracker.CurrentTopicIndex != 1 || snap.Tracker.CurrentTurnIndex != 0 {
		t.Errorf("unexpected tracker: %+v", snap.Tracker.State)
	}

	res, err = s.JumpToTopic(7)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Reason == "" {
		t.Errorf("expected failure result, got %+v", res)
	}
	if s.Snapshot().Tracker.CurrentTopicIndex != 1 {
		t.Error("out-of-range jump changed state")
	}
}

func TestEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresConfirmation", func(t *testing.T) {
		env := setupTestEngine(t, nil)
		s := startedSession(t, env, "A")

		if err := env.engine.End(ctx, s, false); !errors.Is(err, ErrConfirmationRequired) {
			t.Fatalf("expected ErrConfirmationRequired, got %v", err)
		}
		if s.Snapshot().Phase != PhaseSession {
			t.Error("session ended without confirmation")
		}

		if err := env.engine.End(ctx, s, true); err != nil {
			t.Fatal(err)
		}
		env.engine.Wait()
		if snap := s.Snapshot(); snap.Phase != PhaseCompleted || snap.Analysis != AnalysisReady {
			t.Errorf("unexpected state: %s / %s", snap.Phase, snap.Analysis)
		}
		if err := s.End(ctx, true); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("expected ErrInvalidPhase on second end, got %v", err)
		}
	})

	t.Run("ReusesMatchingSummary", func(t *testing.T) {
		env := setupTestEngine(t, nil)
		s := startedSession(t, env, "A")
		s.Send(ctx, "opening")

		id := s.ID()
		key := analysis.Key(id, s.Messages())
		env.store.SaveSummary(ctx, id, &core.DebateSummaryRecord{Score: 90, AnalysisKey: key})

		if err := env.engine.End(ctx, s, true); err != nil {
			t.Fatal(err)
		}
		env.engine.Wait()

		if env.analyzer.count() != 0 {
			t.Errorf("analyzer called %d times, want 0", env.analyzer.count())
		}
		if sum, status := s.Summary(); status != AnalysisReady || sum.Score != 90 {
			t.Errorf("stored summary not reused: %s %+v", status, sum)
		}
	})

	t.Run("AnalyzeOnce", func(t *testing.T) {
		env := setupTestEngine(t, nil)
		s := startedSession(t, env, "A")
		s.End(ctx, true)

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Analyze(ctx)
			}()
		}
		wg.Wait()

		if env.analyzer.count() != 1 {
			t.Errorf("analyzer called %d times, want 1", env.analyzer.count())
		}
	})

	t.Run("FailureAndRetry", func(t *testing.T) {
		env := setupTestEngine(t, nil)
		env.analyzer.err = errors.New("model overloaded")
		s := startedSession(t, env, "A")

		env.engine.End(ctx, s, true)
		env.engine.Wait()

		snap := s.Snapshot()
		if snap.Analysis != AnalysisFailed || snap.Summary != nil {
			t.Fatalf("expected failed analysis, got %s %+v", snap.Analysis, snap.Summary)
		}
		if _, ok := env.store.LoadSummary(ctx, snap.ID); ok {
			t.Error("partial summary persisted")
		}

		env.analyzer.mu.Lock()
		env.analyzer.err = nil
		env.analyzer.mu.Unlock()

		if err := env.engine.RetryAnalysis(s); err != nil {
			t.Fatal(err)
		}
		env.engine.Wait()
		if _, status := s.Summary(); status != AnalysisReady {
			t.Errorf("status after retry = %s", status)
		}
		if err := s.RetryAnalysis(); !errors.Is(err, ErrInvalidPhase) {
			t.Errorf("retry after success should fail, got %v", err)
		}
	})
}

func TestFinish(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)
	s := startedSession(t, env, "A")

	if _, err := env.engine.Finish(s); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("expected ErrInvalidPhase before completion, got %v", err)
	}

	oldID := s.ID()
	env.engine.End(ctx, s, true)
	env.engine.Wait()

	newID, err := env.engine.Finish(s)
	if err != nil {
		t.Fatal(err)
	}
	if newID == oldID || newID == "" {
		t.Fatalf("expected a new id, got %q", newID)
	}

	snap := s.Snapshot()
	if snap.Phase != PhaseConfiguration || snap.Step != StepName || len(snap.Messages) != 0 {
		t.Errorf("session not reset: %+v", snap)
	}
	if snap.Config.LearningID != "L1" || snap.Config.DebateName != "" || snap.Config.TurnCount != 3 {
		t.Errorf("unexpected config: %+v", snap.Config)
	}

	reopened, _ := env.engine.Open(ctx, newID)
	if reopened != s {
		t.Error("session not re-keyed under new id")
	}
	if !env.store.Load(ctx, oldID).IsCompleted {
		t.Error("old debate should remain stored and completed")
	}
}

func TestFinishWhileAnalyzing(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)
	blocking := newBlockingAnalyzer()
	env.engine.analyzer = blocking

	s := startedSession(t, env, "A")
	firstID := s.ID()
	if err := env.engine.End(ctx, s, true); err != nil {
		t.Fatal(err)
	}
	<-blocking.started

	secondID, err := env.engine.Finish(s)
	if err != nil {
		t.Fatal(err)
	}
	configure(t, s, "B")
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.End(ctx, s, true); err != nil {
		t.Fatal(err)
	}

	close(blocking.release)
	env.engine.Wait()

	if n := blocking.count(secondID); n != 1 {
		t.Errorf("second debate analyzed %d times, want 1", n)
	}
	if sum, status := s.Summary(); status != AnalysisReady || sum == nil {
		t.Errorf("second debate status = %s, want ready", status)
	}
	if _, ok := env.store.LoadSummary(ctx, firstID); !ok {
		t.Error("first debate summary not persisted")
	}
}

func TestOpenRestores(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)

	t.Run("UnknownID", func(t *testing.T) {
		s, err := env.engine.Open(ctx, "fresh")
		if err != nil {
			t.Fatal(err)
		}
		snap := s.Snapshot()
		if snap.ID != "fresh" || snap.Phase != PhaseConfiguration || snap.Config.TurnCount != 3 {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
		if _, err := env.engine.Open(ctx, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty id, got %v", err)
		}
	})

	t.Run("ResumesAtIncompleteStep", func(t *testing.T) {
		cfg := core.NewConfiguration("")
		cfg.ID = "partial"
		cfg.DebateName = "Named"
		cfg.Topics = []string{"A"}
		env.store.Save(ctx, &cfg)

		s, _ := env.engine.Open(ctx, "partial")
		if step := s.Snapshot().Step; step != StepPositions {
			t.Errorf("step = %s, want positions", step)
		}
	})

	t.Run("CompletedWithSummary", func(t *testing.T) {
		cfg := core.NewConfiguration("L9")
		cfg.ID = "done"
		cfg.Topics = []string{"A"}
		env.store.MarkCompleted(ctx, &cfg)
		env.store.SaveSummary(ctx, "done", &core.DebateSummaryRecord{Score: 64})

		fresh := New(Options{Store: env.store, Analyzer: env.analyzer})
		s, _ := fresh.Open(ctx, "done")
		snap := s.Snapshot()
		if snap.Phase != PhaseCompleted || snap.Analysis != AnalysisReady || snap.Summary.Score != 64 {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})

	t.Run("CompletedWithoutTranscript", func(t *testing.T) {
		cfg := core.NewConfiguration("")
		cfg.ID = "lost"
		env.store.MarkCompleted(ctx, &cfg)

		s, _ := env.engine.Open(ctx, "lost")
		if _, status := s.Summary(); status != AnalysisUnavailable {
			t.Errorf("status = %s, want unavailable", status)
		}
	})
}

func TestOpenUnknownIDs(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)

	t.Run("ReadsLeaveNoSessions", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			s, err := env.engine.Open(ctx, core.GenerateID())
			if err != nil {
				t.Fatal(err)
			}
			s.Snapshot()
		}
		if n := liveSessions(env.engine); n != 0 {
			t.Errorf("live sessions = %d, want 0", n)
		}
		if n := len(env.store.List(ctx)); n != 0 {
			t.Errorf("stored debates = %d, want 0", n)
		}
	})

	t.Run("FirstEditKeepsSession", func(t *testing.T) {
		s, _ := env.engine.Open(ctx, "drafted")
		if err := s.UpdateConfig(ctx, ConfigPatch{DebateName: strPtr("Drafted")}); err != nil {
			t.Fatal(err)
		}
		if !env.store.Exists(ctx, "drafted") {
			t.Fatal("edit not persisted")
		}
		again, _ := env.engine.Open(ctx, "drafted")
		if again != s {
			t.Error("edited session not kept live")
		}
		if n := liveSessions(env.engine); n != 1 {
			t.Errorf("live sessions = %d, want 1", n)
		}
	})

	t.Run("RejectedEditKeepsNothing", func(t *testing.T) {
		s, _ := env.engine.Open(ctx, "rejected")
		if err := s.UpdateConfig(ctx, ConfigPatch{Opponent: strPtr("nobody")}); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
		if again, _ := env.engine.Open(ctx, "rejected"); again == s {
			t.Error("session kept after a rejected edit")
		}
	})
}

func TestEngineListAndDelete(t *testing.T) {
	ctx := context.Background()
	env := setupTestEngine(t, nil)

	a, _ := env.engine.Create(ctx, "L1")
	env.engine.Create(ctx, "L2")

	if got := env.engine.List(ctx, "L1"); len(got) != 1 || got[0].ID != a.ID() {
		t.Errorf("unexpected list: %+v", got)
	}
	if got := env.engine.List(ctx, ""); len(got) != 2 {
		t.Errorf("expected 2 debates, got %d", len(got))
	}

	if _, err := env.engine.Get(ctx, a.ID()); err != nil {
		t.Fatal(err)
	}
	if err := env.engine.Delete(ctx, a.ID()); err != nil {
		t.Fatal(err)
	}
	if _, err := env.engine.Get(ctx, a.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := env.engine.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChangedNotifies(t *testing.T) {
	env := setupTestEngine(t, nil)
	s, _ := env.engine.Create(context.Background(), "")

	ch := s.Changed()
	before := s.Snapshot().Version
	s.UpdateConfig(context.Background(), ConfigPatch{DebateName: strPtr("X")})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("change not signalled")
	}
	if s.Snapshot().Version <= before {
		t.Error("version not incremented")
	}
}

func TestBuildPrompt(t *testing.T) {
	cfg := core.NewConfiguration("")
	cfg.Opponent = "nietzsche"

	prompt, err := BuildPrompt(ResponseRequest{
		Config:    cfg,
		Topic:     "Morality",
		Position:  "objective",
		TurnName:  "Rebuttal/Counterargument",
		TurnIndex: 1,
		TurnCount: 3,
		Message:   "Some acts are wrong everywhere.",
		History: []core.DebateMessage{
			{Speaker: core.SpeakerUser, Content: "Earlier claim", TurnType: "Initial Position"},
		},
		Context: "Notes on moral realism",
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"Friedrich Nietzsche",
		`"Morality"`,
		"Rebuttal/Counterargument",
		"(2 of 3)",
		"Some acts are wrong everywhere.",
		"Earlier claim",
		"Notes on moral realism",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	t.Run("UnknownOpponentFallsBack", func(t *testing.T) {
		prompt, err := BuildPrompt(ResponseRequest{Config: core.NewConfiguration(""), Topic: "X", TurnCount: 3})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(prompt, "Socrates") {
			t.Error("expected default opponent")
		}
	})
}

func TestLearningContextReachesResponder(t *testing.T) {
	ctx := context.Background()
	var seen string
	env := setupTestEngine(t, ResponderFunc(func(ctx context.Context, req ResponseRequest) (string, error) {
		seen = req.Context
		return "ok", nil
	}))

	learning, err := env.learnings.Create(ctx, "Kantian ethics", "The categorical imperative.", "")
	if err != nil {
		t.Fatal(err)
	}

	s, _ := env.engine.Create(ctx, learning.ID)
	configure(t, s, "A")
	s.Start(ctx)
	s.Send(ctx, "hello")

	if seen != "The categorical imperative." {
		t.Errorf("context = %q", seen)
	}
}
