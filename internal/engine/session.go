package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alienxp03/rhetor/internal/analysis"
	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/format"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/storage"
	"github.com/alienxp03/rhetor/internal/tracker"
)

// Phase is the lifecycle stage of a debate session.
type Phase string

const (
	PhaseConfiguration Phase = "configuration"
	PhaseSession       Phase = "session"
	PhaseCompleted     Phase = "completed"
)

// Step is one screen of the configuration flow.
type Step string

const (
	StepName      Step = "name"
	StepContext   Step = "context"
	StepTopics    Step = "topics"
	StepPositions Step = "positions"
	StepOpponent  Step = "opponent"
	StepFormat    Step = "format"
)

// Steps lists the configuration steps in order.
var Steps = []Step{StepName, StepContext, StepTopics, StepPositions, StepOpponent, StepFormat}

// AnalysisStatus is the sub-status of a completed session.
type AnalysisStatus string

const (
	AnalysisNone        AnalysisStatus = ""
	AnalysisPending     AnalysisStatus = "analyzing"
	AnalysisReady       AnalysisStatus = "ready"
	AnalysisFailed      AnalysisStatus = "failed"
	AnalysisUnavailable AnalysisStatus = "unavailable"
)

const responseFailedMessage = "The opponent could not respond. Please try again."

// Analyzer produces the summary of a finished debate.
type Analyzer interface {
	Analyze(ctx context.Context, cfg core.DebateConfiguration, msgs []core.DebateMessage) (*core.DebateSummaryRecord, error)
}

// ConfigPatch carries configuration fields to change. Nil fields are left
// alone; an empty position removes it.
type ConfigPatch struct {
	DebateName   *string           `json:"debateName,omitempty"`
	LearningID   *string           `json:"learningId,omitempty"`
	Topics       *[]string         `json:"topics,omitempty"`
	Positions    map[string]string `json:"positions,omitempty"`
	Opponent     *string           `json:"opponent,omitempty"`
	DebateFormat *string           `json:"debateFormat,omitempty"`
	TurnCount    *int              `json:"turnCount,omitempty"`
}

// TrackerView is the tracker state plus derived fields for clients.
type TrackerView struct {
	tracker.State
	CurrentTopic   string   `json:"currentTopic"`
	TurnName       string   `json:"turnName"`
	TurnNames      []string `json:"turnNames"`
	CompletedSlots int      `json:"completedSlots"`
	TotalSlots     int      `json:"totalSlots"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         string                    `json:"id"`
	Phase      Phase                     `json:"phase"`
	Step       Step                      `json:"step,omitempty"`
	StepIndex  int                       `json:"stepIndex"`
	Steps      []Step                    `json:"steps"`
	Config     core.DebateConfiguration  `json:"config"`
	Tracker    *TrackerView              `json:"tracker,omitempty"`
	Speaker    core.Speaker              `json:"activeSpeaker"`
	Generating bool                      `json:"generating"`
	Messages   []core.DebateMessage      `json:"messages"`
	Analysis   AnalysisStatus            `json:"analysisStatus,omitempty"`
	Summary    *core.DebateSummaryRecord `json:"summary,omitempty"`
	Error      string                    `json:"error,omitempty"`
	Version    uint64                    `json:"version"`
}

// Session drives one debate through configuration, the live exchange and
// completion. All methods are safe for concurrent use; external calls are
// made without holding the lock.
type Session struct {
	store     *storage.DebateStore
	learnings *storage.LearningStore
	responder Responder
	analyzer  Analyzer
	now       func() time.Time

	mu         sync.Mutex
	cfg        core.DebateConfiguration
	phase      Phase
	step       int
	tracker    tracker.State
	speaker    core.Speaker
	generating bool
	context    string
	messages   []core.DebateMessage
	status     AnalysisStatus
	// adopt registers a session opened for an unstored id once its first
	// edit is persisted.
	adopt func(*Session)
	// analyzingID is the debate an Analyze call is running for, if any.
	analyzingID string
	summary     *core.DebateSummaryRecord
	lastError   string
	version     uint64
	changed     chan struct{}
}

func (e *Engine) newSession(cfg core.DebateConfiguration) *Session {
	return &Session{
		store:     e.store,
		learnings: e.learnings,
		responder: e.responder,
		analyzer:  e.analyzer,
		now:       e.now,
		cfg:       cfg,
		phase:     PhaseConfiguration,
		speaker:   core.SpeakerUser,
		changed:   make(chan struct{}),
	}
}

// ID returns the id of the debate the session currently drives.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ID
}

// Config returns a copy of the current configuration.
func (s *Session) Config() core.DebateConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Messages returns a copy of the message history.
func (s *Session) Messages() []core.DebateMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.DebateMessage(nil), s.messages...)
}

// Summary returns the analysis record and its status.
func (s *Session) Summary() (*core.DebateSummaryRecord, AnalysisStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, s.status
}

// Changed returns a channel closed on the next state change.
func (s *Session) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:         s.cfg.ID,
		Phase:      s.phase,
		StepIndex:  s.step,
		Steps:      Steps,
		Config:     s.cfg.Clone(),
		Speaker:    s.speaker,
		Generating: s.generating,
		Messages:   append([]core.DebateMessage{}, s.messages...),
		Analysis:   s.status,
		Summary:    s.summary,
		Error:      s.lastError,
		Version:    s.version,
	}
	if s.phase == PhaseConfiguration {
		snap.Step = Steps[s.step]
	}
	if s.phase == PhaseSession || len(s.tracker.Topics) > 0 {
		done, total := s.tracker.Progress()
		snap.Tracker = &TrackerView{
			State:          s.tracker,
			CurrentTopic:   s.tracker.CurrentTopic(),
			TurnName:       s.tracker.CurrentTurnName(),
			TurnNames:      tracker.TurnNames(s.tracker.TurnCount),
			CompletedSlots: done,
			TotalSlots:     total,
		}
	}
	return snap
}

func (s *Session) bumpLocked() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

// ValidateStep checks whether step is complete for the current configuration.
func (s *Session) ValidateStep(step Step) core.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validateStep(&s.cfg, step)
}

func validateStep(cfg *core.DebateConfiguration, step Step) core.Result {
	switch step {
	case StepName:
		if strings.TrimSpace(cfg.DebateName) == "" {
			return core.Failure("debate name is required")
		}
	case StepContext:
	case StepTopics:
		if len(cfg.Topics) == 0 {
			return core.Failure("at least one topic is required")
		}
	case StepPositions:
		if len(cfg.Topics) == 0 || !cfg.AllPositioned() {
			return core.Failure("every topic needs a position")
		}
	case StepOpponent:
		if cfg.Opponent == "" {
			return core.Failure("an opponent must be chosen")
		}
	case StepFormat:
		if cfg.DebateFormat == "" {
			return core.Failure("a debate format must be chosen")
		}
		if cfg.TurnCount <= 0 {
			return core.Failure("turn count must be positive")
		}
	default:
		return core.Failure(fmt.Sprintf("unknown step %q", step))
	}
	return core.Success()
}

// firstIncompleteStep is where a resumed configuration picks up.
func firstIncompleteStep(cfg *core.DebateConfiguration) int {
	for i, step := range Steps {
		if !validateStep(cfg, step).OK {
			return i
		}
	}
	return len(Steps) - 1
}

// UpdateConfig applies patch and persists the result. Values are checked
// against the opponent and format catalogs; nothing is applied if any
// field is rejected.
func (s *Session) UpdateConfig(ctx context.Context, patch ConfigPatch) error {
	var adopt func(*Session)
	defer func() {
		if adopt != nil {
			adopt(s)
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfiguration {
		return ErrInvalidPhase
	}

	cfg := s.cfg.Clone()
	if cfg.Positions == nil {
		cfg.Positions = map[string]string{}
	}

	if patch.DebateName != nil {
		cfg.DebateName = strings.TrimSpace(*patch.DebateName)
	}
	if patch.LearningID != nil {
		cfg.LearningID = *patch.LearningID
	}
	if patch.Topics != nil {
		topics, err := normalizeTopics(*patch.Topics)
		if err != nil {
			return err
		}
		cfg.Topics = topics
		for topic := range cfg.Positions {
			if !containsTopic(topics, topic) {
				delete(cfg.Positions, topic)
			}
		}
	}
	for topic, position := range patch.Positions {
		if !containsTopic(cfg.Topics, topic) {
			return fmt.Errorf("%w: no topic %q", ErrInvalidConfig, topic)
		}
		if position = strings.TrimSpace(position); position == "" {
			delete(cfg.Positions, topic)
		} else {
			cfg.Positions[topic] = position
		}
	}
	if patch.Opponent != nil {
		if *patch.Opponent != "" && !persona.Valid(*patch.Opponent) {
			return fmt.Errorf("%w: unknown opponent %q", ErrInvalidConfig, *patch.Opponent)
		}
		cfg.Opponent = *patch.Opponent
	}
	if patch.DebateFormat != nil {
		if !format.Valid(*patch.DebateFormat) {
			return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, *patch.DebateFormat)
		}
		cfg.DebateFormat = *patch.DebateFormat
	}
	if patch.TurnCount != nil {
		f := format.Get(cfg.DebateFormat)
		if f == nil || !f.ValidTurnCount(*patch.TurnCount) {
			return fmt.Errorf("%w: unsupported turn count %d", ErrInvalidConfig, *patch.TurnCount)
		}
		cfg.TurnCount = *patch.TurnCount
	}

	if res := s.store.Save(ctx, &cfg); !res.OK {
		return fmt.Errorf("failed to save debate: %s", res.Reason)
	}
	s.cfg = cfg
	adopt, s.adopt = s.adopt, nil
	s.bumpLocked()
	return nil
}

func normalizeTopics(in []string) ([]string, error) {
	topics := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || containsTopic(topics, t) {
			continue
		}
		topics = append(topics, t)
	}
	if len(topics) > core.MaxTopics {
		return nil, fmt.Errorf("%w: at most %d topics", ErrInvalidConfig, core.MaxTopics)
	}
	return topics, nil
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if t == topic {
			return true
		}
	}
	return false
}

// Next moves to the following configuration step if the current one
// validates. Completing the final step starts the session.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfiguration {
		return ErrInvalidPhase
	}
	if res := validateStep(&s.cfg, Steps[s.step]); !res.OK {
		return fmt.Errorf("%w: %s", ErrStepInvalid, res.Reason)
	}
	if s.step == len(Steps)-1 {
		return s.startLocked(ctx)
	}
	s.step++
	s.bumpLocked()
	return nil
}

// Back moves to the previous configuration step. It never fails in the
// configuration phase.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfiguration {
		return ErrInvalidPhase
	}
	if s.step > 0 {
		s.step--
		s.bumpLocked()
	}
	return nil
}

// Start validates every step, persists the configuration and enters the
// session phase.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConfiguration {
		return ErrInvalidPhase
	}
	return s.startLocked(ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	for i, step := range Steps {
		if res := validateStep(&s.cfg, step); !res.OK {
			s.step = i
			s.bumpLocked()
			return fmt.Errorf("%w: %s", ErrStepInvalid, res.Reason)
		}
	}
	if res := s.cfg.ReadyToStart(); !res.OK {
		return fmt.Errorf("%w: %s", ErrStepInvalid, res.Reason)
	}

	if res := s.store.Save(ctx, &s.cfg); !res.OK {
		return fmt.Errorf("failed to save debate: %s", res.Reason)
	}

	if s.learnings != nil {
		s.context = s.learnings.ContextText(ctx, s.cfg.LearningID)
	}
	s.tracker = tracker.NewState(s.cfg.Topics, s.cfg.TurnCount)
	s.phase = PhaseSession
	s.speaker = core.SpeakerUser
	s.messages = nil
	s.lastError = ""
	s.bumpLocked()

	slog.Info("Debate session started",
		"debate_id", s.cfg.ID,
		"topics", len(s.cfg.Topics),
		"turn_count", s.cfg.TurnCount,
		"opponent", s.cfg.Opponent)
	return nil
}

// requireLiveLocked checks the session accepts exchange operations.
func (s *Session) requireLiveLocked() error {
	if s.phase != PhaseSession {
		return ErrInvalidPhase
	}
	if s.generating {
		return ErrBusy
	}
	return nil
}

func (s *Session) newMessageLocked(speaker core.Speaker, content, topic, turnName string) core.DebateMessage {
	ts := s.now()
	if n := len(s.messages); n > 0 && ts.Before(s.messages[n-1].Timestamp) {
		ts = s.messages[n-1].Timestamp
	}
	return core.DebateMessage{
		ID:        core.GenerateID(),
		Speaker:   speaker,
		Content:   content,
		Topic:     topic,
		TurnType:  turnName,
		Timestamp: ts,
	}
}

func (s *Session) topicHistoryLocked(topic string) []core.DebateMessage {
	var history []core.DebateMessage
	for _, m := range s.messages {
		if m.Topic == topic {
			history = append(history, m)
		}
	}
	return history
}

// Send appends the user's message and asks the opponent to reply. If the
// reply fails the user's message is withdrawn, leaving the history as it
// was, and the floor returns to the user.
func (s *Session) Send(ctx context.Context, content string) (core.DebateMessage, error) {
	content = strings.TrimSpace(content)

	s.mu.Lock()
	if err := s.requireLiveLocked(); err != nil {
		s.mu.Unlock()
		return core.DebateMessage{}, err
	}
	if content == "" {
		s.mu.Unlock()
		return core.DebateMessage{}, ErrEmptyMessage
	}
	if s.speaker != core.SpeakerUser {
		s.mu.Unlock()
		return core.DebateMessage{}, ErrNotYourTurn
	}

	topic := s.tracker.CurrentTopic()
	turnName := s.tracker.CurrentTurnName()
	req := ResponseRequest{
		Config:    s.cfg.Clone(),
		Topic:     topic,
		Position:  s.cfg.Positions[topic],
		TurnName:  turnName,
		TurnIndex: s.tracker.CurrentTurnIndex,
		TurnCount: s.tracker.TurnCount,
		Message:   content,
		History:   s.topicHistoryLocked(topic),
		Context:   s.context,
	}

	s.messages = append(s.messages, s.newMessageLocked(core.SpeakerUser, content, topic, turnName))
	s.speaker = core.SpeakerOpponent
	s.generating = true
	s.lastError = ""
	s.bumpLocked()
	s.mu.Unlock()

	reply, err := s.responder.Respond(ctx, req)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty response")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generating = false
	s.speaker = core.SpeakerUser

	if err != nil {
		s.messages = s.messages[:len(s.messages)-1]
		s.lastError = responseFailedMessage
		s.bumpLocked()
		slog.Error("Failed to generate opponent response",
			"debate_id", s.cfg.ID,
			"topic", topic,
			"turn", turnName,
			"error", err)
		return core.DebateMessage{}, fmt.Errorf("failed to generate response: %w", err)
	}

	msg := s.newMessageLocked(core.SpeakerOpponent, strings.TrimSpace(reply), topic, turnName)
	s.messages = append(s.messages, msg)
	s.bumpLocked()
	return msg, nil
}

// TakeTurn hands the floor to the other side. Handing it back from the
// opponent to the user advances the tracker; advancing past the final
// slot completes the session.
func (s *Session) TakeTurn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLiveLocked(); err != nil {
		return err
	}

	if s.speaker == core.SpeakerUser {
		s.speaker = core.SpeakerOpponent
		s.bumpLocked()
		return nil
	}

	s.speaker = core.SpeakerUser
	s.tracker = tracker.Advance(s.tracker)
	if s.tracker.IsCompleted {
		return s.completeLocked(ctx)
	}
	s.bumpLocked()
	return nil
}

// JumpToTopic moves the tracker to the first turn of topic index i. An
// out-of-range index leaves the session untouched and reports why.
func (s *Session) JumpToTopic(i int) (core.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLiveLocked(); err != nil {
		return core.Result{}, err
	}

	next, res := tracker.JumpToTopic(s.tracker, i)
	if !res.OK {
		return res, nil
	}
	s.tracker = next
	s.speaker = core.SpeakerUser
	s.bumpLocked()
	return res, nil
}

// End completes the session. Before every turn is done it needs confirmed.
func (s *Session) End(ctx context.Context, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLiveLocked(); err != nil {
		return err
	}
	if !s.tracker.IsCompleted && !confirmed {
		return ErrConfirmationRequired
	}
	return s.completeLocked(ctx)
}

// completeLocked marks the debate completed and decides whether analysis
// is still needed. A stored summary built from the same transcript is reused.
func (s *Session) completeLocked(ctx context.Context) error {
	cfg := s.cfg.Clone()
	if _, err := s.store.MarkCompleted(ctx, &cfg); err != nil {
		return err
	}
	s.cfg = cfg

	if err := s.store.SaveTranscript(ctx, cfg.ID, s.messages); err != nil {
		slog.Warn("Failed to save transcript", "debate_id", cfg.ID, "error", err)
	}

	s.phase = PhaseCompleted
	s.speaker = core.SpeakerUser
	s.lastError = ""

	key := analysis.Key(cfg.ID, s.messages)
	if rec, ok := s.store.LoadSummary(ctx, cfg.ID); ok && rec.AnalysisKey == key {
		s.summary = rec
		s.status = AnalysisReady
	} else if s.analyzer == nil {
		s.status = AnalysisUnavailable
	} else {
		s.status = AnalysisPending
	}
	s.bumpLocked()

	slog.Info("Debate completed",
		"debate_id", cfg.ID,
		"messages", len(s.messages),
		"analysis", s.status)
	return nil
}

// Analyze runs the summarizer if the session is waiting for analysis.
// Concurrent calls are collapsed into one. The record is persisted under
// the debate id even if the session has moved on to a new debate.
func (s *Session) Analyze(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseCompleted {
		s.mu.Unlock()
		return ErrInvalidPhase
	}
	if s.status != AnalysisPending || s.analyzingID == s.cfg.ID {
		s.mu.Unlock()
		return nil
	}
	s.analyzingID = s.cfg.ID
	cfg := s.cfg.Clone()
	msgs := append([]core.DebateMessage(nil), s.messages...)
	s.mu.Unlock()

	rec, err := s.analyzer.Analyze(ctx, cfg, msgs)
	if err == nil {
		if rec.AnalysisKey == "" {
			rec.AnalysisKey = analysis.Key(cfg.ID, msgs)
		}
		if saveErr := s.store.SaveSummary(ctx, cfg.ID, rec); saveErr != nil {
			slog.Warn("Failed to save summary", "debate_id", cfg.ID, "error", saveErr)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.analyzingID == cfg.ID {
		s.analyzingID = ""
	}
	if s.cfg.ID != cfg.ID {
		return nil
	}
	if err != nil {
		s.status = AnalysisFailed
		s.lastError = "Analysis could not be generated."
		s.bumpLocked()
		slog.Error("Failed to analyze debate", "debate_id", cfg.ID, "error", err)
		return fmt.Errorf("failed to analyze debate: %w", err)
	}

	s.summary = rec
	s.status = AnalysisReady
	s.lastError = ""
	s.bumpLocked()
	return nil
}

// RetryAnalysis re-arms analysis after a failure.
func (s *Session) RetryAnalysis() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCompleted || s.status != AnalysisFailed {
		return ErrInvalidPhase
	}
	s.status = AnalysisPending
	s.lastError = ""
	s.bumpLocked()
	return nil
}

// Finish leaves the summary view. The session is reset to an empty
// configuration under a new id that keeps only the learning id. It
// returns the new id.
func (s *Session) Finish() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCompleted {
		return "", ErrInvalidPhase
	}

	cfg := core.NewConfiguration(s.cfg.LearningID)
	cfg.ID = core.GenerateID()

	s.cfg = cfg
	s.phase = PhaseConfiguration
	s.step = 0
	s.tracker = tracker.State{}
	s.speaker = core.SpeakerUser
	s.context = ""
	s.messages = nil
	s.status = AnalysisNone
	s.summary = nil
	s.lastError = ""
	s.bumpLocked()
	return cfg.ID, nil
}

// restoreLocked positions a freshly loaded session according to the
// stored record.
func (s *Session) restoreLocked(ctx context.Context) {
	if !s.cfg.IsCompleted {
		s.step = firstIncompleteStep(&s.cfg)
		return
	}

	s.phase = PhaseCompleted
	s.messages = s.store.LoadTranscript(ctx, s.cfg.ID)
	s.tracker = tracker.NewState(s.cfg.Topics, s.cfg.TurnCount)
	s.tracker.IsCompleted = true

	switch rec, ok := s.store.LoadSummary(ctx, s.cfg.ID); {
	case ok:
		s.summary = rec
		s.status = AnalysisReady
	case len(s.messages) > 0 && s.analyzer != nil:
		s.status = AnalysisFailed
	default:
		s.status = AnalysisUnavailable
	}
}
