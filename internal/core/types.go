// Package core contains the core domain types for rhetor.
package core

import (
	"strings"
	"time"
)

// MaxTopics is the largest number of topics a single debate may carry.
const MaxTopics = 5

// DefaultTurnCount is the number of turn slots per topic for a new debate.
const DefaultTurnCount = 3

// FormatTurnBased is the only supported debate format.
const FormatTurnBased = "turn-based"

// Speaker identifies who authored a debate message or holds the floor.
type Speaker string

const (
	SpeakerUser     Speaker = "user"
	SpeakerOpponent Speaker = "opponent"
)

// DebateConfiguration is the persisted setup of a single debate.
type DebateConfiguration struct {
	ID           string            `json:"id"`
	DebateName   string            `json:"debateName"`
	Topics       []string          `json:"topics"`
	Positions    map[string]string `json:"positions"`
	Opponent     string            `json:"opponent"`
	DebateFormat string            `json:"debateFormat"`
	TurnCount    int               `json:"turnCount"`
	LearningID   string            `json:"learningId"`
	IsCompleted  bool              `json:"isCompleted"`
	Timestamp    int64             `json:"timestamp"` // unix milliseconds of the last write
}

// NewConfiguration returns the documented empty-default record.
// Only the learning ID is carried over.
func NewConfiguration(learningID string) DebateConfiguration {
	return DebateConfiguration{
		Topics:       []string{},
		Positions:    map[string]string{},
		DebateFormat: FormatTurnBased,
		TurnCount:    DefaultTurnCount,
		LearningID:   learningID,
	}
}

// HasPosition reports whether the user declared a stance on topic.
func (c *DebateConfiguration) HasPosition(topic string) bool {
	return strings.TrimSpace(c.Positions[topic]) != ""
}

// AllPositioned reports whether every topic has a non-empty position.
func (c *DebateConfiguration) AllPositioned() bool {
	for _, t := range c.Topics {
		if !c.HasPosition(t) {
			return false
		}
	}
	return true
}

// ReadyToStart reports whether the configuration can enter a session.
func (c *DebateConfiguration) ReadyToStart() Result {
	switch {
	case c.DebateName == "":
		return Failure("debate name is required")
	case len(c.Topics) == 0:
		return Failure("at least one topic is required")
	case !c.AllPositioned():
		return Failure("every topic needs a position")
	case c.Opponent == "":
		return Failure("an opponent must be chosen")
	case c.TurnCount <= 0:
		return Failure("turn count must be positive")
	}
	return Success()
}

// Clone returns a deep copy so callers can't alias topics or positions.
func (c DebateConfiguration) Clone() DebateConfiguration {
	out := c
	if c.Topics != nil {
		out.Topics = append([]string(nil), c.Topics...)
	}
	if c.Positions != nil {
		out.Positions = make(map[string]string, len(c.Positions))
		for k, v := range c.Positions {
			out.Positions[k] = v
		}
	}
	return out
}

// CompletedRef is a lightweight pointer to a completed debate.
type CompletedRef struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	LearningID string `json:"learningId"`
}

// DebateMessage is one side of an exchange within a session.
type DebateMessage struct {
	ID        string    `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Content   string    `json:"content"`
	Topic     string    `json:"topic"`
	TurnType  string    `json:"turnType"`
	Timestamp time.Time `json:"timestamp"`
}

// Skill is a named score between 0 and 100.
type Skill struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DebateSummaryRecord is the scored feedback produced after a session ends.
type DebateSummaryRecord struct {
	Score           int     `json:"score"`
	Strengths       string  `json:"strengths"`
	Weaknesses      string  `json:"weaknesses"`
	Highlights      string  `json:"highlights"`
	Recommendations string  `json:"recommendations"`
	Skills          []Skill `json:"skills"`

	LearningID  string    `json:"learningId"`
	DebateName  string    `json:"debateName"`
	DebateTopic string    `json:"debateTopic"`
	CreatedAt   time.Time `json:"createdAt"`

	// AnalysisKey is the content hash of the transcript this record was built from.
	AnalysisKey string `json:"analysisKey,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// Learning is a content bundle a debate can draw context from.
type Learning struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	FileIDs     []string  `json:"fileIds,omitempty"`
	Description string    `json:"description,omitempty"`
}

// StoredFile is an uploaded payload associated with a learning bundle.
type StoredFile struct {
	ID         string    `json:"id"`
	LearningID string    `json:"learningId"`
	Name       string    `json:"name"`
	MimeType   string    `json:"mimeType"`
	Size       int       `json:"size"`
	Data       []byte    `json:"data"`
	CreatedAt  time.Time `json:"createdAt"`
}

// IsText reports whether the file payload can be used as prompt context.
func (f *StoredFile) IsText() bool {
	return strings.HasPrefix(f.MimeType, "text/") ||
		f.MimeType == "application/json" ||
		f.MimeType == "application/markdown"
}
