// Package tracker advances a debate through its topics and turn slots.
//
// Traversal is depth-first: every turn of topic 0, then every turn of
// topic 1, and so on. The functions are pure; callers own the State.
package tracker

import (
	"fmt"

	"github.com/alienxp03/rhetor/internal/core"
)

// UnknownTurn is returned for turn indexes outside the selected list.
const UnknownTurn = "Unknown"

var threeTurnNames = []string{
	"Initial Position",
	"Rebuttal/Counterargument",
	"Closing Reflection",
}

var fiveTurnNames = []string{
	"Initial Position",
	"Rebuttal/Counterargument",
	"Response to Rebuttal",
	"Final Expansion",
	"Closing Reflection",
}

// State is the transient cursor over (topic, turn) slots.
type State struct {
	Topics            []string `json:"topics"`
	TurnCount         int      `json:"turnCount"`
	CurrentTopicIndex int      `json:"currentTopicIndex"`
	CurrentTurnIndex  int      `json:"currentTurnIndex"`
	IsCompleted       bool     `json:"isCompleted"`
}

// NewState returns the initial state for topics. An empty topic list
// yields a degenerate state whose index 0 is invalid; callers must guard.
func NewState(topics []string, turnCount int) State {
	return State{
		Topics:    append([]string(nil), topics...),
		TurnCount: turnCount,
	}
}

// Advance moves to the next turn slot, rolling over to the next topic
// after the last turn. Advancing past the final slot only marks the
// state completed.
func Advance(s State) State {
	switch {
	case s.CurrentTurnIndex < s.TurnCount-1:
		s.CurrentTurnIndex++
	case s.CurrentTopicIndex < len(s.Topics)-1:
		s.CurrentTopicIndex++
		s.CurrentTurnIndex = 0
	default:
		s.IsCompleted = true
	}
	return s
}

// JumpToTopic moves to the first turn of topicIndex and clears completion.
// Out-of-range indexes leave the state unchanged and report why.
func JumpToTopic(s State, topicIndex int) (State, core.Result) {
	if topicIndex < 0 || topicIndex >= len(s.Topics) {
		return s, core.Failure(fmt.Sprintf("topic index %d out of range [0, %d)", topicIndex, len(s.Topics)))
	}
	s.CurrentTopicIndex = topicIndex
	s.CurrentTurnIndex = 0
	s.IsCompleted = false
	return s, core.Success()
}

// TurnNames returns the ordered turn-slot names for turnCount.
// Counts other than 5 use the three-turn list.
func TurnNames(turnCount int) []string {
	names := threeTurnNames
	if turnCount == 5 {
		names = fiveTurnNames
	}
	return append([]string(nil), names...)
}

// TurnName looks up the name of a single turn slot.
func TurnName(turnIndex, turnCount int) string {
	names := threeTurnNames
	if turnCount == 5 {
		names = fiveTurnNames
	}
	if turnIndex < 0 || turnIndex >= len(names) {
		return UnknownTurn
	}
	return names[turnIndex]
}

// CurrentTopic returns the active topic, or "" for a degenerate state.
func (s State) CurrentTopic() string {
	if s.CurrentTopicIndex < 0 || s.CurrentTopicIndex >= len(s.Topics) {
		return ""
	}
	return s.Topics[s.CurrentTopicIndex]
}

// CurrentTurnName returns the name of the active turn slot.
func (s State) CurrentTurnName() string {
	return TurnName(s.CurrentTurnIndex, s.TurnCount)
}

// Progress returns how many slots have been passed and the total.
func (s State) Progress() (done, total int) {
	total = len(s.Topics) * s.TurnCount
	if s.IsCompleted {
		return total, total
	}
	return s.CurrentTopicIndex*s.TurnCount + s.CurrentTurnIndex, total
}
