// Package format defines debate formats and the prompts used for each turn.
package format

import "github.com/alienxp03/rhetor/internal/core"

// Format describes how a debate session is structured.
type Format struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TurnCounts  []int  `json:"turnCounts"`

	OpeningPrompt  string `json:"-"`
	ResponsePrompt string `json:"-"`
	ClosingPrompt  string `json:"-"`
}

// Prompt templates receive engine.PromptData.
const (
	openingPrompt = `You are debating a student on the topic: "{{.Topic}}"
The student's position: "{{.Position}}"
This is the "{{.TurnName}}" turn ({{.TurnNumber}} of {{.TurnCount}}).
{{if .Context}}
Background material the student studied:
---
{{.Context}}
---
{{end}}
The student said:
---
{{.Message}}
---

Respond to the student's opening argument. Take the opposing view, name the
strongest objection to their position and ask one question that makes them
defend it. Keep it to 2 short paragraphs.`

	responsePrompt = `You are debating a student on the topic: "{{.Topic}}"
The student's position: "{{.Position}}"
This is the "{{.TurnName}}" turn ({{.TurnNumber}} of {{.TurnCount}}).
{{if .Context}}
Background material the student studied:
---
{{.Context}}
---
{{end}}
Exchange on this topic so far:
{{.History}}

The student just said:
---
{{.Message}}
---

Engage directly with what the student just said. Press on weak reasoning,
concede good points honestly and move the argument forward. Keep it to 2 short
paragraphs.`

	closingPrompt = `You are finishing a debate with a student on the topic: "{{.Topic}}"
The student's position: "{{.Position}}"
This is the "{{.TurnName}}" turn, the last one for this topic.

Exchange on this topic:
{{.History}}

The student's closing words:
---
{{.Message}}
---

Give a brief closing reflection. Say where the student argued well, where
their case is still open and what remains unresolved between you. One
paragraph.`
)

// DefaultFormats returns the built-in debate formats.
func DefaultFormats() []Format {
	return []Format{
		{
			ID:             core.FormatTurnBased,
			Name:           "Turn-based",
			Description:    "Alternate with the opponent through a fixed sequence of turns for each topic",
			TurnCounts:     []int{3, 5},
			OpeningPrompt:  openingPrompt,
			ResponsePrompt: responsePrompt,
			ClosingPrompt:  closingPrompt,
		},
	}
}

// Get returns a format by ID.
func Get(id string) *Format {
	for _, f := range DefaultFormats() {
		if f.ID == id {
			return &f
		}
	}
	return nil
}

// List returns all available format IDs.
func List() []string {
	formats := DefaultFormats()
	ids := make([]string, len(formats))
	for i, f := range formats {
		ids[i] = f.ID
	}
	return ids
}

// Valid checks if a format ID is known.
func Valid(id string) bool {
	return Get(id) != nil
}

// Default returns the default debate format.
func Default() *Format {
	return Get(core.FormatTurnBased)
}

// ValidTurnCount reports whether n is one of the format's turn counts.
func (f *Format) ValidTurnCount(n int) bool {
	for _, c := range f.TurnCounts {
		if c == n {
			return true
		}
	}
	return false
}

// PromptFor returns the template for the given turn slot.
func (f *Format) PromptFor(turnIndex, turnCount int) string {
	switch {
	case turnIndex <= 0:
		return f.OpeningPrompt
	case turnIndex >= turnCount-1:
		return f.ClosingPrompt
	default:
		return f.ResponsePrompt
	}
}
