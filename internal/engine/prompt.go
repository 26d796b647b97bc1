package engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/format"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/provider"
)

// maxContextChars bounds how much learning material goes into a prompt.
const maxContextChars = 8000

// ResponseRequest is everything the opponent sees when replying.
type ResponseRequest struct {
	Config    core.DebateConfiguration
	Topic     string
	Position  string
	TurnName  string
	TurnIndex int
	TurnCount int
	Message   string
	// History holds earlier messages on the current topic, oldest first.
	History []core.DebateMessage
	Context string
}

// Responder generates the opponent's reply.
type Responder interface {
	Respond(ctx context.Context, req ResponseRequest) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req ResponseRequest) (string, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, req ResponseRequest) (string, error) {
	return f(ctx, req)
}

// ProviderResponder builds a prompt and asks an AI provider for the reply.
type ProviderResponder struct {
	Provider provider.Provider
}

// Respond implements Responder.
func (r *ProviderResponder) Respond(ctx context.Context, req ResponseRequest) (string, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}
	text, err := r.Provider.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// PromptData is passed to format prompt templates.
type PromptData struct {
	Topic      string
	Position   string
	TurnName   string
	TurnNumber int
	TurnCount  int
	Message    string
	History    string
	Context    string
}

// BuildPrompt combines the opponent persona with the format's template
// for the current turn slot.
func BuildPrompt(req ResponseRequest) (string, error) {
	personaDef := persona.Get(req.Config.Opponent)
	if personaDef == nil {
		personaDef = persona.Default()
	}
	formatDef := format.Get(req.Config.DebateFormat)
	if formatDef == nil {
		formatDef = format.Default()
	}

	tmpl, err := template.New("prompt").Parse(formatDef.PromptFor(req.TurnIndex, req.TurnCount))
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := PromptData{
		Topic:      req.Topic,
		Position:   req.Position,
		TurnName:   req.TurnName,
		TurnNumber: req.TurnIndex + 1,
		TurnCount:  req.TurnCount,
		Message:    req.Message,
		History:    formatHistory(req.History, personaDef.Name),
		Context:    truncateContext(req.Context),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return fmt.Sprintf(`%s

%s

Answer in plain conversational prose; your reply may be read aloud.`, personaDef.SystemPrompt, buf.String()), nil
}

func formatHistory(msgs []core.DebateMessage, opponentName string) string {
	if len(msgs) == 0 {
		return "(no earlier exchange)"
	}
	var b strings.Builder
	for _, m := range msgs {
		name := "Student"
		if m.Speaker == core.SpeakerOpponent {
			name = opponentName
		}
		fmt.Fprintf(&b, "\n--- %s (%s) ---\n%s\n", name, m.TurnType, m.Content)
	}
	return b.String()
}

func truncateContext(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxContextChars {
		return s
	}
	return strings.ToValidUTF8(s[:maxContextChars], "") + "\n[truncated]"
}
