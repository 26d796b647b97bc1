// Package analysis scores a finished debate transcript.
package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/persona"
	"github.com/alienxp03/rhetor/internal/provider"
)

// DefaultSkills are the skills scored when the model omits them.
var DefaultSkills = []string{"Argumentation", "Evidence", "Rebuttal", "Clarity", "Critical Thinking"}

const promptTemplate = `You are a debate coach reviewing a student's debate against {{.Opponent}}.

Debate: "{{.DebateName}}"
{{range .Topics}}Topic: "{{.Topic}}" (student position: "{{.Position}}")
{{end}}
Transcript:
{{.Transcript}}

Assess only the student's performance. Reply with a single JSON object and nothing else:
{
  "score": <integer 0-100>,
  "strengths": "<what the student did well>",
  "weaknesses": "<where the student's arguments fell short>",
  "highlights": "<the student's strongest moments, quoted where possible>",
  "recommendations": "<concrete steps to improve>",
  "skills": [{"name": "<skill>", "value": <integer 0-100>}]
}
Score these skills: {{.Skills}}.`

var promptTmpl = template.Must(template.New("analysis").Parse(promptTemplate))

type topicPosition struct {
	Topic    string
	Position string
}

type promptData struct {
	Opponent   string
	DebateName string
	Topics     []topicPosition
	Transcript string
	Skills     string
}

// Analyzer turns a transcript into a DebateSummaryRecord using a provider.
type Analyzer struct {
	provider provider.Provider
	now      func() time.Time
}

// New creates an analyzer backed by p.
func New(p provider.Provider) *Analyzer {
	return &Analyzer{provider: p, now: time.Now}
}

// Analyze asks the provider for feedback on the student's side of the
// debate. Provider failures are returned as errors. Output that cannot be
// parsed even after repair yields a fallback record and no error.
func (a *Analyzer) Analyze(ctx context.Context, cfg core.DebateConfiguration, msgs []core.DebateMessage) (*core.DebateSummaryRecord, error) {
	prompt, err := BuildPrompt(cfg, msgs)
	if err != nil {
		return nil, err
	}

	raw, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis: %w", err)
	}

	rec, err := Parse(raw)
	if err != nil {
		slog.Warn("Analysis output unparseable, using fallback",
			"debate_id", cfg.ID,
			"error", err)
		rec = Fallback()
	}

	rec.LearningID = cfg.LearningID
	rec.DebateName = cfg.DebateName
	rec.DebateTopic = strings.Join(cfg.Topics, ", ")
	rec.CreatedAt = a.now()
	rec.AnalysisKey = Key(cfg.ID, msgs)
	return rec, nil
}

// BuildPrompt renders the analysis prompt for a transcript.
func BuildPrompt(cfg core.DebateConfiguration, msgs []core.DebateMessage) (string, error) {
	opponent := cfg.Opponent
	if p := persona.Get(cfg.Opponent); p != nil {
		opponent = p.Name
	}

	data := promptData{
		Opponent:   opponent,
		DebateName: cfg.DebateName,
		Transcript: Transcript(msgs, opponent),
		Skills:     strings.Join(DefaultSkills, ", "),
	}
	for _, t := range cfg.Topics {
		data.Topics = append(data.Topics, topicPosition{Topic: t, Position: cfg.Positions[t]})
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	return buf.String(), nil
}

// Transcript formats messages as speaker-labelled lines grouped by topic.
func Transcript(msgs []core.DebateMessage, opponentName string) string {
	var b strings.Builder
	topic := ""
	for i, m := range msgs {
		if m.Topic != topic || i == 0 {
			topic = m.Topic
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "## %s\n", topic)
		}
		speaker := "Student"
		if m.Speaker == core.SpeakerOpponent {
			speaker = opponentName
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.TurnType, speaker, m.Content)
	}
	return b.String()
}

type rawSummary struct {
	Score           flexScore       `json:"score"`
	Strengths       flexText        `json:"strengths"`
	Weaknesses      flexText        `json:"weaknesses"`
	Highlights      flexText        `json:"highlights"`
	Recommendations flexText        `json:"recommendations"`
	Skills          json.RawMessage `json:"skills"`
}

type rawSkill struct {
	Name  string    `json:"name"`
	Value flexScore `json:"value"`
}

// Parse decodes model output into a summary record, repairing common
// formatting mistakes first.
func Parse(raw string) (*core.DebateSummaryRecord, error) {
	var s rawSummary
	if err := repairJSON(raw, &s); err != nil {
		return nil, err
	}

	rec := &core.DebateSummaryRecord{
		Score:           clampScore(s.Score),
		Strengths:       strings.TrimSpace(string(s.Strengths)),
		Weaknesses:      strings.TrimSpace(string(s.Weaknesses)),
		Highlights:      strings.TrimSpace(string(s.Highlights)),
		Recommendations: strings.TrimSpace(string(s.Recommendations)),
		Skills:          parseSkills(s.Skills),
	}
	if rec.Strengths == "" && rec.Weaknesses == "" && rec.Score == 0 {
		return nil, fmt.Errorf("analysis JSON has no usable fields")
	}
	return rec, nil
}

// parseSkills accepts a list of {name, value} objects or a name to value map.
func parseSkills(data json.RawMessage) []core.Skill {
	if len(data) == 0 {
		return nil
	}

	var list []rawSkill
	if err := json.Unmarshal(data, &list); err == nil {
		skills := make([]core.Skill, 0, len(list))
		for _, s := range list {
			if s.Name = strings.TrimSpace(s.Name); s.Name != "" {
				skills = append(skills, core.Skill{Name: s.Name, Value: clampScore(s.Value)})
			}
		}
		return skills
	}

	var m map[string]flexScore
	if err := json.Unmarshal(data, &m); err == nil {
		skills := make([]core.Skill, 0, len(m))
		for name, v := range m {
			skills = append(skills, core.Skill{Name: name, Value: clampScore(v)})
		}
		sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
		return skills
	}
	return nil
}

// Fallback returns the neutral record shown when analysis output is unusable.
func Fallback() *core.DebateSummaryRecord {
	skills := make([]core.Skill, len(DefaultSkills))
	for i, name := range DefaultSkills {
		skills[i] = core.Skill{Name: name, Value: 50}
	}
	return &core.DebateSummaryRecord{
		Score:           50,
		Strengths:       "You engaged with each topic and defended your position.",
		Weaknesses:      "Detailed feedback could not be generated for this debate.",
		Highlights:      "",
		Recommendations: "Review the transcript and try the debate again for a detailed analysis.",
		Skills:          skills,
		Fallback:        true,
	}
}

// Key is a content hash of a transcript. A stored summary whose key
// matches can be reused instead of analysing again. Every field is length
// prefixed, so no content can make two transcripts collide.
func Key(debateID string, msgs []core.DebateMessage) string {
	h := sha256.New()
	writeField(h, debateID)
	for _, m := range msgs {
		writeField(h, string(m.Speaker))
		writeField(h, m.Topic)
		writeField(h, m.TurnType)
		writeField(h, m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	w.Write(n[:])
	io.WriteString(w, s)
}
