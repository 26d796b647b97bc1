package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const dateLayout = "January 2, 2006 at 3:04 PM"

// MarkdownExporter exports debates to Markdown format.
type MarkdownExporter struct{}

// Export writes the debate as Markdown.
func (e *MarkdownExporter) Export(doc *Document, w io.Writer) error {
	var sb strings.Builder
	cfg := doc.Config

	fmt.Fprintf(&sb, "# %s\n\n", doc.Title())

	sb.WriteString("## Debate Information\n\n")
	fmt.Fprintf(&sb, "- **ID:** `%s`\n", cfg.ID)
	fmt.Fprintf(&sb, "- **Opponent:** %s\n", doc.OpponentName())
	fmt.Fprintf(&sb, "- **Format:** %s, %d turns per topic\n", cfg.DebateFormat, cfg.TurnCount)
	status := "In progress"
	if cfg.IsCompleted {
		status = "Completed"
	}
	fmt.Fprintf(&sb, "- **Status:** %s\n", status)
	if cfg.Timestamp > 0 {
		fmt.Fprintf(&sb, "- **Updated:** %s\n", time.UnixMilli(cfg.Timestamp).UTC().Format(dateLayout))
	}
	sb.WriteString("\n")

	sb.WriteString("## Positions\n\n")
	for _, t := range cfg.Topics {
		fmt.Fprintf(&sb, "- **%s:** %s\n", t, cfg.Positions[t])
	}
	sb.WriteString("\n")

	sb.WriteString("## Debate\n\n")
	if len(doc.Messages) == 0 {
		sb.WriteString("*No messages recorded.*\n\n")
	} else {
		order, groups := groupByTopic(doc)
		for _, topic := range order {
			fmt.Fprintf(&sb, "### %s\n\n", topic)
			for _, m := range groups[topic] {
				fmt.Fprintf(&sb, "#### %s - %s\n\n", m.TurnType, speakerName(doc, m))
				sb.WriteString(m.Content)
				sb.WriteString("\n\n---\n\n")
			}
		}
	}

	if s := doc.Summary; s != nil {
		sb.WriteString("## Feedback\n\n")
		fmt.Fprintf(&sb, "**Score:** %d/100\n\n", s.Score)
		if s.Fallback {
			sb.WriteString("*Automatic analysis was unavailable; this is a placeholder assessment.*\n\n")
		}
		writeSection(&sb, "Strengths", s.Strengths)
		writeSection(&sb, "Weaknesses", s.Weaknesses)
		writeSection(&sb, "Highlights", s.Highlights)
		writeSection(&sb, "Recommendations", s.Recommendations)
		if len(s.Skills) > 0 {
			sb.WriteString("### Skills\n\n")
			sb.WriteString("| Skill | Score |\n|---|---|\n")
			for _, sk := range s.Skills {
				fmt.Fprintf(&sb, "| %s | %d |\n", sk.Name, sk.Value)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from rhetor*\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeSection(sb *strings.Builder, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(sb, "### %s\n\n%s\n\n", title, body)
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
