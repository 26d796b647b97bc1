// Package export handles exporting debates to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/persona"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Document is everything an export renders: the setup, the transcript and
// the feedback when analysis has finished.
type Document struct {
	Config   core.DebateConfiguration  `json:"config"`
	Messages []core.DebateMessage      `json:"messages"`
	Summary  *core.DebateSummaryRecord `json:"summary,omitempty"`
}

// OpponentName returns the display name of the debate's opponent.
func (d *Document) OpponentName() string {
	if p := persona.Get(d.Config.Opponent); p != nil {
		return p.Name
	}
	if d.Config.Opponent != "" {
		return d.Config.Opponent
	}
	return "Opponent"
}

// Title returns the debate name, falling back to the first topic.
func (d *Document) Title() string {
	if d.Config.DebateName != "" {
		return d.Config.DebateName
	}
	if len(d.Config.Topics) > 0 {
		return d.Config.Topics[0]
	}
	return "Untitled debate"
}

// Exporter defines the interface for exporting debates.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(doc *Document, ext string) string {
	name := doc.Title()
	if len(name) > 50 {
		name = name[:50]
	}

	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	name = replacer.Replace(name)

	stamp := time.UnixMilli(doc.Config.Timestamp).UTC().Format("20060102")
	return fmt.Sprintf("debate_%s_%s.%s", stamp, name, ext)
}

// speakerName labels a message author.
func speakerName(doc *Document, m core.DebateMessage) string {
	if m.Speaker == core.SpeakerOpponent {
		return doc.OpponentName()
	}
	return "You"
}

// groupByTopic keeps topic order as configured, then any topic only seen
// in messages.
func groupByTopic(doc *Document) ([]string, map[string][]core.DebateMessage) {
	groups := make(map[string][]core.DebateMessage)
	for _, m := range doc.Messages {
		groups[m.Topic] = append(groups[m.Topic], m)
	}

	order := make([]string, 0, len(groups))
	seen := make(map[string]bool)
	for _, t := range doc.Config.Topics {
		if _, ok := groups[t]; ok && !seen[t] {
			order = append(order, t)
			seen[t] = true
		}
	}
	for _, m := range doc.Messages {
		if !seen[m.Topic] {
			order = append(order, m.Topic)
			seen[m.Topic] = true
		}
	}
	return order, groups
}
