package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/rhetor/internal/core"
)

// PDFExporter exports debates to PDF format.
type PDFExporter struct{}

// Export writes the debate as PDF.
func (e *PDFExporter) Export(doc *Document, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(sanitizeText(s)) }

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, text(doc.Title()), "", "C", false)
	pdf.Ln(5)

	cfg := doc.Config
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate Information")
	pdf.Ln(8)

	addMetadataRow(pdf, "Opponent:", text(doc.OpponentName()))
	addMetadataRow(pdf, "Format:", fmt.Sprintf("%s, %d turns per topic", cfg.DebateFormat, cfg.TurnCount))
	if cfg.IsCompleted {
		addMetadataRow(pdf, "Status:", "Completed")
	} else {
		addMetadataRow(pdf, "Status:", "In progress")
	}
	if cfg.Timestamp > 0 {
		addMetadataRow(pdf, "Updated:", time.UnixMilli(cfg.Timestamp).UTC().Format(dateLayout))
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Positions")
	pdf.Ln(8)
	for _, t := range cfg.Topics {
		pdf.SetFont("Arial", "B", 10)
		pdf.MultiCell(0, 5, text(t), "", "", false)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, text(cfg.Positions[t]), "", "", false)
		pdf.Ln(2)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Debate")
	pdf.Ln(8)

	if len(doc.Messages) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No messages recorded.")
		pdf.Ln(6)
	} else {
		order, groups := groupByTopic(doc)
		for _, topic := range order {
			pdf.SetFont("Arial", "B", 11)
			pdf.MultiCell(0, 7, text(topic), "", "", false)
			pdf.Ln(2)

			for _, m := range groups[topic] {
				if pdf.GetY() > 250 {
					pdf.AddPage()
				}
				if m.Speaker == core.SpeakerUser {
					pdf.SetFillColor(200, 230, 255)
				} else {
					pdf.SetFillColor(200, 255, 200)
				}

				pdf.SetFont("Arial", "B", 10)
				header := fmt.Sprintf("%s - %s", m.TurnType, speakerName(doc, m))
				pdf.CellFormat(0, 7, text(header), "", 1, "", true, 0, "")

				pdf.SetFont("Arial", "", 9)
				pdf.SetFillColor(255, 255, 255)
				pdf.MultiCell(0, 5, text(m.Content), "", "", false)
				pdf.Ln(5)
			}
		}
	}

	if s := doc.Summary; s != nil {
		if pdf.GetY() > 230 {
			pdf.AddPage()
		}

		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Feedback")
		pdf.Ln(8)

		pdf.SetFillColor(scoreColor(s.Score))
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, fmt.Sprintf("Score: %d/100", s.Score), "", 1, "", true, 0, "")
		pdf.SetFillColor(255, 255, 255)
		pdf.Ln(2)

		for _, sec := range []struct{ title, body string }{
			{"Strengths", s.Strengths},
			{"Weaknesses", s.Weaknesses},
			{"Highlights", s.Highlights},
			{"Recommendations", s.Recommendations},
		} {
			if strings.TrimSpace(sec.body) == "" {
				continue
			}
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, sec.title)
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, text(sec.body), "", "", false)
			pdf.Ln(3)
		}

		if len(s.Skills) > 0 {
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, "Skills")
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 9)
			for _, sk := range s.Skills {
				pdf.Cell(60, 5, text(sk.Name))
				pdf.Cell(0, 5, fmt.Sprintf("%d", sk.Value))
				pdf.Ln(5)
			}
		}
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from rhetor", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

func addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

func scoreColor(score int) (int, int, int) {
	switch {
	case score >= 75:
		return 200, 255, 200
	case score >= 50:
		return 255, 240, 200
	default:
		return 255, 200, 200
	}
}

// sanitizeText folds punctuation the core fonts cannot render.
func sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'",
		"\u2019", "'",
		"\u201C", "\"",
		"\u201D", "\"",
		"\u2013", "-",
		"\u2014", "--",
		"\u2026", "...",
		"\u2022", "*",
		"\u00A0", " ",
	)
	return replacer.Replace(text)
}
