package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultWhisperModel is the Replicate version of openai/whisper.
const DefaultWhisperModel = "openai/whisper:8099696689d249cf8b122d833c36ac3f75505c666a395ca40ef26f68e7d3d16e"

// TranscribeRequest is an audio clip to transcribe.
type TranscribeRequest struct {
	Audio    []byte
	MimeType string
	Language string
	Prompt   string
}

// Segment is a timed piece of a transcription.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the result returned to clients.
type Transcription struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// Whisper transcribes speech through Replicate.
type Whisper struct {
	client *ReplicateClient
	model  string
}

// NewWhisper creates a transcriber. An empty model uses DefaultWhisperModel.
func NewWhisper(client *ReplicateClient, model string) *Whisper {
	if model == "" {
		model = DefaultWhisperModel
	}
	return &Whisper{client: client, model: model}
}

type whisperInput struct {
	Audio         string `json:"audio"`
	Model         string `json:"model,omitempty"`
	Language      string `json:"language,omitempty"`
	InitialPrompt string `json:"initial_prompt,omitempty"`
	Transcription string `json:"transcription"`
}

type whisperOutput struct {
	Transcription    string    `json:"transcription"`
	Text             string    `json:"text"`
	Segments         []Segment `json:"segments"`
	DetectedLanguage string    `json:"detected_language"`
}

// Transcribe uploads the audio inline as a data URI and waits for the text.
func (w *Whisper) Transcribe(ctx context.Context, req TranscribeRequest) (*Transcription, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("no audio provided")
	}

	mime := req.MimeType
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(req.Audio)
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "auto"
	}

	input := whisperInput{
		Audio:         "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Audio),
		Model:         "large-v3",
		Language:      language,
		InitialPrompt: req.Prompt,
		Transcription: "plain text",
	}

	raw, err := w.client.Run(ctx, w.model, input)
	if err != nil {
		return nil, err
	}

	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode transcription: %w", err)
	}

	text := out.Transcription
	if text == "" {
		text = out.Text
	}
	segments := out.Segments
	if segments == nil {
		segments = []Segment{}
	}
	return &Transcription{
		Text:     strings.TrimSpace(text),
		Segments: segments,
		Language: out.DetectedLanguage,
	}, nil
}
