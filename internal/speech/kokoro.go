package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultKokoroModel is the Replicate version of the Kokoro TTS model.
const DefaultKokoroModel = "jaaari/kokoro-82m:f559560eb822dc509045f3921a1921234918b91739db4bf3daab2169b71c7a13"

// DefaultKokoroVoice is used when a request names no voice.
const DefaultKokoroVoice = "af_bella"

// SynthesisRequest is text to speak with the Kokoro model.
type SynthesisRequest struct {
	Text  string  `json:"text"`
	Speed float64 `json:"speed,omitempty"`
	Voice string  `json:"voice,omitempty"`
}

// Kokoro synthesizes WAV audio through Replicate.
type Kokoro struct {
	client *ReplicateClient
	model  string
}

// NewKokoro creates a synthesizer. An empty model uses DefaultKokoroModel.
func NewKokoro(client *ReplicateClient, model string) *Kokoro {
	if model == "" {
		model = DefaultKokoroModel
	}
	return &Kokoro{client: client, model: model}
}

// Synthesize runs the model and downloads the resulting audio.
func (k *Kokoro) Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("no text provided")
	}
	if req.Speed <= 0 {
		req.Speed = 1
	}
	if req.Voice == "" {
		req.Voice = DefaultKokoroVoice
	}

	raw, err := k.client.Run(ctx, k.model, req)
	if err != nil {
		return nil, err
	}

	url, err := outputURL(raw)
	if err != nil {
		return nil, err
	}
	return k.client.Download(ctx, url)
}

// outputURL accepts a single URL or a list whose first entry is the URL.
func outputURL(raw json.RawMessage) (string, error) {
	var url string
	if err := json.Unmarshal(raw, &url); err == nil && url != "" {
		return url, nil
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil && len(urls) > 0 {
		return urls[0], nil
	}
	return "", fmt.Errorf("prediction returned no audio URL")
}
