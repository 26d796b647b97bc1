package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

// GoogleCredentials are the service-account fields for Cloud Text-to-Speech.
type GoogleCredentials struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// Validate reports which credential field is missing or malformed.
func (c GoogleCredentials) Validate() error {
	switch {
	case c.ProjectID == "":
		return fmt.Errorf("%w: GOOGLE_PROJECT_ID not set", ErrMissingCredentials)
	case c.ClientEmail == "":
		return fmt.Errorf("%w: GOOGLE_CLIENT_EMAIL not set", ErrMissingCredentials)
	case c.PrivateKey == "":
		return fmt.Errorf("%w: GOOGLE_PRIVATE_KEY not set", ErrMissingCredentials)
	case !strings.Contains(c.normalizedKey(), "PRIVATE KEY"):
		return fmt.Errorf("%w: GOOGLE_PRIVATE_KEY is not a PEM key", ErrMissingCredentials)
	}
	return nil
}

// normalizedKey turns literal "\n" sequences from env files into newlines.
func (c GoogleCredentials) normalizedKey() string {
	return strings.ReplaceAll(c.PrivateKey, `\n`, "\n")
}

// JSON renders the credentials as a service-account key file.
func (c GoogleCredentials) JSON() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   c.ProjectID,
		"private_key":  c.normalizedKey(),
		"client_email": c.ClientEmail,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

// SpeechRequest is text to synthesize with Cloud Text-to-Speech.
type SpeechRequest struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"languageCode,omitempty"`
	VoiceName    string  `json:"voiceName,omitempty"`
	SSMLGender   string  `json:"ssmlGender,omitempty"`
	SpeakingRate float64 `json:"speakingRate,omitempty"`
	Pitch        float64 `json:"pitch,omitempty"`
}

// GoogleTTS synthesizes MP3 audio with Cloud Text-to-Speech.
type GoogleTTS struct {
	creds GoogleCredentials

	// clientOptions overrides credential options; used to target a local endpoint.
	clientOptions []option.ClientOption
}

// NewGoogleTTS creates a synthesizer. Credentials are checked per request
// so a misconfigured server still starts.
func NewGoogleTTS(creds GoogleCredentials) *GoogleTTS {
	return &GoogleTTS{creds: creds}
}

// Configured reports whether credentials look usable.
func (g *GoogleTTS) Configured() bool {
	return g.creds.Validate() == nil
}

// Synthesize returns MP3 audio for req.
func (g *GoogleTTS) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("no text provided")
	}

	opts := g.clientOptions
	if opts == nil {
		credJSON, err := g.creds.JSON()
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{option.WithCredentialsJSON(credJSON)}
	}

	svc, err := texttospeech.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	languageCode := req.LanguageCode
	if languageCode == "" {
		languageCode = "en-US"
	}
	gender := strings.ToUpper(req.SSMLGender)
	if gender == "" {
		gender = "NEUTRAL"
	}
	rate := req.SpeakingRate
	if rate == 0 {
		rate = 1
	}

	resp, err := svc.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: req.Text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: languageCode,
			Name:         req.VoiceName,
			SsmlGender:   gender,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  rate,
			Pitch:         req.Pitch,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return audio, nil
}
