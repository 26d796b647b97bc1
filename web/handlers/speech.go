package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alienxp03/rhetor/internal/speech"
)

// speechError writes the {error, details} body used by the speech endpoints.
func (h *Handler) speechError(w http.ResponseWriter, code int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	h.jsonStatus(w, code, body)
}

// speechFailure reports a failed synthesis or transcription. Missing
// credentials are configuration errors; anything else is an upstream failure.
func (h *Handler) speechFailure(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, speech.ErrMissingCredentials) {
		h.speechError(w, http.StatusInternalServerError, "Speech service is not configured", err)
		return
	}
	slog.Error(message, "error", err)
	h.speechError(w, http.StatusInternalServerError, message, err)
}

func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if h.transcriber == nil {
		h.speechError(w, http.StatusInternalServerError, "Replicate API token not configured", speech.ErrMissingCredentials)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.speechError(w, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.speechError(w, http.StatusBadRequest, "No audio file provided", nil)
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil || len(audio) == 0 {
		h.speechError(w, http.StatusBadRequest, "No audio file provided", err)
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), speech.TranscribeRequest{
		Audio:    audio,
		MimeType: header.Header.Get("Content-Type"),
		Language: r.FormValue("language"),
		Prompt:   r.FormValue("prompt"),
	})
	if err != nil {
		h.speechFailure(w, "Failed to transcribe audio", err)
		return
	}
	if result.Segments == nil {
		result.Segments = []speech.Segment{}
	}
	h.json(w, result)
}

func (h *Handler) handleKokoro(w http.ResponseWriter, r *http.Request) {
	if h.voice == nil {
		h.speechError(w, http.StatusInternalServerError, "Replicate API token not configured", speech.ErrMissingCredentials)
		return
	}

	var req speech.SynthesisRequest
	if err := decodeJSON(r, &req); err != nil {
		h.speechError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.speechError(w, http.StatusBadRequest, "No text provided", nil)
		return
	}

	audio, err := h.voice.Synthesize(r.Context(), req)
	if err != nil {
		h.speechFailure(w, "Failed to generate speech", err)
		return
	}
	writeAudio(w, "audio/wav", audio)
}

func (h *Handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	if h.speech == nil {
		h.speechError(w, http.StatusInternalServerError, "Google Cloud credentials not configured", speech.ErrMissingCredentials)
		return
	}

	var req speech.SpeechRequest
	if err := decodeJSON(r, &req); err != nil {
		h.speechError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.speechError(w, http.StatusBadRequest, "No text provided", nil)
		return
	}

	audio, err := h.speech.Synthesize(r.Context(), req)
	if err != nil {
		h.speechFailure(w, "Failed to synthesize speech", err)
		return
	}
	writeAudio(w, "audio/mp3", audio)
}

func writeAudio(w http.ResponseWriter, contentType string, audio []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(audio); err != nil {
		slog.Debug("Failed to write audio", "error", err)
	}
}
