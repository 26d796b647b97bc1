package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/engine"
	"github.com/alienxp03/rhetor/internal/export"
)

// openSession resolves the {id} URL parameter to a live session.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) (*engine.Session, bool) {
	s, err := h.engine.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.engineError(w, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) handleCreateDebate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LearningID string `json:"learningId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.engine.Create(r.Context(), req.LearningID)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, s.Snapshot())
}

func (h *Handler) handleListDebates(w http.ResponseWriter, r *http.Request) {
	debates := h.engine.List(r.Context(), r.URL.Query().Get("learningId"))
	if debates == nil {
		debates = []core.DebateConfiguration{}
	}
	h.json(w, debates)
}

func (h *Handler) handleGetDebate(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, cfg)
}

func (h *Handler) handleUpdateDebate(w http.ResponseWriter, r *http.Request) {
	var patch engine.ConfigPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := s.UpdateConfig(r.Context(), patch); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleDeleteDebate(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.engineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleNextStep(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := s.Next(r.Context()); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleBackStep(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := s.Back(); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := s.Start(r.Context()); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}

	msg, err := s.Send(r.Context(), req.Content)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, map[string]interface{}{
		"message": msg,
		"session": s.Snapshot(),
	})
}

func (h *Handler) handleTakeTurn(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := h.engine.TakeTurn(r.Context(), s); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopicIndex *int `json:"topicIndex"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.TopicIndex == nil {
		h.jsonError(w, "topicIndex is required", http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	res, err := s.JumpToTopic(*req.TopicIndex)
	if err != nil {
		h.engineError(w, err)
		return
	}
	if !res.OK {
		h.jsonError(w, res.Reason, http.StatusBadRequest)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := h.engine.End(r.Context(), s, req.Confirmed); err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, s.Snapshot())
}

func (h *Handler) handleRetryAnalysis(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	if err := h.engine.RetryAnalysis(s); err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonStatus(w, http.StatusAccepted, s.Snapshot())
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}

	rec, status := s.Summary()
	switch status {
	case engine.AnalysisReady:
		h.json(w, rec)
	case engine.AnalysisPending:
		h.jsonStatus(w, http.StatusAccepted, map[string]string{"status": string(status)})
	default:
		h.jsonStatus(w, http.StatusNotFound, map[string]string{
			"error":  "no summary available",
			"status": string(status),
		})
	}
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	id, err := h.engine.Finish(s)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.json(w, map[string]interface{}{
		"id":      id,
		"session": s.Snapshot(),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.engine.Get(r.Context(), id); err != nil {
		h.engineError(w, err)
		return
	}

	exporter, err := export.GetExporter(export.Format(chi.URLParam(r, "format")))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, ok := h.openSession(w, r)
	if !ok {
		return
	}
	summary, _ := s.Summary()
	doc := &export.Document{
		Config:   s.Config(),
		Messages: s.Messages(),
		Summary:  summary,
	}

	var buf bytes.Buffer
	if err := exporter.Export(doc, &buf); err != nil {
		slog.Error("Failed to export debate", "debate_id", id, "error", err)
		h.jsonError(w, "failed to export debate", http.StatusInternalServerError)
		return
	}

	filename := export.GenerateFilename(doc, exporter.FileExtension())
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}
