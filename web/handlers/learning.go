package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alienxp03/rhetor/internal/core"
)

// maxUploadSize bounds multipart uploads for learning files and audio.
const maxUploadSize = 25 << 20

// fileInfo is a stored file without its payload.
type fileInfo struct {
	ID         string `json:"id"`
	LearningID string `json:"learningId"`
	Name       string `json:"name"`
	MimeType   string `json:"mimeType"`
	Size       int    `json:"size"`
}

func toFileInfo(f *core.StoredFile) fileInfo {
	return fileInfo{
		ID:         f.ID,
		LearningID: f.LearningID,
		Name:       f.Name,
		MimeType:   f.MimeType,
		Size:       f.Size,
	}
}

func (h *Handler) handleCreateLearning(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		h.jsonError(w, "title is required", http.StatusBadRequest)
		return
	}

	learning, err := h.learnings.Create(r.Context(), req.Title, req.Content, req.Description)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonStatus(w, http.StatusCreated, learning)
}

func (h *Handler) handleListLearnings(w http.ResponseWriter, r *http.Request) {
	learnings := h.learnings.List(r.Context())
	if learnings == nil {
		learnings = []*core.Learning{}
	}
	h.json(w, learnings)
}

func (h *Handler) handleGetLearning(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	learning, err := h.learnings.Get(r.Context(), id)
	if err != nil {
		h.engineError(w, err)
		return
	}

	files := []fileInfo{}
	for _, f := range h.learnings.Files(r.Context(), id) {
		files = append(files, toFileInfo(f))
	}
	h.json(w, map[string]interface{}{
		"learning": learning,
		"files":    files,
	})
}

func (h *Handler) handleDeleteLearning(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.learnings.Get(r.Context(), id); err != nil {
		h.engineError(w, err)
		return
	}
	if err := h.learnings.Delete(r.Context(), id); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.jsonError(w, "failed to read file", http.StatusBadRequest)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	stored, err := h.learnings.AddFile(r.Context(), id, header.Filename, mimeType, data)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonStatus(w, http.StatusCreated, toFileInfo(stored))
}

func (h *Handler) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.learnings.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.engineError(w, err)
		return
	}

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.Name))
	w.Write(f.Data)
}
