package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/kv"
)

// LearningStore keeps learning bundles and the files uploaded to them.
type LearningStore struct {
	kv  kv.Store
	now func() time.Time
}

// NewLearningStore creates a store over s.
func NewLearningStore(s kv.Store) *LearningStore {
	return &LearningStore{kv: s, now: time.Now}
}

// Create stores a new learning bundle and returns it.
func (l *LearningStore) Create(ctx context.Context, title, content, description string) (*core.Learning, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	now := l.now()
	learning := &core.Learning{
		ID:          core.GenerateID(),
		Title:       title,
		Content:     content,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.Save(ctx, learning); err != nil {
		return nil, err
	}
	return learning, nil
}

// Save writes learning and indexes its id.
func (l *LearningStore) Save(ctx context.Context, learning *core.Learning) error {
	if learning.ID == "" {
		return fmt.Errorf("missing id")
	}
	learning.UpdatedAt = l.now()

	if !kv.SetJSON(ctx, l.kv, learningKey(learning.ID), learning) {
		return fmt.Errorf("failed to save learning %s", learning.ID)
	}

	ids := kv.GetJSON[[]string](ctx, l.kv, learningIDsKey, nil)
	if !containsString(ids, learning.ID) {
		ids = append(ids, learning.ID)
		if !kv.SetJSON(ctx, l.kv, learningIDsKey, ids) {
			return fmt.Errorf("failed to update learning index")
		}
	}
	return nil
}

// Get returns the learning for id.
func (l *LearningStore) Get(ctx context.Context, id string) (*core.Learning, error) {
	learning := kv.GetJSON[*core.Learning](ctx, l.kv, learningKey(id), nil)
	if learning == nil {
		return nil, fmt.Errorf("learning %s: %w", id, ErrNotFound)
	}
	return learning, nil
}

// List returns every learning, most recently updated first.
func (l *LearningStore) List(ctx context.Context) []*core.Learning {
	var out []*core.Learning
	for _, id := range kv.GetJSON[[]string](ctx, l.kv, learningIDsKey, nil) {
		if learning := kv.GetJSON[*core.Learning](ctx, l.kv, learningKey(id), nil); learning != nil {
			out = append(out, learning)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// AddFile stores a file payload and links it to its learning.
func (l *LearningStore) AddFile(ctx context.Context, learningID, name, mimeType string, data []byte) (*core.StoredFile, error) {
	learning, err := l.Get(ctx, learningID)
	if err != nil {
		return nil, err
	}

	file := &core.StoredFile{
		ID:         core.GenerateID(),
		LearningID: learningID,
		Name:       name,
		MimeType:   mimeType,
		Size:       len(data),
		Data:       data,
		CreatedAt:  l.now(),
	}
	if !kv.SetJSON(ctx, l.kv, fileKey(file.ID), file) {
		return nil, fmt.Errorf("failed to store file %s", name)
	}

	fileIDs := kv.GetJSON[[]string](ctx, l.kv, learningFilesKey(learningID), nil)
	fileIDs = append(fileIDs, file.ID)
	if !kv.SetJSON(ctx, l.kv, learningFilesKey(learningID), fileIDs) {
		return nil, fmt.Errorf("failed to index file %s", name)
	}

	learning.FileIDs = append(learning.FileIDs, file.ID)
	if err := l.Save(ctx, learning); err != nil {
		return nil, err
	}
	return file, nil
}

// GetFile returns a stored file by id.
func (l *LearningStore) GetFile(ctx context.Context, id string) (*core.StoredFile, error) {
	file := kv.GetJSON[*core.StoredFile](ctx, l.kv, fileKey(id), nil)
	if file == nil {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return file, nil
}

// Files returns every file attached to a learning, in upload order.
func (l *LearningStore) Files(ctx context.Context, learningID string) []*core.StoredFile {
	var out []*core.StoredFile
	for _, id := range kv.GetJSON[[]string](ctx, l.kv, learningFilesKey(learningID), nil) {
		if file := kv.GetJSON[*core.StoredFile](ctx, l.kv, fileKey(id), nil); file != nil {
			out = append(out, file)
		}
	}
	return out
}

// Delete removes a learning and its files. Debates that reference it
// are left alone.
func (l *LearningStore) Delete(ctx context.Context, id string) error {
	for _, fileID := range kv.GetJSON[[]string](ctx, l.kv, learningFilesKey(id), nil) {
		if err := l.kv.Delete(ctx, fileKey(fileID)); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	if err := l.kv.Delete(ctx, learningFilesKey(id)); err != nil {
		return fmt.Errorf("failed to delete file index: %w", err)
	}
	if err := l.kv.Delete(ctx, learningKey(id)); err != nil {
		return fmt.Errorf("failed to delete learning: %w", err)
	}

	ids := removeString(kv.GetJSON[[]string](ctx, l.kv, learningIDsKey, nil), id)
	if !kv.SetJSON(ctx, l.kv, learningIDsKey, ids) {
		return fmt.Errorf("failed to update learning index")
	}
	return nil
}

// ContextText concatenates the learning content and any text files into
// the context handed to the opponent.
func (l *LearningStore) ContextText(ctx context.Context, learningID string) string {
	if learningID == "" {
		return ""
	}
	learning, err := l.Get(ctx, learningID)
	if err != nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(learning.Content)
	for _, f := range l.Files(ctx, learningID) {
		if !f.IsText() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n\n%s", f.Name, string(f.Data))
	}
	return b.String()
}
