package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alienxp03/rhetor/internal/core"
	"github.com/alienxp03/rhetor/internal/kv"
)

// DebateStore persists debate configurations keyed by debate id.
//
// Writes are last-write-wins; there is no version check across writers.
type DebateStore struct {
	kv  kv.Store
	now func() time.Time
}

// NewDebateStore creates a store over s.
func NewDebateStore(s kv.Store) *DebateStore {
	return &DebateStore{kv: s, now: time.Now}
}

// Save writes cfg under its id, stamps a fresh timestamp and records the
// id in the active index. It fails without an id.
func (d *DebateStore) Save(ctx context.Context, cfg *core.DebateConfiguration) core.Result {
	if cfg.ID == "" {
		return core.Failure("missing id")
	}

	ts := d.now().UnixMilli()
	if ts <= cfg.Timestamp {
		ts = cfg.Timestamp
	}
	cfg.Timestamp = ts

	if !kv.SetJSON(ctx, d.kv, configKey(cfg.ID), cfg) {
		return core.Failure("write failed")
	}

	ids := d.ActiveIDs(ctx)
	if !containsString(ids, cfg.ID) {
		ids = append(ids, cfg.ID)
		if !kv.SetJSON(ctx, d.kv, activeIDsKey, ids) {
			slog.Warn("Failed to update active debate index", "debate_id", cfg.ID)
		}
	}
	return core.Success()
}

// Load returns the record for id. An empty id falls back to the most
// recently written active debate. Missing or unreadable records yield
// the empty default.
func (d *DebateStore) Load(ctx context.Context, id string) core.DebateConfiguration {
	if id == "" {
		recent, ok := d.MostRecent(ctx)
		if !ok {
			return core.NewConfiguration("")
		}
		return recent
	}

	cfg, ok := d.get(ctx, id)
	if !ok {
		return core.NewConfiguration("")
	}
	return cfg
}

// Exists reports whether a record is stored for id.
func (d *DebateStore) Exists(ctx context.Context, id string) bool {
	_, ok := d.get(ctx, id)
	return ok
}

func (d *DebateStore) get(ctx context.Context, id string) (core.DebateConfiguration, bool) {
	cfg := kv.GetJSON[*core.DebateConfiguration](ctx, d.kv, configKey(id), nil)
	if cfg == nil || cfg.ID == "" {
		return core.DebateConfiguration{}, false
	}
	return *cfg, true
}

// MostRecent returns the active debate with the newest timestamp. Ties go
// to the id added to the index last.
func (d *DebateStore) MostRecent(ctx context.Context) (core.DebateConfiguration, bool) {
	var best core.DebateConfiguration
	found := false
	for _, id := range d.ActiveIDs(ctx) {
		cfg, ok := d.get(ctx, id)
		if !ok {
			continue
		}
		if !found || cfg.Timestamp >= best.Timestamp {
			best = cfg
			found = true
		}
	}
	return best, found
}

// MarkCompleted assigns an id if needed, flags the record completed,
// saves it and adds a completed reference. It returns the id used.
func (d *DebateStore) MarkCompleted(ctx context.Context, cfg *core.DebateConfiguration) (string, error) {
	if cfg.ID == "" {
		cfg.ID = core.GenerateID()
	}
	cfg.IsCompleted = true

	if err := d.Save(ctx, cfg).Err(); err != nil {
		return cfg.ID, fmt.Errorf("failed to save completed debate: %w", err)
	}

	refs := d.CompletedRefs(ctx)
	ref := core.CompletedRef{ID: cfg.ID, Timestamp: cfg.Timestamp, LearningID: cfg.LearningID}
	replaced := false
	for i := range refs {
		if refs[i].ID == cfg.ID {
			refs[i] = ref
			replaced = true
			break
		}
	}
	if !replaced {
		refs = append(refs, ref)
	}

	if !kv.SetJSON(ctx, d.kv, completedRefsKey, refs) {
		return cfg.ID, fmt.Errorf("failed to update completed debate index")
	}
	return cfg.ID, nil
}

// ListByLearningID returns every stored debate tied to learningID,
// completed or not. Completed entries come first, newest first within
// each group.
func (d *DebateStore) ListByLearningID(ctx context.Context, learningID string) []core.DebateConfiguration {
	seen := make(map[string]bool)
	var completed, active []core.DebateConfiguration

	collect := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		cfg, ok := d.get(ctx, id)
		if !ok || cfg.LearningID != learningID {
			return
		}
		if cfg.IsCompleted {
			completed = append(completed, cfg)
		} else {
			active = append(active, cfg)
		}
	}

	for _, ref := range d.CompletedRefs(ctx) {
		collect(ref.ID)
	}
	for _, id := range d.ActiveIDs(ctx) {
		collect(id)
	}

	sortNewestFirst(completed)
	sortNewestFirst(active)
	return append(completed, active...)
}

// List returns every stored debate, newest first.
func (d *DebateStore) List(ctx context.Context) []core.DebateConfiguration {
	var out []core.DebateConfiguration
	for _, id := range d.ActiveIDs(ctx) {
		if cfg, ok := d.get(ctx, id); ok {
			out = append(out, cfg)
		}
	}
	sortNewestFirst(out)
	return out
}

// Delete removes a debate with its summary, transcript and index entries.
func (d *DebateStore) Delete(ctx context.Context, id string) error {
	if err := d.kv.Delete(ctx, configKey(id)); err != nil {
		return fmt.Errorf("failed to delete debate: %w", err)
	}
	if err := d.kv.Delete(ctx, summaryKey(id)); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	if err := d.kv.Delete(ctx, transcriptKey(id)); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	ids := removeString(d.ActiveIDs(ctx), id)
	if !kv.SetJSON(ctx, d.kv, activeIDsKey, ids) {
		return fmt.Errorf("failed to update active debate index")
	}

	refs := d.CompletedRefs(ctx)
	kept := refs[:0:0]
	for _, r := range refs {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if !kv.SetJSON(ctx, d.kv, completedRefsKey, kept) {
		return fmt.Errorf("failed to update completed debate index")
	}
	return nil
}

// ActiveIDs returns the side index of saved debate ids.
func (d *DebateStore) ActiveIDs(ctx context.Context) []string {
	return kv.GetJSON[[]string](ctx, d.kv, activeIDsKey, nil)
}

// CompletedRefs returns the completed debate references.
func (d *DebateStore) CompletedRefs(ctx context.Context) []core.CompletedRef {
	return kv.GetJSON[[]core.CompletedRef](ctx, d.kv, completedRefsKey, nil)
}

// SaveSummary persists the analysis record for a debate.
func (d *DebateStore) SaveSummary(ctx context.Context, id string, rec *core.DebateSummaryRecord) error {
	if id == "" {
		return fmt.Errorf("missing id")
	}
	if !kv.SetJSON(ctx, d.kv, summaryKey(id), rec) {
		return fmt.Errorf("failed to save summary for %s", id)
	}
	return nil
}

// LoadSummary returns the stored analysis for a debate, if any.
func (d *DebateStore) LoadSummary(ctx context.Context, id string) (*core.DebateSummaryRecord, bool) {
	rec := kv.GetJSON[*core.DebateSummaryRecord](ctx, d.kv, summaryKey(id), nil)
	return rec, rec != nil
}

// SaveTranscript stores the message history of a finished debate.
func (d *DebateStore) SaveTranscript(ctx context.Context, id string, msgs []core.DebateMessage) error {
	if id == "" {
		return fmt.Errorf("missing id")
	}
	if !kv.SetJSON(ctx, d.kv, transcriptKey(id), msgs) {
		return fmt.Errorf("failed to save transcript for %s", id)
	}
	return nil
}

// LoadTranscript returns the stored message history for a debate.
func (d *DebateStore) LoadTranscript(ctx context.Context, id string) []core.DebateMessage {
	return kv.GetJSON[[]core.DebateMessage](ctx, d.kv, transcriptKey(id), nil)
}
