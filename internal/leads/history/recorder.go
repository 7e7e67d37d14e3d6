// Package history appends audit rows describing lead changes.
package history

import (
	"context"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/repository"
)

// Recorder writes append-only history rows. It never updates or removes them.
type Recorder struct{}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends diff for leadID through w, which is normally the transaction
// that performed the change so the write and its audit row commit together.
func (r *Recorder) Record(ctx context.Context, w repository.HistoryWriter, leadID uuid.UUID, actorLabel string, diff domain.Diff) (domain.HistoryEntry, error) {
	return w.AppendHistory(ctx, repository.HistoryParams{
		BuyerID:   leadID,
		ChangedBy: actorLabel,
		Diff:      diff,
	})
}

// Created records a creation snapshot.
func (r *Recorder) Created(ctx context.Context, w repository.HistoryWriter, lead domain.Lead, actor domain.Identity) error {
	_, err := r.Record(ctx, w, lead.ID, actor.ActorLabel(), domain.CreatedDiff(domain.Snapshot(lead)))
	return err
}

// Updated records the full before and after snapshots.
func (r *Recorder) Updated(ctx context.Context, w repository.HistoryWriter, before, after domain.Lead, actor domain.Identity) error {
	_, err := r.Record(ctx, w, after.ID, actor.ActorLabel(), domain.UpdatedDiff(domain.Snapshot(before), domain.Snapshot(after)))
	return err
}

// Deleted records the last snapshot of a removed lead.
func (r *Recorder) Deleted(ctx context.Context, w repository.HistoryWriter, before domain.Lead, actor domain.Identity) error {
	_, err := r.Record(ctx, w, before.ID, actor.ActorLabel(), domain.DeletedDiff(domain.Snapshot(before)))
	return err
}
