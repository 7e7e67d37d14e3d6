// Package management handles lead CRUD operations.
// Every write and its history row are committed in one transaction.
package management

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/history"
	"buyer_crm_backend/internal/leads/metrics"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/logger"
)

const (
	MsgConflict  = "record changed, please refresh"
	msgNotFound  = "lead not found"
	msgForbidden = "forbidden"

	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 100
)

// UpdateOptions carries the optional preconditions and admin-only changes of an update.
type UpdateOptions struct {
	// ExpectedUpdatedAt rejects the update with a Conflict when the stored value differs.
	ExpectedUpdatedAt *time.Time
	// OwnerID reassigns the lead. Only an ADMIN may set it.
	OwnerID *uuid.UUID
}

// HistoryQuery selects history rows. Zero Limit means DefaultHistoryLimit; Order is "asc" or "desc".
type HistoryQuery struct {
	Limit int
	Order string
}

// HistoryView is a history row with the field-level delta already computed.
type HistoryView struct {
	ID        uuid.UUID            `json:"id"`
	BuyerID   uuid.UUID            `json:"buyerId"`
	ChangedBy string               `json:"changedBy"`
	ChangedAt time.Time            `json:"changedAt"`
	Kind      string               `json:"kind"`
	Diff      domain.Diff          `json:"diff"`
	Changes   []domain.FieldChange `json:"changes"`
}

// Service handles lead management operations.
type Service struct {
	store    repository.Store
	recorder *history.Recorder
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// New creates a lead management service. m may be nil.
func New(store repository.Store, recorder *history.Recorder, m *metrics.Metrics, log *logger.Logger) *Service {
	if recorder == nil {
		recorder = history.NewRecorder()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Service{store: store, recorder: recorder, metrics: m, log: log}
}

// Create persists a validated lead owned by owner and records its creation.
func (s *Service) Create(ctx context.Context, lead domain.NormalizedLead, owner domain.Identity) (domain.Lead, error) {
	var created domain.Lead
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		created, err = s.CreateWithin(ctx, tx, lead, owner)
		return err
	})
	if err != nil {
		return domain.Lead{}, s.translate(ctx, "leads.create", err)
	}
	s.metrics.IncrementCreated()
	return created, nil
}

// CreateWithin is the create path run inside an existing transaction.
// Bulk imports call it once per row so the whole batch shares one transaction.
func (s *Service) CreateWithin(ctx context.Context, tx repository.Tx, lead domain.NormalizedLead, owner domain.Identity) (domain.Lead, error) {
	fields, err := domain.NewStoredFields(lead)
	if err != nil {
		return domain.Lead{}, err
	}

	created, err := tx.Create(ctx, repository.CreateParams{Fields: fields, OwnerID: owner.ID})
	if err != nil {
		return domain.Lead{}, err
	}
	if err := s.recorder.Created(ctx, tx, created, owner); err != nil {
		return domain.Lead{}, err
	}
	return created, nil
}

// Update fully replaces the editable fields of lead id.
func (s *Service) Update(ctx context.Context, id uuid.UUID, lead domain.NormalizedLead, actor domain.Identity, opts UpdateOptions) (domain.Lead, error) {
	fields, err := domain.NewStoredFields(lead)
	if err != nil {
		return domain.Lead{}, s.translate(ctx, "leads.update", err)
	}

	var updated domain.Lead
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(current.OwnerID) {
			return apperr.Forbidden(msgForbidden)
		}

		ownerID := current.OwnerID
		if opts.OwnerID != nil && *opts.OwnerID != current.OwnerID {
			if !actor.IsAdmin() {
				return apperr.Forbidden("only an admin can reassign a lead")
			}
			ownerID = *opts.OwnerID
		}

		if opts.ExpectedUpdatedAt != nil && !sameInstant(current.UpdatedAt, *opts.ExpectedUpdatedAt) {
			return repository.ErrConflict
		}

		expected := current.UpdatedAt
		updated, err = tx.Update(ctx, repository.UpdateParams{
			ID:                id,
			Fields:            fields,
			OwnerID:           ownerID,
			ExpectedUpdatedAt: &expected,
		})
		if err != nil {
			return err
		}
		return s.recorder.Updated(ctx, tx, current, updated, actor)
	})
	if err != nil {
		return domain.Lead{}, s.translate(ctx, "leads.update", err)
	}
	s.metrics.IncrementUpdated()
	return updated, nil
}

// Delete removes lead id. Its history rows are kept and a deletion row is appended.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor domain.Identity) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(current.OwnerID) {
			return apperr.Forbidden(msgForbidden)
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}
		return s.recorder.Deleted(ctx, tx, current, actor)
	})
	if err != nil {
		return s.translate(ctx, "leads.delete", err)
	}
	s.metrics.IncrementDeleted()
	return nil
}

// Get returns lead id if actor may see it.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor domain.Identity) (domain.Lead, error) {
	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, s.translate(ctx, "leads.get", err)
	}
	if !actor.CanAccess(lead.OwnerID) {
		return domain.Lead{}, apperr.Forbidden(msgForbidden)
	}
	return lead, nil
}

// History lists the audit rows of lead id, newest first unless q.Order is "asc".
// Rows of a deleted lead stay readable by its last owner and by admins.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor domain.Identity, q HistoryQuery) ([]HistoryView, error) {
	limit := q.Limit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 0 {
		return nil, apperr.Validation("limit must be greater than 0")
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	ascending := false
	switch q.Order {
	case "", "desc":
	case "asc":
		ascending = true
	default:
		return nil, apperr.Validation("order must be asc or desc")
	}

	lead, err := s.store.GetByID(ctx, id)
	leadExists := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, s.translate(ctx, "leads.history", err)
	}
	if leadExists && !actor.CanAccess(lead.OwnerID) {
		return nil, apperr.Forbidden(msgForbidden)
	}

	if !leadExists {
		newest, err := s.store.ListHistory(ctx, id, repository.HistoryQuery{Limit: 1})
		if err != nil {
			return nil, s.translate(ctx, "leads.history", err)
		}
		if len(newest) == 0 {
			return nil, apperr.NotFound(msgNotFound)
		}
		if owner, ok := lastKnownOwner(newest[0]); ok && !actor.CanAccess(owner) {
			return nil, apperr.Forbidden(msgForbidden)
		}
	}

	entries, err := s.store.ListHistory(ctx, id, repository.HistoryQuery{Limit: limit, Ascending: ascending})
	if err != nil {
		return nil, s.translate(ctx, "leads.history", err)
	}

	views := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, HistoryView{
			ID:        e.ID,
			BuyerID:   e.BuyerID,
			ChangedBy: e.ChangedBy,
			ChangedAt: e.ChangedAt,
			Kind:      e.Diff.Kind(),
			Diff:      e.Diff,
			Changes:   domain.ChangedFields(e.Diff),
		})
	}
	return views, nil
}

// lastKnownOwner reads the owner from the snapshot of the newest history entry.
func lastKnownOwner(newest domain.HistoryEntry) (uuid.UUID, bool) {
	for _, key := range []string{domain.DiffAfter, domain.DiffCreated, domain.DiffBefore} {
		if snap := newest.Diff[key]; snap != nil {
			return snap.OwnerID, true
		}
	}
	return uuid.Nil, false
}

func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

// translate maps repository and mapping failures onto apperr kinds.
// Anything unrecognised is logged and reported as a storage error.
func (s *Service) translate(ctx context.Context, op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgNotFound)
	}
	if errors.Is(err, repository.ErrConflict) {
		return apperr.Conflict(MsgConflict)
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	var enumErr *domain.InvalidEnumValueError
	if errors.As(err, &enumErr) {
		return enumErr.AppError()
	}

	s.log.WithContext(ctx).DatabaseError(op, err)
	return apperr.Storage(op, err)
}
