package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
)

var (
	// ErrNotFound is returned when no lead has the requested id.
	ErrNotFound = errors.New("lead not found")
	// ErrConflict is returned when an update guard on updated_at did not match.
	ErrConflict = errors.New("lead changed since it was read")
)

// Sort keys accepted by List. Anything else falls back to SortUpdatedAt.
const (
	SortUpdatedAt = "updatedAt"
	SortCreatedAt = "createdAt"
	SortFullName  = "fullName"
	SortCity      = "city"
	SortStatus    = "status"
	SortBudgetMin = "budgetMin"
	SortBudgetMax = "budgetMax"
)

var sortColumns = map[string]string{
	SortUpdatedAt: "updated_at",
	SortCreatedAt: "created_at",
	SortFullName:  "full_name",
	SortCity:      "city",
	SortStatus:    "status",
	SortBudgetMin: "budget_min",
	SortBudgetMax: "budget_max",
}

// IsSortKey reports whether key is an accepted sort key.
func IsSortKey(key string) bool {
	_, ok := sortColumns[key]
	return ok
}

// Filter narrows a lead listing. Nil fields do not filter.
type Filter struct {
	OwnerID      *uuid.UUID
	City         *domain.City
	PropertyType *domain.PropertyType
	Status       *domain.Status
	Timeline     *domain.Timeline
	// Search is a case-insensitive substring over full name, phone and email.
	Search string
}

// ListParams selects one page (or, with Limit 0, all) of a filtered listing.
type ListParams struct {
	Filter
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// CreateParams describes a new lead.
type CreateParams struct {
	Fields  domain.StoredFields
	OwnerID uuid.UUID
}

// UpdateParams fully replaces the editable fields of a lead.
// When ExpectedUpdatedAt is set the write only applies if the stored value still matches.
type UpdateParams struct {
	ID                uuid.UUID
	Fields            domain.StoredFields
	OwnerID           uuid.UUID
	ExpectedUpdatedAt *time.Time
}

// HistoryParams describes one audit row.
type HistoryParams struct {
	BuyerID   uuid.UUID
	ChangedBy string
	Diff      domain.Diff
}

// HistoryQuery bounds a history listing.
type HistoryQuery struct {
	Limit     int
	Ascending bool
}

// LeadReader provides read-only access to leads.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// LeadWriter provides write operations on leads.
type LeadWriter interface {
	Create(ctx context.Context, params CreateParams) (domain.Lead, error)
	Update(ctx context.Context, params UpdateParams) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// HistoryWriter appends audit rows.
type HistoryWriter interface {
	AppendHistory(ctx context.Context, params HistoryParams) (domain.HistoryEntry, error)
}

// HistoryReader reads audit rows of one lead.
type HistoryReader interface {
	ListHistory(ctx context.Context, buyerID uuid.UUID, query HistoryQuery) ([]domain.HistoryEntry, error)
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	LeadReader
	LeadWriter
	HistoryWriter
	HistoryReader
}

// Store is the persistence boundary of the leads module.
// WithTx commits when fn returns nil and rolls back otherwise.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
