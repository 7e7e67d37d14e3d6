package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
)

// MemoryStore is an in-process Store. Transactions work on a copy of the
// state that replaces the committed state only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	clock *memClock

	failMu      sync.Mutex
	createCalls int
	failAfter   int
	failErr     error
}

type memState struct {
	leads   map[uuid.UUID]domain.Lead
	history []domain.HistoryEntry
}

func (s *memState) clone() *memState {
	out := &memState{
		leads:   make(map[uuid.UUID]domain.Lead, len(s.leads)),
		history: append([]domain.HistoryEntry(nil), s.history...),
	}
	for id, lead := range s.leads {
		out.leads[id] = copyLead(lead)
	}
	return out
}

// memClock hands out strictly increasing timestamps at database precision.
type memClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *memClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{leads: map[uuid.UUID]domain.Lead{}},
		clock: &memClock{now: time.Now},
	}
}

// SetClock replaces the time source. Returned timestamps stay strictly increasing.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.clock.mu.Lock()
	s.clock.now = now
	s.clock.mu.Unlock()
}

// FailCreateAfter makes every Create after the first n successful ones return err.
func (s *MemoryStore) FailCreateAfter(n int, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.createCalls = 0
	s.failAfter = n
	s.failErr = err
}

func (s *MemoryStore) injectedCreateFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.failErr == nil {
		return nil
	}
	s.createCalls++
	if s.createCalls > s.failAfter {
		return s.failErr
	}
	return nil
}

func (s *MemoryStore) view(state *memState) *memTx {
	return &memTx{store: s, state: state}
}

// WithTx runs fn against a private copy and commits it when fn returns nil.
// Transactions are serialized.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(s.view(working)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).GetByID(ctx, id)
}

func (s *MemoryStore) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).List(ctx, params)
}

func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).Count(ctx, filter)
}

func (s *MemoryStore) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).Create(ctx, params)
}

func (s *MemoryStore) Update(ctx context.Context, params UpdateParams) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).Update(ctx, params)
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).Delete(ctx, id)
}

func (s *MemoryStore) AppendHistory(ctx context.Context, params HistoryParams) (domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).AppendHistory(ctx, params)
}

func (s *MemoryStore) ListHistory(ctx context.Context, buyerID uuid.UUID, query HistoryQuery) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(s.state).ListHistory(ctx, buyerID, query)
}

// memTx operates on one state without locking; the owning MemoryStore holds the lock.
type memTx struct {
	store *MemoryStore
	state *memState
}

func (t *memTx) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := t.state.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return copyLead(lead), nil
}

func (t *memTx) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	if err := t.store.injectedCreateFailure(); err != nil {
		return domain.Lead{}, err
	}
	now := t.store.clock.next()
	lead := domain.Lead{
		ID:           uuid.New(),
		StoredFields: copyFields(params.Fields),
		OwnerID:      params.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.state.leads[lead.ID] = lead
	return copyLead(lead), nil
}

func (t *memTx) Update(ctx context.Context, params UpdateParams) (domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	current, ok := t.state.leads[params.ID]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	if params.ExpectedUpdatedAt != nil && !current.UpdatedAt.Equal(*params.ExpectedUpdatedAt) {
		return domain.Lead{}, ErrConflict
	}
	current.StoredFields = copyFields(params.Fields)
	current.OwnerID = params.OwnerID
	current.UpdatedAt = t.store.clock.next()
	t.state.leads[current.ID] = current
	return copyLead(current), nil
}

func (t *memTx) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.state.leads[id]; !ok {
		return ErrNotFound
	}
	delete(t.state.leads, id)
	return nil
}

func (t *memTx) matching(filter Filter) []domain.Lead {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.Lead, 0, len(t.state.leads))
	for _, lead := range t.state.leads {
		if filter.OwnerID != nil && lead.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.City != nil && lead.City != *filter.City {
			continue
		}
		if filter.PropertyType != nil && lead.PropertyType != *filter.PropertyType {
			continue
		}
		if filter.Status != nil && lead.Status != *filter.Status {
			continue
		}
		if filter.Timeline != nil && lead.Timeline != *filter.Timeline {
			continue
		}
		if search != "" && !matchesSearch(lead, search) {
			continue
		}
		out = append(out, copyLead(lead))
	}
	return out
}

func matchesSearch(lead domain.Lead, needle string) bool {
	if strings.Contains(strings.ToLower(lead.FullName), needle) || strings.Contains(strings.ToLower(lead.Phone), needle) {
		return true
	}
	return lead.Email != nil && strings.Contains(strings.ToLower(*lead.Email), needle)
}

func (t *memTx) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	leads := t.matching(params.Filter)

	less := lessFunc(params.SortBy)
	desc := !strings.EqualFold(params.SortOrder, "asc")
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID.String() < b.ID.String()
	})

	if params.Offset > 0 {
		if params.Offset >= len(leads) {
			return []domain.Lead{}, nil
		}
		leads = leads[params.Offset:]
	}
	if params.Limit > 0 && len(leads) > params.Limit {
		leads = leads[:params.Limit]
	}
	return leads, nil
}

func lessFunc(sortBy string) func(a, b domain.Lead) bool {
	switch sortBy {
	case SortCreatedAt:
		return func(a, b domain.Lead) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortFullName:
		return func(a, b domain.Lead) bool { return a.FullName < b.FullName }
	case SortCity:
		return func(a, b domain.Lead) bool { return a.City < b.City }
	case SortStatus:
		return func(a, b domain.Lead) bool { return a.Status < b.Status }
	case SortBudgetMin:
		return func(a, b domain.Lead) bool { return lessBudget(a.BudgetMin, b.BudgetMin) }
	case SortBudgetMax:
		return func(a, b domain.Lead) bool { return lessBudget(a.BudgetMax, b.BudgetMax) }
	default:
		return func(a, b domain.Lead) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
}

// lessBudget orders absent budgets last in ascending order, as PostgreSQL does with NULLs.
func lessBudget(a, b *int64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func (t *memTx) Count(ctx context.Context, filter Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(t.matching(filter)), nil
}

func (t *memTx) AppendHistory(ctx context.Context, params HistoryParams) (domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return domain.HistoryEntry{}, err
	}
	entry := domain.HistoryEntry{
		ID:        uuid.New(),
		BuyerID:   params.BuyerID,
		ChangedBy: params.ChangedBy,
		ChangedAt: t.store.clock.next(),
		Diff:      params.Diff,
	}
	t.state.history = append(t.state.history, entry)
	return entry, nil
}

func (t *memTx) ListHistory(ctx context.Context, buyerID uuid.UUID, query HistoryQuery) ([]domain.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0)
	for _, entry := range t.state.history {
		if entry.BuyerID == buyerID {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if query.Ascending {
			return entries[i].ChangedAt.Before(entries[j].ChangedAt)
		}
		return entries[j].ChangedAt.Before(entries[i].ChangedAt)
	})
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	return entries, nil
}

func copyFields(f domain.StoredFields) domain.StoredFields {
	out := f
	out.Tags = append([]string{}, f.Tags...)
	return out
}

func copyLead(l domain.Lead) domain.Lead {
	l.StoredFields = copyFields(l.StoredFields)
	return l
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)
