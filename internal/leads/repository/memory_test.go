package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyer_crm_backend/internal/leads/domain"
)

func fields(name string, city domain.City) domain.StoredFields {
	return domain.StoredFields{
		FullName:     name,
		Phone:        "9876543210",
		City:         city,
		PropertyType: domain.PropertyTypePlot,
		Purpose:      domain.PurposeBuy,
		Timeline:     domain.TimelineExploring,
		Source:       domain.SourceCall,
		Status:       domain.StatusNew,
		Tags:         []string{},
	}
}

func TestMemoryStoreRollsBackFailedTx(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	owner := uuid.New()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.Create(ctx, CreateParams{Fields: fields("Aman", domain.CityMohali), OwnerID: owner}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	total, err := store.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMemoryStoreFailCreateAfter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("disk full")
	store.FailCreateAfter(1, boom)

	_, err := store.Create(ctx, CreateParams{Fields: fields("First", domain.CityOther)})
	require.NoError(t, err)
	_, err = store.Create(ctx, CreateParams{Fields: fields("Second", domain.CityOther)})
	require.ErrorIs(t, err, boom)
}

func TestMemoryStoreUpdateGuard(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	lead, err := store.Create(ctx, CreateParams{Fields: fields("Aman", domain.CityMohali), OwnerID: uuid.New()})
	require.NoError(t, err)

	stale := lead.UpdatedAt.Add(-time.Second)
	_, err = store.Update(ctx, UpdateParams{ID: lead.ID, Fields: lead.StoredFields, OwnerID: lead.OwnerID, ExpectedUpdatedAt: &stale})
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := store.Update(ctx, UpdateParams{ID: lead.ID, Fields: lead.StoredFields, OwnerID: lead.OwnerID, ExpectedUpdatedAt: &lead.UpdatedAt})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(lead.UpdatedAt))

	_, err = store.Update(ctx, UpdateParams{ID: uuid.New(), Fields: lead.StoredFields})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListFiltersSortsAndPages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	alice, bob := uuid.New(), uuid.New()

	for _, name := range []string{"Charu", "Anil", "Bhavna"} {
		_, err := store.Create(ctx, CreateParams{Fields: fields(name, domain.CityMohali), OwnerID: alice})
		require.NoError(t, err)
	}
	email := "dev@example.com"
	f := fields("Dev", domain.CityZirakpur)
	f.Email = &email
	_, err := store.Create(ctx, CreateParams{Fields: f, OwnerID: bob})
	require.NoError(t, err)

	mine, err := store.List(ctx, ListParams{Filter: Filter{OwnerID: &alice}, SortBy: SortFullName, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []string{"Anil", "Bhavna", "Charu"}, []string{mine[0].FullName, mine[1].FullName, mine[2].FullName})

	newest, err := store.List(ctx, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "Dev", newest[0].FullName)

	page2, err := store.List(ctx, ListParams{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 2)

	found, err := store.List(ctx, ListParams{Filter: Filter{Search: "EXAMPLE.com"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bob, found[0].OwnerID)
}

func TestMemoryStoreHistoryOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	frozen := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return frozen })

	buyer := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := store.AppendHistory(ctx, HistoryParams{BuyerID: buyer, ChangedBy: "a@example.com", Diff: domain.CreatedDiff(nil)})
		require.NoError(t, err)
	}
	_, err := store.AppendHistory(ctx, HistoryParams{BuyerID: uuid.New(), ChangedBy: "other"})
	require.NoError(t, err)

	asc, err := store.ListHistory(ctx, buyer, HistoryQuery{Limit: 10, Ascending: true})
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.True(t, asc[0].ChangedAt.Before(asc[1].ChangedAt))
	assert.True(t, asc[1].ChangedAt.Before(asc[2].ChangedAt))

	desc, err := store.ListHistory(ctx, buyer, HistoryQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, desc, 2)
	assert.Equal(t, asc[2].ID, desc[0].ID)
}
