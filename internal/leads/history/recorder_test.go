package history

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/repository"
)

func lead(owner uuid.UUID) domain.Lead {
	bhk := domain.BHKOne
	return domain.Lead{
		ID: uuid.New(),
		StoredFields: domain.StoredFields{
			FullName:     "Kabir Anand",
			Phone:        "9876543210",
			City:         domain.CityPanchkula,
			PropertyType: domain.PropertyTypeApartment,
			BHK:          &bhk,
			Purpose:      domain.PurposeRent,
			Timeline:     domain.TimelineThreeToSixMonths,
			Source:       domain.SourceCall,
			Status:       domain.StatusNew,
			Tags:         []string{},
		},
		OwnerID: owner,
	}
}

func TestRecorderWritesHumanLabelledSnapshots(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	r := NewRecorder()
	actor := domain.Identity{ID: uuid.New(), Role: domain.RoleUser, Email: "agent@example.com"}

	before := lead(actor.ID)
	after := before
	after.Status = domain.StatusVisited

	require.NoError(t, r.Created(ctx, store, before, actor))
	require.NoError(t, r.Updated(ctx, store, before, after, actor))
	require.NoError(t, r.Deleted(ctx, store, after, actor))

	entries, err := store.ListHistory(ctx, before.ID, repository.HistoryQuery{Limit: 10, Ascending: true})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, []string{"created", "updated", "deleted"}, []string{
		entries[0].Diff.Kind(), entries[1].Diff.Kind(), entries[2].Diff.Kind(),
	})
	assert.Equal(t, "1", entries[0].Diff[domain.DiffCreated].BHK)
	assert.Equal(t, "3-6m", entries[0].Diff[domain.DiffCreated].Timeline)
	assert.Equal(t, domain.StatusVisited, entries[1].Diff[domain.DiffAfter].Status)
	assert.Nil(t, entries[2].Diff[domain.DiffAfter])
	for _, e := range entries {
		assert.Equal(t, "agent@example.com", e.ChangedBy)
	}
}

func TestRecordFallsBackToActorID(t *testing.T) {
	store := repository.NewMemoryStore()
	actor := domain.Identity{ID: uuid.New(), Role: domain.RoleAdmin}
	l := lead(uuid.New())

	entry, err := NewRecorder().Record(context.Background(), store, l.ID, actor.ActorLabel(), domain.CreatedDiff(domain.Snapshot(l)))
	require.NoError(t, err)
	assert.Equal(t, actor.ID.String(), entry.ChangedBy)
	assert.False(t, entry.ChangedAt.IsZero())
}
