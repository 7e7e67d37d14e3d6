package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLead() Lead {
	bhk := BHKTwo
	return Lead{
		ID: uuid.New(),
		StoredFields: StoredFields{
			FullName:     "Riya Sharma",
			Phone:        "9876543210",
			City:         CityChandigarh,
			PropertyType: PropertyTypeApartment,
			BHK:          &bhk,
			Purpose:      PurposeBuy,
			Timeline:     TimelineZeroToThreeMonths,
			Source:       SourceWalkIn,
			Status:       StatusNew,
			Tags:         []string{"hot"},
		},
		OwnerID:   uuid.New(),
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSnapshotUsesHumanLabels(t *testing.T) {
	snap := Snapshot(sampleLead())
	assert.Equal(t, "2", snap.BHK)
	assert.Equal(t, "0-3m", snap.Timeline)
	assert.Equal(t, "Walk-in", snap.Source)
}

func TestDeletedDiffSerializesNullAfter(t *testing.T) {
	raw, err := json.Marshal(DeletedDiff(Snapshot(sampleLead())))
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "null", string(decoded["after"]))
	assert.Contains(t, string(decoded["before"]), `"fullName":"Riya Sharma"`)

	var back Diff
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "deleted", back.Kind())
}

func TestChangedFieldsSuppressesEqualPairs(t *testing.T) {
	before := sampleLead()
	after := before
	after.Status = StatusContacted
	after.Tags = []string{"hot", "follow-up"}
	after.UpdatedAt = before.UpdatedAt.Add(time.Minute)

	changes := ChangedFields(UpdatedDiff(Snapshot(before), Snapshot(after)))

	fields := make([]string, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{"status", "tags", "updatedAt"}, fields)
	assert.Equal(t, "New", changes[0].Before)
	assert.Equal(t, "Contacted", changes[0].After)
}

func TestChangedFieldsOnCreation(t *testing.T) {
	changes := ChangedFields(CreatedDiff(Snapshot(sampleLead())))
	require.NotEmpty(t, changes)
	for _, c := range changes {
		assert.Nil(t, c.Before, c.Field)
	}
	assert.Equal(t, "created", CreatedDiff(nil).Kind())
}

func TestIdentityActorLabel(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "agent@example.com", Identity{ID: id, Email: "agent@example.com"}.ActorLabel())
	assert.Equal(t, id.String(), Identity{ID: id}.ActorLabel())
	assert.True(t, Identity{ID: id, Role: RoleUser}.CanAccess(id))
	assert.False(t, Identity{ID: uuid.New(), Role: RoleUser}.CanAccess(id))
	assert.True(t, Identity{ID: uuid.New(), Role: RoleAdmin}.CanAccess(id))
}
