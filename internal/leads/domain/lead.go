package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of an authenticated caller.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Identity is the authenticated caller on whose behalf an operation runs.
type Identity struct {
	ID    uuid.UUID
	Role  Role
	Email string
}

// IsAdmin reports whether the caller may act on every lead.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or modify a lead owned by ownerID.
func (i Identity) CanAccess(ownerID uuid.UUID) bool {
	return i.IsAdmin() || i.ID == ownerID
}

// ActorLabel is the value written to history rows: the email when known, otherwise the id.
func (i Identity) ActorLabel() string {
	if i.Email != "" {
		return i.Email
	}
	return i.ID.String()
}

// NormalizedLead is a validated candidate. Mapped enumerations still carry their human labels.
type NormalizedLead struct {
	FullName     string
	Email        *string
	Phone        string
	City         City
	PropertyType PropertyType
	BHK          string
	Purpose      Purpose
	BudgetMin    *int64
	BudgetMax    *int64
	Timeline     string
	Source       string
	Status       Status
	Notes        *string
	Tags         []string
}

// StoredFields is the user-editable part of a lead in storage form.
type StoredFields struct {
	FullName     string
	Email        *string
	Phone        string
	City         City
	PropertyType PropertyType
	BHK          *BHK
	Purpose      Purpose
	BudgetMin    *int64
	BudgetMax    *int64
	Timeline     Timeline
	Source       Source
	Status       Status
	Notes        *string
	Tags         []string
}

// Lead is a persisted buyer lead.
type Lead struct {
	ID uuid.UUID
	StoredFields
	OwnerID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeadView is the human-labelled representation used on the wire, in exports and in history snapshots.
type LeadView struct {
	ID           uuid.UUID    `json:"id"`
	FullName     string       `json:"fullName"`
	Email        *string      `json:"email"`
	Phone        string       `json:"phone"`
	City         City         `json:"city"`
	PropertyType PropertyType `json:"propertyType"`
	BHK          string       `json:"bhk,omitempty"`
	Purpose      Purpose      `json:"purpose"`
	BudgetMin    *int64       `json:"budgetMin"`
	BudgetMax    *int64       `json:"budgetMax"`
	Timeline     string       `json:"timeline"`
	Source       string       `json:"source"`
	Status       Status       `json:"status"`
	Notes        *string      `json:"notes"`
	Tags         []string     `json:"tags"`
	OwnerID      uuid.UUID    `json:"ownerId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HistoryEntry is one append-only audit row.
type HistoryEntry struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	ChangedBy string
	ChangedAt time.Time
	Diff      Diff
}

// CSVColumns is the column order of lead exports, also accepted as import headers.
var CSVColumns = []string{
	"fullName", "email", "phone", "city", "propertyType", "bhk", "purpose",
	"budgetMin", "budgetMax", "timeline", "source", "notes", "tags", "status",
}
