// Package transport holds the request and response shapes of the buyer routes.
// Lead field payloads stay loosely typed and are checked by the lead validator.
package transport

import (
	"time"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/management"
)

// UpdateEnvelope is the part of a PUT body that is not a lead field.
type UpdateEnvelope struct {
	UpdatedAt *time.Time   `json:"updatedAt" validate:"required"`
	OwnerID   OptionalUUID `json:"ownerId" validate:"-"`
}

// ListBuyersQuery are the query parameters of GET /buyers.
type ListBuyersQuery struct {
	City         string `form:"city" json:"city"`
	PropertyType string `form:"propertyType" json:"propertyType"`
	Status       string `form:"status" json:"status"`
	Timeline     string `form:"timeline" json:"timeline"`
	Search       string `form:"search" json:"search" validate:"max=200"`
	Q            string `form:"q" json:"q" validate:"max=200"`
	Page         int    `form:"page" json:"page" validate:"omitempty,min=1"`
}

// SearchTerm prefers search over its short alias q.
func (q ListBuyersQuery) SearchTerm() string {
	if q.Search != "" {
		return q.Search
	}
	return q.Q
}

// ExportBuyersQuery are the query parameters of GET /buyers/export.
type ExportBuyersQuery struct {
	ListBuyersQuery
	Sort      string `form:"sort" json:"sort"`
	Direction string `form:"direction" json:"direction" validate:"omitempty,oneof=asc desc"`
}

// HistoryQuery are the query parameters of GET /buyers/:id/history.
type HistoryQuery struct {
	Limit int    `form:"limit" json:"limit"`
	Order string `form:"order" json:"order" validate:"omitempty,oneof=asc desc"`
}

// HistoryResponse lists the audit rows of one lead.
type HistoryResponse struct {
	Items []management.HistoryView `json:"items"`
}

// ImportResponse reports a committed import batch.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// MeResponse describes the authenticated caller.
type MeResponse struct {
	ID    uuid.UUID   `json:"id"`
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
}
