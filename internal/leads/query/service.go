// Package query lists and exports leads with ownership scoping applied.
package query

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/internal/leads/validation"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/logger"
)

// PageSize is the fixed number of leads per listing page.
const PageSize = 10

// Criteria are the caller supplied filters. Enumerations use their human labels.
type Criteria struct {
	City         string
	PropertyType string
	Status       string
	Timeline     string
	Search       string
	Page         int
	// SortBy and SortOrder apply to exports only; listings are always newest first.
	SortBy    string
	SortOrder string
}

// Page is one page of a listing.
type Page struct {
	Items      []domain.LeadView `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// Service answers lead listings and exports.
type Service struct {
	reader repository.LeadReader
	log    *logger.Logger
}

// New creates a query service.
func New(reader repository.LeadReader, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{reader: reader, log: log}
}

// List returns one page of the leads visible to who, most recently updated first.
func (s *Service) List(ctx context.Context, c Criteria, who domain.Identity) (Page, error) {
	filter, err := buildFilter(c, who)
	if err != nil {
		return Page{}, err
	}

	page := c.Page
	if page < 1 {
		page = 1
	}

	var (
		total int
		leads []domain.Lead
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.reader.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		leads, err = s.reader.List(gctx, repository.ListParams{
			Filter:    filter,
			SortBy:    repository.SortUpdatedAt,
			SortOrder: "desc",
			Limit:     PageSize,
			Offset:    (page - 1) * PageSize,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		s.log.WithContext(ctx).DatabaseError("leads.list", err)
		return Page{}, apperr.Storage("leads.list", err)
	}

	items := make([]domain.LeadView, len(leads))
	for i, lead := range leads {
		items[i] = domain.ToView(lead)
	}

	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   PageSize,
		TotalPages: (total + PageSize - 1) / PageSize,
	}, nil
}

// Export writes every lead visible to who as CSV in domain.CSVColumns order and
// returns the number of data rows written.
func (s *Service) Export(ctx context.Context, c Criteria, who domain.Identity, w io.Writer) (int, error) {
	filter, err := buildFilter(c, who)
	if err != nil {
		return 0, err
	}

	sortBy := c.SortBy
	if sortBy == "" {
		sortBy = repository.SortUpdatedAt
	}
	order := strings.ToLower(c.SortOrder)
	if order == "" {
		order = "desc"
	}
	var problems []validation.FieldError
	if !repository.IsSortKey(sortBy) {
		problems = append(problems, validation.FieldError{Path: "sort", Message: "sort must be one of: updatedAt, createdAt, fullName, city, status, budgetMin, budgetMax"})
	}
	if order != "asc" && order != "desc" {
		problems = append(problems, validation.FieldError{Path: "direction", Message: "direction must be asc or desc"})
	}
	if len(problems) > 0 {
		return 0, (&validation.Errors{Fields: problems}).AppError()
	}

	leads, err := s.reader.List(ctx, repository.ListParams{Filter: filter, SortBy: sortBy, SortOrder: order})
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("leads.export", err)
		return 0, apperr.Storage("leads.export", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CSVColumns); err != nil {
		return 0, err
	}
	for _, lead := range leads {
		if err := cw.Write(csvRecord(domain.ToView(lead))); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(leads), nil
}

func csvRecord(v domain.LeadView) []string {
	return []string{
		v.FullName,
		deref(v.Email),
		v.Phone,
		string(v.City),
		string(v.PropertyType),
		v.BHK,
		string(v.Purpose),
		formatBudget(v.BudgetMin),
		formatBudget(v.BudgetMax),
		v.Timeline,
		v.Source,
		deref(v.Notes),
		strings.Join(v.Tags, ", "),
		string(v.Status),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatBudget(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

// buildFilter validates the criteria and scopes USER callers to their own leads.
func buildFilter(c Criteria, who domain.Identity) (repository.Filter, error) {
	filter := repository.Filter{Search: strings.TrimSpace(c.Search)}
	if !who.IsAdmin() {
		owner := who.ID
		filter.OwnerID = &owner
	}

	var problems []validation.FieldError
	if v := strings.TrimSpace(c.City); v != "" {
		if !domain.IsCity(v) {
			problems = append(problems, validation.FieldError{Path: validation.PathCity, Message: "unknown city " + strconv.Quote(v)})
		} else {
			city := domain.City(v)
			filter.City = &city
		}
	}
	if v := strings.TrimSpace(c.PropertyType); v != "" {
		if !domain.IsPropertyType(v) {
			problems = append(problems, validation.FieldError{Path: validation.PathPropertyType, Message: "unknown property type " + strconv.Quote(v)})
		} else {
			pt := domain.PropertyType(v)
			filter.PropertyType = &pt
		}
	}
	if v := strings.TrimSpace(c.Status); v != "" {
		if !domain.IsStatus(v) {
			problems = append(problems, validation.FieldError{Path: validation.PathStatus, Message: "unknown status " + strconv.Quote(v)})
		} else {
			status := domain.Status(v)
			filter.Status = &status
		}
	}
	if v := strings.TrimSpace(c.Timeline); v != "" {
		timeline, err := domain.MapTimeline(v)
		if err != nil {
			problems = append(problems, validation.FieldError{Path: validation.PathTimeline, Message: "unknown timeline " + strconv.Quote(v)})
		} else {
			filter.Timeline = &timeline
		}
	}

	if len(problems) > 0 {
		return repository.Filter{}, (&validation.Errors{Fields: problems}).AppError()
	}
	return filter, nil
}
