package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"buyer_crm_backend/internal/leads/domain"
)

func TestBuildLeadListWhereUsesPositionalParameters(t *testing.T) {
	owner := uuid.New()
	city := domain.CityMohali
	timeline := domain.TimelineExploring

	where, args, next := buildLeadListWhere(Filter{
		OwnerID:  &owner,
		City:     &city,
		Timeline: &timeline,
		Search:   " 98_76 ",
	})

	for _, fragment := range []string{
		"owner_id = $1",
		"city = $2",
		"timeline = $3",
		"(full_name ILIKE $4 OR phone ILIKE $4 OR email ILIKE $4)",
	} {
		if !strings.Contains(where, fragment) {
			t.Errorf("expected where clause to contain %q, got %q", fragment, where)
		}
	}
	if strings.Contains(where, "98") {
		t.Fatalf("search text leaked into SQL: %q", where)
	}
	if next != 5 {
		t.Errorf("next arg index = %d, want 5", next)
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if args[1] != "Mohali" || args[2] != "Exploring" {
		t.Errorf("unexpected enum args: %v", args)
	}
	if args[3] != `%98\_76%` {
		t.Errorf("search pattern = %q, want escaped substring", args[3])
	}
}

func TestBuildLeadListWhereWithoutFilters(t *testing.T) {
	where, args, next := buildLeadListWhere(Filter{})
	if where != "TRUE" || len(args) != 0 || next != 1 {
		t.Errorf("got (%q, %v, %d)", where, args, next)
	}
}

func TestOrderClauseWhitelistsColumns(t *testing.T) {
	tests := []struct {
		sortBy, order, want string
	}{
		{"", "", "updated_at DESC, id DESC"},
		{SortFullName, "asc", "full_name ASC, id ASC"},
		{SortBudgetMax, "DESC", "budget_max DESC, id DESC"},
		{"full_name; DROP TABLE buyers", "asc", "updated_at ASC, id ASC"},
	}
	for _, tt := range tests {
		if got := orderClause(tt.sortBy, tt.order); got != tt.want {
			t.Errorf("orderClause(%q, %q) = %q, want %q", tt.sortBy, tt.order, got, tt.want)
		}
	}
}

func TestIsSortKey(t *testing.T) {
	for _, key := range []string{SortUpdatedAt, SortCreatedAt, SortFullName, SortCity, SortStatus, SortBudgetMin, SortBudgetMax} {
		if !IsSortKey(key) {
			t.Errorf("expected %q to be accepted", key)
		}
	}
	if IsSortKey("phone") {
		t.Error("phone must not be a sort key")
	}
}
