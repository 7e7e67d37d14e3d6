package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"buyer_crm_backend/internal/leads/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
	db   querier
}

// New creates a Repository backed by pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

const leadColumns = `id, full_name, email, phone, city, property_type, bhk, purpose,
	budget_min, budget_max, timeline, source, status, notes, tags, owner_id, created_at, updated_at`

// WithTx runs fn inside one database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead                        domain.Lead
		city, propertyType, purpose string
		timeline, source, status    string
		bhk                         *string
	)
	err := row.Scan(
		&lead.ID, &lead.FullName, &lead.Email, &lead.Phone, &city, &propertyType, &bhk, &purpose,
		&lead.BudgetMin, &lead.BudgetMax, &timeline, &source, &status, &lead.Notes, &lead.Tags,
		&lead.OwnerID, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.City = domain.City(city)
	lead.PropertyType = domain.PropertyType(propertyType)
	lead.Purpose = domain.Purpose(purpose)
	lead.Timeline = domain.Timeline(timeline)
	lead.Source = domain.Source(source)
	lead.Status = domain.Status(status)
	if bhk != nil {
		b := domain.BHK(*bhk)
		lead.BHK = &b
	}
	if lead.Tags == nil {
		lead.Tags = []string{}
	}
	return lead, nil
}

func fieldArgs(f domain.StoredFields) []any {
	var bhk *string
	if f.BHK != nil {
		s := string(*f.BHK)
		bhk = &s
	}
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		f.FullName, f.Email, f.Phone, string(f.City), string(f.PropertyType), bhk, string(f.Purpose),
		f.BudgetMin, f.BudgetMax, string(f.Timeline), string(f.Source), string(f.Status), f.Notes, tags,
	}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM buyers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Lead, error) {
	args := append(fieldArgs(params.Fields), params.OwnerID)
	return scanLead(r.db.QueryRow(ctx, `
		INSERT INTO buyers (full_name, email, phone, city, property_type, bhk, purpose,
			budget_min, budget_max, timeline, source, status, notes, tags, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+leadColumns, args...))
}

func (r *Repository) Update(ctx context.Context, params UpdateParams) (domain.Lead, error) {
	args := append(fieldArgs(params.Fields), params.OwnerID, params.ID, params.ExpectedUpdatedAt)
	lead, err := scanLead(r.db.QueryRow(ctx, `
		UPDATE buyers SET
			full_name = $1, email = $2, phone = $3, city = $4, property_type = $5, bhk = $6,
			purpose = $7, budget_min = $8, budget_max = $9, timeline = $10, source = $11,
			status = $12, notes = $13, tags = $14, owner_id = $15, updated_at = clock_timestamp()
		WHERE id = $16 AND ($17::timestamptz IS NULL OR updated_at = $17)
		RETURNING `+leadColumns, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, r.missOrConflict(ctx, params.ID)
	}
	return lead, err
}

// missOrConflict explains why a guarded update matched no row.
func (r *Repository) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buyers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrConflict
	}
	return ErrNotFound
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM buyers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, error) {
	whereClause, args, argIdx := buildLeadListWhere(params.Filter)

	query := fmt.Sprintf(`SELECT %s FROM buyers WHERE %s ORDER BY %s`,
		leadColumns, whereClause, orderClause(params.SortBy, params.SortOrder))
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, params.Limit, params.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

func (r *Repository) Count(ctx context.Context, filter Filter) (int, error) {
	whereClause, args, _ := buildLeadListWhere(filter)
	var total int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM buyers WHERE "+whereClause, args...).Scan(&total)
	return total, err
}

func buildLeadListWhere(filter Filter) (string, []any, int) {
	whereClauses := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	addEquals := func(column string, value any) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if filter.OwnerID != nil {
		addEquals("owner_id", *filter.OwnerID)
	}
	if filter.City != nil {
		addEquals("city", string(*filter.City))
	}
	if filter.PropertyType != nil {
		addEquals("property_type", string(*filter.PropertyType))
	}
	if filter.Status != nil {
		addEquals("status", string(*filter.Status))
	}
	if filter.Timeline != nil {
		addEquals("timeline", string(*filter.Timeline))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(full_name ILIKE $%d OR phone ILIKE $%d OR email ILIKE $%d)", argIdx, argIdx, argIdx,
		))
		args = append(args, "%"+escapeLike(search)+"%")
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func orderClause(sortBy, sortOrder string) string {
	column, ok := sortColumns[sortBy]
	if !ok {
		column = sortColumns[SortUpdatedAt]
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s, id %s", column, direction, direction)
}

func (r *Repository) AppendHistory(ctx context.Context, params HistoryParams) (domain.HistoryEntry, error) {
	payload, err := json.Marshal(params.Diff)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("encode diff: %w", err)
	}

	entry := domain.HistoryEntry{BuyerID: params.BuyerID, ChangedBy: params.ChangedBy, Diff: params.Diff}
	err = r.db.QueryRow(ctx, `
		INSERT INTO buyer_history (buyer_id, changed_by, diff)
		VALUES ($1, $2, $3)
		RETURNING id, changed_at
	`, params.BuyerID, params.ChangedBy, payload).Scan(&entry.ID, &entry.ChangedAt)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

func (r *Repository) ListHistory(ctx context.Context, buyerID uuid.UUID, query HistoryQuery) ([]domain.HistoryEntry, error) {
	direction := "DESC"
	if query.Ascending {
		direction = "ASC"
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, buyer_id, changed_by, changed_at, diff
		FROM buyer_history
		WHERE buyer_id = $1
		ORDER BY changed_at %s
		LIMIT $2
	`, direction), buyerID, query.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry   domain.HistoryEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.BuyerID, &entry.ChangedBy, &entry.ChangedAt, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &entry.Diff); err != nil {
			return nil, fmt.Errorf("decode diff %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

var _ Store = (*Repository)(nil)
