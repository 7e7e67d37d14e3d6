// Package importer validates and commits bulk lead imports as a single unit.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/management"
	"buyer_crm_backend/internal/leads/metrics"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/internal/leads/validation"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/logger"
	"buyer_crm_backend/platform/phone"
)

// MaxRows is the largest batch accepted by ImportBatch.
const MaxRows = 200

// firstDataRow is the 1-based row number of the first data row; row 1 is the header.
const firstDataRow = 2

// RawImportRow is one unvalidated import row keyed by field name.
type RawImportRow map[string]any

// RowError lists the violations of one row. Row counts the header as row 1.
type RowError struct {
	Row    int                     `json:"row"`
	Errors []validation.FieldError `json:"errors"`
}

// Result reports a committed batch.
type Result struct {
	Imported int `json:"imported"`
}

// Pipeline imports batches of leads. Either every row is stored or none is.
type Pipeline struct {
	store     repository.Store
	validator *validation.Validator
	leads     *management.Service
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// New creates an import pipeline that stores rows through the management create path.
func New(store repository.Store, v *validation.Validator, leads *management.Service, m *metrics.Metrics, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{store: store, validator: v, leads: leads, metrics: m, log: log}
}

// ImportBatch validates every row and, only if all pass, creates them for owner in one transaction.
func (p *Pipeline) ImportBatch(ctx context.Context, rows []RawImportRow, owner domain.Identity) (Result, error) {
	start := time.Now()
	log := p.log.WithContext(ctx)

	if len(rows) > MaxRows {
		p.metrics.ObserveImport("too_large", len(rows), start)
		return Result{}, apperr.BatchTooLarge(fmt.Sprintf("import is limited to %d rows, got %d", MaxRows, len(rows))).
			WithDetails(map[string]int{"rows": len(rows), "max": MaxRows})
	}

	leads := make([]domain.NormalizedLead, 0, len(rows))
	var rowErrors []RowError
	for i, row := range rows {
		lead, err := p.validator.Validate(prepareRow(row))
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: i + firstDataRow, Errors: fieldErrorsOf(err)})
			continue
		}
		leads = append(leads, lead)
	}

	if len(rowErrors) > 0 {
		p.metrics.ObserveImport("rejected", len(rows), start)
		log.ImportEvent(owner.ID.String(), len(rows), 0, len(rowErrors))
		return Result{}, apperr.Validation(fmt.Sprintf("%d of %d rows failed validation", len(rowErrors), len(rows))).
			WithDetails(rowErrors)
	}

	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		for i, lead := range leads {
			if _, err := p.leads.CreateWithin(ctx, tx, lead, owner); err != nil {
				return fmt.Errorf("row %d: %w", i+firstDataRow, err)
			}
		}
		return nil
	})
	if err != nil {
		p.metrics.ObserveImport("failed", len(rows), start)
		var enumErr *domain.InvalidEnumValueError
		if errors.As(err, &enumErr) {
			return Result{}, enumErr.AppError()
		}
		log.DatabaseError("leads.import", err)
		return Result{}, apperr.Storage("leads.import", err)
	}

	p.metrics.ObserveImport("committed", len(leads), start)
	log.ImportEvent(owner.ID.String(), len(rows), len(leads), 0)
	return Result{Imported: len(leads)}, nil
}

func fieldErrorsOf(err error) []validation.FieldError {
	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		return verrs.Fields
	}
	return []validation.FieldError{{Path: "", Message: err.Error()}}
}

// prepareRow applies the import-only normalizations before validation:
// bhk accepts storage codes and is dropped for non-residential types,
// phone loses formatting characters and a tags string is split on commas.
func prepareRow(row RawImportRow) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}

	if raw, ok := scalarString(out[validation.PathBHK]); ok {
		if normalized, err := domain.NormalizeBHK(raw); err == nil {
			out[validation.PathBHK] = normalized
		}
	}
	propertyType, _ := out[validation.PathPropertyType].(string)
	if !domain.PropertyType(strings.TrimSpace(propertyType)).Residential() {
		delete(out, validation.PathBHK)
	}

	if raw, ok := scalarString(out[validation.PathPhone]); ok {
		out[validation.PathPhone] = phone.DigitsOnly(raw)
	}

	if raw, ok := out[validation.PathTags].(string); ok {
		out[validation.PathTags] = strings.Split(raw, ",")
	}

	return out
}

// scalarString renders strings and JSON numbers as text. JSON rows carry
// numbers for cells such as "bhk": 2 or an unquoted phone.
func scalarString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case json.Number:
		return n.String(), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	default:
		return "", false
	}
}
