package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/platform/apperr"
)

// ParseCSV reads a header row followed by data rows. Headers match the export
// column names case-insensitively; unknown columns are ignored and short rows
// leave the missing fields absent.
func ParseCSV(r io.Reader) ([]RawImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.BadRequest("CSV header row is required")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadRequest, "invalid CSV", err)
	}

	known := make(map[string]string, len(domain.CSVColumns))
	for _, col := range domain.CSVColumns {
		known[strings.ToLower(col)] = col
	}
	columns := make([]string, len(header))
	matched := 0
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if col, ok := known[strings.ToLower(strings.TrimSpace(name))]; ok {
			columns[i] = col
			matched++
		}
	}
	if matched == 0 {
		return nil, apperr.BadRequest("CSV header row has no known columns")
	}

	rows := make([]RawImportRow, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindBadRequest, "invalid CSV", err)
		}

		row := RawImportRow{}
		blank := true
		for i, value := range record {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			if strings.TrimSpace(value) != "" {
				blank = false
			}
			row[columns[i]] = value
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
