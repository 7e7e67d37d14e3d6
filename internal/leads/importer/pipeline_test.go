package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyer_crm_backend/internal/leads/domain"
	"buyer_crm_backend/internal/leads/management"
	"buyer_crm_backend/internal/leads/metrics"
	"buyer_crm_backend/internal/leads/repository"
	"buyer_crm_backend/internal/leads/validation"
	"buyer_crm_backend/platform/apperr"
	"buyer_crm_backend/platform/logger"
)

func newPipeline(t *testing.T) (*Pipeline, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	m := metrics.New(prometheus.NewRegistry())
	svc := management.New(store, nil, m, logger.Discard())
	return New(store, validation.New(), svc, m, logger.Discard()), store
}

func row(name, phoneNumber string) RawImportRow {
	return RawImportRow{
		"fullName":     name,
		"phone":        phoneNumber,
		"city":         "Mohali",
		"propertyType": "Villa",
		"bhk":          "Three",
		"purpose":      "Buy",
		"budgetMin":    "4000000",
		"budgetMax":    "6000000",
		"timeline":     ">6m",
		"source":       "Referral",
		"tags":         "investor, villa",
	}
}

func owner() domain.Identity {
	return domain.Identity{ID: uuid.New(), Role: domain.RoleUser, Email: "agent@example.com"}
}

func count(t *testing.T, store *repository.MemoryStore) int {
	t.Helper()
	n, err := store.Count(context.Background(), repository.Filter{})
	require.NoError(t, err)
	return n
}

func TestImportBatchCommitsAllRows(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)
	who := owner()

	result, err := p.ImportBatch(ctx, []RawImportRow{
		row("Aarav Mehta", "+91 98765-43210"),
		row("Bela Kaur", "9876500000"),
	}, who)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	leads, err := store.List(ctx, repository.ListParams{SortBy: repository.SortFullName, SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "919876543210", leads[0].Phone)
	assert.Equal(t, who.ID, leads[0].OwnerID)
	require.NotNil(t, leads[0].BHK)
	assert.Equal(t, domain.BHKThree, *leads[0].BHK)
	assert.Equal(t, []string{"investor", "villa"}, leads[0].Tags)

	history, err := store.ListHistory(ctx, leads[0].ID, repository.HistoryQuery{Limit: 5})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "created", history[0].Diff.Kind())
	assert.Equal(t, "agent@example.com", history[0].ChangedBy)
}

func TestImportBatchRejectsWholeBatchOnOneBadRow(t *testing.T) {
	p, store := newPipeline(t)

	_, err := p.ImportBatch(context.Background(), []RawImportRow{
		row("Aarav Mehta", "9876543210"),
		row("Bela Kaur", "9876500000"),
		row("Chetan Rao", "9876511111"),
		row("Divya Nair", "12345"),
	}, owner())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	rowErrors, ok := appErr.Details.([]RowError)
	require.True(t, ok, "details = %T", appErr.Details)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 5, rowErrors[0].Row)
	require.Len(t, rowErrors[0].Errors, 1)
	assert.Equal(t, validation.PathPhone, rowErrors[0].Errors[0].Path)

	assert.Zero(t, count(t, store))
}

func TestImportBatchTooLarge(t *testing.T) {
	p, store := newPipeline(t)
	rows := make([]RawImportRow, MaxRows+1)
	for i := range rows {
		rows[i] = row(fmt.Sprintf("Lead %03d", i), "9876543210")
	}

	_, err := p.ImportBatch(context.Background(), rows, owner())
	assert.True(t, apperr.Is(err, apperr.KindBatchTooLarge), "got %v", err)
	assert.Zero(t, count(t, store))

	result, err := p.ImportBatch(context.Background(), rows[:MaxRows], owner())
	require.NoError(t, err)
	assert.Equal(t, MaxRows, result.Imported)
}

func TestImportBatchRollsBackOnStorageFailure(t *testing.T) {
	p, store := newPipeline(t)
	store.FailCreateAfter(2, errors.New("connection lost"))

	_, err := p.ImportBatch(context.Background(), []RawImportRow{
		row("Aarav Mehta", "9876543210"),
		row("Bela Kaur", "9876500000"),
		row("Chetan Rao", "9876511111"),
	}, owner())
	assert.True(t, apperr.Is(err, apperr.KindStorage), "got %v", err)
	assert.Zero(t, count(t, store))
}

func TestImportDropsBHKForNonResidential(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)

	plot := row("Esha Gill", "9876543210")
	plot["propertyType"] = "Plot"
	plot["bhk"] = "2"

	_, err := p.ImportBatch(ctx, []RawImportRow{plot}, owner())
	require.NoError(t, err)

	leads, err := store.List(ctx, repository.ListParams{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Nil(t, leads[0].BHK)
}

func TestImportAcceptsNumericJSONCells(t *testing.T) {
	ctx := context.Background()
	p, store := newPipeline(t)

	r := row("Hari Om", "")
	r["propertyType"] = "Apartment"
	r["bhk"] = json.Number("2")
	r["phone"] = json.Number("9876543210")

	_, err := p.ImportBatch(ctx, []RawImportRow{r}, owner())
	require.NoError(t, err)

	leads, err := store.List(ctx, repository.ListParams{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.NotNil(t, leads[0].BHK)
	assert.Equal(t, domain.BHKTwo, *leads[0].BHK)
	assert.Equal(t, "9876543210", leads[0].Phone)
}

func TestImportRejectsPhoneWithText(t *testing.T) {
	p, store := newPipeline(t)

	_, err := p.ImportBatch(context.Background(), []RawImportRow{
		row("Isha Rao", "+91 98765-43210"),
		row("Jai Dev", "call 9999999999 after 6"),
	}, owner())

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	rowErrors := appErr.Details.([]RowError)
	require.Len(t, rowErrors, 1)
	assert.Equal(t, 3, rowErrors[0].Row)
	assert.Equal(t, validation.PathPhone, rowErrors[0].Errors[0].Path)
	assert.Equal(t, 0, count(t, store))
}

func TestImportReportsEveryFailingRow(t *testing.T) {
	p, _ := newPipeline(t)
	noBHK := row("Farah Ali", "9876543210")
	noBHK["bhk"] = "-"
	shortName := row("G", "9876543210")

	_, err := p.ImportBatch(context.Background(), []RawImportRow{noBHK, row("Ok Row", "9876543210"), shortName}, owner())

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	rowErrors := appErr.Details.([]RowError)
	require.Len(t, rowErrors, 2)
	assert.Equal(t, 2, rowErrors[0].Row)
	assert.Equal(t, validation.MsgBHKRequired, rowErrors[0].Errors[0].Message)
	assert.Equal(t, 4, rowErrors[1].Row)
}

func TestParseCSVRoundTripsIntoPipeline(t *testing.T) {
	input := strings.Join([]string{
		"FullName,Email,Phone,City,PropertyType,BHK,Purpose,BudgetMin,BudgetMax,Timeline,Source,Notes,Tags,Status,Ignored",
		`Hari Singh,hari@example.com,98765 43210,Panchkula,Apartment,2,Rent,,25000,0-3m,Walk-in,"call, evenings","nri, hot",Contacted,x`,
		"",
		"Isha Jain,,9876500001,Other,Office,,Buy,,,Exploring,Website,,,",
		"Jatin,,9876500002,Other,Retail",
	}, "\n")

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Hari Singh", rows[0]["fullName"])
	assert.Equal(t, "call, evenings", rows[0]["notes"])
	_, hasIgnored := rows[0]["Ignored"]
	assert.False(t, hasIgnored)
	_, hasTimeline := rows[2]["timeline"]
	assert.False(t, hasTimeline)

	p, store := newPipeline(t)
	_, err = p.ImportBatch(context.Background(), rows[:2], owner())
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, store))
}

func TestParseCSVRequiresHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = ParseCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}
