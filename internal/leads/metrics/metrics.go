package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the leads module.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LeadWrites     *prometheus.CounterVec
	ImportBatches  *prometheus.CounterVec
	ImportedRows   prometheus.Counter
	ImportDuration prometheus.Histogram
}

// New registers the leads metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LeadWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buyer_crm_lead_writes_total",
			Help: "Total number of committed lead writes by operation",
		}, []string{"op"}),
		ImportBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "buyer_crm_import_batches_total",
			Help: "Total number of import batches by outcome",
		}, []string{"outcome"}),
		ImportedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: "buyer_crm_imported_rows_total",
			Help: "Total number of rows committed by bulk imports",
		}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "buyer_crm_import_duration_seconds",
			Help:    "Duration of import batches from validation to commit",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncrementCreated() { m.incWrite("create") }
func (m *Metrics) IncrementUpdated() { m.incWrite("update") }
func (m *Metrics) IncrementDeleted() { m.incWrite("delete") }

func (m *Metrics) incWrite(op string) {
	if m == nil {
		return
	}
	m.LeadWrites.WithLabelValues(op).Inc()
}

// ObserveImport records one batch outcome: "committed", "rejected", "too_large" or "failed".
// Call with time.Now() at the start of the batch.
func (m *Metrics) ObserveImport(outcome string, rows int, start time.Time) {
	if m == nil {
		return
	}
	m.ImportBatches.WithLabelValues(outcome).Inc()
	if outcome == "committed" {
		m.ImportedRows.Add(float64(rows))
	}
	m.ImportDuration.Observe(time.Since(start).Seconds())
}
