// Package metrics exposes the ingestion counters over Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for DocumentsProcessed.
const (
	OutcomeCompleted = "completed"
	OutcomeNoData    = "no_data"
	OutcomeFailed    = "failed"
)

type Registry struct {
	reg                *prometheus.Registry
	DocumentsUploaded  prometheus.Counter
	DocumentsProcessed *prometheus.CounterVec
	RecordsComputed    prometheus.Counter
	RecordsDropped     *prometheus.CounterVec
	RecordCO2e         prometheus.Histogram
	AnalyzeLatencySec  prometheus.Histogram
	FactorTableSize    prometheus.Gauge
	FactorRefreshes    *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	uploaded := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_documents_uploaded_total"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_documents_processed_total"}, []string{"outcome", "kind"})
	computed := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_records_computed_total"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_records_dropped_total"}, []string{"reason"})
	co2e := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_record_co2e_tonnes",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 50, 100},
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_analyze_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	tableSize := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ledger_factor_table_rows"})
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_factor_refresh_total"}, []string{"result"})

	r.MustRegister(uploaded, processed, computed, dropped, co2e, latency, tableSize, refreshes)
	return &Registry{
		reg:                r,
		DocumentsUploaded:  uploaded,
		DocumentsProcessed: processed,
		RecordsComputed:    computed,
		RecordsDropped:     dropped,
		RecordCO2e:         co2e,
		AnalyzeLatencySec:  latency,
		FactorTableSize:    tableSize,
		FactorRefreshes:    refreshes,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObserveFactorRefresh counts one refresh and, on success, records the new
// table size.
func (r *Registry) ObserveFactorRefresh(err error, rows int) {
	if err != nil {
		r.FactorRefreshes.WithLabelValues("error").Inc()
		return
	}
	r.FactorRefreshes.WithLabelValues("ok").Inc()
	r.FactorTableSize.Set(float64(rows))
}
