package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for batch runs.
type Metrics struct {
	Registry        *prometheus.Registry
	ListingsTotal   *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	OCRFallbacks    prometheus.Counter
	ListingDuration prometheus.Histogram
	DatasetRecords  prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgrade_listings_total",
			Help: "Listings processed, by outcome.",
		},
		[]string{"outcome"},
	)
	rejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgrade_rejections_total",
			Help: "Rejected listings by reason.",
		},
		[]string{"reason"},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardgrade_fetch_errors_total",
			Help: "Page fetch failures by error type.",
		},
		[]string{"error_type"},
	)
	ocrFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cardgrade_ocr_fallbacks_total",
			Help: "Listings whose front image was read by the OCR fallback.",
		},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardgrade_listing_duration_seconds",
			Help:    "Wall time spent on one listing.",
			Buckets: []float64{0.5, 1, 2, 4, 8, 15, 30, 60, 120},
		},
	)
	records := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardgrade_dataset_records",
			Help: "Records in the last persisted or served dataset.",
		},
	)

	registry.MustRegister(listings, rejections, fetchErrors, ocrFallbacks, duration, records)

	return &Metrics{
		Registry:        registry,
		ListingsTotal:   listings,
		RejectionsTotal: rejections,
		FetchErrors:     fetchErrors,
		OCRFallbacks:    ocrFallbacks,
		ListingDuration: duration,
		DatasetRecords:  records,
	}
}

// IncListing counts a finished listing.
func (m *Metrics) IncListing(outcome string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(outcome).Inc()
}

// IncRejection counts a rejection reason.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// IncFetchError counts a fetch failure for a type label.
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(errorType).Inc()
}

// IncOCRFallback counts a listing that went through OCR.
func (m *Metrics) IncOCRFallback() {
	if m == nil {
		return
	}
	m.OCRFallbacks.Inc()
}

// ObserveDuration records the time spent on one listing.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ListingDuration.Observe(d.Seconds())
}

// SetDatasetRecords records the size of the dataset.
func (m *Metrics) SetDatasetRecords(n int) {
	if m == nil {
		return
	}
	m.DatasetRecords.Set(float64(n))
}
