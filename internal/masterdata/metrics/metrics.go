package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the master data write path.
// Methods are nil-safe so services can run without metrics.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	WriteDuration      prometheus.Histogram
	WriteRetries       prometheus.Counter
	EntitiesResolved   *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	ValidationFailures *prometheus.CounterVec
	DocumentsUploaded  prometheus.Counter
}

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// New registers the master data metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "masterdata_arbitration_decisions_total",
			Help: "Arbitration outcomes by incoming source",
		}, []string{"outcome", "source"}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "masterdata_field_write_duration_seconds",
			Help:    "Duration of UpdateField including resolution and commit",
			Buckets: latencyBuckets,
		}),
		WriteRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "masterdata_field_write_retries_total",
			Help: "Write transactions retried after a serialization conflict",
		}),
		EntitiesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "masterdata_entity_resolutions_total",
			Help: "Handle resolutions by path (cache, store, created, adopted)",
		}, []string{"path"}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "masterdata_entity_resolve_duration_seconds",
			Help:    "Duration of handle resolution",
			Buckets: latencyBuckets,
		}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "masterdata_module_validation_failures_total",
			Help: "Module validations that found the module incomplete",
		}, []string{"module"}),
		DocumentsUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "masterdata_documents_uploaded_total",
			Help: "Documents registered through the document registry",
		}),
	}
}

func (m *Metrics) IncrementDecision(outcome, source string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome, source).Inc()
}

// ObserveWrite records the duration of a write. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObserveWrite(start time.Time) {
	if m == nil {
		return
	}
	m.WriteDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementWriteRetry() {
	if m == nil {
		return
	}
	m.WriteRetries.Inc()
}

func (m *Metrics) IncrementResolution(path string) {
	if m == nil {
		return
	}
	m.EntitiesResolved.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementValidationFailure(module string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(module).Inc()
}

func (m *Metrics) IncrementDocumentUploaded() {
	if m == nil {
		return
	}
	m.DocumentsUploaded.Inc()
}
