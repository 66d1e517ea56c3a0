package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision("ALLOW", "GLEIF")
		m.ObserveWrite(time.Now())
		m.IncrementWriteRetry()
		m.IncrementResolution("created")
		m.ObserveResolve(time.Now())
		m.IncrementValidationFailure("traders")
		m.IncrementDocumentUploaded()
	})
}

func TestDecisionCounter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncrementDecision("DENY", "GLEIF")
	m.IncrementDecision("DENY", "GLEIF")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("DENY", "GLEIF")))
}
