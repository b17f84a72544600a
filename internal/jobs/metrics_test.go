package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("shift:receipt").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("shift:receipt").End(boom), boom)
	m.ReceiptEmitted("MORNING")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("shift:receipt", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("shift:receipt", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.receipts.WithLabelValues("MORNING")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track("x").End(nil))
	m.ReceiptEmitted("NIGHT")
}
