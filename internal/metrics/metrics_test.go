package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Dispatch(DispatchPlaced)
	m.Dispatch(DispatchPlaced)
	m.Screening(ScreenBlocked)
	m.CampaignCompleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatch.WithLabelValues(DispatchPlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.screening.WithLabelValues(ScreenBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Dispatch(DispatchFailed)
	m.DispatchSkipped(SkipLocked)
	m.Outcome("FAILED")
	m.RetryScheduled()
}
