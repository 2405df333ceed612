package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementVerdict("accepted")
	m.IncrementVerdict("accepted")
	m.IncrementVerdict("rate_limited")
	m.ObserveDispatch("ses", "success", time.Now())
	m.SetTrackedIdentities(7)
	m.IncrementCleanupRemoved(3)
	m.ObserveHTTPRequest("/submit-form", "POST", "200", 0.01)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("rate_limited")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DispatchTotal.WithLabelValues("ses", "success")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.TrackedIdentities))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.LimiterCleanupRemoved))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/submit-form", "POST", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementVerdict("accepted")
		m.ObserveDispatch("ses", "failure", time.Now())
		m.SetTrackedIdentities(1)
		m.IncrementCleanupRemoved(1)
		m.ObserveHTTPRequest("/health", "GET", "200", 0.001)
	})
}
