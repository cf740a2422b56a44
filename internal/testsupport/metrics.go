package testsupport

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue sums every series of metricName whose labels include labels.
// Counters and gauges contribute their value, histograms their sample count.
// An unregistered or never-observed metric reads as 0.
func metricValue(t *testing.T, metricName string, labels map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gathering fitbit_ingest metrics")

	var total float64
	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return total
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, pair := range m.GetLabel() {
			if pair.GetName() == name && pair.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AssertMetricDelta runs fn and asserts metricName moved by exactly delta.
// Tests touching the same series must not run in parallel.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := metricValue(t, metricName, labels)
	fn()
	after := metricValue(t, metricName, labels)

	assert.Equal(t, delta, after-before, "metric %s%v delta", metricName, labels)
}

// AssertHistogramRecorded runs fn and asserts the histogram gained at least one sample.
func AssertHistogramRecorded(t *testing.T, metricName string, labels map[string]string, fn func()) {
	t.Helper()

	before := metricValue(t, metricName, labels)
	fn()
	after := metricValue(t, metricName, labels)

	assert.Greater(t, after, before, "histogram %s%v recorded no samples", metricName, labels)
}
