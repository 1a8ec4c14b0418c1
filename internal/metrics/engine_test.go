package metrics_test

import (
	"testing"
	"time"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/filterengine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findFamily returns the metric family with the given name or nil.
func findFamily(
	families []*io_prometheus_client.MetricFamily,
	name string,
) (f *io_prometheus_client.MetricFamily) {
	for _, f = range families {
		if f.GetName() == name {
			return f
		}
	}

	return nil
}

func TestEngine(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	m, err := metrics.NewEngine(metrics.Namespace, reg)
	require.NoError(t, err)

	m.SetRulesCount(filterengine.EngineNameNetwork, 10)
	m.SetRulesCount(filterengine.EngineNameCosmetic, 5)
	m.SetRulesCount(filterengine.EngineNameNetwork, 12)
	m.ObserveBuild(100 * time.Millisecond)
	m.IncrementMatches(true)
	m.IncrementMatches(true)
	m.IncrementMatches(false)

	families, err := reg.Gather()
	require.NoError(t, err)

	rules := findFamily(families, "filterengine_engine_rules_total")
	require.NotNil(t, rules)

	got := map[string]float64{}
	for _, metric := range rules.GetMetric() {
		for _, l := range metric.GetLabel() {
			got[l.GetValue()] = metric.GetGauge().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{
		filterengine.EngineNameNetwork:  12,
		filterengine.EngineNameCosmetic: 5,
	}, got)

	build := findFamily(families, "filterengine_engine_build_duration_seconds")
	require.NotNil(t, build)
	require.Len(t, build.GetMetric(), 1)

	h := build.GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), h.GetSampleCount())
	assert.InDelta(t, 0.1, h.GetSampleSum(), 1e-9)

	matches := findFamily(families, "filterengine_engine_matches_total")
	require.NotNil(t, matches)

	gotMatches := map[string]float64{}
	for _, metric := range matches.GetMetric() {
		for _, l := range metric.GetLabel() {
			gotMatches[l.GetValue()] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{"1": 2, "0": 1}, gotMatches)

	n, err := testutil.GatherAndCount(
		reg,
		"filterengine_engine_rules_total",
		"filterengine_engine_matches_total",
	)
	require.NoError(t, err)

	assert.Equal(t, 4, n)
}

func TestNewEngine_duplicate(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()

	_, err := metrics.NewEngine(metrics.Namespace, reg)
	require.NoError(t, err)

	_, err = metrics.NewEngine(metrics.Namespace, reg)
	assert.Error(t, err)

	var alreadyErr prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &alreadyErr)
}

func TestBoolString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", metrics.BoolString(true))
	assert.Equal(t, "0", metrics.BoolString(false))
}
