package metrics

import (
	"time"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine is the Prometheus-based implementation of the [filterengine.Metrics]
// interface.
type Engine struct {
	// rulesTotal is a gauge with the number of rules loaded into each engine.
	rulesTotal *prometheus.GaugeVec

	// buildDuration is a histogram with the durations of the engine builds.
	buildDuration prometheus.Histogram

	// matchesTotal is a counter with the number of matched requests.
	// "blocked" is "1" if the request was blocked.
	matchesTotal *prometheus.CounterVec
}

// NewEngine registers the filtering engine metrics in reg and returns a
// properly initialized *Engine.
func NewEngine(namespace string, reg prometheus.Registerer) (m *Engine, err error) {
	const (
		rulesTotal    = "rules_total"
		buildDuration = "build_duration_seconds"
		matchesTotal  = "matches_total"
	)

	m = &Engine{
		rulesTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:      rulesTotal,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "The number of rules loaded into the engines.",
		}, []string{"engine"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      buildDuration,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "Time elapsed on building the engine.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 10, 30, 60},
		}),
		matchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      matchesTotal,
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Help:      "The number of matched requests. blocked=1 means that the request was blocked.",
		}, []string{"blocked"}),
	}

	err = registerCollectors(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   rulesTotal,
		Value: m.rulesTotal,
	}, {
		Key:   buildDuration,
		Value: m.buildDuration,
	}, {
		Key:   matchesTotal,
		Value: m.matchesTotal,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ filterengine.Metrics = (*Engine)(nil)

// SetRulesCount implements the [filterengine.Metrics] interface for *Engine.
func (m *Engine) SetRulesCount(engine string, n int) {
	m.rulesTotal.WithLabelValues(engine).Set(float64(n))
}

// ObserveBuild implements the [filterengine.Metrics] interface for *Engine.
func (m *Engine) ObserveBuild(d time.Duration) {
	m.buildDuration.Observe(d.Seconds())
}

// IncrementMatches implements the [filterengine.Metrics] interface for
// *Engine.
func (m *Engine) IncrementMatches(blocked bool) {
	m.matchesTotal.WithLabelValues(BoolString(blocked)).Inc()
}
