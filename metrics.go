package filterengine

import "time"

// Engine names used in [Metrics.SetRulesCount].
const (
	EngineNameNetwork  = "network"
	EngineNameCosmetic = "cosmetic"
	EngineNameDNS      = "dns"
)

// Metrics is an interface for collection of the engine statistics.
type Metrics interface {
	// SetRulesCount sets the number of rules loaded into the engine with the
	// given name.
	SetRulesCount(engine string, n int)

	// ObserveBuild records the duration of an engine build.
	ObserveBuild(d time.Duration)

	// IncrementMatches increments the number of matched requests.  blocked is
	// true if the request was blocked.
	IncrementMatches(blocked bool)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// SetRulesCount implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetRulesCount(_ string, _ int) {}

// ObserveBuild implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveBuild(_ time.Duration) {}

// IncrementMatches implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) IncrementMatches(_ bool) {}
