// Package filterengine contains the filtering engines that match web and DNS
// requests against AdGuard-syntax filtering rules.
package filterengine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/internal/lookup"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// DefaultChunkSize is the default number of rules added to the engine between
// two yields of a chunked build.
const DefaultChunkSize = 1000

// Engine represents the filtering engine with all the loaded rules.
type Engine struct {
	logger         *slog.Logger
	metrics        Metrics
	networkEngine  *NetworkEngine
	cosmeticEngine *CosmeticEngine
}

// EngineConfig is the configuration structure for [NewEngineWithConfig].
type EngineConfig struct {
	// Logger is used to log the build progress.  If nil, nothing is logged.
	Logger *slog.Logger

	// Metrics is used to collect the engine statistics.  If nil,
	// [EmptyMetrics] is used.
	Metrics Metrics

	// Storage is the storage of the rules.  It must not be nil.
	Storage *filterlist.RuleStorage

	// AnyURLPolicy detects the shortcuts matching almost any URL.  If nil,
	// [lookup.DefaultAnyURLPolicy] is used.
	AnyURLPolicy lookup.AnyURLPolicy

	// ChunkSize is the number of rules added between two yields to the
	// scheduler.  If not positive, [DefaultChunkSize] is used.
	ChunkSize int
}

// NewEngine parses the filtering rules and creates a filtering engine of them.
func NewEngine(s *filterlist.RuleStorage) (e *Engine) {
	return &Engine{
		logger:         slogutil.NewDiscardLogger(),
		metrics:        EmptyMetrics{},
		networkEngine:  NewNetworkEngine(s),
		cosmeticEngine: NewCosmeticEngine(s),
	}
}

// NewEngineWithConfig creates a filtering engine using c.  The rules are added
// in chunks of c.ChunkSize, yielding to other goroutines between them.  It
// returns an error if ctx is canceled before the build is finished.  c must
// not be nil.
func NewEngineWithConfig(ctx context.Context, c *EngineConfig) (e *Engine, err error) {
	if c.Storage == nil {
		return nil, fmt.Errorf("storage: %w", errors.ErrNoValue)
	}

	e = &Engine{
		logger:         c.Logger,
		metrics:        c.Metrics,
		networkEngine:  newNetworkEngineSkipStorageScan(c.Storage, c.AnyURLPolicy),
		cosmeticEngine: newCosmeticEngineSkipStorageScan(c.Storage),
	}

	if e.logger == nil {
		e.logger = slogutil.NewDiscardLogger()
	}

	if e.metrics == nil {
		e.metrics = EmptyMetrics{}
	}

	chunkSize := c.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	start := time.Now()

	err = e.addRules(ctx, c.Storage, chunkSize)
	if err != nil {
		return nil, fmt.Errorf("building engine: %w", err)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveBuild(elapsed)
	e.metrics.SetRulesCount(EngineNameNetwork, e.networkEngine.RulesCount)
	e.metrics.SetRulesCount(EngineNameCosmetic, e.cosmeticEngine.RulesCount)

	e.logger.InfoContext(
		ctx,
		"engine built",
		"network_rules", e.networkEngine.RulesCount,
		"cosmetic_rules", e.cosmeticEngine.RulesCount,
		"elapsed", elapsed,
	)

	return e, nil
}

// addRules scans s and adds the rules to the engines, checking ctx and
// yielding after every chunkSize rules.
func (e *Engine) addRules(ctx context.Context, s *filterlist.RuleStorage, chunkSize int) (err error) {
	scanner := s.NewRuleStorageScanner()
	for n := 1; scanner.Scan(); n++ {
		f, idx := scanner.Rule()
		switch f := f.(type) {
		case *rules.NetworkRule:
			e.networkEngine.AddRule(f, idx)
		case *rules.CosmeticRule:
			e.cosmeticEngine.AddRule(f, idx)
		}

		if n%chunkSize != 0 {
			continue
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		e.logger.DebugContext(ctx, "added chunk", "rules", n)
		runtime.Gosched()
	}

	return ctx.Err()
}

// MatchRequest matches the specified request against the filtering engine and
// returns the matching result.  The rules matching r.SourceURL are used to
// find the document-level allowlist rules.
func (e *Engine) MatchRequest(r *rules.Request) (res *rules.MatchingResult) {
	var sourceRules []*rules.NetworkRule
	if r.SourceURL != "" {
		sourceReq := rules.NewRequest(r.SourceURL, "", rules.TypeDocument)
		sourceRules = e.networkEngine.MatchAll(sourceReq)
	}

	res = rules.NewMatchingResult(e.networkEngine.MatchAll(r), sourceRules)

	basic := res.GetBasicResult()
	e.metrics.IncrementMatches(basic != nil && !basic.Allowlist)

	return res
}

// GetCosmeticResult gets cosmetic result for the specified hostname and
// cosmetic options.
func (e *Engine) GetCosmeticResult(hostname string, option rules.CosmeticOption) (res *CosmeticResult) {
	return e.cosmeticEngine.Match(hostname, option)
}

// RulesCount returns the number of network and cosmetic rules in the engine.
func (e *Engine) RulesCount() (network, cosmetic int) {
	return e.networkEngine.RulesCount, e.cosmeticEngine.RulesCount
}
