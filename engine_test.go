package filterengine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testListID is the common filter list ID for tests.
const testListID = 1

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// newTestRuleStorage creates a new rule storage with a single string rule
// list and adds its close method to tb's cleanup.
func newTestRuleStorage(tb testing.TB, listID int, rulesText string) (s *filterlist.RuleStorage) {
	tb.Helper()

	s, err := filterlist.NewRuleStorage([]filterlist.RuleList{
		&filterlist.StringRuleList{
			ID:        listID,
			RulesText: rulesText,
		},
	})
	require.NoError(tb, err)

	testutil.CleanupAndRequireSuccess(tb, s.Close)

	return s
}

// newTestEngine builds filtering engine from the specified set of rules and
// adds its rule storage close method to tb's cleanup.
func newTestEngine(tb testing.TB, rulesText string) (engine *filterengine.Engine) {
	tb.Helper()

	return filterengine.NewEngine(newTestRuleStorage(tb, testListID, rulesText))
}

// testMetrics is a [filterengine.Metrics] implementation for tests.
type testMetrics struct {
	mu         *sync.Mutex
	rulesCount map[string]int
	builds     int
	matches    int
	blocked    int
}

// newTestMetrics returns a new properly initialized *testMetrics.
func newTestMetrics() (m *testMetrics) {
	return &testMetrics{
		mu:         &sync.Mutex{},
		rulesCount: map[string]int{},
	}
}

// type check
var _ filterengine.Metrics = (*testMetrics)(nil)

// SetRulesCount implements the [filterengine.Metrics] interface for
// *testMetrics.
func (m *testMetrics) SetRulesCount(engine string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rulesCount[engine] = n
}

// ObserveBuild implements the [filterengine.Metrics] interface for
// *testMetrics.
func (m *testMetrics) ObserveBuild(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.builds++
}

// IncrementMatches implements the [filterengine.Metrics] interface for
// *testMetrics.
func (m *testMetrics) IncrementMatches(blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.matches++
	if blocked {
		m.blocked++
	}
}

func TestEngine_MatchRequest(t *testing.T) {
	t.Parallel()

	rulesText := `||example.org^$third-party`
	engine := newTestEngine(t, rulesText)

	request := rules.NewRequest("https://example.org", "", rules.TypeDocument)
	result := engine.MatchRequest(request)

	assert.Nil(t, result.BasicRule)
	assert.Nil(t, result.DocumentRule)
	assert.Nil(t, result.ReplaceRules)
	assert.Nil(t, result.CspRules)
	assert.Nil(t, result.CookieRules)
	assert.Nil(t, result.StealthRule)
}

func TestEngine_MatchRequest_badfilter(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, "$script,domain=example.com|example.org\n"+
		"$script,domain=example.com,badfilter")

	testCases := []struct {
		name     string
		url      string
		wantRule assert.ValueAssertionFunc
	}{{
		name:     "negated",
		url:      "https://example.com/",
		wantRule: assert.Nil,
	}, {
		name:     "not_negated",
		url:      "https://example.org/",
		wantRule: assert.NotNil,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url+"script.js", tc.url, rules.TypeScript)
			res := engine.MatchRequest(r)

			tc.wantRule(t, res.GetBasicResult())
		})
	}
}

func TestEngine_MatchRequest_badfilterCrossList(t *testing.T) {
	t.Parallel()

	s, err := filterlist.NewRuleStorage([]filterlist.RuleList{
		&filterlist.StringRuleList{
			ID:        1,
			RulesText: "||example.org^\n||example.net^\n@@||example.com^",
		},
		&filterlist.StringRuleList{
			ID:        2,
			RulesText: "||example.org^$badfilter\n||example.com^$badfilter",
		},
	})
	require.NoError(t, err)

	testutil.CleanupAndRequireSuccess(t, s.Close)

	engine := filterengine.NewEngine(s)

	testCases := []struct {
		name     string
		url      string
		wantText string
		wantList int
	}{{
		name:     "negated_by_other_list",
		url:      "https://example.org/",
		wantText: "",
		wantList: 0,
	}, {
		name:     "no_badfilter",
		url:      "https://example.net/",
		wantText: "||example.net^",
		wantList: 1,
	}, {
		name:     "opposite_allowlist",
		url:      "https://example.com/",
		wantText: "@@||example.com^",
		wantList: 1,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, "", rules.TypeDocument)
			basic := engine.MatchRequest(r).GetBasicResult()
			if tc.wantText == "" {
				assert.Nil(t, basic)

				return
			}

			require.NotNil(t, basic)

			assert.Equal(t, tc.wantText, basic.Text())
			assert.Equal(t, tc.wantList, basic.FilterListID)
		})
	}
}

func TestEngine_MatchRequest_urlblock(t *testing.T) {
	t.Parallel()

	const allowlistRule = "@@||example.org$urlblock"

	engine := newTestEngine(t, allowlistRule+"\n||example.com$important")

	r := rules.NewRequest("http://example.com/image.png", "http://example.org", rules.TypeImage)
	res := engine.MatchRequest(r)

	basic := res.GetBasicResult()
	require.NotNil(t, basic)

	assert.Equal(t, allowlistRule, basic.Text())
	assert.Same(t, res.DocumentRule, basic)
}

func TestEngine_MatchRequest_document(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, "||ads.example.net^\n@@||example.org^$document")

	r := rules.NewRequest("https://ads.example.net/a.js", "https://example.org/", rules.TypeScript)
	res := engine.MatchRequest(r)

	basic := res.GetBasicResult()
	require.NotNil(t, basic)

	assert.True(t, basic.Allowlist)
	assert.Equal(t, rules.CosmeticOptionNone, res.GetCosmeticOption())

	r = rules.NewRequest("https://ads.example.net/a.js", "https://example.com/", rules.TypeScript)
	res = engine.MatchRequest(r)

	basic = res.GetBasicResult()
	require.NotNil(t, basic)

	assert.False(t, basic.Allowlist)
}

func TestEngine_GetCosmeticResult(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, "##.x\na.org#@#.x\nb.org##.y")

	res := engine.GetCosmeticResult("a.org", rules.CosmeticOptionAll)
	assert.Empty(t, res.ElementHiding.Generic)
	assert.Empty(t, res.ElementHiding.Specific)

	res = engine.GetCosmeticResult("b.org", rules.CosmeticOptionAll)
	assert.Equal(t, []string{".x"}, res.ElementHiding.Generic)
	assert.Equal(t, []string{".y"}, res.ElementHiding.Specific)

	network, cosmetic := engine.RulesCount()
	assert.Equal(t, 0, network)
	assert.Equal(t, 3, cosmetic)
}

func TestEngine_GetCosmeticResult_hostnameCase(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, "example.org##.banner\n"+
		"example.org#$#body { color: red; }\n"+
		"sub.example.org#@#.banner")

	testCases := []struct {
		name         string
		hostname     string
		wantSpecific []string
		wantCSS      []string
	}{{
		name:         "lower",
		hostname:     "example.org",
		wantSpecific: []string{".banner"},
		wantCSS:      []string{"body { color: red; }"},
	}, {
		name:         "upper",
		hostname:     "EXAMPLE.ORG",
		wantSpecific: []string{".banner"},
		wantCSS:      []string{"body { color: red; }"},
	}, {
		name:         "mixed_subdomain",
		hostname:     "Www.Example.Org",
		wantSpecific: []string{".banner"},
		wantCSS:      []string{"body { color: red; }"},
	}, {
		name:         "upper_allowlisted",
		hostname:     "SUB.EXAMPLE.ORG",
		wantSpecific: nil,
		wantCSS:      []string{"body { color: red; }"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := engine.GetCosmeticResult(tc.hostname, rules.CosmeticOptionAll)

			assert.Equal(t, tc.wantSpecific, res.ElementHiding.Specific)
			assert.Equal(t, tc.wantCSS, res.CSS.Specific)
		})
	}
}

func TestNewEngineWithConfig(t *testing.T) {
	t.Parallel()

	const rulesText = "||example.org^\n" +
		"||example.com^$script\n" +
		"@@||example.com^$script,domain=example.net\n" +
		"example.org##.banner\n" +
		"##.ad"

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		m := newTestMetrics()
		engine, err := filterengine.NewEngineWithConfig(testutil.ContextWithTimeout(t, testTimeout), &filterengine.EngineConfig{
			Logger:    slogutil.NewDiscardLogger(),
			Metrics:   m,
			Storage:   newTestRuleStorage(t, testListID, rulesText),
			ChunkSize: 2,
		})
		require.NoError(t, err)

		network, cosmetic := engine.RulesCount()
		assert.Equal(t, 3, network)
		assert.Equal(t, 2, cosmetic)

		assert.Equal(t, map[string]int{
			filterengine.EngineNameNetwork:  3,
			filterengine.EngineNameCosmetic: 2,
		}, m.rulesCount)
		assert.Equal(t, 1, m.builds)

		res := engine.MatchRequest(rules.NewRequest("https://example.org/", "", rules.TypeDocument))
		require.NotNil(t, res.GetBasicResult())

		res = engine.MatchRequest(rules.NewRequest(
			"https://example.com/a.js",
			"https://example.net/",
			rules.TypeScript,
		))
		basic := res.GetBasicResult()
		require.NotNil(t, basic)

		assert.True(t, basic.Allowlist)
		assert.Equal(t, 2, m.matches)
		assert.Equal(t, 1, m.blocked)
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine, err := filterengine.NewEngineWithConfig(ctx, &filterengine.EngineConfig{
			Storage:   newTestRuleStorage(t, testListID, rulesText),
			ChunkSize: 1,
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, engine)
	})

	t.Run("no_storage", func(t *testing.T) {
		t.Parallel()

		engine, err := filterengine.NewEngineWithConfig(
			testutil.ContextWithTimeout(t, testTimeout),
			&filterengine.EngineConfig{},
		)
		testutil.AssertErrorMsg(t, "storage: no value", err)
		assert.Nil(t, engine)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		engine, err := filterengine.NewEngineWithConfig(
			testutil.ContextWithTimeout(t, testTimeout),
			&filterengine.EngineConfig{
				Storage: newTestRuleStorage(t, testListID, rulesText),
			},
		)
		require.NoError(t, err)

		res := engine.GetCosmeticResult("example.org", rules.CosmeticOptionAll)
		assert.Equal(t, []string{".ad"}, res.ElementHiding.Generic)
		assert.Equal(t, []string{".banner"}, res.ElementHiding.Specific)
	})
}

func FuzzNewEngine(f *testing.F) {
	for _, seed := range []string{
		"",
		" ",
		"\n",
		"1",
		"!",
		"#",
		"# comment",
		"##banner",
		"127.0.0.1",
		"example.test",
		"::1 localhost",
		"209.237.226.90 example.test",
		"fe80::1 # comment",
		"||example.org^",
		"/regex/",
		"@@||example.org^$third-party",
		"example.org#@#.banner",
		"||example.org^$replace=/a/b/",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, rulesText string) {
		assert.NotPanics(t, func() {
			engine := newTestEngine(t, rulesText)
			_ = engine.MatchRequest(rules.NewRequest("https://example.org/", "", rules.TypeDocument))
			_ = engine.GetCosmeticResult("example.org", rules.CosmeticOptionAll)
		})
	})
}

func BenchmarkEngine_MatchRequest(b *testing.B) {
	engine := newTestEngine(b, "||example.org^\n"+
		"@@||example.org^$script\n"+
		"/banner/*/img^\n"+
		"||ads.example.net^$third-party")

	r := rules.NewRequest(
		"https://ads.example.net/banner/1/img.png",
		"https://example.com/",
		rules.TypeImage,
	)

	var res *rules.MatchingResult

	b.ReportAllocs()
	for b.Loop() {
		res = engine.MatchRequest(r)
	}

	require.NotNil(b, res.GetBasicResult())
}
