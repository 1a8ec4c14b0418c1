package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/internal/lookup"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/require"
)

// Hostnames for tests.
const (
	testHostTracker = "tracker.example"
	testHostCDN     = "cdn." + testHostTracker
	testHostSite    = "site.example"
)

// Rules for tests.
const (
	testRuleTracker      = "||" + testHostTracker + "^"
	testRuleTrackerThird = testRuleTracker + "$third-party"
	testRuleCDNOnSite    = "||" + testHostCDN + "^$domain=" + testHostSite
	testRuleCDNWildcard  = "||" + testHostCDN + "^$domain=site.*"
	testRuleShort        = "||tiny^"
	testRuleScheme       = "|ws://^"
)

// URLs for tests.
const (
	testURLTracker = "https://" + testHostTracker + "/collect"
	testURLCDN     = "https://" + testHostCDN + "/lib.js"
	testURLSite    = "https://" + testHostSite + "/"
	testURLOther   = "https://other.example/"
)

// newTestStorage returns a rule storage with one string rule list per element
// of lists.  The list identifiers start with 1.  The storage is closed on
// tb's cleanup.
func newTestStorage(tb testing.TB, lists ...string) (s *filterlist.RuleStorage) {
	tb.Helper()

	ruleLists := make([]filterlist.RuleList, 0, len(lists))
	for i, text := range lists {
		ruleLists = append(ruleLists, &filterlist.StringRuleList{
			ID:        i + 1,
			RulesText: text,
		})
	}

	s, err := filterlist.NewRuleStorage(ruleLists)
	require.NoError(tb, err)

	testutil.CleanupAndRequireSuccess(tb, s.Close)

	return s
}

// addRules offers every network rule of s to tbl in the storage order and
// returns the texts of the rules tbl has accepted.
func addRules(tb testing.TB, tbl lookup.Table, s *filterlist.RuleStorage) (added []string) {
	tb.Helper()

	sc := s.NewRuleStorageScanner()
	for sc.Scan() {
		r, idx := sc.Rule()
		nr, ok := r.(*rules.NetworkRule)
		if ok && tbl.TryAdd(nr, idx) {
			added = append(added, nr.RuleText)
		}
	}

	return added
}

// matchTexts returns the texts of the rules from tbl that match r.
func matchTexts(tbl lookup.Table, r *rules.Request) (texts []string) {
	for _, nr := range tbl.MatchAll(r) {
		texts = append(texts, nr.RuleText)
	}

	return texts
}
