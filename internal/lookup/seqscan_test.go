package lookup_test

import (
	"testing"

	"github.com/AdguardTeam/filterengine/internal/lookup"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeqScanTable_TryAdd(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		lists     []string
		wantAdded []string
	}{{
		name:      "single",
		lists:     []string{testRuleTracker},
		wantAdded: []string{testRuleTracker},
	}, {
		name:      "same_text_same_list",
		lists:     []string{testRuleTracker + "\n" + testRuleTracker},
		wantAdded: []string{testRuleTracker},
	}, {
		name:      "same_text_other_list",
		lists:     []string{testRuleTracker, testRuleShort + "\n" + testRuleTracker},
		wantAdded: []string{testRuleTracker, testRuleShort},
	}, {
		name:      "other_options",
		lists:     []string{testRuleTracker, testRuleTrackerThird},
		wantAdded: []string{testRuleTracker, testRuleTrackerThird},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStorage(t, tc.lists...)
			tbl := &lookup.SeqScanTable{}

			assert.Equal(t, tc.wantAdded, addRules(t, tbl, s))
		})
	}
}

func TestSeqScanTable_MatchAll(t *testing.T) {
	t.Parallel()

	s := newTestStorage(
		t,
		testRuleTracker+"\n"+testRuleTrackerThird,
		testRuleTracker+"\n"+testRuleScheme,
	)
	tbl := &lookup.SeqScanTable{}
	require.Len(t, addRules(t, tbl, s), 3)

	testCases := []struct {
		name      string
		url       string
		sourceURL string
		want      []string
	}{{
		name:      "no_match",
		url:       testURLOther,
		sourceURL: "",
		want:      nil,
	}, {
		name:      "first_party",
		url:       testURLTracker,
		sourceURL: "https://" + testHostTracker + "/",
		want:      []string{testRuleTracker},
	}, {
		name:      "third_party",
		url:       testURLTracker,
		sourceURL: testURLSite,
		want:      []string{testRuleTracker, testRuleTrackerThird},
	}, {
		name:      "subdomain",
		url:       testURLCDN,
		sourceURL: "https://" + testHostCDN + "/",
		want:      []string{testRuleTracker},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := rules.NewRequest(tc.url, tc.sourceURL, rules.TypeOther)
			assert.Equal(t, tc.want, matchTexts(tbl, r))
		})
	}
}

func BenchmarkSeqScanTable_MatchAll(b *testing.B) {
	s := newTestStorage(b, testRuleTracker+"\n"+testRuleTrackerThird+"\n"+testRuleScheme)
	tbl := &lookup.SeqScanTable{}
	addRules(b, tbl, s)

	r := rules.NewRequest(testURLTracker, testURLSite, rules.TypeOther)

	var gotRules []*rules.NetworkRule

	b.ReportAllocs()
	for b.Loop() {
		gotRules = tbl.MatchAll(r)
	}

	require.Len(b, gotRules, 2)
}
