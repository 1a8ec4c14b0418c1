package lookup

import (
	"math"
	"strings"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/filterutil"
	"github.com/AdguardTeam/filterengine/rules"
)

// ShortcutLength is the length of the shortcut windows used as keys in
// [ShortcutsTable].
const ShortcutLength = 5

// AnyURLPolicy decides whether a rule shortcut potentially matches too many
// URLs for the shortcuts table.  Such rules go to a slower lookup table.
type AnyURLPolicy func(shortcut string) (ok bool)

// DefaultAnyURLPolicy treats the shortcuts that consist only of a URL scheme
// prefix as matching any URL.
func DefaultAnyURLPolicy(shortcut string) (ok bool) {
	switch l := len(shortcut); {
	case
		l < len("ws://")+1 && strings.HasPrefix(shortcut, "ws:"),
		l < len("wss://")+1 && strings.HasPrefix(shortcut, "wss:"),
		l < len("|wss://")+1 && strings.HasPrefix(shortcut, "|ws"),
		l < len("https://")+1 && strings.HasPrefix(shortcut, "http"),
		l < len("|https://")+1 && strings.HasPrefix(shortcut, "|http"):
		return true
	default:
		return false
	}
}

// ShortcutsTable is a table that relies on the rule "shortcuts" to quickly
// find matching rules.  Here's how it works:
//
//  1. We extract from the rule the longest substring without special
//     characters from, this string is called a "shortcut".
//  2. We take a part of it of length [ShortcutLength] and put it to the
//     internal hashmap.
//  3. When we match a request, we take all substrings of length
//     [ShortcutLength] from it and check if there're any rules in the hashmap.
//
// Note that only the rules with a shortcut are eligible for this table.
type ShortcutsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// isAnyURL excludes the shortcuts that match too many URLs.
	isAnyURL AnyURLPolicy

	// Map where the key is the hash of the shortcut and value is a list of
	// rules' indexes.
	shortcutsLookupTable map[uint32][]int64

	// Histogram helps us choose the best shortcut for the shortcuts lookup
	// table.
	shortcutsHistogram map[uint32]int
}

// type check
var _ Table = (*ShortcutsTable)(nil)

// NewShortcutsTable creates a new instance of the ShortcutsTable.  If p is
// nil, [DefaultAnyURLPolicy] is used.
func NewShortcutsTable(rs *filterlist.RuleStorage, p AnyURLPolicy) (s *ShortcutsTable) {
	if p == nil {
		p = DefaultAnyURLPolicy
	}

	return &ShortcutsTable{
		ruleStorage:          rs,
		isAnyURL:             p,
		shortcutsLookupTable: map[uint32][]int64{},
		shortcutsHistogram:   map[uint32]int{},
	}
}

// TryAdd implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool) {
	shortcut := f.Shortcut
	if len(shortcut) < ShortcutLength || s.isAnyURL(shortcut) {
		return false
	}

	// Find the least used window of the shortcut.
	var shortcutHash uint32
	minCount := math.MaxInt
	for i := 0; i <= len(shortcut)-ShortcutLength; i++ {
		hash := filterutil.FastHashBetween(shortcut, i, i+ShortcutLength)
		count := s.shortcutsHistogram[hash]
		if count < minCount {
			minCount = count
			shortcutHash = hash
		}
	}

	s.shortcutsHistogram[shortcutHash] = minCount + 1
	s.shortcutsLookupTable[shortcutHash] = append(s.shortcutsLookupTable[shortcutHash], storageIdx)

	return true
}

// MatchAll implements the [Table] interface for *ShortcutsTable.
func (s *ShortcutsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	for i := 0; i <= len(r.URLLowerCase)-ShortcutLength; i++ {
		hash := filterutil.FastHashBetween(r.URLLowerCase, i, i+ShortcutLength)
		matchingRules, ok := s.shortcutsLookupTable[hash]
		if !ok {
			continue
		}

		for _, ruleIdx := range matchingRules {
			rule := s.ruleStorage.RetrieveNetworkRule(ruleIdx)

			// The same rule can be found twice when the URL has a repeating
			// pattern.
			if rule != nil && rule.Match(r) {
				result = appendUnique(result, rule)
			}
		}
	}

	return result
}
