// Package lookup implements index structures that we use to improve matching
// speed in the engines.
package lookup

import (
	"slices"

	"github.com/AdguardTeam/filterengine/rules"
)

// Table is a common interface for all lookup tables.
type Table interface {
	// TryAdd attempts to add the rule to the lookup table.  It returns
	// true/false depending on whether the rule is eligible for this lookup
	// table.
	TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool)

	// MatchAll finds all matching rules from this lookup table.
	MatchAll(r *rules.Request) (result []*rules.NetworkRule)
}

// appendUnique appends rule to rs unless the same rule instance is already
// there.  The check is performed rarely and on rather short slices.
func appendUnique(rs []*rules.NetworkRule, rule *rules.NetworkRule) (res []*rules.NetworkRule) {
	if slices.Contains(rs, rule) {
		return rs
	}

	return append(rs, rule)
}
