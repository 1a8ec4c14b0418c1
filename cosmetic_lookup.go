package filterengine

import (
	"slices"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/filterutil"
	"github.com/AdguardTeam/filterengine/rules"
)

// cosmeticLookupTable is the lookup table for the cosmetic rules of a single
// type.
type cosmeticLookupTable struct {
	// ruleStorage is the storage the rules are retrieved from.
	ruleStorage *filterlist.RuleStorage

	// byHostname maps the hashes of the permitted domains to the indexes of
	// the rules permitted on them.
	byHostname map[uint32][]int64

	// allowlist maps the hashes of the rule contents to the indexes of the
	// allowlist rules with that content.
	allowlist map[uint32][]int64

	// genericRules are the rules without permitted domains.  They are checked
	// for every hostname, so they are kept in memory.
	genericRules []*rules.CosmeticRule

	// wildcardRules are the rules with wildcard permitted domains, which
	// cannot be hashed.
	wildcardRules []*rules.CosmeticRule

	// rulesCount is the number of rules in the table.
	rulesCount int
}

// newCosmeticLookupTable returns a new properly initialized
// *cosmeticLookupTable.
func newCosmeticLookupTable(s *filterlist.RuleStorage) (t *cosmeticLookupTable) {
	return &cosmeticLookupTable{
		ruleStorage: s,
		byHostname:  map[uint32][]int64{},
		allowlist:   map[uint32][]int64{},
	}
}

// addRule adds f to the table.
func (t *cosmeticLookupTable) addRule(f *rules.CosmeticRule, storageIdx int64) {
	t.rulesCount++

	switch {
	case f.Allowlist:
		hash := filterutil.FastHash(f.Content)
		t.allowlist[hash] = append(t.allowlist[hash], storageIdx)
	case f.IsGeneric():
		t.genericRules = append(t.genericRules, f)
	case f.HasWildcardDomains():
		t.wildcardRules = append(t.wildcardRules, f)
	default:
		for _, domain := range f.GetPermittedDomains() {
			hash := filterutil.FastHash(domain)
			t.byHostname[hash] = append(t.byHostname[hash], storageIdx)
		}
	}
}

// findByHostname returns the domain-specific rules matching hostname.
// subdomains must be hostname and all its parent domains.
func (t *cosmeticLookupTable) findByHostname(
	hostname string,
	subdomains []string,
) (result []*rules.CosmeticRule) {
	var seen []int64
	for _, sub := range subdomains {
		for _, idx := range t.byHostname[filterutil.FastHash(sub)] {
			if slices.Contains(seen, idx) {
				continue
			}

			seen = append(seen, idx)

			r := t.ruleStorage.RetrieveCosmeticRule(idx)
			if r != nil && r.Match(hostname) && !t.isAllowlisted(hostname, r) {
				result = append(result, r)
			}
		}
	}

	for _, r := range t.wildcardRules {
		if r.Match(hostname) && !t.isAllowlisted(hostname, r) {
			result = append(result, r)
		}
	}

	return result
}

// findGeneric returns the generic rules matching hostname.
func (t *cosmeticLookupTable) findGeneric(hostname string) (result []*rules.CosmeticRule) {
	for _, r := range t.genericRules {
		if r.Match(hostname) && !t.isAllowlisted(hostname, r) {
			result = append(result, r)
		}
	}

	return result
}

// isAllowlisted returns true if there is an allowlist rule with the same
// content as r that matches hostname.
func (t *cosmeticLookupTable) isAllowlisted(hostname string, r *rules.CosmeticRule) (ok bool) {
	for _, idx := range t.allowlist[filterutil.FastHash(r.Content)] {
		a := t.ruleStorage.RetrieveCosmeticRule(idx)
		if a != nil && a.Content == r.Content && a.Match(hostname) {
			return true
		}
	}

	return false
}
