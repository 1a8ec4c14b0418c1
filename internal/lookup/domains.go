package lookup

import (
	"slices"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/filterutil"
	"github.com/AdguardTeam/filterengine/rules"
)

// DomainsTable is a lookup table that uses domains from the $domain modifier
// to speed up the rules search.  Only the rules with $domain modifier and
// without wildcard domains are eligible for this lookup table.
type DomainsTable struct {
	// Storage for the network filtering rules.
	ruleStorage *filterlist.RuleStorage

	// Domain lookup table.  Key is the domain name hash.
	domainsLookupTable map[uint32][]int64
}

// type check
var _ Table = (*DomainsTable)(nil)

// NewDomainsTable creates a new instance of the DomainsTable.
func NewDomainsTable(rs *filterlist.RuleStorage) (s *DomainsTable) {
	return &DomainsTable{
		ruleStorage:        rs,
		domainsLookupTable: map[uint32][]int64{},
	}
}

// TryAdd implements the [Table] interface for *DomainsTable.
func (d *DomainsTable) TryAdd(f *rules.NetworkRule, storageIdx int64) (ok bool) {
	permittedDomains := f.GetPermittedDomains()
	if len(permittedDomains) == 0 || f.HasWildcardDomains() {
		return false
	}

	for _, domain := range permittedDomains {
		hash := filterutil.FastHash(domain)
		d.domainsLookupTable[hash] = append(d.domainsLookupTable[hash], storageIdx)
	}

	return true
}

// MatchAll implements the [Table] interface for *DomainsTable.  For document
// and subdocument requests the request's own hostname is looked up as well,
// since such requests are matched against it when they have no source.
func (d *DomainsTable) MatchAll(r *rules.Request) (result []*rules.NetworkRule) {
	var seen []int64
	result, seen = d.matchDomains(r, r.SourceSubdomains, result, seen)

	if r.RequestType&(rules.TypeDocument|rules.TypeSubdocument) != 0 {
		result, _ = d.matchDomains(r, r.Subdomains, result, seen)
	}

	return result
}

// matchDomains appends the rules permitted on any of domains and matching r
// to result.  seen holds the storage indexes already checked.
func (d *DomainsTable) matchDomains(
	r *rules.Request,
	domains []string,
	result []*rules.NetworkRule,
	seen []int64,
) (res []*rules.NetworkRule, newSeen []int64) {
	for _, domain := range domains {
		matchingRules, ok := d.domainsLookupTable[filterutil.FastHash(domain)]
		if !ok {
			continue
		}

		for _, ruleIdx := range matchingRules {
			if slices.Contains(seen, ruleIdx) {
				continue
			}

			seen = append(seen, ruleIdx)

			rule := d.ruleStorage.RetrieveNetworkRule(ruleIdx)
			if rule != nil && rule.Match(r) {
				result = append(result, rule)
			}
		}
	}

	return result, seen
}
