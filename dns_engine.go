package filterengine

import (
	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/filterutil"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/miekg/dns"
)

// DNSEngine combines host rules and network rules and is supposed to quickly
// find matching rules for hostnames.  First, it looks over network rules and
// returns the first rule found.  Then, if nothing is found, it looks up the
// host rules.
type DNSEngine struct {
	// networkEngine is constructed from the host-level network rules.
	networkEngine *NetworkEngine

	// lookupTable maps the hashes of hostnames to the indexes of host rules.
	lookupTable map[uint32][]int64

	// rulesStorage is the storage the host rules are retrieved from.
	rulesStorage *filterlist.RuleStorage

	// RulesCount is the count of rules loaded to the engine.
	RulesCount int
}

// DNSResult is the result of matching a DNS request.
type DNSResult struct {
	// NetworkRule is the basic network rule that matched the request, if any.
	NetworkRule *rules.NetworkRule

	// HostRulesV4 are the matching host rules with IPv4 addresses.
	HostRulesV4 []*rules.HostRule

	// HostRulesV6 are the matching host rules with IPv6 addresses.
	HostRulesV6 []*rules.HostRule
}

// HostRulesByType returns the host rules applicable to a DNS question of type
// qtype.  It returns nil for types other than A and AAAA.
func (res *DNSResult) HostRulesByType(qtype uint16) (hostRules []*rules.HostRule) {
	switch qtype {
	case dns.TypeA:
		return res.HostRulesV4
	case dns.TypeAAAA:
		return res.HostRulesV6
	default:
		return nil
	}
}

// DNSRequest represents a DNS query with associated metadata.
type DNSRequest struct {
	// Hostname is the hostname or the IP address being queried.
	Hostname string

	// DNSType is the type of the resource record (RR) of a DNS request, for
	// example [dns.TypeA].  Zero means any type.
	DNSType rules.RRType
}

// NewDNSEngine returns a new *DNSEngine built from the host rules and the
// host-level network rules of s.
func NewDNSEngine(s *filterlist.RuleStorage) (d *DNSEngine) {
	// Count host rules first to pre-allocate the lookup table.
	hostnamesCount := 0
	scan := s.NewRuleStorageScanner()
	for scan.Scan() {
		f, _ := scan.Rule()
		if hostRule, ok := f.(*rules.HostRule); ok {
			hostnamesCount += len(hostRule.Hostnames)
		}
	}

	d = &DNSEngine{
		rulesStorage: s,
		lookupTable:  make(map[uint32][]int64, hostnamesCount),
	}

	networkEngine := newNetworkEngineSkipStorageScan(s, nil)

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, idx := scanner.Rule()

		switch f := f.(type) {
		case *rules.HostRule:
			d.addRule(f, idx)
		case *rules.NetworkRule:
			if f.IsHostLevelNetworkRule() {
				networkEngine.AddRule(f, idx)
			}
		}
	}

	d.RulesCount += networkEngine.RulesCount
	d.networkEngine = networkEngine

	return d
}

// Match finds matching rules for the specified hostname.  It returns true if
// a basic network rule or some host rules were found.  There may be several
// host rules for a single hostname, for example:
//
//	192.168.0.1 example.local
//	2000::1 example.local
func (d *DNSEngine) Match(hostname string) (res *DNSResult, matched bool) {
	return d.MatchRequest(&DNSRequest{Hostname: hostname})
}

// MatchRequest matches the specified DNS request.  Network rules always have
// higher priority than the host rules.
func (d *DNSEngine) MatchRequest(dReq *DNSRequest) (res *DNSResult, matched bool) {
	res = &DNSResult{}

	if dReq.Hostname == "" {
		return res, false
	}

	r := rules.NewRequestForHostname(dReq.Hostname)
	r.DNSType = dReq.DNSType

	networkRules := d.networkEngine.MatchAll(r)

	result := rules.NewMatchingResult(networkRules, nil)
	if basic := result.GetBasicResult(); basic != nil {
		res.NetworkRule = basic

		return res, true
	}

	hostRules := d.matchLookupTable(dReq.Hostname)
	for _, hostRule := range hostRules {
		if hostRule.IP.Unmap().Is4() {
			res.HostRulesV4 = append(res.HostRulesV4, hostRule)
		} else {
			res.HostRulesV6 = append(res.HostRulesV6, hostRule)
		}
	}

	return res, len(hostRules) > 0
}

// matchLookupTable returns the host rules matching hostname.
func (d *DNSEngine) matchLookupTable(hostname string) (matching []*rules.HostRule) {
	for _, idx := range d.lookupTable[filterutil.FastHash(hostname)] {
		rule := d.rulesStorage.RetrieveHostRule(idx)
		if rule != nil && rule.Match(hostname) {
			matching = append(matching, rule)
		}
	}

	return matching
}

// addRule adds hostRule to the lookup table.
func (d *DNSEngine) addRule(hostRule *rules.HostRule, storageIdx int64) {
	for _, hostname := range hostRule.Hostnames {
		hash := filterutil.FastHash(hostname)
		d.lookupTable[hash] = append(d.lookupTable[hash], storageIdx)
	}

	d.RulesCount++
}
