package rules

import (
	"net/netip"
	"slices"
	"strings"

	"github.com/AdguardTeam/filterengine/filterutil"
)

// HostRule is a structure for simple host-level rules, i.e. /etc/hosts
// syntax.  It also supports "just domain" syntax, in which case the IP is set
// to 0.0.0.0.
//
// See http://man7.org/linux/man-pages/man5/hosts.5.html.
type HostRule struct {
	// IP is the address of the rule.
	IP netip.Addr

	// RuleText is the original text of the rule.
	RuleText string

	// Hostnames is the slice of hostnames associated with IP.
	Hostnames []string

	// FilterListID is the identifier of the filter, containing the rule.
	FilterListID int
}

// type check
var _ Rule = (*HostRule)(nil)

// NewHostRule parses the rule and creates a new *HostRule.  The format is:
//
//	IP_address canonical_hostname [aliases...]
func NewHostRule(ruleText string, filterListID int) (h *HostRule, err error) {
	text := ruleText
	if idx := strings.IndexByte(text, '#'); idx >= 0 {
		text = text[:idx]
	}

	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return nil, newRuleSyntaxError(ruleText, "invalid syntax")
	case 1:
		if !filterutil.IsDomainName(fields[0]) {
			return nil, newRuleSyntaxError(ruleText, "invalid syntax")
		}

		return &HostRule{
			IP:           netip.IPv4Unspecified(),
			RuleText:     ruleText,
			Hostnames:    fields,
			FilterListID: filterListID,
		}, nil
	default:
		ip, pErr := netip.ParseAddr(fields[0])
		if pErr != nil {
			return nil, newRuleSyntaxError(ruleText, "cannot parse ip: %s", pErr)
		}

		return &HostRule{
			IP:           ip,
			RuleText:     ruleText,
			Hostnames:    fields[1:],
			FilterListID: filterListID,
		}, nil
	}
}

// Text implements the [Rule] interface for *HostRule.
func (f *HostRule) Text() (s string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *HostRule.
func (f *HostRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// Kind implements the [Rule] interface for *HostRule.
func (f *HostRule) Kind() (k Kind) {
	return KindHost
}

// String implements the [fmt.Stringer] interface for *HostRule.
func (f *HostRule) String() (s string) {
	return f.RuleText
}

// Match checks if this filtering rule matches the specified hostname.
func (f *HostRule) Match(hostname string) (ok bool) {
	return slices.Contains(f.Hostnames, hostname)
}
