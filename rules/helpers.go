package rules

import (
	"strings"

	"github.com/AdguardTeam/filterengine/filterutil"
	"golang.org/x/net/publicsuffix"
)

// wildcardTLDSuffix is the suffix of a domain that matches any public suffix,
// for example "google.*".
const wildcardTLDSuffix = ".*"

// splitWithEscapeCharacter splits str by sep if it is not escaped with esc.
// The escape character is removed only when it escapes the separator.  Empty
// tokens are kept only if preserveAllTokens is true.
func splitWithEscapeCharacter(str string, sep, esc byte, preserveAllTokens bool) (parts []string) {
	if str == "" {
		return nil
	}

	var sb strings.Builder
	escaped := false
	for i := range len(str) {
		c := str[i]
		switch {
		case c == esc && !escaped:
			escaped = true
		case c == sep && escaped:
			sb.WriteByte(c)
			escaped = false
		case c == sep:
			if preserveAllTokens || sb.Len() > 0 {
				parts = append(parts, sb.String())
				sb.Reset()
			}
		default:
			if escaped {
				sb.WriteByte(esc)
				escaped = false
			}

			sb.WriteByte(c)
		}
	}

	if escaped {
		sb.WriteByte(esc)
	}

	if preserveAllTokens || sb.Len() > 0 {
		parts = append(parts, sb.String())
	}

	return parts
}

// isDomainOrSubdomainOfAny checks if domain is one of domains or a subdomain of
// any of them.  The check is performed on a label boundary, so "xb.com" is not
// a subdomain of "b.com".
func isDomainOrSubdomainOfAny(domain string, domains []string) (ok bool) {
	for _, d := range domains {
		if strings.HasSuffix(d, wildcardTLDSuffix) {
			if matchWildcardDomain(domain, d) {
				return true
			}
		} else if isDomainOrSubdomainOf(domain, d) {
			return true
		}
	}

	return false
}

// isDomainOrSubdomainOf returns true if domain is parent or its subdomain.
func isDomainOrSubdomainOf(domain, parent string) (ok bool) {
	if domain == parent {
		return true
	}

	n := len(domain) - len(parent)

	return n > 0 && domain[n-1] == '.' && domain[n:] == parent
}

// matchWildcardDomain returns true if domain matches a pattern like
// "google.*", which matches any "google.TLD" domain or its subdomain where TLD
// is an ICANN public suffix.
func matchWildcardDomain(domain, wildcard string) (ok bool) {
	base := wildcard[:len(wildcard)-len(wildcardTLDSuffix)]

	suffix, icann := publicsuffix.PublicSuffix(domain)
	if !icann || len(suffix) >= len(domain) {
		return false
	}

	return isDomainOrSubdomainOf(domain[:len(domain)-len(suffix)-1], base)
}

// isValidRuleDomain returns true if d can be used in a domain list of a rule.
func isValidRuleDomain(d string) (ok bool) {
	if base, found := strings.CutSuffix(d, wildcardTLDSuffix); found {
		// Validate the labels before the wildcard using any real TLD.
		return filterutil.IsDomainName(base + ".org")
	}

	return filterutil.IsDomainName(d)
}

// hasWildcardDomain returns true if any of domains uses the wildcard TLD form.
func hasWildcardDomain(domains []string) (ok bool) {
	for _, d := range domains {
		if strings.HasSuffix(d, wildcardTLDSuffix) {
			return true
		}
	}

	return false
}

// domainsOverlap returns true if l and r share at least one domain.  Two empty
// lists are considered overlapping, since both mean "all domains".
func domainsOverlap(l, r []string) (ok bool) {
	if len(l) == 0 && len(r) == 0 {
		return true
	}

	for _, d := range l {
		for _, other := range r {
			if d == other {
				return true
			}
		}
	}

	return false
}

// effectiveTLDPlusOne is a faster version of publicsuffix.EffectiveTLDPlusOne
// that avoids using fmt.Errorf when the domain is less or equal the suffix.
func effectiveTLDPlusOne(hostname string) (domain string) {
	hostnameLen := len(hostname)
	if hostnameLen < 1 {
		return ""
	}

	if hostname[0] == '.' || hostname[hostnameLen-1] == '.' {
		return ""
	}

	suffix, _ := publicsuffix.PublicSuffix(hostname)

	i := hostnameLen - len(suffix) - 1
	if i < 0 || hostname[i] != '.' {
		return ""
	}

	return hostname[1+strings.LastIndex(hostname[:i], "."):]
}
