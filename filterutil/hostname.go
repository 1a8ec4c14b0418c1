package filterutil

import (
	"net/netip"
	"strings"

	"github.com/AdguardTeam/golibs/netutil"
)

// ExtractHostname quickly retrieves hostname from the given URL.
//
// NOTE: ExtractHostname is an optimized, best-effort function to retrieve a
// hostname from a URL-like string.  The result is not guaranteed to be correct
// for some edge cases, which include non-hierarchical URLs and IPv6 hostnames.
func ExtractHostname(url string) (hostname string) {
	firstIdx := strings.Index(url, "//")
	if firstIdx == -1 {
		// This is a non-hierarchical structured URL, e.g. stun: or turn:.  See
		// RFC 4395, section 2.2.
		firstIdx = strings.Index(url, ":")
		if firstIdx == -1 {
			return ""
		}

		firstIdx--
	} else {
		firstIdx += len("//")
	}

	if firstIdx < 0 {
		return ""
	}

	nextIdx := strings.IndexAny(url[firstIdx:], "/:?")
	if nextIdx == -1 {
		nextIdx = len(url)
	} else {
		nextIdx += firstIdx
	}

	if nextIdx <= firstIdx {
		return ""
	}

	return url[firstIdx:nextIdx]
}

// maxDomainNameLen is the maximum length of an ASCII domain name including the
// dots.
const maxDomainNameLen = 253

// maxLabelLen is the maximum length of a single domain name label.
const maxLabelLen = 63

// IsDomainName returns true if name is a valid domain name with at least two
// labels:
//
//   - each label is 1 to 63 characters long and contains ASCII letters,
//     digits, and hyphens;
//   - labels neither start nor end with a hyphen;
//   - the top-level label is at least two characters long;
//   - the top-level label consists of letters only, unless it is a punycode
//     label of the form "xn--" followed by at least four characters.
//
//nolint:gocyclo
func IsDomainName(name string) (ok bool) {
	if name == "" || len(name) > maxDomainNameLen {
		return false
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 || len(labels[len(labels)-1]) < 2 {
		return false
	}

	for i, label := range labels {
		if label == "" || len(label) > maxLabelLen {
			return false
		}

		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}

		lettersOnly := true
		for _, c := range []byte(label) {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
				// Go on.
			case c >= '0' && c <= '9', c == '-':
				lettersOnly = false
			default:
				return false
			}
		}

		if i == len(labels)-1 && !lettersOnly && !isPunycodeTLD(label) {
			return false
		}
	}

	return true
}

// isPunycodeTLD returns true if label looks like an IDN top-level domain, for
// example "xn--p1ai".
func isPunycodeTLD(label string) (ok bool) {
	const prefix = "xn--"

	return len(label) >= len(prefix)+4 && strings.EqualFold(label[:len(prefix)], prefix)
}

// ipAddrChars are the characters an IP address literal without a zone may
// consist of.
const ipAddrChars = "0123456789abcdefABCDEF.:"

// isIPAddr returns true if hostname is an IP address, optionally enclosed in
// square brackets.  Hostnames with characters outside of ipAddrChars are
// rejected before parsing.
func isIPAddr(hostname string) (ok bool) {
	if l := len(hostname); l > 2 && hostname[0] == '[' && hostname[l-1] == ']' {
		hostname = hostname[1 : l-1]
	}

	if hostname == "" || strings.Trim(hostname, ipAddrChars) != "" {
		return false
	}

	_, err := netip.ParseAddr(hostname)

	return err == nil
}

// Subdomains returns the hostname itself followed by all its parent domains,
// most specific first.  It returns nil for an empty hostname.  IP addresses are
// returned as is.
func Subdomains(hostname string) (subs []string) {
	if hostname == "" {
		return nil
	}

	if isIPAddr(hostname) {
		return []string{hostname}
	}

	return netutil.Subdomains(hostname)
}
