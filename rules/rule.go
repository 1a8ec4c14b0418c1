// Package rules contains the filtering rule model: network, cosmetic, and host
// rules, the request they are matched against, and the logic that combines
// several matched rules into a single decision.
package rules

import (
	"fmt"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// ErrUnsupportedRule signals that this might be a valid rule type, but it is
// not yet supported by this library.
const ErrUnsupportedRule errors.Error = "this type of rules is unsupported"

// RuleSyntaxError represents an error while parsing a filtering rule.
type RuleSyntaxError struct {
	msg      string
	ruleText string
}

// type check
var _ error = (*RuleSyntaxError)(nil)

// newRuleSyntaxError returns a new *RuleSyntaxError with a formatted message.
func newRuleSyntaxError(ruleText, format string, args ...any) (err *RuleSyntaxError) {
	return &RuleSyntaxError{
		msg:      fmt.Sprintf(format, args...),
		ruleText: ruleText,
	}
}

// Error implements the error interface for *RuleSyntaxError.
func (e *RuleSyntaxError) Error() (msg string) {
	return fmt.Sprintf("syntax error: %s, rule: %s", e.msg, e.ruleText)
}

// Kind is the kind of a filtering rule.
type Kind uint8

// Kind values.
const (
	KindNetwork Kind = iota + 1
	KindCosmetic
	KindHost
)

// String implements the [fmt.Stringer] interface for Kind.
func (k Kind) String() (s string) {
	switch k {
	case KindNetwork:
		return "network"
	case KindCosmetic:
		return "cosmetic"
	case KindHost:
		return "host"
	default:
		return fmt.Sprintf("!bad_kind_%d", k)
	}
}

// Rule is a base interface for all filtering rules.  The set of
// implementations is closed: *NetworkRule, *CosmeticRule, and *HostRule.
type Rule interface {
	// Text returns the original rule text.
	Text() (text string)

	// GetFilterListID returns ID of the filter list this rule belongs to.
	GetFilterListID() (id int)

	// Kind returns the kind of the rule.
	Kind() (k Kind)
}

// NewRule creates a new filtering rule from the specified line.  It returns
// nil and no error if the line is empty or if it is a comment.
func NewRule(line string, filterListID int) (r Rule, err error) {
	line = strings.TrimSpace(line)

	if line == "" || IsComment(line) {
		return nil, nil
	}

	if IsCosmetic(line) {
		var cr *CosmeticRule
		cr, err = NewCosmeticRule(line, filterListID)
		if err != nil {
			return nil, err
		}

		return cr, nil
	}

	hr, err := NewHostRule(line, filterListID)
	if err == nil {
		return hr, nil
	}

	nr, err := NewNetworkRule(line, filterListID)
	if err != nil {
		return nil, err
	}

	return nr, nil
}

// IsComment returns true if line is a comment in a filter list.
func IsComment(line string) (ok bool) {
	if line == "" {
		return false
	}

	switch line[0] {
	case '!':
		return true
	case '#':
		if len(line) == 1 {
			return true
		}

		// Make sure that this is not a generic cosmetic rule.
		idx, _ := findCosmeticRuleMarker(line)

		return idx != 0
	default:
		return false
	}
}

// loadDomains loads the $domain modifier or cosmetic rules domains.  sep is the
// separator: "|" for network rules, "," for cosmetic ones.  A "~" prefix marks
// a restricted domain.  "name.*" entries match name under any public suffix.
func loadDomains(domains, sep string) (permitted, restricted []string, err error) {
	if domains == "" {
		return nil, nil, errors.Error("no domains specified")
	}

	for _, d := range strings.Split(domains, sep) {
		d = strings.TrimSpace(d)

		isRestricted := strings.HasPrefix(d, "~")
		if isRestricted {
			d = d[1:]
		}

		d = strings.ToLower(d)
		if !isValidRuleDomain(d) {
			return nil, nil, fmt.Errorf("invalid domain specified: %q", d)
		}

		if isRestricted {
			restricted = append(restricted, d)
		} else {
			permitted = append(permitted, d)
		}
	}

	return permitted, restricted, nil
}
