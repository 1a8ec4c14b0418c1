package rules

import (
	"slices"
)

// CosmeticOption is the enumeration of various content script options.
// Depending on the set of enabled flags the content script will contain
// different set of settings.
type CosmeticOption uint32

// CosmeticOption enumeration.
const (
	// CosmeticOptionGenericCSS - if generic elemhide and CSS rules are
	// enabled.  Can be disabled by a $generichide rule.
	CosmeticOptionGenericCSS CosmeticOption = 1 << iota

	// CosmeticOptionCSS - if elemhide and CSS rules are enabled.  Can be
	// disabled by an $elemhide rule.
	CosmeticOptionCSS

	// CosmeticOptionJS - if JS rules and scriptlets are enabled.  Can be
	// disabled by a $jsinject rule.
	CosmeticOptionJS

	// CosmeticOptionHTML - if HTML filtering rules are enabled.  Can be
	// disabled by a $content rule.
	CosmeticOptionHTML

	// CosmeticOptionNone means that nothing is enabled.
	CosmeticOptionNone CosmeticOption = 0

	// CosmeticOptionAll means that everything is enabled.
	CosmeticOptionAll = CosmeticOptionGenericCSS | CosmeticOptionCSS | CosmeticOptionJS |
		CosmeticOptionHTML
)

// MatchingResult contains all the rules matching a web request, and provides
// methods that define how a web request should be processed.
type MatchingResult struct {
	// BasicRule is a rule matching the request.  It could lead to one of the
	// following:
	//   - block the request;
	//   - unblock the request (a regular allowlist rule or a document-level
	//     allowlist rule);
	//   - modify the way cosmetic rules work for this request;
	//   - modify the response, if it is a $redirect rule.
	BasicRule *NetworkRule

	// DocumentRule is a rule matching the request's referrer and having one of
	// the following modifiers:
	//   - $urlblock, which disables network filtering on the page;
	//   - $genericblock, which disables generic blocking rules on the page.
	DocumentRule *NetworkRule

	// StealthRule is an allowlist rule that disables stealth mode for the
	// request.
	StealthRule *NetworkRule

	// CspRules are the rules modifying the Content-Security-Policy.
	CspRules []*NetworkRule

	// CookieRules are the rules modifying the cookies.
	CookieRules []*NetworkRule

	// ReplaceRules are the rules modifying the response content.
	ReplaceRules []*NetworkRule

	// RemoveParamRules are the rules removing query parameters of the
	// request.
	RemoveParamRules []*NetworkRule
}

// NewMatchingResult creates an object that contains the rules matching the
// request.  rules are the rules matching the request, sourceRules are the
// rules matching the referrer.
func NewMatchingResult(rules, sourceRules []*NetworkRule) (result *MatchingResult) {
	rules = removeBadfilterRules(rules)
	sourceRules = removeBadfilterRules(sourceRules)

	result = &MatchingResult{}

	for _, r := range sourceRules {
		if r.IsDocumentAllowlistRule() &&
			(result.DocumentRule == nil || r.IsHigherPriority(result.DocumentRule)) {
			result.DocumentRule = r
		}

		if r.IsOptionEnabled(OptionStealth) {
			result.StealthRule = r
		}
	}

	basicAllowed, genericAllowed := true, true
	if result.DocumentRule != nil {
		basicAllowed = !result.DocumentRule.IsOptionEnabled(OptionUrlblock)
		genericAllowed = !result.DocumentRule.IsOptionEnabled(OptionGenericblock)
	}

	for _, r := range rules {
		if result.addAdvancedRule(r) {
			continue
		}

		if r.IsOptionEnabled(OptionStealth) {
			result.StealthRule = r
		}

		if !r.Allowlist && (!basicAllowed || (!genericAllowed && r.IsGeneric())) {
			continue
		}

		if result.BasicRule == nil || r.IsHigherPriority(result.BasicRule) {
			result.BasicRule = r
		}
	}

	return result
}

// addAdvancedRule routes a rule with a content-modifying modifier to the
// corresponding list.  It returns false if r is not such a rule.
func (m *MatchingResult) addAdvancedRule(r *NetworkRule) (ok bool) {
	switch {
	case r.IsOptionEnabled(OptionCookie):
		m.CookieRules = append(m.CookieRules, r)
	case r.IsOptionEnabled(OptionReplace):
		m.ReplaceRules = append(m.ReplaceRules, r)
	case r.IsOptionEnabled(OptionCsp):
		m.CspRules = append(m.CspRules, r)
	case r.IsOptionEnabled(OptionRemoveParam):
		m.RemoveParamRules = append(m.RemoveParamRules, r)
	default:
		return false
	}

	return true
}

// GetBasicResult returns a rule that should be applied to the web request.
//
// Possible outcomes are:
//   - returns nil, which means that the request must not be blocked;
//   - returns a blocking rule, which means that the request must be blocked;
//   - returns an allowlist rule, which means that the request must not be
//     blocked.
//
// If any $replace rule has matched the request, the result is always nil and
// the content modification takes over.
//
// TODO(a.garipov): Only suppress the basic verdict when a $replace rule
// survives the allowlist resolution of GetReplaceRules.
func (m *MatchingResult) GetBasicResult() (r *NetworkRule) {
	if len(m.ReplaceRules) > 0 {
		return nil
	}

	if m.BasicRule == nil {
		return m.DocumentRule
	}

	return m.BasicRule
}

// GetCosmeticOption returns a bit-flag with the list of cosmetic options.
func (m *MatchingResult) GetCosmeticOption() (o CosmeticOption) {
	r := m.BasicRule
	if r == nil {
		r = m.DocumentRule
	}

	if r == nil || !r.Allowlist {
		return CosmeticOptionAll
	}

	o = CosmeticOptionAll

	if r.IsOptionEnabled(OptionElemhide) {
		o &^= CosmeticOptionCSS | CosmeticOptionGenericCSS
	}

	if r.IsOptionEnabled(OptionGenerichide) {
		o &^= CosmeticOptionGenericCSS
	}

	if r.IsOptionEnabled(OptionJsinject) {
		o &^= CosmeticOptionJS
	}

	if r.IsOptionEnabled(OptionContent) {
		o &^= CosmeticOptionHTML
	}

	return o
}

// GetCSPRules returns the $csp rules that should be applied to the request.
// An allowlist rule with an empty directive disables all of them, otherwise
// each directive is resolved separately.
func (m *MatchingResult) GetCSPRules() (rules []*NetworkRule) {
	return resolveAdvancedRules(m.CspRules, sameModifierValue)
}

// GetCookieRules returns the $cookie rules that should be applied to the
// request.  An allowlist rule with an empty value disables all of them,
// otherwise a blocking rule is disabled by an allowlist rule matching its
// cookie name.
func (m *MatchingResult) GetCookieRules() (rules []*NetworkRule) {
	return resolveAdvancedRules(m.CookieRules, cookieAllowlisted)
}

// GetReplaceRules returns the $replace rules that should be applied to the
// request.
func (m *MatchingResult) GetReplaceRules() (rules []*NetworkRule) {
	return resolveAdvancedRules(m.ReplaceRules, sameModifierValue)
}

// GetRemoveParamRules returns the $removeparam rules that should be applied to
// the request.
func (m *MatchingResult) GetRemoveParamRules() (rules []*NetworkRule) {
	return resolveAdvancedRules(m.RemoveParamRules, sameModifierValue)
}

// allowlistMatcher returns true if the allowlist rule allow disables the
// blocking rule block.
type allowlistMatcher func(allow, block *NetworkRule) (ok bool)

// sameModifierValue is an allowlistMatcher that compares the modifier values.
func sameModifierValue(allow, block *NetworkRule) (ok bool) {
	return allow.advanced.Value() == block.advanced.Value()
}

// cookieAllowlisted is an allowlistMatcher that checks if the cookie of the
// blocking rule is matched by the allowlist one.
func cookieAllowlisted(allow, block *NetworkRule) (ok bool) {
	allowCookie, ok := allow.advanced.(*CookieModifier)
	if !ok {
		return false
	}

	blockCookie, ok := block.advanced.(*CookieModifier)
	if !ok {
		return false
	}

	if blockCookie.name != "" {
		return allowCookie.MatchName(blockCookie.name)
	}

	return allowCookie.raw == blockCookie.raw
}

// resolveAdvancedRules returns the rules with advanced modifiers that must be
// applied.  An allowlist rule with an empty value wins over everything.
// Otherwise, for each blocking rule the highest-priority one of it and the
// matching allowlist rules is chosen.
func resolveAdvancedRules(rules []*NetworkRule, match allowlistMatcher) (res []*NetworkRule) {
	if len(rules) == 0 {
		return nil
	}

	var allowlist, blocking []*NetworkRule
	for _, r := range rules {
		if !r.Allowlist {
			blocking = append(blocking, r)

			continue
		}

		if r.advanced.Value() == "" {
			return []*NetworkRule{r}
		}

		allowlist = append(allowlist, r)
	}

	for _, b := range blocking {
		chosen := b
		for _, a := range allowlist {
			if match(a, b) && !chosen.IsHigherPriority(a) {
				chosen = a
			}
		}

		if !slices.Contains(res, chosen) {
			res = append(res, chosen)
		}
	}

	return res
}

// removeBadfilterRules looks if there are any matching $badfilter rules and
// removes the matching ones from the result.  A $badfilter rule negates rules
// from any filter list, not only from its own.
func removeBadfilterRules(rules []*NetworkRule) (res []*NetworkRule) {
	var badfilterRules []*NetworkRule
	for _, r := range rules {
		if r.IsOptionEnabled(OptionBadfilter) {
			badfilterRules = append(badfilterRules, r)
		}
	}

	if len(badfilterRules) == 0 {
		return rules
	}

	res = make([]*NetworkRule, 0, len(rules))
	for _, r := range rules {
		if r.IsOptionEnabled(OptionBadfilter) {
			continue
		}

		negated := slices.ContainsFunc(badfilterRules, func(bf *NetworkRule) (ok bool) {
			return bf.negatesBadfilter(r)
		})
		if !negated {
			res = append(res, r)
		}
	}

	return res
}
