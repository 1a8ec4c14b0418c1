package rules

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	maskAllowlist    = "@@"
	replaceOption    = "replace"
	optionsDelimiter = '$'
	escapeCharacter  = '\\'
)

// ErrTooWideRule is returned if the rule matches all URLs but has no domain,
// app, or DNS type restrictions.
const ErrTooWideRule errors.Error = "the rule is too wide, add domain or app restrictions " +
	"or make it more specific"

// minShortcutLength is the minimum length of a shortcut of a rule that has no
// restrictions.
const minShortcutLength = 3

// NetworkRule is a basic filtering rule.
//
// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#basic-rules.
type NetworkRule struct {
	// advanced is the value of the advanced modifier, if any.
	advanced AdvancedModifier

	// compiled is the lazily compiled pattern.
	compiled *compiledPattern

	// compileOnce protects compiled.
	compileOnce *sync.Once

	// RuleText is the original rule text.
	RuleText string

	// Shortcut is the longest substring of the rule pattern with no special
	// characters, in lower case.
	Shortcut string

	// pattern is the basic rule pattern ready to be compiled to regex.
	pattern string

	// permittedDomains is the list of permitted domains from the $domain
	// modifier.
	permittedDomains []string

	// restrictedDomains is the list of restricted domains from the $domain
	// modifier.
	restrictedDomains []string

	// permittedApps is the list of permitted apps from the $app modifier.
	permittedApps []string

	// restrictedApps is the list of restricted apps from the $app modifier.
	restrictedApps []string

	// permittedDNSTypes is the list of permitted DNS record types from the
	// $dnstype modifier.
	permittedDNSTypes []RRType

	// restrictedDNSTypes is the list of restricted DNS record types from the
	// $dnstype modifier.
	restrictedDNSTypes []RRType

	// FilterListID is the identifier of the filter list the rule belongs to.
	FilterListID int

	// enabledOptions are all options enabled in the rule.
	enabledOptions NetworkRuleOption

	// disabledOptions are all options disabled in the rule with "~".
	disabledOptions NetworkRuleOption

	// permittedRequestTypes are the permitted request types.  0 means all.
	permittedRequestTypes RequestType

	// restrictedRequestTypes are the restricted request types.  0 means none.
	restrictedRequestTypes RequestType

	// Allowlist is true if this is an exception rule.
	Allowlist bool
}

// compiledPattern is the result of the pattern compilation.  It is never
// changed after the compilation.
type compiledPattern struct {
	// re is nil if the pattern matches anything or if it is invalid.
	re *regexp.Regexp

	// invalid is true if the pattern could not be compiled.
	invalid bool
}

// type check
var _ Rule = (*NetworkRule)(nil)

// NewNetworkRule parses the rule text and returns a filter rule.
func NewNetworkRule(ruleText string, filterListID int) (r *NetworkRule, err error) {
	pattern, options, allowlist, err := parseRuleText(ruleText)
	if err != nil {
		return nil, err
	}

	r = &NetworkRule{
		RuleText:     ruleText,
		Allowlist:    allowlist,
		FilterListID: filterListID,
		pattern:      pattern,
		compileOnce:  &sync.Once{},
	}

	err = r.loadOptions(options)
	if err != nil {
		return nil, &RuleSyntaxError{msg: err.Error(), ruleText: ruleText}
	}

	// example.org/* -> example.org^
	if p, ok := strings.CutSuffix(r.pattern, "/*"); ok && !isRegexPattern(r.pattern) {
		r.pattern = p + MaskSeparator
	}

	r.Shortcut = extractShortcut(r.pattern)

	if r.isTooWide() {
		return nil, ErrTooWideRule
	}

	return r, nil
}

// isTooWide returns true if the rule matches too much and has no domain, app,
// or DNS type restrictions.  $cookie and $removeparam rules are allowed to be
// broad.
func (f *NetworkRule) isTooWide() (ok bool) {
	if f.IsOptionEnabled(OptionCookie) || f.IsOptionEnabled(OptionRemoveParam) {
		return false
	}

	switch f.pattern {
	case MaskStartURL, MaskPipe, MaskAnyCharacter, "":
		// Go on.
	default:
		if len(f.pattern) >= minShortcutLength && len(f.Shortcut) >= minShortcutLength {
			return false
		}
	}

	return len(f.permittedDomains) == 0 &&
		len(f.permittedApps) == 0 &&
		len(f.permittedDNSTypes) == 0 &&
		len(f.restrictedDNSTypes) == 0
}

// Text implements the [Rule] interface for *NetworkRule.
func (f *NetworkRule) Text() (s string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *NetworkRule.
func (f *NetworkRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// Kind implements the [Rule] interface for *NetworkRule.
func (f *NetworkRule) Kind() (k Kind) {
	return KindNetwork
}

// String implements the [fmt.Stringer] interface for *NetworkRule.
func (f *NetworkRule) String() (s string) {
	return f.RuleText
}

// Match checks if this filtering rule matches the specified request.  The
// checks are ordered from the cheapest to the most expensive one.
func (f *NetworkRule) Match(r *Request) (ok bool) {
	switch {
	case
		!f.matchShortcut(r),
		f.IsOptionEnabled(OptionThirdParty) && r.ThirdParty != PartyThird,
		f.IsOptionDisabled(OptionThirdParty) && r.ThirdParty == PartyThird,
		!f.matchRequestType(r.RequestType),
		!f.matchDomain(r),
		!matchList(f.permittedApps, f.restrictedApps, r.AppName),
		!matchList(f.permittedDNSTypes, f.restrictedDNSTypes, r.DNSType),
		!f.matchPattern(r):
		return false
	}

	return true
}

// IsOptionEnabled returns true if the specified option is enabled.
func (f *NetworkRule) IsOptionEnabled(option NetworkRuleOption) (ok bool) {
	return (f.enabledOptions & option) == option
}

// IsOptionDisabled returns true if the specified option is disabled.
func (f *NetworkRule) IsOptionDisabled(option NetworkRuleOption) (ok bool) {
	return (f.disabledOptions & option) == option
}

// GetPermittedDomains returns the domains this rule is allowed on.
func (f *NetworkRule) GetPermittedDomains() (domains []string) {
	return f.permittedDomains
}

// GetRestrictedDomains returns the domains this rule is disabled on.
func (f *NetworkRule) GetRestrictedDomains() (domains []string) {
	return f.restrictedDomains
}

// GetPermittedApps returns the apps this rule is allowed for.
func (f *NetworkRule) GetPermittedApps() (apps []string) {
	return f.permittedApps
}

// AdvancedModifier returns the advanced modifier of the rule or nil.
func (f *NetworkRule) AdvancedModifier() (m AdvancedModifier) {
	return f.advanced
}

// HasWildcardDomains returns true if any of the permitted domains is a
// "name.*" one.
func (f *NetworkRule) HasWildcardDomains() (ok bool) {
	return hasWildcardDomain(f.permittedDomains)
}

// IsHostLevelNetworkRule checks if this rule can be used for hosts-level
// blocking.
func (f *NetworkRule) IsHostLevelNetworkRule() (ok bool) {
	if len(f.permittedDomains) > 0 || len(f.restrictedDomains) > 0 {
		return false
	}

	if f.permittedRequestTypes != 0 || f.restrictedRequestTypes != 0 {
		return false
	}

	if f.disabledOptions != 0 {
		return false
	}

	return f.enabledOptions&^OptionHostLevelRulesOnly == 0
}

// IsRegexRule returns true if rule's pattern is a regular expression.
func (f *NetworkRule) IsRegexRule() (ok bool) {
	return isRegexPattern(f.pattern)
}

// IsGeneric returns true if the rule is considered "generic".  "Generic" means
// that the rule is not restricted to a limited set of domains.  Please note
// that it might be forbidden on some domains, though.
func (f *NetworkRule) IsGeneric() (ok bool) {
	return len(f.permittedDomains) == 0
}

// IsDocumentAllowlistRule checks if the rule is a document-level allowlist
// rule.  This means that the rule is supposed to disable or modify blocking of
// the page subrequests.  For instance, `@@||example.org^$urlblock` unblocks all
// sub-requests.
func (f *NetworkRule) IsDocumentAllowlistRule() (ok bool) {
	return f.Allowlist && (f.IsOptionEnabled(OptionUrlblock) ||
		f.IsOptionEnabled(OptionGenericblock))
}

// IsHigherPriority checks if the rule has higher priority than r.  The order
// is:
//
//  1. allowlist with $important;
//  2. $important;
//  3. allowlist;
//  4. $redirect;
//  5. domain-specific;
//  6. more modifiers.
//
// Every level is compared for both rules, so the relation is a strict weak
// ordering.
func (f *NetworkRule) IsHigherPriority(r *NetworkRule) (ok bool) {
	return comparePriority(f, r) > 0
}

// comparePriority returns a positive number if a has a higher priority than b,
// a negative one if b is higher, and zero if they are equal.
func comparePriority(a, b *NetworkRule) (res int) {
	aw, bw := a.priorityWeights(), b.priorityWeights()
	for i := range aw {
		if res = cmp.Compare(aw[i], bw[i]); res != 0 {
			return res
		}
	}

	return 0
}

// priorityWeights returns the per-level priority weights of the rule, the most
// significant level first.
func (f *NetworkRule) priorityWeights() (w [6]int) {
	important := f.IsOptionEnabled(OptionImportant)

	return [6]int{
		boolToInt(f.Allowlist && important),
		boolToInt(important),
		boolToInt(f.Allowlist),
		boolToInt(f.IsOptionEnabled(OptionRedirect)),
		boolToInt(!f.IsGeneric()),
		f.modifiersCount(),
	}
}

// modifiersCount returns the number of modifiers the rule is constrained
// with.  Each kind of list-based restriction counts as one.
func (f *NetworkRule) modifiersCount() (n int) {
	n = f.enabledOptions.Count() + f.disabledOptions.Count() +
		f.permittedRequestTypes.Count() + f.restrictedRequestTypes.Count()

	if len(f.permittedDomains) != 0 || len(f.restrictedDomains) != 0 {
		n++
	}

	if len(f.permittedApps) != 0 || len(f.restrictedApps) != 0 {
		n++
	}

	if len(f.permittedDNSTypes) != 0 || len(f.restrictedDNSTypes) != 0 {
		n++
	}

	return n
}

// boolToInt returns 1 for true and 0 for false.
func boolToInt(b bool) (n int) {
	if b {
		return 1
	}

	return 0
}

// negatesBadfilter only makes sense when the f rule has the $badfilter
// modifier.  It returns true if f negates r.
func (f *NetworkRule) negatesBadfilter(r *NetworkRule) (ok bool) {
	switch {
	case
		!f.IsOptionEnabled(OptionBadfilter),
		f.Allowlist != r.Allowlist,
		f.pattern != r.pattern,
		f.permittedRequestTypes != r.permittedRequestTypes,
		f.restrictedRequestTypes != r.restrictedRequestTypes,
		f.enabledOptions&^OptionBadfilter != r.enabledOptions,
		f.disabledOptions != r.disabledOptions,
		!slices.Equal(f.restrictedDomains, r.restrictedDomains),
		!domainsOverlap(f.permittedDomains, r.permittedDomains):
		return false
	}

	return true
}

// compile compiles the pattern once.
func (f *NetworkRule) compile() (c *compiledPattern) {
	f.compileOnce.Do(func() {
		c := &compiledPattern{}

		pattern := patternToRegexp(f.pattern)
		if pattern != RegexAnyCharacter {
			if !f.IsOptionEnabled(OptionMatchCase) {
				pattern = "(?i)" + pattern
			}

			var err error
			c.re, err = regexp.Compile(pattern)
			c.invalid = err != nil
		}

		f.compiled = c
	})

	return f.compiled
}

// IsInvalid returns true if the rule pattern can't be compiled.  Such rules
// never match anything.
func (f *NetworkRule) IsInvalid() (ok bool) {
	return f.compile().invalid
}

// matchPattern uses the regex pattern to match the request URL.
func (f *NetworkRule) matchPattern(r *Request) (ok bool) {
	c := f.compile()
	switch {
	case c.invalid:
		return false
	case c.re == nil:
		return true
	case f.shouldMatchHostname(r):
		return c.re.MatchString(r.Hostname)
	default:
		return c.re.MatchString(r.URL)
	}
}

// shouldMatchHostname checks if we should match hostnames and not the URL.
// This is important for the cases when the engine is used for DNS-level
// blocking.  Note, that even though we may work on a DNS-level, we should
// still sometimes match full URL instead, for example when the pattern
// contains the protocol.
func (f *NetworkRule) shouldMatchHostname(r *Request) (ok bool) {
	if f.IsOptionEnabled(OptionNetwork) {
		return true
	}

	if !r.IsHostnameRequest {
		return false
	}

	if strings.HasPrefix(f.pattern, MaskStartURL) ||
		strings.HasPrefix(f.pattern, "http://") ||
		strings.HasPrefix(f.pattern, "https://") ||
		strings.HasPrefix(f.pattern, "://") {
		return false
	}

	// Regular expressions like "/hostname./" are matched against the URL if
	// they only contain hostname characters.
	if len(f.pattern) > 3 && f.pattern[0] == '/' && f.pattern[len(f.pattern)-1] == '.' {
		for i := 1; i < len(f.pattern)-1; i++ {
			if !isHostnameChar(f.pattern[i]) {
				return true
			}
		}

		return false
	}

	return true
}

// isHostnameChar returns true if c can be a part of a hostname.
func isHostnameChar(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '.' || c == '-'
}

// matchShortcut simply checks if shortcut is a substring of the URL.
func (f *NetworkRule) matchShortcut(r *Request) (ok bool) {
	return strings.Contains(r.URLLowerCase, f.Shortcut)
}

// matchDomain checks the $domain modifier against the source hostname of the
// request.  Document and subdocument requests may also be matched by their own
// hostname, unless the pattern itself targets a domain, so that $domain rules
// work for top-level navigations without a referrer.
func (f *NetworkRule) matchDomain(r *Request) (ok bool) {
	if len(f.permittedDomains) == 0 && len(f.restrictedDomains) == 0 {
		return true
	}

	if f.matchSourceDomain(r.SourceHostname) {
		return true
	}

	isDocument := r.RequestType == TypeDocument || r.RequestType == TypeSubdocument
	if !isDocument || f.isDomainAnchored() || r.Hostname == "" {
		return false
	}

	return f.matchSourceDomain(r.Hostname)
}

// isDomainAnchored returns true if the pattern targets a specific domain.
func (f *NetworkRule) isDomainAnchored() (ok bool) {
	return strings.HasPrefix(f.pattern, MaskStartURL) ||
		strings.HasPrefix(f.pattern, "http://") ||
		strings.HasPrefix(f.pattern, "https://")
}

// matchSourceDomain checks if the specified filtering rule is allowed on this
// domain, i.e. it checks the domain against what's specified in the $domain
// modifier.
func (f *NetworkRule) matchSourceDomain(domain string) (ok bool) {
	if len(f.restrictedDomains) > 0 && isDomainOrSubdomainOfAny(domain, f.restrictedDomains) {
		return false
	}

	if len(f.permittedDomains) > 0 {
		return domain != "" && isDomainOrSubdomainOfAny(domain, f.permittedDomains)
	}

	return true
}

// matchRequestType checks if the specified request type matches the rule
// properties.
func (f *NetworkRule) matchRequestType(requestType RequestType) (ok bool) {
	if f.permittedRequestTypes != 0 && (f.permittedRequestTypes&requestType) != requestType {
		return false
	}

	if f.restrictedRequestTypes != 0 && (f.restrictedRequestTypes&requestType) == requestType {
		return false
	}

	return true
}

// setRequestType permits or forbids the specified request type.
func (f *NetworkRule) setRequestType(requestType RequestType, permitted bool) {
	if permitted {
		f.permittedRequestTypes |= requestType
	} else {
		f.restrictedRequestTypes |= requestType
	}
}

// setOptionEnabled enables or disables the specified option.  It returns an
// error if this option cannot be used with this type of rules.
func (f *NetworkRule) setOptionEnabled(option NetworkRuleOption, enabled bool) (err error) {
	if f.Allowlist && (option&OptionBlocklistOnly) == option {
		return fmt.Errorf("modifier cannot be used in an allowlist rule: %s", option)
	}

	if !f.Allowlist && (option&OptionAllowlistOnly) == option {
		return fmt.Errorf("modifier cannot be used in a blocking rule: %s", option)
	}

	if enabled {
		f.enabledOptions |= option
	} else {
		f.disabledOptions |= option
	}

	return nil
}

// setAdvancedModifier enables the advanced option and stores its value.
func (f *NetworkRule) setAdvancedModifier(
	option NetworkRuleOption,
	m AdvancedModifier,
	err error,
) (resErr error) {
	if err != nil {
		return err
	}

	if f.advanced != nil {
		return fmt.Errorf("modifier %s conflicts with another advanced modifier", option)
	}

	f.advanced = m

	return f.setOptionEnabled(option, true)
}

// loadOptions loads all the filtering rule options.
func (f *NetworkRule) loadOptions(options string) (err error) {
	if options == "" {
		return nil
	}

	for _, option := range splitWithEscapeCharacter(options, ',', escapeCharacter, false) {
		name, value, _ := strings.Cut(option, "=")

		err = f.loadOption(strings.TrimSpace(name), value)
		if err != nil {
			return err
		}
	}

	// Document-level options can only be applied to documents.
	if f.enabledOptions&OptionDocumentLevel != 0 && f.permittedRequestTypes == 0 {
		f.permittedRequestTypes = TypeDocument
	}

	// Content-Security-Policy is only sent with documents and frames.
	if f.IsOptionEnabled(OptionCsp) && f.permittedRequestTypes == 0 {
		f.permittedRequestTypes = TypeDocument | TypeSubdocument
	}

	return nil
}

// loadOption loads specified option with its value, which may be empty.
//
//nolint:gocyclo
func (f *NetworkRule) loadOption(name, value string) (err error) {
	if t, ok := ParseRequestType(strings.TrimPrefix(name, "~")); ok && !f.isDocumentOption(name) {
		f.setRequestType(t, !strings.HasPrefix(name, "~"))

		return nil
	}

	switch name {
	case "third-party", "~first-party", "3p", "~1p":
		return f.setOptionEnabled(OptionThirdParty, true)
	case "~third-party", "first-party", "~3p", "1p":
		return f.setOptionEnabled(OptionThirdParty, false)
	case "match-case":
		return f.setOptionEnabled(OptionMatchCase, true)
	case "~match-case":
		return f.setOptionEnabled(OptionMatchCase, false)
	case "important":
		return f.setOptionEnabled(OptionImportant, true)
	case "badfilter":
		return f.setOptionEnabled(OptionBadfilter, true)
	case "domain", "from":
		f.permittedDomains, f.restrictedDomains, err = loadDomains(value, "|")

		return err
	case "app":
		f.permittedApps, f.restrictedApps, err = loadApps(value)

		return err
	case "dnstype":
		f.permittedDNSTypes, f.restrictedDNSTypes, err = loadDNSTypes(value)

		return err

	// Document-level allowlist rules.
	case "elemhide", "ehide":
		return f.setOptionEnabled(OptionElemhide, true)
	case "generichide", "ghide":
		return f.setOptionEnabled(OptionGenerichide, true)
	case "genericblock":
		return f.setOptionEnabled(OptionGenericblock, true)
	case "jsinject":
		return f.setOptionEnabled(OptionJsinject, true)
	case "urlblock":
		return f.setOptionEnabled(OptionUrlblock, true)
	case "content":
		return f.setOptionEnabled(OptionContent, true)
	case "document", "doc":
		return f.setOptionEnabled(OptionDocument, true)
	case "stealth":
		return f.setOptionEnabled(OptionStealth, true)

	case "popup":
		return f.setOptionEnabled(OptionPopup, true)
	case "empty":
		return f.setOptionEnabled(OptionEmpty, true)
	case "mp4":
		return f.setOptionEnabled(OptionMp4, true)
	case "network":
		return f.setOptionEnabled(OptionNetwork, true)

	// Advanced modifiers.
	case "csp":
		m, mErr := newCSPModifier(value, f.Allowlist)

		return f.setAdvancedModifier(OptionCsp, m, mErr)
	case replaceOption:
		m, mErr := newReplaceModifier(value, f.Allowlist)

		return f.setAdvancedModifier(OptionReplace, m, mErr)
	case "cookie":
		m, mErr := newCookieModifier(value)

		return f.setAdvancedModifier(OptionCookie, m, mErr)
	case "redirect":
		m, mErr := newRedirectModifier(value)

		return f.setAdvancedModifier(OptionRedirect, m, mErr)
	case "removeparam":
		m, mErr := newRemoveParamModifier(value)

		return f.setAdvancedModifier(OptionRemoveParam, m, mErr)
	}

	return fmt.Errorf("unknown filter modifier: %s=%s", name, value)
}

// isDocumentOption returns true if the $document modifier in an allowlist rule
// must be treated as a set of document-level options, not a request type.
func (f *NetworkRule) isDocumentOption(name string) (ok bool) {
	return f.Allowlist && (name == "document" || name == "doc")
}

// parseRuleText splits the rule text in multiple parts:
//
//   - pattern is a basic rule pattern, which can be easily converted into a
//     regex;
//   - options is a string with all rule options;
//   - allowlist indicates if rule is an exception rule.
func parseRuleText(ruleText string) (pattern, options string, allowlist bool, err error) {
	startIndex := 0
	if strings.HasPrefix(ruleText, maskAllowlist) {
		allowlist = true
		startIndex = len(maskAllowlist)
	}

	if len(ruleText) <= startIndex {
		return "", "", false, newRuleSyntaxError(ruleText, "the rule is too short")
	}

	pattern = ruleText[startIndex:]

	// Avoid parsing options inside of a regex rule.
	if isRegexPattern(pattern) && !strings.Contains(pattern, replaceOption+"=") {
		return pattern, "", allowlist, nil
	}

	foundEscaped := false
	for i := len(ruleText) - 2; i >= startIndex; i-- {
		if ruleText[i] != optionsDelimiter {
			continue
		}

		if i > startIndex && ruleText[i-1] == escapeCharacter {
			foundEscaped = true

			continue
		}

		pattern = ruleText[startIndex:i]
		options = ruleText[i+1:]
		if foundEscaped {
			options = strings.ReplaceAll(options, `\$`, "$")
		}

		break
	}

	return pattern, options, allowlist, nil
}
