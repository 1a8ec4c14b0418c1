package rules

import (
	"fmt"
	"strings"
)

// CosmeticRuleType is the enumeration of different cosmetic rules.
type CosmeticRuleType uint8

// CosmeticRuleType enumeration.
const (
	// CosmeticElementHiding is the "##" rule type.
	//
	// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#cosmetic-elemhide-rules.
	CosmeticElementHiding CosmeticRuleType = iota

	// CosmeticCSS is the "#$#" rule type.
	//
	// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#cosmetic-css-rules.
	CosmeticCSS

	// CosmeticJS is the "#%#" rule type.
	//
	// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#javascript-rules.
	CosmeticJS

	// CosmeticHTML is the "$$" rule type.
	//
	// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#html-filtering-rules.
	CosmeticHTML
)

// String implements the [fmt.Stringer] interface for CosmeticRuleType.
func (t CosmeticRuleType) String() (s string) {
	switch t {
	case CosmeticElementHiding:
		return "element hiding"
	case CosmeticCSS:
		return "css"
	case CosmeticJS:
		return "js"
	case CosmeticHTML:
		return "html"
	default:
		return fmt.Sprintf("!bad_cosmetic_type_%d", t)
	}
}

// cosmeticMarker describes a single cosmetic rule marker.
type cosmeticMarker struct {
	text        string
	ruleType    CosmeticRuleType
	allowlist   bool
	extendedCSS bool
}

// cosmeticMarkers are all supported cosmetic rule markers.
var cosmeticMarkers = []*cosmeticMarker{{
	text:     "##",
	ruleType: CosmeticElementHiding,
}, {
	text:      "#@#",
	ruleType:  CosmeticElementHiding,
	allowlist: true,
}, {
	text:        "#?#",
	ruleType:    CosmeticElementHiding,
	extendedCSS: true,
}, {
	text:        "#@?#",
	ruleType:    CosmeticElementHiding,
	allowlist:   true,
	extendedCSS: true,
}, {
	text:     "#$#",
	ruleType: CosmeticCSS,
}, {
	text:      "#@$#",
	ruleType:  CosmeticCSS,
	allowlist: true,
}, {
	text:        "#$?#",
	ruleType:    CosmeticCSS,
	extendedCSS: true,
}, {
	text:        "#@$?#",
	ruleType:    CosmeticCSS,
	allowlist:   true,
	extendedCSS: true,
}, {
	text:     "#%#",
	ruleType: CosmeticJS,
}, {
	text:      "#@%#",
	ruleType:  CosmeticJS,
	allowlist: true,
}, {
	text:     "$$",
	ruleType: CosmeticHTML,
}, {
	text:      "$@$",
	ruleType:  CosmeticHTML,
	allowlist: true,
}}

// cosmeticMarkersByChar maps the first character of a marker to the markers
// starting with it.
var cosmeticMarkersByChar = func() (m map[byte][]*cosmeticMarker) {
	m = map[byte][]*cosmeticMarker{}
	for _, cm := range cosmeticMarkers {
		m[cm.text[0]] = append(m[cm.text[0]], cm)
	}

	return m
}()

// findCosmeticRuleMarker looks for a cosmetic rule marker in the rule text and
// returns its starting index and the marker itself.  If several markers start
// at the earliest position, the longest one is returned.  idx is -1 if there
// is no marker.
func findCosmeticRuleMarker(ruleText string) (idx int, marker *cosmeticMarker) {
	for i := range len(ruleText) {
		for _, cm := range cosmeticMarkersByChar[ruleText[i]] {
			if !strings.HasPrefix(ruleText[i:], cm.text) {
				continue
			}

			if marker == nil || len(cm.text) > len(marker.text) {
				marker = cm
			}
		}

		if marker != nil {
			return i, marker
		}
	}

	return -1, nil
}

// IsCosmetic returns true if line contains a cosmetic rule marker.
func IsCosmetic(line string) (ok bool) {
	idx, _ := findCosmeticRuleMarker(line)

	return idx != -1
}

// extendedCSSPseudos are the pseudo-classes that require extended CSS support.
var extendedCSSPseudos = []string{
	"has",
	"has-text",
	"contains",
	"-abp-has",
	"-abp-contains",
	"matches-css",
	"matches-css-before",
	"matches-css-after",
	"matches-attr",
	"matches-property",
	"xpath",
	"nth-ancestor",
	"upward",
	"remove",
	"if-not",
	"is",
	"not",
}

// supportedPseudos are the standard pseudo-classes and pseudo-elements
// allowed in non-extended rules.
var supportedPseudos = []string{
	"active",
	"checked",
	"disabled",
	"empty",
	"enabled",
	"first-child",
	"first-of-type",
	"focus",
	"hover",
	"in-range",
	"invalid",
	"lang",
	"last-child",
	"last-of-type",
	"link",
	"not",
	"nth-child",
	"nth-last-child",
	"nth-last-of-type",
	"nth-of-type",
	"only-child",
	"only-of-type",
	"optional",
	"out-of-range",
	"read-only",
	"read-write",
	"required",
	"root",
	"target",
	"valid",
	"visited",
	"where",
	"after",
	"before",
	"first-letter",
	"first-line",
	"selection",
}

// CosmeticRule represents a cosmetic rule: element hiding, CSS injection,
// scriptlet or JS injection, or HTML filtering.
//
// See https://adguard.com/kb/general/ad-filtering/create-own-filters/#cosmetic-rules.
type CosmeticRule struct {
	// RuleText is the original rule text.
	RuleText string

	// Content is the meaningful part of the rule: a CSS selector, a CSS
	// style, a script, or an HTML filter.
	Content string

	// permittedDomains is the list of domains the rule is limited to.
	permittedDomains []string

	// restrictedDomains is the list of domains the rule is disabled on.
	restrictedDomains []string

	// FilterListID is the identifier of the filter list the rule belongs to.
	FilterListID int

	// Type is the type of the cosmetic rule.
	Type CosmeticRuleType

	// Allowlist is true if the rule is an exception one.
	Allowlist bool

	// ExtendedCSS is true if the rule requires extended CSS support.
	ExtendedCSS bool
}

// type check
var _ Rule = (*CosmeticRule)(nil)

// NewCosmeticRule parses the rule text and creates a *CosmeticRule.
func NewCosmeticRule(ruleText string, filterListID int) (r *CosmeticRule, err error) {
	idx, marker := findCosmeticRuleMarker(ruleText)
	if idx == -1 {
		return nil, newRuleSyntaxError(ruleText, "invalid cosmetic rule")
	}

	r = &CosmeticRule{
		RuleText:     ruleText,
		FilterListID: filterListID,
		Type:         marker.ruleType,
		Allowlist:    marker.allowlist,
		ExtendedCSS:  marker.extendedCSS,
		Content:      strings.TrimSpace(ruleText[idx+len(marker.text):]),
	}

	if r.Content == "" {
		return nil, newRuleSyntaxError(ruleText, "empty rule content")
	}

	if domains := ruleText[:idx]; domains != "" && domains != "*" {
		r.permittedDomains, r.restrictedDomains, err = loadDomains(domains, ",")
		if err != nil {
			return nil, &RuleSyntaxError{msg: err.Error(), ruleText: ruleText}
		}
	}

	if r.Allowlist && len(r.permittedDomains) == 0 {
		return nil, newRuleSyntaxError(ruleText, "allowlist rule must have at least one domain specified")
	}

	err = r.validate()
	if err != nil {
		return nil, &RuleSyntaxError{msg: err.Error(), ruleText: ruleText}
	}

	return r, nil
}

// validate checks the rule content depending on its type and sets the
// ExtendedCSS flag if the content requires it.
func (f *CosmeticRule) validate() (err error) {
	switch f.Type {
	case CosmeticElementHiding:
		if strings.HasPrefix(f.Content, MaskStartURL) {
			return fmt.Errorf("element hiding rule looks like a network rule: %q", f.Content)
		}

		if hasStyleBlock(f.Content) {
			return fmt.Errorf("element hiding rule must not contain a style: %q", f.Content)
		}

		return f.validatePseudos(f.Content)
	case CosmeticCSS:
		start := strings.LastIndexByte(f.Content, '{')
		if start == -1 || !hasStyleBlock(f.Content) {
			return fmt.Errorf("css rule must contain a style: %q", f.Content)
		}

		style := f.Content[start:]
		if strings.Contains(strings.ToLower(style), "url(") {
			return fmt.Errorf("css rule must not load urls: %q", style)
		}

		if strings.Contains(style, `\`) {
			return fmt.Errorf("css rule must not contain backslashes: %q", style)
		}

		return f.validatePseudos(f.Content[:start])
	default:
		return nil
	}
}

// hasStyleBlock returns true if s contains a "{...}" block.
func hasStyleBlock(s string) (ok bool) {
	start := strings.IndexByte(s, '{')

	return start != -1 && strings.IndexByte(s[start:], '}') != -1
}

// validatePseudos checks the pseudo-classes of the selector.  Extended
// pseudo-classes turn on the ExtendedCSS flag, unknown ones are only allowed
// in extended rules.
func (f *CosmeticRule) validatePseudos(selector string) (err error) {
	for _, name := range findPseudoClasses(selector) {
		if containsFold(extendedCSSPseudos, name) && !containsFold(supportedPseudos, name) {
			f.ExtendedCSS = true

			continue
		}

		if !containsFold(supportedPseudos, name) && !f.ExtendedCSS {
			return fmt.Errorf("unknown pseudo-class %q", name)
		}
	}

	return nil
}

// findPseudoClasses returns the names of the pseudo-classes in the selector.
// The parts inside quotes, parentheses, and attribute selectors are skipped.
func findPseudoClasses(selector string) (names []string) {
	var quote byte
	depth := 0
	for i := 0; i < len(selector); i++ {
		c := selector[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ':' && depth == 0:
			// Pseudo-elements are written with "::".
			if i+1 < len(selector) && selector[i+1] == ':' {
				i++
			}

			end := i + 1
			for end < len(selector) && isPseudoNameChar(selector[end]) {
				end++
			}

			if end > i+1 {
				names = append(names, selector[i+1:end])
			}

			i = end - 1
		}
	}

	return names
}

// isPseudoNameChar returns true if c can be a part of a pseudo-class name.
func isPseudoNameChar(c byte) (ok bool) {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-'
}

// containsFold returns true if list contains s compared case-insensitively.
func containsFold(list []string, s string) (ok bool) {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}

	return false
}

// Text implements the [Rule] interface for *CosmeticRule.
func (f *CosmeticRule) Text() (s string) {
	return f.RuleText
}

// GetFilterListID implements the [Rule] interface for *CosmeticRule.
func (f *CosmeticRule) GetFilterListID() (id int) {
	return f.FilterListID
}

// Kind implements the [Rule] interface for *CosmeticRule.
func (f *CosmeticRule) Kind() (k Kind) {
	return KindCosmetic
}

// String implements the [fmt.Stringer] interface for *CosmeticRule.
func (f *CosmeticRule) String() (s string) {
	return f.RuleText
}

// GetPermittedDomains returns the domains this rule is allowed on.
func (f *CosmeticRule) GetPermittedDomains() (domains []string) {
	return f.permittedDomains
}

// GetRestrictedDomains returns the domains this rule is disabled on.
func (f *CosmeticRule) GetRestrictedDomains() (domains []string) {
	return f.restrictedDomains
}

// IsGeneric returns true if the rule is considered "generic".  "Generic" means
// that the rule is not restricted to a limited set of domains.  Please note
// that it might be forbidden on some domains, though.
func (f *CosmeticRule) IsGeneric() (ok bool) {
	return len(f.permittedDomains) == 0
}

// HasWildcardDomains returns true if any of the permitted domains is a
// "name.*" one.
func (f *CosmeticRule) HasWildcardDomains() (ok bool) {
	return hasWildcardDomain(f.permittedDomains)
}

// Match returns true if this rule can be used on the specified hostname.
func (f *CosmeticRule) Match(hostname string) (ok bool) {
	if len(f.permittedDomains) == 0 && len(f.restrictedDomains) == 0 {
		return true
	}

	if len(f.restrictedDomains) > 0 && isDomainOrSubdomainOfAny(hostname, f.restrictedDomains) {
		return false
	}

	if len(f.permittedDomains) > 0 {
		return isDomainOrSubdomainOfAny(hostname, f.permittedDomains)
	}

	return true
}
