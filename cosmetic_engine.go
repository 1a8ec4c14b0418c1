package filterengine

import (
	"strings"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/filterutil"
	"github.com/AdguardTeam/filterengine/rules"
)

// CosmeticEngine combines all the cosmetic rules and allows to quickly find
// all rules matching this or that hostname.
type CosmeticEngine struct {
	lookupTables map[rules.CosmeticRuleType]*cosmeticLookupTable

	// RulesCount is the count of rules added to the engine.
	RulesCount int
}

// NewCosmeticEngine builds a new cosmetic engine from the specified rule
// storage.
func NewCosmeticEngine(s *filterlist.RuleStorage) (e *CosmeticEngine) {
	e = newCosmeticEngineSkipStorageScan(s)

	scanner := s.NewRuleStorageScanner()
	for scanner.Scan() {
		f, idx := scanner.Rule()
		if rule, ok := f.(*rules.CosmeticRule); ok {
			e.AddRule(rule, idx)
		}
	}

	return e
}

// newCosmeticEngineSkipStorageScan creates a new empty *CosmeticEngine backed
// by s.
func newCosmeticEngineSkipStorageScan(s *filterlist.RuleStorage) (e *CosmeticEngine) {
	return &CosmeticEngine{
		lookupTables: map[rules.CosmeticRuleType]*cosmeticLookupTable{
			rules.CosmeticElementHiding: newCosmeticLookupTable(s),
			rules.CosmeticCSS:           newCosmeticLookupTable(s),
			rules.CosmeticJS:            newCosmeticLookupTable(s),
			rules.CosmeticHTML:          newCosmeticLookupTable(s),
		},
	}
}

// AddRule adds a new cosmetic rule to the lookup tables.
func (e *CosmeticEngine) AddRule(f *rules.CosmeticRule, storageIdx int64) {
	t, ok := e.lookupTables[f.Type]
	if !ok {
		return
	}

	e.RulesCount++
	t.addRule(f, storageIdx)
}

// CosmeticContent is the content of the cosmetic rules of one type that
// should be applied to a page.
type CosmeticContent struct {
	Generic        []string `json:"generic"`
	Specific       []string `json:"specific"`
	GenericExtCSS  []string `json:"generic_extcss"`
	SpecificExtCSS []string `json:"specific_extcss"`
}

// append adds the contents of rs to the generic or specific lists.
func (c *CosmeticContent) append(rs []*rules.CosmeticRule, generic bool) {
	for _, r := range rs {
		switch {
		case generic && r.ExtendedCSS:
			c.GenericExtCSS = append(c.GenericExtCSS, r.Content)
		case generic:
			c.Generic = append(c.Generic, r.Content)
		case r.ExtendedCSS:
			c.SpecificExtCSS = append(c.SpecificExtCSS, r.Content)
		default:
			c.Specific = append(c.Specific, r.Content)
		}
	}
}

// CosmeticResult represents all the cosmetic rules applicable to a hostname.
type CosmeticResult struct {
	ElementHiding CosmeticContent `json:"element_hiding"`
	CSS           CosmeticContent `json:"css"`
	JS            CosmeticContent `json:"js"`
	HTML          CosmeticContent `json:"html"`
}

// Match builds scripts and styles that need to be injected into the specified
// page.  option is the set of the enabled cosmetic rule categories, see
// [rules.MatchingResult.GetCosmeticOption].  hostname is matched
// case-insensitively.
func (e *CosmeticEngine) Match(hostname string, option rules.CosmeticOption) (res *CosmeticResult) {
	res = &CosmeticResult{}
	hostname = strings.ToLower(hostname)

	includeCSS := option&rules.CosmeticOptionCSS != 0
	includeGenericCSS := includeCSS && option&rules.CosmeticOptionGenericCSS != 0

	subdomains := filterutil.Subdomains(hostname)
	e.fill(&res.ElementHiding, rules.CosmeticElementHiding, hostname, subdomains, includeCSS, includeGenericCSS)
	e.fill(&res.CSS, rules.CosmeticCSS, hostname, subdomains, includeCSS, includeGenericCSS)

	includeJS := option&rules.CosmeticOptionJS != 0
	e.fill(&res.JS, rules.CosmeticJS, hostname, subdomains, includeJS, includeJS)

	includeHTML := option&rules.CosmeticOptionHTML != 0
	e.fill(&res.HTML, rules.CosmeticHTML, hostname, subdomains, includeHTML, includeHTML)

	return res
}

// fill appends the rules of type typ matching hostname to c.  specific and
// generic tell which kinds of rules to include.
func (e *CosmeticEngine) fill(
	c *CosmeticContent,
	typ rules.CosmeticRuleType,
	hostname string,
	subdomains []string,
	specific bool,
	generic bool,
) {
	t := e.lookupTables[typ]

	if generic {
		c.append(t.findGeneric(hostname), true)
	}

	if specific {
		c.append(t.findByHostname(hostname, subdomains), false)
	}
}
