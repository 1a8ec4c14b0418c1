package rules

import (
	"math/bits"
	"strings"
)

// NetworkRuleOption is the enumeration of various rule options.  In order to
// save memory, we store some options as a flag.
type NetworkRuleOption uint64

// NetworkRuleOption enumeration.
const (
	OptionThirdParty NetworkRuleOption = 1 << iota // $third-party modifier
	OptionMatchCase                                // $match-case modifier
	OptionImportant                                // $important modifier
	OptionBadfilter                                // $badfilter modifier

	// Allowlist rules modifiers.  Each of them can disable part of the
	// functionality.

	OptionElemhide     // $elemhide modifier
	OptionGenerichide  // $generichide modifier
	OptionGenericblock // $genericblock modifier
	OptionJsinject     // $jsinject modifier
	OptionUrlblock     // $urlblock modifier
	OptionContent      // $content modifier
	OptionStealth      // $stealth modifier

	// Content-modifying.

	OptionEmpty // $empty
	OptionMp4   // $mp4

	// Blocking.

	OptionPopup // $popup

	// Advanced modifiers.  A rule carries at most one of them.

	OptionCsp         // $csp
	OptionReplace     // $replace
	OptionCookie      // $cookie
	OptionRedirect    // $redirect
	OptionRemoveParam // $removeparam

	// OptionNetwork makes the rule match the hostname of the request instead
	// of its URL.
	OptionNetwork // $network
)

// Option groups.
const (
	// OptionBlocklistOnly are the options that can only be used in blocking
	// rules.
	OptionBlocklistOnly = OptionPopup | OptionEmpty | OptionMp4 | OptionRedirect

	// OptionAllowlistOnly are the options that can only be used in allowlist
	// rules.
	OptionAllowlistOnly = OptionElemhide | OptionGenericblock | OptionGenerichide |
		OptionJsinject | OptionUrlblock | OptionContent | OptionStealth

	// OptionDocument is the set of options enabled by $document in an
	// allowlist rule.
	OptionDocument = OptionElemhide | OptionJsinject | OptionUrlblock | OptionContent

	// OptionAdvanced are the options that carry an [AdvancedModifier].
	OptionAdvanced = OptionCsp | OptionReplace | OptionCookie | OptionRedirect |
		OptionRemoveParam

	// OptionDocumentLevel are the options that only make sense for the
	// document request.
	OptionDocumentLevel = OptionAllowlistOnly&^OptionStealth | OptionPopup

	// OptionHostLevelRulesOnly are the options supported by host-level network
	// rules.
	OptionHostLevelRulesOnly = OptionImportant | OptionBadfilter
)

// optionNames are the canonical names of the boolean options.
var optionNames = []struct {
	name string
	opt  NetworkRuleOption
}{
	{name: "third-party", opt: OptionThirdParty},
	{name: "match-case", opt: OptionMatchCase},
	{name: "important", opt: OptionImportant},
	{name: "badfilter", opt: OptionBadfilter},
	{name: "elemhide", opt: OptionElemhide},
	{name: "generichide", opt: OptionGenerichide},
	{name: "genericblock", opt: OptionGenericblock},
	{name: "jsinject", opt: OptionJsinject},
	{name: "urlblock", opt: OptionUrlblock},
	{name: "content", opt: OptionContent},
	{name: "stealth", opt: OptionStealth},
	{name: "empty", opt: OptionEmpty},
	{name: "mp4", opt: OptionMp4},
	{name: "popup", opt: OptionPopup},
	{name: "csp", opt: OptionCsp},
	{name: "replace", opt: OptionReplace},
	{name: "cookie", opt: OptionCookie},
	{name: "redirect", opt: OptionRedirect},
	{name: "removeparam", opt: OptionRemoveParam},
	{name: "network", opt: OptionNetwork},
}

// Count returns the count of enabled options.
func (o NetworkRuleOption) Count() (n int) {
	return bits.OnesCount64(uint64(o))
}

// String implements the [fmt.Stringer] interface for NetworkRuleOption.  It
// returns the names of the options joined with "|".
func (o NetworkRuleOption) String() (s string) {
	var names []string
	for _, n := range optionNames {
		if o&n.opt == n.opt {
			names = append(names, n.name)
		}
	}

	return strings.Join(names, "|")
}
