package filterlist

import "github.com/AdguardTeam/filterengine/rules"

// RuleStorageScanner scans multiple RuleScanner instances.  The rule index is
// built from the rule index in the list and the list ID: the higher 32 bits
// are the list ID, the lower 32 bits are the rule index in the list.
type RuleStorageScanner struct {
	// Scanners is the list of list scanners backing this combined scanner.
	Scanners []*RuleScanner

	currentScanner    *RuleScanner
	currentScannerIdx int
}

// Scan advances the RuleStorageScanner to the next rule, which will then be
// available through the Rule method.  It returns false when the scan stops,
// either by reaching the end of the input or an error.
func (s *RuleStorageScanner) Scan() (ok bool) {
	if len(s.Scanners) == 0 {
		return false
	}

	if s.currentScanner == nil {
		s.currentScannerIdx = 0
		s.currentScanner = s.Scanners[s.currentScannerIdx]
	}

	for {
		if s.currentScanner.Scan() {
			return true
		}

		if s.currentScannerIdx == len(s.Scanners)-1 {
			return false
		}

		s.currentScannerIdx++
		s.currentScanner = s.Scanners[s.currentScannerIdx]
	}
}

// Rule returns the most recent rule generated by a call to Scan, and the
// index of this rule.  See [ruleListIdxToStorageIdx] for the details of the
// index format.
func (s *RuleStorageScanner) Rule() (r rules.Rule, storageIdx int64) {
	if s.currentScanner == nil {
		return nil, 0
	}

	r, idx := s.currentScanner.Rule()
	if r == nil {
		return nil, 0
	}

	return r, ruleListIdxToStorageIdx(r.GetFilterListID(), idx)
}

// ruleListIdxToStorageIdx converts a pair of listID and rule list index to a
// single int64 "storage index".
func ruleListIdxToStorageIdx(listID, ruleIdx int) (storageIdx int64) {
	return int64(listID)<<32 | int64(ruleIdx)&0xFFFFFFFF
}

// storageIdxToRuleListIdx converts the "storage index" to the rule list
// identifier and the index of the rule in the list.
func storageIdxToRuleListIdx(storageIdx int64) (listID, ruleIdx int) {
	return int(storageIdx >> 32), int(uint32(storageIdx))
}
