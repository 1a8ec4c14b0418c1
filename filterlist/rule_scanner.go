package filterlist

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// RuleScannerConfig is the configuration structure for a *RuleScanner.
type RuleScannerConfig struct {
	// Logger is used to log the lines that cannot be parsed.  If nil, nothing
	// is logged.
	Logger *slog.Logger

	// ListID is the ID of the list the scanned rules belong to.
	ListID int

	// IgnoreCosmetic, if true, makes the scanner skip cosmetic rules.
	IgnoreCosmetic bool
}

// RuleScanner reads filtering rules one by one from the underlying reader.
// Empty lines, comments, and invalid rules are skipped.
type RuleScanner struct {
	logger *slog.Logger
	reader *bufio.Reader

	// currentRule is the last successfully parsed rule.
	currentRule rules.Rule

	// currentRuleIdx is the byte offset of the line of currentRule.
	currentRuleIdx int

	// offset is the byte offset of the next line.
	offset int

	listID         int
	ignoreCosmetic bool

	// done is true when the reader is exhausted.
	done bool
}

// NewRuleScanner returns a new *RuleScanner that reads rules from r.  c must
// not be nil.
func NewRuleScanner(r io.Reader, c *RuleScannerConfig) (s *RuleScanner) {
	l := c.Logger
	if l == nil {
		l = slogutil.NewDiscardLogger()
	}

	return &RuleScanner{
		logger:         l,
		reader:         bufio.NewReader(r),
		listID:         c.ListID,
		ignoreCosmetic: c.IgnoreCosmetic,
	}
}

// Scan advances the scanner to the next rule, which will then be available
// through the [RuleScanner.Rule] method.  It returns false when the scan
// stops, either by reaching the end of the input or an error.
func (s *RuleScanner) Scan() (ok bool) {
	for !s.done {
		line, idx, err := s.readLine()
		if err != nil {
			s.done = true

			if !errors.Is(err, io.EOF) {
				s.logger.Error("reading rule list", "list_id", s.listID, slogutil.KeyError, err)

				return false
			}
		}

		r := s.parseLine(line, idx)
		if r != nil {
			s.currentRule = r
			s.currentRuleIdx = idx

			return true
		}
	}

	s.currentRule = nil

	return false
}

// readLine reads the next line and returns it along with its byte offset.
func (s *RuleScanner) readLine() (line string, idx int, err error) {
	idx = s.offset
	line, err = s.reader.ReadString('\n')
	s.offset += len(line)

	return line, idx, err
}

// parseLine returns the rule on line or nil if there's none.
func (s *RuleScanner) parseLine(line string, idx int) (r rules.Rule) {
	line = strings.TrimSpace(line)
	if line == "" || rules.IsComment(line) {
		return nil
	}

	if s.ignoreCosmetic && rules.IsCosmetic(line) {
		return nil
	}

	r, err := rules.NewRule(line, s.listID)
	if err != nil {
		s.logger.Debug(
			"skipping invalid rule",
			"list_id", s.listID,
			"offset", idx,
			"rule", line,
			slogutil.KeyError, err,
		)

		return nil
	}

	return r
}

// Rule returns the most recent rule generated by a call to [RuleScanner.Scan],
// and the index of this rule's line.
func (s *RuleScanner) Rule() (r rules.Rule, idx int) {
	return s.currentRule, s.currentRuleIdx
}
