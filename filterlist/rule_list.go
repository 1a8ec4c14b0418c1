// Package filterlist contains the rule lists, the scanners that read them, and
// the rule storage that combines several lists and materializes rules on
// demand.
package filterlist

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/errors"
)

// ErrRuleRetrieval signals that the rule cannot be retrieved by the specified
// index.
const ErrRuleRetrieval errors.Error = "cannot retrieve the rule"

// RuleList represents a set of filtering rules.
type RuleList interface {
	// GetID returns the rule list identifier.
	GetID() (id int)

	// NewScanner creates a new scanner that reads the list contents.
	NewScanner() (sc *RuleScanner)

	// RetrieveRule returns a rule by its index.  ruleIdx is the byte offset
	// of the rule's line as reported by the scanner.
	RetrieveRule(ruleIdx int) (r rules.Rule, err error)

	io.Closer
}

// type check
var (
	_ RuleList = (*StringRuleList)(nil)
	_ RuleList = (*FileRuleList)(nil)
)

// StringRuleList represents a string-based rule list.
type StringRuleList struct {
	// Logger is used to log the rules that cannot be parsed.  If nil,
	// nothing is logged.
	Logger *slog.Logger

	// RulesText is a string with filtering rules, one per line.
	RulesText string

	// ID is the rule list identifier.
	ID int

	// IgnoreCosmetic tells whether to ignore cosmetic rules or not.
	IgnoreCosmetic bool
}

// GetID implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) GetID() (id int) {
	return l.ID
}

// NewScanner implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(strings.NewReader(l.RulesText), &RuleScannerConfig{
		Logger:         l.Logger,
		ListID:         l.ID,
		IgnoreCosmetic: l.IgnoreCosmetic,
	})
}

// RetrieveRule implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) RetrieveRule(ruleIdx int) (r rules.Rule, err error) {
	if ruleIdx < 0 || ruleIdx >= len(l.RulesText) {
		return nil, ErrRuleRetrieval
	}

	line := l.RulesText[ruleIdx:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	return newRuleFromLine(line, l.ID)
}

// Close implements the [RuleList] interface for *StringRuleList.
func (l *StringRuleList) Close() (err error) {
	return nil
}

// FileRuleList represents a file-based rule list.  The file stays open until
// the list is closed, and rules are read from it with [os.File.ReadAt] so that
// the list text is never kept in memory.
type FileRuleList struct {
	logger         *slog.Logger
	file           *os.File
	id             int
	ignoreCosmetic bool
}

// NewFileRuleList opens the file at path and creates a new rule list backed by
// it.  logger may be nil.
func NewFileRuleList(
	id int,
	path string,
	ignoreCosmetic bool,
	logger *slog.Logger,
) (l *FileRuleList, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rule list %d: %w", id, err)
	}

	return &FileRuleList{
		logger:         logger,
		file:           f,
		id:             id,
		ignoreCosmetic: ignoreCosmetic,
	}, nil
}

// GetID implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) GetID() (id int) {
	return l.id
}

// NewScanner implements the [RuleList] interface for *FileRuleList.  Scanners
// of the same list are independent of each other.
func (l *FileRuleList) NewScanner() (sc *RuleScanner) {
	return NewRuleScanner(io.NewSectionReader(l.file, 0, 1<<62), &RuleScannerConfig{
		Logger:         l.logger,
		ListID:         l.id,
		IgnoreCosmetic: l.ignoreCosmetic,
	})
}

// readLineBufferSize is the size of the chunks read from the file when
// looking for the end of a line.
const readLineBufferSize = 512

// RetrieveRule implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) RetrieveRule(ruleIdx int) (r rules.Rule, err error) {
	if ruleIdx < 0 {
		return nil, ErrRuleRetrieval
	}

	line, err := l.readLineAt(int64(ruleIdx))
	if err != nil {
		return nil, err
	}

	return newRuleFromLine(line, l.id)
}

// readLineAt reads the line starting at offset off.
func (l *FileRuleList) readLineAt(off int64) (line string, err error) {
	var sb strings.Builder
	buf := make([]byte, readLineBufferSize)
	for {
		var n int
		n, err = l.file.ReadAt(buf, off)
		chunk := buf[:n]
		if i := bytes.IndexByte(chunk, '\n'); i >= 0 {
			sb.Write(chunk[:i])

			return sb.String(), nil
		}

		sb.Write(chunk)
		off += int64(n)

		if errors.Is(err, io.EOF) {
			if sb.Len() == 0 {
				return "", ErrRuleRetrieval
			}

			return sb.String(), nil
		} else if err != nil {
			return "", fmt.Errorf("reading rule list %d: %w", l.id, err)
		}
	}
}

// Close implements the [RuleList] interface for *FileRuleList.
func (l *FileRuleList) Close() (err error) {
	return l.file.Close()
}

// newRuleFromLine parses the rule at line.  Empty lines and comments are
// reported as [ErrRuleRetrieval].
func newRuleFromLine(line string, listID int) (r rules.Rule, err error) {
	r, err = rules.NewRule(line, listID)
	if err != nil {
		return nil, err
	} else if r == nil {
		return nil, ErrRuleRetrieval
	}

	return r, nil
}
