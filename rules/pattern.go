package rules

import (
	"regexp"
	"strings"
)

// Special characters of the basic rule pattern syntax.
const (
	// MaskStartURL anchors the pattern to the start of the hostname of any
	// supported protocol.
	MaskStartURL = "||"

	// MaskPipe anchors the pattern to the start or to the end of the URL.
	MaskPipe = "|"

	// MaskSeparator matches any separator character or the end of the URL.
	MaskSeparator = "^"

	// MaskAnyCharacter matches any sequence of characters.
	MaskAnyCharacter = "*"

	// MaskRegexRule is the delimiter of a regular expression pattern.
	MaskRegexRule = "/"
)

// Regular expression counterparts of the special characters.
const (
	RegexAnyCharacter = ".*"
	RegexSeparator    = "([^ a-zA-Z0-9.%_-]|$)"
	RegexStartURL     = `^(http|https|ws|wss)://([a-z0-9-_.]+\.)?`
	RegexStartString  = "^"
	RegexEndString    = "$"
)

// regexSpecialCharacters are escaped when a basic pattern is converted into a
// regular expression.  The pattern's own special characters are handled
// separately.
const regexSpecialCharacters = `.+?${}()[]/\`

// shortcutSpecialCharacters are the characters a basic pattern shortcut cannot
// contain.
const shortcutSpecialCharacters = "*^|"

var (
	reRegexpBrackets1         = regexp.MustCompile(`([^\\])\(.*[^\\]\)`)
	reRegexpBrackets2         = regexp.MustCompile(`([^\\])\{.*[^\\]\}`)
	reRegexpBrackets3         = regexp.MustCompile(`([^\\])\[.*[^\\]\]`)
	reRegexpEscapedCharacters = regexp.MustCompile(`([^\\])\\[a-zA-Z]`)
	reRegexpOptionalCharacter = regexp.MustCompile(`[^\\]\*`)
	reRegexpSpecialCharacters = regexp.MustCompile(`[\\^$*+?.()|[\]{}]`)
)

// isRegexPattern returns true if pattern is a regular expression literal
// delimited with slashes.
func isRegexPattern(pattern string) (ok bool) {
	return len(pattern) >= 2*len(MaskRegexRule) &&
		strings.HasPrefix(pattern, MaskRegexRule) &&
		strings.HasSuffix(pattern, MaskRegexRule)
}

// patternToRegexp converts a basic rule pattern into a regular expression.
// Regular expression literals are returned without their delimiters.  Patterns
// that match any URL are converted into [RegexAnyCharacter].
func patternToRegexp(pattern string) (re string) {
	switch pattern {
	case MaskStartURL, MaskPipe, MaskAnyCharacter, "":
		return RegexAnyCharacter
	}

	if isRegexPattern(pattern) {
		return pattern[len(MaskRegexRule) : len(pattern)-len(MaskRegexRule)]
	}

	sb := &strings.Builder{}
	body := pattern
	if rest, ok := strings.CutPrefix(body, MaskStartURL); ok {
		sb.WriteString(RegexStartURL)
		body = rest
	} else if rest, ok = strings.CutPrefix(body, MaskPipe); ok {
		sb.WriteString(RegexStartString)
		body = rest
	}

	anchorEnd := false
	if rest, ok := strings.CutSuffix(body, MaskPipe); ok {
		anchorEnd = true
		body = rest
	}

	for i := range len(body) {
		c := body[i]
		switch {
		case c == '*':
			sb.WriteString(RegexAnyCharacter)
		case c == '^':
			sb.WriteString(RegexSeparator)
		case c == '|':
			sb.WriteString(`\|`)
		case strings.IndexByte(regexSpecialCharacters, c) >= 0:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}

	if anchorEnd {
		sb.WriteString(RegexEndString)
	}

	return sb.String()
}

// findShortcut searches for the longest substring of the pattern that does not
// contain any of the special characters "*", "^", and "|".
func findShortcut(pattern string) (shortcut string) {
	for pattern != "" {
		i := strings.IndexAny(pattern, shortcutSpecialCharacters)
		if i == -1 {
			if len(pattern) > len(shortcut) {
				return pattern
			}

			break
		}

		if i > len(shortcut) {
			shortcut = pattern[:i]
		}

		pattern = pattern[i+1:]
	}

	return shortcut
}

// findRegexpShortcut searches for a shortcut inside of a regexp pattern.
// Shortcut in this case is a longest string with no regexp special characters.
// Complicated expressions, which use lookarounds or the "?" quantifier, have no
// shortcut.
func findRegexpShortcut(pattern string) (shortcut string) {
	pattern = pattern[len(MaskRegexRule) : len(pattern)-len(MaskRegexRule)]

	if strings.Contains(pattern, "?") {
		return ""
	}

	// Placeholder for the stripped parts.  It's also prepended so that the
	// first character can be matched by the expressions below.
	const specialCharacter = "..."

	pattern = specialCharacter + pattern

	pattern = reRegexpBrackets1.ReplaceAllString(pattern, "$1"+specialCharacter)
	pattern = reRegexpBrackets2.ReplaceAllString(pattern, "$1"+specialCharacter)
	pattern = reRegexpBrackets3.ReplaceAllString(pattern, "$1"+specialCharacter)
	pattern = reRegexpEscapedCharacters.ReplaceAllString(pattern, "$1"+specialCharacter)

	// A character followed by "*" may be absent, so it can't be a part of the
	// shortcut.
	pattern = reRegexpOptionalCharacter.ReplaceAllString(pattern, specialCharacter)

	for _, part := range reRegexpSpecialCharacters.Split(pattern, -1) {
		if len(part) > len(shortcut) {
			shortcut = part
		}
	}

	return shortcut
}

// extractShortcut returns the lower-cased shortcut of pattern.  An empty
// shortcut passes any URL.
func extractShortcut(pattern string) (shortcut string) {
	if isRegexPattern(pattern) {
		shortcut = findRegexpShortcut(pattern)
	} else {
		shortcut = findShortcut(pattern)
	}

	return strings.ToLower(shortcut)
}
