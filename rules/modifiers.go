package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// AdvancedModifier is a modifier that carries a value object in addition to
// the option flag.  The set of implementations is closed: *CSPModifier,
// *ReplaceModifier, *CookieModifier, *RedirectModifier, and
// *RemoveParamModifier.
type AdvancedModifier interface {
	// Value returns the raw value of the modifier.  An empty value means "all"
	// for the modifiers that allow it.
	Value() (v string)
}

// type check
var (
	_ AdvancedModifier = (*CSPModifier)(nil)
	_ AdvancedModifier = (*ReplaceModifier)(nil)
	_ AdvancedModifier = (*CookieModifier)(nil)
	_ AdvancedModifier = (*RedirectModifier)(nil)
	_ AdvancedModifier = (*RemoveParamModifier)(nil)
)

// forbiddenCSPDirectives are the directives that can't be added with $csp.
var forbiddenCSPDirectives = []string{"report-uri", "report-to"}

// CSPModifier is the $csp modifier which adds a Content-Security-Policy
// directive to the response.
type CSPModifier struct {
	directive string
}

// newCSPModifier parses the value of the $csp modifier.
func newCSPModifier(value string, allowlist bool) (m *CSPModifier, err error) {
	if value == "" && !allowlist {
		return nil, errors.Error("empty $csp value is only allowed in allowlist rules")
	}

	lower := strings.ToLower(value)
	for _, d := range forbiddenCSPDirectives {
		if strings.Contains(lower, d) {
			return nil, fmt.Errorf("forbidden $csp directive: %s", d)
		}
	}

	return &CSPModifier{directive: value}, nil
}

// Value implements the [AdvancedModifier] interface for *CSPModifier.
func (m *CSPModifier) Value() (v string) {
	return m.directive
}

// ReplaceModifier is the $replace modifier which replaces the response content
// using a regular expression.  The value has the form
// "/regex/replacement/flags" where slashes inside the parts are escaped.
type ReplaceModifier struct {
	re          *regexp.Regexp
	raw         string
	replacement string
	global      bool
}

// newReplaceModifier parses the value of the $replace modifier.
func newReplaceModifier(value string, allowlist bool) (m *ReplaceModifier, err error) {
	if value == "" {
		if !allowlist {
			return nil, errors.Error("empty $replace value is only allowed in allowlist rules")
		}

		return &ReplaceModifier{}, nil
	}

	if !strings.HasPrefix(value, "/") {
		return nil, fmt.Errorf("invalid $replace value %q: must start with /", value)
	}

	parts := splitWithEscapeCharacter(value[1:], '/', '\\', true)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid $replace value %q: want /regex/replacement/flags", value)
	}

	expr, flags := parts[0], parts[2]
	if expr == "" {
		return nil, fmt.Errorf("invalid $replace value %q: empty regex", value)
	}

	m = &ReplaceModifier{
		raw:         value,
		replacement: parts[1],
	}

	for _, f := range flags {
		switch f {
		case 'i':
			expr = "(?i)" + expr
		case 'g':
			m.global = true
		default:
			return nil, fmt.Errorf("invalid $replace flag %q", f)
		}
	}

	m.re, err = regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling $replace regex: %w", err)
	}

	return m, nil
}

// Value implements the [AdvancedModifier] interface for *ReplaceModifier.
func (m *ReplaceModifier) Value() (v string) {
	return m.raw
}

// Apply returns content with the replacement applied.  Without the "g" flag
// only the first match is replaced.
func (m *ReplaceModifier) Apply(content string) (res string) {
	if m.re == nil {
		return content
	}

	if m.global {
		return m.re.ReplaceAllString(content, m.replacement)
	}

	loc := m.re.FindStringSubmatchIndex(content)
	if loc == nil {
		return content
	}

	dst := m.re.ExpandString(nil, m.replacement, content, loc)

	return content[:loc[0]] + string(dst) + content[loc[1]:]
}

// CookieModifier is the $cookie modifier.  The value has the form
// "name[;maxAge=N][;sameSite=V]" where name may be a "/regex/".  An empty name
// matches all cookies.
type CookieModifier struct {
	re       *regexp.Regexp
	raw      string
	name     string
	sameSite string
	maxAge   int
}

// newCookieModifier parses the value of the $cookie modifier.
func newCookieModifier(value string) (m *CookieModifier, err error) {
	m = &CookieModifier{raw: value}
	if value == "" {
		return m, nil
	}

	parts := strings.Split(value, ";")
	name := parts[0]
	if isRegexPattern(name) {
		m.re, err = regexp.Compile(name[1 : len(name)-1])
		if err != nil {
			return nil, fmt.Errorf("compiling $cookie regex: %w", err)
		}
	} else {
		m.name = name
	}

	for _, p := range parts[1:] {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid $cookie option %q", p)
		}

		switch strings.ToLower(strings.TrimSpace(k)) {
		case "maxage":
			m.maxAge, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("invalid $cookie maxAge: %w", err)
			}
		case "samesite":
			m.sameSite = strings.ToLower(strings.TrimSpace(v))
		default:
			return nil, fmt.Errorf("unknown $cookie option %q", k)
		}
	}

	return m, nil
}

// Value implements the [AdvancedModifier] interface for *CookieModifier.
func (m *CookieModifier) Value() (v string) {
	return m.raw
}

// MatchName returns true if the modifier applies to the cookie with the given
// name.
func (m *CookieModifier) MatchName(name string) (ok bool) {
	switch {
	case m.re != nil:
		return m.re.MatchString(name)
	case m.name != "":
		return m.name == name
	default:
		return true
	}
}

// MaxAge returns the maximum age of the cookie set by the rule, zero if
// unspecified.
func (m *CookieModifier) MaxAge() (sec int) {
	return m.maxAge
}

// SameSite returns the SameSite attribute set by the rule, if any.
func (m *CookieModifier) SameSite() (v string) {
	return m.sameSite
}

// RedirectModifier is the $redirect modifier.  The value is the name of the
// resource to redirect the request to.
type RedirectModifier struct {
	resource string
}

// newRedirectModifier parses the value of the $redirect modifier.
func newRedirectModifier(value string) (m *RedirectModifier, err error) {
	if value == "" {
		return nil, errors.Error("$redirect requires a resource name")
	}

	return &RedirectModifier{resource: value}, nil
}

// Value implements the [AdvancedModifier] interface for *RedirectModifier.
func (m *RedirectModifier) Value() (v string) {
	return m.resource
}

// RemoveParamModifier is the $removeparam modifier which removes query
// parameters from the request URL.  The value is a parameter name, a "/regex/"
// with optional "i" flag, or an empty string for all parameters.  A "~" prefix
// inverts the match.
type RemoveParamModifier struct {
	re       *regexp.Regexp
	raw      string
	name     string
	inverted bool
}

// newRemoveParamModifier parses the value of the $removeparam modifier.
func newRemoveParamModifier(value string) (m *RemoveParamModifier, err error) {
	m = &RemoveParamModifier{raw: value}

	v := value
	if rest, ok := strings.CutPrefix(v, "~"); ok {
		m.inverted = true
		v = rest
	}

	switch {
	case strings.HasPrefix(v, "/"):
		expr := v
		caseInsensitive := strings.HasSuffix(expr, "/i")
		if caseInsensitive {
			expr = expr[:len(expr)-1]
		}

		if !isRegexPattern(expr) {
			return nil, fmt.Errorf("invalid $removeparam regex %q", value)
		}

		expr = expr[1 : len(expr)-1]
		if caseInsensitive {
			expr = "(?i)" + expr
		}

		m.re, err = regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling $removeparam regex: %w", err)
		}
	default:
		m.name = v
	}

	return m, nil
}

// Value implements the [AdvancedModifier] interface for *RemoveParamModifier.
func (m *RemoveParamModifier) Value() (v string) {
	return m.raw
}

// MatchParam returns true if the query parameter with the given name must be
// removed.
func (m *RemoveParamModifier) MatchParam(name string) (ok bool) {
	switch {
	case m.re != nil:
		ok = m.re.MatchString(name)
	case m.name != "":
		ok = m.name == name
	default:
		return !m.inverted
	}

	return ok != m.inverted
}

// Apply returns rawURL with the matching query parameters removed.  Invalid
// URLs are returned as is.
func (m *RemoveParamModifier) Apply(rawURL string) (res string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	var kept []string
	for _, pair := range strings.Split(u.RawQuery, "&") {
		name, _, _ := strings.Cut(pair, "=")
		if unescaped, uErr := url.QueryUnescape(name); uErr == nil {
			name = unescaped
		}

		if !m.MatchParam(name) {
			kept = append(kept, pair)
		}
	}

	u.RawQuery = strings.Join(kept, "&")

	return u.String()
}
