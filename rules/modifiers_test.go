package rules

import (
	"testing"

	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceModifier_Apply(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value string
		in    string
		want  string
	}{{
		name:  "first",
		value: "/ad/no/",
		in:    "ad ad ad",
		want:  "no ad ad",
	}, {
		name:  "global",
		value: "/ad/no/g",
		in:    "ad ad ad",
		want:  "no no no",
	}, {
		name:  "case_insensitive",
		value: "/AD/no/gi",
		in:    "ad Ad",
		want:  "no no",
	}, {
		name:  "escaped_slash",
		value: `/a\/b/c/`,
		in:    "x a/b y",
		want:  "x c y",
	}, {
		name:  "groups",
		value: `/(\w+)@(\w+)/$2 at $1/`,
		in:    "user@host",
		want:  "host at user",
	}, {
		name:  "empty_replacement",
		value: "/<script>//g",
		in:    "<script><script>x",
		want:  "x",
	}, {
		name:  "no_match",
		value: "/zzz/y/",
		in:    "abc",
		want:  "abc",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := newReplaceModifier(tc.value, false)
			require.NoError(t, err)

			assert.Equal(t, tc.value, m.Value())
			assert.Equal(t, tc.want, m.Apply(tc.in))
		})
	}
}

func TestNewReplaceModifier_errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		value      string
		wantErrMsg string
	}{{
		name:       "empty",
		value:      "",
		wantErrMsg: "empty $replace value is only allowed in allowlist rules",
	}, {
		name:       "no_slash",
		value:      "a/b/",
		wantErrMsg: `invalid $replace value "a/b/": must start with /`,
	}, {
		name:       "parts",
		value:      "/a/b",
		wantErrMsg: `invalid $replace value "/a/b": want /regex/replacement/flags`,
	}, {
		name:       "empty_regex",
		value:      "//b/",
		wantErrMsg: `invalid $replace value "//b/": empty regex`,
	}, {
		name:       "flag",
		value:      "/a/b/x",
		wantErrMsg: `invalid $replace flag 'x'`,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := newReplaceModifier(tc.value, false)
			testutil.AssertErrorMsg(t, tc.wantErrMsg, err)
		})
	}

	t.Run("empty_allowlist", func(t *testing.T) {
		t.Parallel()

		m, err := newReplaceModifier("", true)
		require.NoError(t, err)

		assert.Empty(t, m.Value())
		assert.Equal(t, "abc", m.Apply("abc"))
	})
}

func TestCookieModifier(t *testing.T) {
	t.Parallel()

	m, err := newCookieModifier("")
	require.NoError(t, err)

	assert.True(t, m.MatchName("any"))

	m, err = newCookieModifier("__utm;maxAge=3600;sameSite=Lax")
	require.NoError(t, err)

	assert.True(t, m.MatchName("__utm"))
	assert.False(t, m.MatchName("__utma"))
	assert.Equal(t, 3600, m.MaxAge())
	assert.Equal(t, "lax", m.SameSite())

	m, err = newCookieModifier("/^_ga/")
	require.NoError(t, err)

	assert.True(t, m.MatchName("_ga_123"))
	assert.False(t, m.MatchName("x_ga"))

	_, err = newCookieModifier("name;maxAge=x")
	assert.Error(t, err)

	_, err = newCookieModifier("name;unknown=1")
	testutil.AssertErrorMsg(t, `unknown $cookie option "unknown"`, err)

	_, err = newCookieModifier("name;broken")
	testutil.AssertErrorMsg(t, `invalid $cookie option "broken"`, err)
}

func TestRemoveParamModifier(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		value string
		in    string
		want  string
	}{{
		name:  "all",
		value: "",
		in:    "https://example.org/?a=1&b=2",
		want:  "https://example.org/",
	}, {
		name:  "name",
		value: "utm_source",
		in:    "https://example.org/?utm_source=x&id=1",
		want:  "https://example.org/?id=1",
	}, {
		name:  "inverted",
		value: "~id",
		in:    "https://example.org/?utm_source=x&id=1",
		want:  "https://example.org/?id=1",
	}, {
		name:  "regex",
		value: "/^utm_/",
		in:    "https://example.org/?utm_source=x&utm_medium=y&id=1",
		want:  "https://example.org/?id=1",
	}, {
		name:  "regex_case_insensitive",
		value: "/^UTM_/i",
		in:    "https://example.org/?utm_source=x&id=1",
		want:  "https://example.org/?id=1",
	}, {
		name:  "no_query",
		value: "utm_source",
		in:    "https://example.org/path",
		want:  "https://example.org/path",
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := newRemoveParamModifier(tc.value)
			require.NoError(t, err)

			assert.Equal(t, tc.want, m.Apply(tc.in))
		})
	}

	t.Run("bad_regex", func(t *testing.T) {
		t.Parallel()

		_, err := newRemoveParamModifier("/(/")
		assert.Error(t, err)
	})
}

func TestNewCSPModifier(t *testing.T) {
	t.Parallel()

	m, err := newCSPModifier("frame-src 'none'", false)
	require.NoError(t, err)

	assert.Equal(t, "frame-src 'none'", m.Value())

	m, err = newCSPModifier("", true)
	require.NoError(t, err)

	assert.Empty(t, m.Value())

	_, err = newCSPModifier("REPORT-TO x", false)
	testutil.AssertErrorMsg(t, "forbidden $csp directive: report-to", err)
}

func TestNewRedirectModifier(t *testing.T) {
	t.Parallel()

	m, err := newRedirectModifier("noopjs")
	require.NoError(t, err)

	assert.Equal(t, "noopjs", m.Value())

	_, err = newRedirectModifier("")
	testutil.AssertErrorMsg(t, "$redirect requires a resource name", err)
}
