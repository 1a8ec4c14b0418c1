package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitWithEscapeCharacter(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		in       string
		want     []string
		preserve bool
	}{{
		name:     "simple",
		in:       "opt1,opt2",
		want:     []string{"opt1", "opt2"},
		preserve: false,
	}, {
		name:     "escaped_separator",
		in:       `opt1\,opt2,,`,
		want:     []string{"opt1,opt2"},
		preserve: false,
	}, {
		name:     "escaped_other",
		in:       `opt1,\opt2,,`,
		want:     []string{"opt1", `\opt2`},
		preserve: false,
	}, {
		name:     "preserve_empty",
		in:       `opt1,\opt2,,`,
		want:     []string{"opt1", `\opt2`, "", ""},
		preserve: true,
	}, {
		name:     "empty",
		in:       "",
		want:     nil,
		preserve: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, splitWithEscapeCharacter(tc.in, ',', '\\', tc.preserve))
		})
	}
}

func TestIsDomainOrSubdomainOfAny(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		want    assert.BoolAssertionFunc
		name    string
		domain  string
		domains []string
	}{{
		want:    assert.True,
		name:    "same",
		domain:  "b.com",
		domains: []string{"b.com"},
	}, {
		want:    assert.True,
		name:    "subdomain",
		domain:  "a.b.com",
		domains: []string{"b.com"},
	}, {
		want:    assert.False,
		name:    "not_on_label_boundary",
		domain:  "xb.com",
		domains: []string{"b.com"},
	}, {
		want:    assert.False,
		name:    "parent",
		domain:  "b.com",
		domains: []string{"a.b.com"},
	}, {
		want:    assert.True,
		name:    "any_of",
		domain:  "a.c.com",
		domains: []string{"b.com", "c.com"},
	}, {
		want:    assert.True,
		name:    "wildcard",
		domain:  "www.google.co.uk",
		domains: []string{"google.*"},
	}, {
		want:    assert.False,
		name:    "wildcard_private_suffix",
		domain:  "google.local",
		domains: []string{"google.*"},
	}, {
		want:    assert.False,
		name:    "empty",
		domain:  "",
		domains: []string{"b.com"},
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.want(t, isDomainOrSubdomainOfAny(tc.domain, tc.domains))
		})
	}
}

func TestDomainsOverlap(t *testing.T) {
	t.Parallel()

	assert.True(t, domainsOverlap(nil, nil))
	assert.True(t, domainsOverlap([]string{"a.com", "b.com"}, []string{"b.com"}))
	assert.False(t, domainsOverlap([]string{"a.com"}, []string{"b.com"}))
	assert.False(t, domainsOverlap(nil, []string{"b.com"}))
}

func TestEffectiveTLDPlusOne(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.org", effectiveTLDPlusOne("sub.example.org"))
	assert.Equal(t, "example.co.uk", effectiveTLDPlusOne("a.b.example.co.uk"))
	assert.Equal(t, "", effectiveTLDPlusOne("co.uk"))
	assert.Equal(t, "", effectiveTLDPlusOne(".example.org"))
	assert.Equal(t, "", effectiveTLDPlusOne(""))
}
