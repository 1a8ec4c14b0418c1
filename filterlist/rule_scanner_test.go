package filterlist_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AdguardTeam/filterengine/filterlist"
	"github.com/AdguardTeam/filterengine/rules"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleScanner_stringReader(t *testing.T) {
	t.Parallel()

	scanner := filterlist.NewRuleScanner(strings.NewReader(testListText), &filterlist.RuleScannerConfig{
		ListID: 1,
	})

	require.True(t, scanner.Scan())
	r, idx := scanner.Rule()
	require.NotNil(t, r)

	assert.Equal(t, "||example.org", r.Text())
	assert.Equal(t, 1, r.GetFilterListID())
	assert.Equal(t, 0, idx)

	require.True(t, scanner.Scan())
	r, idx = scanner.Rule()
	require.NotNil(t, r)

	assert.Equal(t, "##banner", r.Text())
	assert.Equal(t, 1, r.GetFilterListID())
	assert.Equal(t, 21, idx)

	assert.False(t, scanner.Scan())
	assert.False(t, scanner.Scan())

	r, _ = scanner.Rule()
	assert.Nil(t, r)
}

func TestRuleScanner_hostsFile(t *testing.T) {
	t.Parallel()

	file, err := os.Open(filepath.Join(testDataDir, "hosts"))
	require.NoError(t, err)
	testutil.CleanupAndRequireSuccess(t, file.Close)

	scanner := filterlist.NewRuleScanner(file, &filterlist.RuleScannerConfig{
		Logger:         slogutil.NewDiscardLogger(),
		ListID:         1,
		IgnoreCosmetic: true,
	})

	var hostnames []string
	for scanner.Scan() {
		r, idx := scanner.Rule()
		require.NotNil(t, r)

		assert.Positive(t, idx)

		hr, ok := r.(*rules.HostRule)
		require.True(t, ok)

		hostnames = append(hostnames, hr.Hostnames[0])
	}

	assert.Equal(t, []string{
		"localhost",
		"localhost",
		"ads.example.org",
		"tracker.example.org",
		"banner.example.net",
	}, hostnames)
	assert.False(t, scanner.Scan())
}

func TestRuleScanner_crlf(t *testing.T) {
	t.Parallel()

	text := "||example.org^\r\n\r\n  ||example.com^  \r\n"
	scanner := filterlist.NewRuleScanner(strings.NewReader(text), &filterlist.RuleScannerConfig{
		ListID: 2,
	})

	require.True(t, scanner.Scan())
	r, idx := scanner.Rule()
	assert.Equal(t, "||example.org^", r.Text())
	assert.Equal(t, 0, idx)

	require.True(t, scanner.Scan())
	r, idx = scanner.Rule()
	assert.Equal(t, "||example.com^", r.Text())
	assert.Equal(t, 18, idx)

	assert.False(t, scanner.Scan())
}
