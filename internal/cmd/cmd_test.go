package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AdguardTeam/filterengine"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Parallel()

	listPath := writeTestFile(t, "list.txt", testRules)
	dumpPath := filepath.Join(t.TempDir(), "cosmetic.json")

	conf := newDefaultConfig()
	conf.ChunkSize = 2
	conf.addFilterPaths([]string{listPath})
	conf.CosmeticDump = &cosmeticDumpConfig{
		Path:      dumpPath,
		Hostnames: []string{"example.org", "example.net"},
	}
	require.NoError(t, conf.Validate())

	in := strings.Join([]string{
		`{"url":"https://allowed.blocked.org/","type":"document"}`,
		`{"hostname":"local.example","dnstype":"A"}`,
	}, "\n")

	out := &bytes.Buffer{}
	err := run(testutil.ContextWithTimeout(t, testTimeout), &runConfig{
		logger:      slogutil.NewDiscardLogger(),
		conf:        conf,
		in:          strings.NewReader(in),
		out:         out,
		metricsAddr: "127.0.0.1:0",
	})
	require.NoError(t, err)

	results := decodeResults(t, out)
	require.Len(t, results, 2)

	assert.Equal(t, "@@||allowed.blocked.org^", results[0].Rule)
	assert.False(t, results[0].Blocked)
	assert.Equal(t, []string{"127.0.0.1 local.example"}, results[1].HostRules)

	data, err := os.ReadFile(dumpPath)
	require.NoError(t, err)

	dump := map[string]*filterengine.CosmeticResult{}
	require.NoError(t, json.Unmarshal(data, &dump))
	require.Len(t, dump, 2)

	require.Contains(t, dump, "example.org")
	assert.Equal(t, []string{".banner"}, dump["example.org"].ElementHiding.Specific)

	require.Contains(t, dump, "example.net")
	assert.Empty(t, dump["example.net"].ElementHiding.Specific)
}

func TestRun_noList(t *testing.T) {
	t.Parallel()

	conf := newDefaultConfig()
	conf.addFilterPaths([]string{filepath.Join(t.TempDir(), "none.txt")})

	err := run(testutil.ContextWithTimeout(t, testTimeout), &runConfig{
		logger: slogutil.NewDiscardLogger(),
		conf:   conf,
		in:     strings.NewReader(""),
		out:    &bytes.Buffer{},
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvironment_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		envs    *environment
		name    string
		wantErr bool
	}{{
		envs:    &environment{LogFormat: "text"},
		name:    "valid",
		wantErr: false,
	}, {
		envs:    &environment{LogFormat: "json", Verbosity: 1},
		name:    "valid_verbose",
		wantErr: false,
	}, {
		envs:    &environment{LogFormat: "bad"},
		name:    "bad_format",
		wantErr: true,
	}, {
		envs:    nil,
		name:    "nil",
		wantErr: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.envs.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	t.Parallel()

	opts, isHelp, err := parseOptions([]string{
		"-c", "conf.yaml",
		"-f", "a.txt",
		"-f", "b.txt",
		"--metrics-addr", "127.0.0.1:9100",
		"-v",
	})
	require.NoError(t, err)
	require.False(t, isHelp)

	assert.Equal(t, "conf.yaml", opts.ConfigPath)
	assert.Equal(t, []string{"a.txt", "b.txt"}, opts.FilterLists)
	assert.Equal(t, "-", opts.RequestsPath)
	assert.True(t, opts.Verbose)

	envs := &environment{ConfPath: "env.yaml", LogFormat: "text"}
	envs.applyOptions(opts)

	assert.Equal(t, "conf.yaml", envs.ConfPath)
	assert.Equal(t, "127.0.0.1:9100", envs.MetricsAddr)
	assert.Equal(t, uint8(1), envs.Verbosity)

	_, _, err = parseOptions([]string{"--unknown"})
	assert.Error(t, err)
}
