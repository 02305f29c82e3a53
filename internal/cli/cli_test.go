package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphbeam"
	"github.com/hupe1980/graphbeam/codec"
	"github.com/hupe1980/graphbeam/config"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		want     *Options
		wantExit bool
		wantCode int
	}{
		{
			name: "defaults",
			args: nil,
			want: &Options{Node: -1, Output: "text"},
		},
		{
			name: "positional file",
			args: []string{"run.hcl"},
			want: &Options{ConfigPath: "run.hcl", Node: -1, Output: "text"},
		},
		{
			name: "config flag wins",
			args: []string{"-config", "a.hcl", "-c", "b.hcl", "c.hcl"},
			want: &Options{ConfigPath: "a.hcl", Node: -1, Output: "text"},
		},
		{
			name: "overrides",
			args: []string{"-c", "a.hcl", "-node", "3", "-log-level", "DEBUG", "-log-format", "json", "-output", "json"},
			want: &Options{ConfigPath: "a.hcl", Node: 3, LogLevel: "debug", LogFormat: "json", Output: "json"},
		},
		{name: "help", args: []string{"-help"}, wantExit: true},
		{name: "unknown flag", args: []string{"-nope"}, wantCode: 2},
		{name: "bad level", args: []string{"-log-level", "loud"}, wantCode: 2},
		{name: "bad format", args: []string{"-log-format", "xml"}, wantCode: 2},
		{name: "bad output", args: []string{"-output", "yaml"}, wantCode: 2},
		{name: "bad node", args: []string{"-node", "-2"}, wantCode: 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts, exit, err := Parse(tc.args, &bytes.Buffer{})
			if tc.wantCode != 0 {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tc.wantCode, exitErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExit, exit)
			assert.Equal(t, tc.want, opts)
		})
	}
}

func writeRunFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))
	return path
}

func TestRunLocalPublishes(t *testing.T) {
	dir := t.TempDir()
	path := writeRunFile(t, `
search {
  max_degree = 3
  capacity   = 4
  start_n    = 4
  final_n    = 6
}
tree {
  relays            = 2
  workers_per_relay = 2
}
wire {
  compression = "zstd"
  threshold   = 64
}
report {
  backend = "local"
  path    = "`+filepath.ToSlash(dir)+`"
  name    = "n6"
  codec   = "json"
}
`)

	var out, logs bytes.Buffer
	err := Run(context.Background(), &out, &logs, &Options{ConfigPath: path, Node: -1, Output: "json", LogFormat: "json"})
	require.NoError(t, err)

	printed, err := graphbeam.DecodeResult(out.Bytes(), codec.GoJSON{})
	require.NoError(t, err)
	assert.Equal(t, 6, printed.N)

	data, err := os.ReadFile(filepath.Join(dir, "n6.json"))
	require.NoError(t, err)
	published, err := graphbeam.DecodeResult(data, codec.JSON{})
	require.NoError(t, err)
	assert.Equal(t, printed.Buckets, published.Buckets)

	text, err := os.ReadFile(filepath.Join(dir, "n6.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "For n = 6\n"))

	assert.Contains(t, logs.String(), `"msg":"search completed"`)
	assert.Contains(t, logs.String(), `"msg":"report published"`)
}

func TestRunDefaultsWithoutFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, &bytes.Buffer{}, &bytes.Buffer{}, &Options{Node: -1, Output: "none"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunBadFile(t *testing.T) {
	path := writeRunFile(t, `search { capacity = -1 }`)
	err := Run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, &Options{ConfigPath: path, Node: -1})

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRunNodeChecks(t *testing.T) {
	f := config.Default()
	f.Tree.Workers = 1
	logger := graphbeam.NoopLogger()

	_, err := runNode(context.Background(), f, 7, logger, nil)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "not part of")

	// The root has a child but no listen address.
	_, err = runNode(context.Background(), f, 0, logger, nil)
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "no listen address")

	// The worker's parent has no address.
	_, err = runNode(context.Background(), f, 1, logger, nil)
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "no address")
}

func TestOpenStore(t *testing.T) {
	store, err := openStore(context.Background(), &config.Report{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = openStore(context.Background(), &config.Report{Backend: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = openStore(context.Background(), &config.Report{Backend: "minio", Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = openStore(context.Background(), &config.Report{Backend: "ftp"})
	require.Error(t, err)
}
