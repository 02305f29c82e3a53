package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_Search(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.hcl")
	src := `
search {
  max_degree = 3
  capacity   = 5
  start_n    = 4
  final_n    = 5
}
tree {
  workers_per_relay = 2
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))

	out := &bytes.Buffer{}
	require.NoError(t, run(out, &bytes.Buffer{}, []string{"-log-level", "error", path}))
	require.Contains(t, out.String(), "For n = 5\n")
}
