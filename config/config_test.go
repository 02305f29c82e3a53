package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/wire"
)

func TestParseDefaults(t *testing.T) {
	f, err := Parse([]byte(""), "empty.hcl")
	require.NoError(t, err)

	assert.Equal(t, 3, f.Search.MaxDegree)
	assert.Equal(t, 100, f.Search.Capacity)
	assert.Equal(t, 4, f.Search.StartN)
	assert.Equal(t, 10, f.Search.FinalN)
	assert.Equal(t, runtime.NumCPU(), f.Tree.Workers)
	assert.Equal(t, wire.CompressionLZ4, f.Compression())
	assert.Equal(t, wire.DefaultCompressThreshold, f.Wire.Threshold)
	assert.Equal(t, "graphbeam", f.Report.Name)
	assert.Equal(t, "info", f.Logging.Level)
	assert.Nil(t, f.SeedEdges())

	topo, err := f.Topology()
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU()+1, topo.Len())
}

func TestParseFull(t *testing.T) {
	src := `
search {
  max_degree = 4
  capacity   = 250
  start_n    = 3
  final_n    = 12

  seed {
    edges = [[0, 1], [1, 2]]
  }
  seed {
    edges = [[0, 1], [1, 2], [2, 0]]
  }
}

tree {
  relays            = 2
  workers_per_relay = cpu_count * 2
}

node "0" {
  listen = ":7400"
}

node "1" {
  listen  = ":7401"
  address = "relay-a:7401"
}

wire {
  compression = "zstd"
  threshold   = 1024
}

limits {
  memory_bytes     = 1073741824
  max_workers      = 8
  io_bytes_per_sec = 1048576
}

report {
  backend = "minio"
  bucket  = "runs"
  prefix  = "beam/"
  codec   = "json"
  endpoint = "localhost:9000"
}

logging {
  level  = "debug"
  format = "json"
}
`
	f, err := Parse([]byte(src), "full.hcl")
	require.NoError(t, err)

	assert.Equal(t, 4, f.Search.MaxDegree)
	assert.Equal(t, 250, f.Search.Capacity)
	assert.Equal(t, [][][2]int{{{0, 1}, {1, 2}}, {{0, 1}, {1, 2}, {2, 0}}}, f.SeedEdges())
	assert.Equal(t, 2*runtime.NumCPU(), f.Tree.Workers)
	assert.Equal(t, wire.CompressionZSTD, f.Compression())
	assert.Equal(t, int64(1<<30), f.Limits.MemoryBytes)
	assert.Equal(t, int64(8), f.Limits.MaxWorkers)
	assert.Equal(t, "minio", f.Report.Backend)
	assert.Equal(t, "json", f.Report.Codec)
	assert.Equal(t, "json", f.Logging.Format)

	topo, err := f.Topology()
	require.NoError(t, err)
	assert.Equal(t, cluster.RoleRelay, topo.Role(1))
	assert.Equal(t, 3+4*runtime.NumCPU(), topo.Len())

	n, ok := f.Node(1)
	require.True(t, ok)
	assert.Equal(t, "relay-a:7401", n.Address)
	_, ok = f.Node(7)
	assert.False(t, ok)
}

func TestParseExplicitParents(t *testing.T) {
	f, err := Parse([]byte(`tree { parents = [-1, 0, 1, 1] }`), "tree.hcl")
	require.NoError(t, err)
	topo, err := f.Topology()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, topo.Children(1))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		invalid bool
	}{
		{"syntax", `search {`, false},
		{"unknown attribute", `search { beam = 3 }`, false},
		{"unknown variable", `search { capacity = cores }`, false},
		{"degree", `search { max_degree = 1 }`, true},
		{"levels", `search {
  start_n = 8
  final_n = 5
}`, true},
		{"seed edge", `search {
  seed { edges = [[0, 1, 2]] }
}`, true},
		{"backend", `report { backend = "ftp" }`, true},
		{"codec", `report { codec = "xml" }`, true},
		{"log level", `logging { level = "trace" }`, true},
		{"node id", `node "root" {}`, true},
		{"node twice", `
node "1" {}
node "1" {}`, true},
		{"compression", `wire { compression = "brotli" }`, false},
		{"cycle", `tree { parents = [-1, 2, 1] }`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.hcl")
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`search { final_n = 7 }`), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, f.Search.FinalN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.hcl"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultMatchesEmptyFile(t *testing.T) {
	f, err := Parse(nil, "empty.hcl")
	require.NoError(t, err)
	d := Default()
	assert.Equal(t, d.Search.MaxDegree, f.Search.MaxDegree)
	assert.Equal(t, *d.Wire, *f.Wire)
	assert.Equal(t, *d.Limits, *f.Limits)
	assert.Equal(t, *d.Report, *f.Report)
	assert.Equal(t, *d.Logging, *f.Logging)
}
