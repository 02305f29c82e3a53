// Package config loads graphbeam run files.
//
// A run file is HCL. Every block is optional; missing values take the
// defaults listed on each field. Expressions may use cpu_count:
//
//	search {
//	  max_degree = 3
//	  capacity   = 1000
//	  start_n    = 4
//	  final_n    = 24
//	}
//
//	tree {
//	  relays            = 2
//	  workers_per_relay = cpu_count
//	}
//
//	node "0" {
//	  listen  = ":7400"
//	  address = "head:7400"
//	}
//
//	wire {
//	  compression = "zstd"
//	}
//
//	report {
//	  backend = "s3"
//	  bucket  = "graphbeam-runs"
//	  name    = "n24-d3"
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/wire"
)

// ErrInvalid is returned for run files that parse but make no sense.
var ErrInvalid = errors.New("invalid config")

// File is a decoded run file. Parse and Default leave no block nil.
type File struct {
	Search  *Search  `hcl:"search,block"`
	Tree    *Tree    `hcl:"tree,block"`
	Nodes   []*Node  `hcl:"node,block"`
	Wire    *Wire    `hcl:"wire,block"`
	Limits  *Limits  `hcl:"limits,block"`
	Report  *Report  `hcl:"report,block"`
	Logging *Logging `hcl:"logging,block"`
}

// Search holds the beam parameters.
type Search struct {
	MaxDegree int `hcl:"max_degree,optional"` // default 3
	Capacity  int `hcl:"capacity,optional"`   // default 100
	StartN    int `hcl:"start_n,optional"`    // default 4
	FinalN    int `hcl:"final_n,optional"`    // default 10
	// Seeds lists explicit edge lists on StartN vertices. Empty means every
	// connected graph on StartN vertices.
	Seeds []SeedGraph `hcl:"seed,block"`
}

// SeedGraph is one explicit starting graph.
type SeedGraph struct {
	Edges [][]int `hcl:"edges"`
}

// Tree describes the node topology. Parents wins over Relays/Workers.
type Tree struct {
	// Parents[i] is the parent of node i; Parents[0] must be -1.
	Parents []int `hcl:"parents,optional"`
	// Relays is the number of relays under the root. 0 builds a star.
	Relays int `hcl:"relays,optional"`
	// Workers is the worker count of a star, or per relay. Default cpu_count.
	Workers int `hcl:"workers_per_relay,optional"`
}

// Node holds the network addresses of one node in cluster mode.
type Node struct {
	ID      string `hcl:"id,label"`
	Listen  string `hcl:"listen,optional"`
	Address string `hcl:"address,optional"`
}

// Wire configures frame compression.
type Wire struct {
	Compression string `hcl:"compression,optional"` // none, lz4 or zstd; default lz4
	Threshold   int    `hcl:"threshold,optional"`   // bytes; default 4KiB
}

// Limits bounds per-process resources.
type Limits struct {
	MemoryBytes   int64 `hcl:"memory_bytes,optional"`
	MaxWorkers    int64 `hcl:"max_workers,optional"` // default cpu_count
	IOBytesPerSec int64 `hcl:"io_bytes_per_sec,optional"`
}

// Report says where the final level is exported to.
type Report struct {
	// Backend is "", "local", "s3" or "minio". Empty disables export.
	Backend string `hcl:"backend,optional"`
	Name    string `hcl:"name,optional"`  // default "graphbeam"
	Codec   string `hcl:"codec,optional"` // json or go-json; default go-json
	// Path is the LocalStore root.
	Path   string `hcl:"path,optional"`
	Bucket string `hcl:"bucket,optional"`
	Prefix string `hcl:"prefix,optional"`
	// Endpoint, AccessKey, SecretKey and Secure configure MinIO.
	Endpoint  string `hcl:"endpoint,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	Secure    bool   `hcl:"secure,optional"`
}

// Logging selects the slog handler.
type Logging struct {
	Level  string `hcl:"level,optional"`  // debug, info, warn, error; default info
	Format string `hcl:"format,optional"` // text or json; default text
}

// EvalContext returns the variables run files may reference.
func EvalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"cpu_count": cty.NumberIntVal(int64(runtime.NumCPU())),
		},
	}
}

// Load reads and decodes a run file.
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(src, path)
}

// Parse decodes a run file held in memory. filename is used in diagnostics.
func Parse(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var f File
	if diags := gohcl.DecodeBody(hclFile.Body, EvalContext(), &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	f.setDefaults()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &f, nil
}

// Default returns the configuration of an empty run file.
func Default() *File {
	f := &File{}
	f.setDefaults()
	return f
}

func (f *File) setDefaults() {
	setBlock(&f.Search)
	setBlock(&f.Tree)
	setBlock(&f.Wire)
	setBlock(&f.Limits)
	setBlock(&f.Report)
	setBlock(&f.Logging)
	setDefault(&f.Search.MaxDegree, 3)
	setDefault(&f.Search.Capacity, 100)
	setDefault(&f.Search.StartN, 4)
	setDefault(&f.Search.FinalN, 10)
	setDefault(&f.Tree.Workers, runtime.NumCPU())
	setDefault(&f.Wire.Compression, "lz4")
	setDefault(&f.Wire.Threshold, wire.DefaultCompressThreshold)
	setDefault(&f.Limits.MaxWorkers, int64(runtime.NumCPU()))
	setDefault(&f.Report.Name, "graphbeam")
	setDefault(&f.Report.Codec, "go-json")
	setDefault(&f.Logging.Level, "info")
	setDefault(&f.Logging.Format, "text")
}

func setBlock[T any](b **T) {
	if *b == nil {
		*b = new(T)
	}
}

func setDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

// Validate checks values that decode fine but cannot run.
func (f *File) Validate() error {
	s := f.Search
	if s.MaxDegree < 2 {
		return fmt.Errorf("search.max_degree %d < 2: %w", s.MaxDegree, ErrInvalid)
	}
	if s.Capacity < 1 {
		return fmt.Errorf("search.capacity %d < 1: %w", s.Capacity, ErrInvalid)
	}
	if s.StartN < 1 || s.FinalN < s.StartN {
		return fmt.Errorf("search levels %d..%d: %w", s.StartN, s.FinalN, ErrInvalid)
	}
	for i, g := range s.Seeds {
		for _, e := range g.Edges {
			if len(e) != 2 {
				return fmt.Errorf("search.seed[%d]: edge %v is not a pair: %w", i, e, ErrInvalid)
			}
		}
	}
	if _, err := wire.ParseCompression(f.Wire.Compression); err != nil {
		return fmt.Errorf("wire.compression: %w", err)
	}
	if _, err := f.Topology(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		id, err := strconv.Atoi(n.ID)
		if err != nil || id < 0 {
			return fmt.Errorf("node %q: id must be a non-negative integer: %w", n.ID, ErrInvalid)
		}
		if seen[id] {
			return fmt.Errorf("node %d declared twice: %w", id, ErrInvalid)
		}
		seen[id] = true
	}
	switch f.Report.Backend {
	case "", "local", "s3", "minio":
	default:
		return fmt.Errorf("report.backend %q: %w", f.Report.Backend, ErrInvalid)
	}
	switch f.Report.Codec {
	case "json", "go-json":
	default:
		return fmt.Errorf("report.codec %q: %w", f.Report.Codec, ErrInvalid)
	}
	switch f.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: %w", f.Logging.Level, ErrInvalid)
	}
	switch f.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q: %w", f.Logging.Format, ErrInvalid)
	}
	return nil
}

// Topology builds the node tree.
func (f *File) Topology() (cluster.Topology, error) {
	if len(f.Tree.Parents) > 0 {
		return cluster.NewTopology(f.Tree.Parents)
	}
	if f.Tree.Relays > 0 {
		return cluster.TwoTier(f.Tree.Relays, f.Tree.Workers)
	}
	return cluster.Star(f.Tree.Workers)
}

// Compression returns the parsed wire.compression.
func (f *File) Compression() wire.Compression {
	c, _ := wire.ParseCompression(f.Wire.Compression)
	return c
}

// SeedEdges returns the explicit seeds as edge lists.
func (f *File) SeedEdges() [][][2]int {
	if len(f.Search.Seeds) == 0 {
		return nil
	}
	out := make([][][2]int, len(f.Search.Seeds))
	for i, g := range f.Search.Seeds {
		edges := make([][2]int, len(g.Edges))
		for j, e := range g.Edges {
			edges[j] = [2]int{e[0], e[1]}
		}
		out[i] = edges
	}
	return out
}

// Node returns the address block of node id.
func (f *File) Node(id int) (*Node, bool) {
	want := strconv.Itoa(id)
	for _, n := range f.Nodes {
		if n.ID == want {
			return n, true
		}
	}
	return nil, false
}
