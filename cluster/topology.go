package cluster

import (
	"errors"
	"fmt"
	"slices"
)

// ErrTopology is returned for an invalid process tree.
var ErrTopology = errors.New("invalid topology")

// Role is a node's position in the tree.
type Role int

// Roles.
const (
	RoleRoot Role = iota
	RoleRelay
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleRelay:
		return "relay"
	case RoleWorker:
		return "worker"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Topology is a static tree of nodes with ids 0..Len()-1 rooted at node 0.
type Topology struct {
	parent   []int
	children [][]int
}

// NewTopology builds a tree from a parent table where parents[0] is ignored
// and parents[i] is the parent of node i. The root must have children.
func NewTopology(parents []int) (Topology, error) {
	n := len(parents)
	if n < 2 {
		return Topology{}, fmt.Errorf("%d nodes, need a root and a worker: %w", n, ErrTopology)
	}
	t := Topology{parent: slices.Clone(parents), children: make([][]int, n)}
	t.parent[0] = -1
	for id := 1; id < n; id++ {
		p := t.parent[id]
		if p < 0 || p >= n || p == id {
			return Topology{}, fmt.Errorf("node %d has parent %d: %w", id, p, ErrTopology)
		}
		t.children[p] = append(t.children[p], id)
	}
	for id := 1; id < n; id++ {
		steps, cur := 0, id
		for cur != 0 {
			cur = t.parent[cur]
			if steps++; steps > n {
				return Topology{}, fmt.Errorf("node %d is on a cycle: %w", id, ErrTopology)
			}
		}
	}
	return t, nil
}

// Star returns a root with the given number of workers.
func Star(workers int) (Topology, error) {
	parents := make([]int, workers+1)
	return NewTopology(parents)
}

// TwoTier returns a root with relays, each relay feeding workersPerRelay workers.
func TwoTier(relays, workersPerRelay int) (Topology, error) {
	parents := make([]int, 1, 1+relays*(1+workersPerRelay))
	for r := 0; r < relays; r++ {
		parents = append(parents, 0)
	}
	for r := 0; r < relays; r++ {
		for w := 0; w < workersPerRelay; w++ {
			parents = append(parents, 1+r)
		}
	}
	return NewTopology(parents)
}

// Len returns the number of nodes.
func (t Topology) Len() int { return len(t.parent) }

// IDs returns every node id.
func (t Topology) IDs() []int {
	ids := make([]int, len(t.parent))
	for i := range ids {
		ids[i] = i
	}
	return ids
}

// Parent returns the parent of id, or false for the root.
func (t Topology) Parent(id int) (int, bool) {
	p := t.parent[id]
	return p, p >= 0
}

// Children returns the children of id.
func (t Topology) Children(id int) []int { return t.children[id] }

// Role returns the role of id.
func (t Topology) Role(id int) Role {
	switch {
	case id == 0:
		return RoleRoot
	case len(t.children[id]) > 0:
		return RoleRelay
	default:
		return RoleWorker
	}
}

// Contains reports whether id is a node of the tree.
func (t Topology) Contains(id int) bool { return id >= 0 && id < len(t.parent) }
