package graph

// Infinity marks a pair of vertices with no known path.
// Sums are saturated at Infinity so relaxations never overflow.
const Infinity int32 = 1_000_000

// DistanceMatrix is a dense n×n row-major matrix of shortest path lengths
// over a fixed vertex ordering.
type DistanceMatrix struct {
	n int
	d []int32
}

// NewDistanceMatrix returns an n×n matrix with Infinity off the diagonal.
func NewDistanceMatrix(n int) *DistanceMatrix {
	m := &DistanceMatrix{n: n, d: make([]int32, n*n)}
	for i := range m.d {
		m.d[i] = Infinity
	}
	for i := 0; i < n; i++ {
		m.d[i*n+i] = 0
	}
	return m
}

// DistanceMatrixFrom wraps a row-major slice of n*n distances.
// The matrix takes ownership of d.
func DistanceMatrixFrom(n int, d []int32) *DistanceMatrix {
	if len(d) != n*n {
		panic("graph: distance slice does not match vertex count")
	}
	return &DistanceMatrix{n: n, d: d}
}

// N returns the number of vertices.
func (m *DistanceMatrix) N() int { return m.n }

// At returns the distance between i and j.
func (m *DistanceMatrix) At(i, j int) int32 { return m.d[i*m.n+j] }

// Set stores a symmetric distance between i and j.
func (m *DistanceMatrix) Set(i, j int, v int32) {
	m.d[i*m.n+j] = v
	m.d[j*m.n+i] = v
}

// Raw exposes the row-major backing slice.
func (m *DistanceMatrix) Raw() []int32 { return m.d }

// Clone returns a deep copy.
func (m *DistanceMatrix) Clone() *DistanceMatrix {
	d := make([]int32, len(m.d))
	copy(d, m.d)
	return &DistanceMatrix{n: m.n, d: d}
}

// Grow returns an (n+1)×(n+1) copy whose new last vertex is at Infinity
// from every other vertex.
func (m *DistanceMatrix) Grow() *DistanceMatrix {
	g := NewDistanceMatrix(m.n + 1)
	for i := 0; i < m.n; i++ {
		copy(g.d[i*g.n:i*g.n+m.n], m.d[i*m.n:(i+1)*m.n])
	}
	return g
}

// FullShortestPaths relaxes every pair through every intermediate vertex.
// The matrix must hold 1 for edges and Infinity for non-edges.
func (m *DistanceMatrix) FullShortestPaths() {
	n := m.n
	for k := 0; k < n; k++ {
		rowK := m.d[k*n : (k+1)*n]
		for i := 0; i < n; i++ {
			dik := m.d[i*n+k]
			if dik >= Infinity {
				continue
			}
			rowI := m.d[i*n : (i+1)*n]
			for j := 0; j < n; j++ {
				if dist := saturatingAdd(dik, rowK[j]); dist < rowI[j] {
					rowI[j] = dist
				}
			}
		}
	}
}

// ExtendShortestPaths completes a matrix that is exact for the first n-1
// vertices and holds only direct edges (1) for the last vertex.
//
// Every vertex still at Infinity from the new vertex gets the shortest route
// through one of its neighbors. One relaxation round with the new vertex as
// the only intermediate then fixes the old pairs. The result equals
// FullShortestPaths on the same input.
func (m *DistanceMatrix) ExtendShortestPaths() {
	n := m.n
	if n == 0 {
		return
	}
	v := n - 1
	rowV := m.d[v*n : (v+1)*n]
	for i := 0; i < v; i++ {
		if rowV[i] != Infinity {
			continue
		}
		best := Infinity
		for j := 0; j < v; j++ {
			if rowV[j] != 1 {
				continue
			}
			if dist := saturatingAdd(m.d[j*n+i], 1); dist < best {
				best = dist
			}
		}
		m.Set(i, v, best)
	}

	for i := 0; i < v; i++ {
		div := m.d[i*n+v]
		if div >= Infinity {
			continue
		}
		rowI := m.d[i*n : (i+1)*n]
		for j := 0; j < v; j++ {
			if dist := saturatingAdd(div, rowV[j]); dist < rowI[j] {
				rowI[j] = dist
			}
		}
	}
}

// Diameter returns the largest distance over all pairs.
func (m *DistanceMatrix) Diameter() int {
	var diam int32
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			if d := m.d[i*m.n+j]; d > diam {
				diam = d
			}
		}
	}
	return int(diam)
}

// Sum returns the sum of distances over all unordered pairs.
func (m *DistanceMatrix) Sum() int {
	sum := 0
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			sum += int(m.d[i*m.n+j])
		}
	}
	return sum
}

// Equal reports whether both matrices hold identical distances.
func (m *DistanceMatrix) Equal(o *DistanceMatrix) bool {
	if m.n != o.n {
		return false
	}
	for i := range m.d {
		if m.d[i] != o.d[i] {
			return false
		}
	}
	return true
}

func saturatingAdd(a, b int32) int32 {
	if a >= Infinity || b >= Infinity {
		return Infinity
	}
	if s := a + b; s < Infinity {
		return s
	}
	return Infinity
}
