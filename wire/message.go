package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/graphbeam/canon"
	"github.com/hupe1980/graphbeam/graph"
)

// Tag identifies a message kind on the wire.
type Tag uint8

// Message tags.
const (
	TagNewLevel Tag = iota
	TagKill
	TagInput
	TagOutput
	TagRequest
	TagMaxGraphs
)

func (t Tag) String() string {
	switch t {
	case TagNewLevel:
		return "NEW_LEVEL"
	case TagKill:
		return "SLAVE_KILL"
	case TagInput:
		return "SLAVE_INPUT"
	case TagOutput:
		return "SLAVE_OUTPUT"
	case TagRequest:
		return "SLAVE_REQUEST"
	case TagMaxGraphs:
		return "MAX_GRAPHS"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Message is one of NewLevel, Kill, Input, Output, Request or MaxGraphs.
type Message interface {
	Tag() Tag
}

// NewLevel tells a child to finish level N-1 and start accumulating level N.
type NewLevel struct {
	N int
}

// Kill tells a node to stop.
type Kill struct{}

// Input hands one graph to a child for extension.
type Input struct {
	Graph *graph.Record
}

// Output carries one bucket of a child's accumulated level.
type Output struct {
	N          int
	Bucket     int
	NumBuckets int
	Graphs     []*graph.Record
}

// Request signals that a child is idle.
type Request struct{}

// MaxGraphs overrides the per-bucket capacities of level N.
type MaxGraphs struct {
	N          int
	Capacities []int
}

func (NewLevel) Tag() Tag  { return TagNewLevel }
func (Kill) Tag() Tag      { return TagKill }
func (Input) Tag() Tag     { return TagInput }
func (Output) Tag() Tag    { return TagOutput }
func (Request) Tag() Tag   { return TagRequest }
func (MaxGraphs) Tag() Tag { return TagMaxGraphs }

// Last reports whether o is the final bucket of its level.
func (o Output) Last() bool { return o.Bucket == o.NumBuckets-1 }

// appendPayload encodes the body of m. Output graphs carry their canonical
// form, computed with c when missing.
func appendPayload(dst []byte, m Message, c canon.Canonicalizer) ([]byte, error) {
	switch m := m.(type) {
	case NewLevel:
		return appendInt(dst, m.N), nil
	case Kill, Request:
		return dst, nil
	case Input:
		if m.Graph == nil {
			return nil, fmt.Errorf("wire: input without graph")
		}
		dst = appendInt(dst, m.Graph.N)
		return AppendRecord(dst, m.Graph, nil), nil
	case Output:
		dst = appendInt(dst, m.N)
		dst = appendInt(dst, m.Bucket)
		dst = appendInt(dst, m.NumBuckets)
		dst = appendInt(dst, len(m.Graphs))
		for _, g := range m.Graphs {
			if g.N != m.N {
				return nil, fmt.Errorf("wire: output for %d vertices holds graph on %d", m.N, g.N)
			}
			dst = AppendRecord(dst, g, g.CanonicalForm(c))
		}
		return dst, nil
	case MaxGraphs:
		dst = appendInt(dst, m.N)
		dst = appendInt(dst, len(m.Capacities))
		for _, v := range m.Capacities {
			dst = appendInt(dst, v)
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("wire: unknown message %T", m)
	}
}

func decodePayload(tag Tag, src []byte) (Message, error) {
	switch tag {
	case TagNewLevel:
		n, rest, err := readInt(src)
		if err != nil {
			return nil, err
		}
		return NewLevel{N: n}, done(rest)
	case TagKill:
		return Kill{}, done(src)
	case TagRequest:
		return Request{}, done(src)
	case TagInput:
		n, rest, err := readInt(src)
		if err != nil {
			return nil, err
		}
		g, rest, err := DecodeRecord(rest, n, false)
		if err != nil {
			return nil, err
		}
		return Input{Graph: g}, done(rest)
	case TagOutput:
		var hdr [4]int
		rest := src
		for i := range hdr {
			var err error
			if hdr[i], rest, err = readInt(rest); err != nil {
				return nil, err
			}
		}
		n, count := hdr[0], hdr[3]
		if count < 0 || (count > 0 && len(rest)/RecordSize(max(n, 1), true) < count) {
			return nil, ErrShortBuffer
		}
		out := Output{N: n, Bucket: hdr[1], NumBuckets: hdr[2], Graphs: make([]*graph.Record, 0, count)}
		for i := 0; i < count; i++ {
			var (
				g   *graph.Record
				err error
			)
			if g, rest, err = DecodeRecord(rest, n, true); err != nil {
				return nil, err
			}
			out.Graphs = append(out.Graphs, g)
		}
		return out, done(rest)
	case TagMaxGraphs:
		n, rest, err := readInt(src)
		if err != nil {
			return nil, err
		}
		count, rest, err := readInt(rest)
		if err != nil {
			return nil, err
		}
		if count < 0 || len(rest) < 4*count {
			return nil, ErrShortBuffer
		}
		caps := make([]int, count)
		for i := range caps {
			caps[i], rest, _ = readInt(rest)
		}
		return MaxGraphs{N: n, Capacities: caps}, done(rest)
	default:
		return nil, fmt.Errorf("tag %d: %w", tag, ErrCorruptFrame)
	}
}

func appendInt(dst []byte, v int) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(int32(v)))
}

func readInt(src []byte) (int, []byte, error) {
	if len(src) < 4 {
		return 0, nil, ErrShortBuffer
	}
	return int(int32(binary.LittleEndian.Uint32(src))), src[4:], nil
}

func done(rest []byte) error {
	if len(rest) != 0 {
		return fmt.Errorf("%d trailing bytes: %w", len(rest), ErrCorruptFrame)
	}
	return nil
}
