package transport

import (
	"context"
	"fmt"
)

// Mesh connects a fixed set of in-process endpoints. Frames are copied on
// send, so nodes never share memory.
type Mesh struct {
	inboxes map[int]*inbox
}

// NewMesh creates a mesh for the given node ids.
func NewMesh(ids ...int) *Mesh {
	m := &Mesh{inboxes: make(map[int]*inbox, len(ids))}
	for _, id := range ids {
		m.inboxes[id] = newInbox()
	}
	return m
}

// Endpoint returns the endpoint of node id.
func (m *Mesh) Endpoint(id int) (Endpoint, error) {
	in, ok := m.inboxes[id]
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrUnknownPeer)
	}
	return &memEndpoint{id: id, mesh: m, in: in}, nil
}

// Close closes every endpoint of the mesh.
func (m *Mesh) Close() {
	for _, in := range m.inboxes {
		in.close()
	}
}

type memEndpoint struct {
	id   int
	mesh *Mesh
	in   *inbox
}

func (e *memEndpoint) ID() int { return e.id }

func (e *memEndpoint) Send(ctx context.Context, to int, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, ok := e.mesh.inboxes[to]
	if !ok {
		return fmt.Errorf("node %d: %w", to, ErrUnknownPeer)
	}
	return dst.put(envelope{from: e.id, frame: append([]byte(nil), frame...)})
}

func (e *memEndpoint) Recv(ctx context.Context) (int, []byte, error) {
	env, err := e.in.take(ctx)
	if err != nil {
		return 0, nil, err
	}
	return env.from, env.frame, nil
}

func (e *memEndpoint) Close() error {
	e.in.close()
	return nil
}
