// Package transport moves encoded frames between the nodes of a search tree.
//
// Every link is point to point and delivers frames in the order they were
// sent. A transport never interprets frames.
package transport

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed endpoint.
var ErrClosed = errors.New("transport: endpoint closed")

// ErrUnknownPeer is returned when sending to a node the endpoint has no link to.
var ErrUnknownPeer = errors.New("transport: unknown peer")

// Endpoint is one node's view of the network.
type Endpoint interface {
	// ID returns the node id of this endpoint.
	ID() int
	// Send delivers frame to node to. The endpoint may keep frame.
	Send(ctx context.Context, to int, frame []byte) error
	// Recv blocks until a frame from any peer arrives.
	Recv(ctx context.Context) (from int, frame []byte, err error)
	// Close releases the endpoint. Pending Recv calls return ErrClosed.
	Close() error
}

type envelope struct {
	from  int
	frame []byte
}

// inbox is an unbounded FIFO of envelopes. Senders never block, so a
// parent pushing work down cannot deadlock against a child pushing results up.
type inbox struct {
	mu     sync.Mutex
	items  []envelope
	head   int
	notify chan struct{}
	done   chan struct{}
	closed bool
}

func newInbox() *inbox {
	return &inbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *inbox) put(e envelope) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *inbox) take(ctx context.Context) (envelope, error) {
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			e := q.items[q.head]
			q.items[q.head] = envelope{}
			q.head++
			if q.head == len(q.items) {
				q.items = q.items[:0]
				q.head = 0
			}
			q.mu.Unlock()
			return e, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return envelope{}, ErrClosed
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return envelope{}, ctx.Err()
		}
	}
}

func (q *inbox) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}
