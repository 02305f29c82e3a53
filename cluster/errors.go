package cluster

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphbeam/wire"
)

// ErrProtocol marks a message that is impossible in the receiver's state,
// such as a graph of the wrong vertex count.
var ErrProtocol = errors.New("protocol violation")

// NodeError reports the node and message tag at which a run failed.
type NodeError struct {
	Node int
	Tag  wire.Tag
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d: %s: %v", e.Node, e.Tag, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

func protocolf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
