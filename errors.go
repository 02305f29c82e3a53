package graphbeam

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphbeam/cluster"
	"github.com/hupe1980/graphbeam/seed"
	"github.com/hupe1980/graphbeam/wire"
)

var (
	// ErrInvalidOptions is returned when search parameters are inconsistent.
	ErrInvalidOptions = errors.New("invalid search options")

	// ErrCorruptMessage is returned when a node received a frame it could not decode.
	ErrCorruptMessage = errors.New("corrupt message")
)

// ErrNodeFailed reports which node of the tree stopped the search and while
// handling which message.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrNodeFailed struct {
	Node  int
	Tag   string
	cause error
}

func (e *ErrNodeFailed) Error() string {
	return fmt.Sprintf("node %d failed on %s: %v", e.Node, e.Tag, e.cause)
}

func (e *ErrNodeFailed) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, cluster.ErrConfig) || errors.Is(err, cluster.ErrTopology) || errors.Is(err, seed.ErrInvalidSeed) {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	var ne *cluster.NodeError
	if errors.As(err, &ne) {
		var cause error = err
		if errors.Is(err, wire.ErrCorruptFrame) {
			cause = fmt.Errorf("%w: %w", ErrCorruptMessage, err)
		}
		return &ErrNodeFailed{Node: ne.Node, Tag: ne.Tag.String(), cause: cause}
	}

	return err
}
