// Package sink reports the centres returned by Reducer.Reduce to an
// external system.
package sink

import (
	"context"

	"github.com/clustream-io/clustream/pkg/types"
)

// Sink publishes a reduce result. Implementations must be safe to call
// from a single goroutine per call; the engine never calls Report
// concurrently for the same Sink.
type Sink interface {
	Report(ctx context.Context, centres []*types.Point) error
}
