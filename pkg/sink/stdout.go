package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/clustream-io/clustream/pkg/types"
)

// StdoutSink writes centres to an io.Writer as one JSON object per line,
// the fmt-based reporting style the driver commands use for everything
// that doesn't have a dedicated backend.
type StdoutSink struct {
	Out io.Writer
}

// NewStdoutSink builds a StdoutSink writing to os.Stdout.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{}
}

type centreRecord struct {
	Index      int       `json:"index"`
	Weight     float64   `json:"weight"`
	Coordinate []float64 `json:"coordinate"`
}

// Report prints each centre as a JSON line.
func (s *StdoutSink) Report(ctx context.Context, centres []*types.Point) error {
	out := s.out()
	enc := json.NewEncoder(out)

	for _, c := range centres {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		coord := make([]float64, c.Dimension())
		for l := range coord {
			coord[l] = c.Coordinate(l)
		}

		rec := centreRecord{Index: c.Index, Weight: c.Weight, Coordinate: coord}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("sink: failed to encode centre %d: %w", c.Index, err)
		}
	}

	return nil
}

func (s *StdoutSink) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}
