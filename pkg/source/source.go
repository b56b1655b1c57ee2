// Package source provides stream sources for feeding points into the
// clustering engine.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Source yields timestamped feature vectors one at a time. Next returns
// ok=false once the stream is exhausted, mirroring bufio.Scanner.Scan.
type Source interface {
	Next(ctx context.Context) (ts int64, features []float64, ok bool, err error)
}

// jsonRecord is the expected JSONL record shape: {"ts": 123, "features": [...]}.
type jsonRecord struct {
	TS       int64     `json:"ts"`
	Features []float64 `json:"features"`
}

// JSONLSource reads newline-delimited JSON records from an io.Reader.
type JSONLSource struct {
	scanner *bufio.Scanner
}

// NewJSONLSource wraps r as a JSONLSource.
func NewJSONLSource(r io.Reader) *JSONLSource {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return &JSONLSource{scanner: scanner}
}

// Next reads and parses the next non-empty line. Malformed lines are
// skipped, matching the teacher's tolerant JSONL ingestion.
func (s *JSONLSource) Next(ctx context.Context) (int64, []float64, bool, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, nil, false, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			return 0, nil, false, s.scanner.Err()
		}

		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec jsonRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		return rec.TS, rec.Features, true, nil
	}
}

// SliceSource replays an in-memory sequence of points; within this module
// only this package's tests use it.
type SliceSource struct {
	ts       []int64
	features [][]float64
	pos      int
}

// NewSliceSource builds a SliceSource from parallel timestamp/feature
// slices. The two slices must have equal length.
func NewSliceSource(ts []int64, features [][]float64) (*SliceSource, error) {
	if len(ts) != len(features) {
		return nil, fmt.Errorf("source: ts and features length mismatch: %d != %d", len(ts), len(features))
	}
	return &SliceSource{ts: ts, features: features}, nil
}

// Next returns the next queued point, or ok=false once exhausted.
func (s *SliceSource) Next(ctx context.Context) (int64, []float64, bool, error) {
	select {
	case <-ctx.Done():
		return 0, nil, false, ctx.Err()
	default:
	}

	if s.pos >= len(s.ts) {
		return 0, nil, false, nil
	}

	ts, features := s.ts[s.pos], s.features[s.pos]
	s.pos++
	return ts, features, true, nil
}
