package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/clustream-io/clustream/pkg/types"
)

func TestStdoutSinkReportsOneLinePerCentre(t *testing.T) {
	var buf bytes.Buffer
	s := &StdoutSink{Out: &buf}

	centres := []*types.Point{
		types.NewWeightedPoint(0, []float64{2, 4}, 2),
		types.NewWeightedPoint(1, []float64{6, 9}, 3),
	}

	if err := s.Report(context.Background(), centres); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first centreRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to parse first line: %v", err)
	}
	if first.Index != 0 {
		t.Errorf("expected index 0, got %d", first.Index)
	}
	if first.Coordinate[0] != 1 || first.Coordinate[1] != 2 {
		t.Errorf("expected true coordinate [1,2], got %v", first.Coordinate)
	}
}

func TestStdoutSinkEmptyCentres(t *testing.T) {
	var buf bytes.Buffer
	s := &StdoutSink{Out: &buf}

	if err := s.Report(context.Background(), nil); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty centres, got %q", buf.String())
	}
}

func TestStdoutSinkRespectsContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	s := &StdoutSink{Out: &buf}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	centres := []*types.Point{types.NewWeightedPoint(0, []float64{1}, 1)}
	if err := s.Report(ctx, centres); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestNewStdoutSinkDefaultsToStdout(t *testing.T) {
	s := NewStdoutSink()
	if s.out() == nil {
		t.Fatal("expected non-nil default writer")
	}
}
