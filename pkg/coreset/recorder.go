package coreset

import (
	"fmt"
	"io"
	"os"
)

// Recorder receives the runtime degeneracies the tree can hit (spec.md
// §7): DegenerateSample, NoCentreNearest, and DummyCentre. None of them
// abort the operation; all are logged and the tree recovers locally.
type Recorder interface {
	DegenerateSample(leafSize int)
	NoCentreNearest(pointIndex int)
	DummyCentre()
}

// StderrRecorder writes each event as a structured line to an io.Writer,
// defaulting to os.Stderr. This is the production Recorder; tests
// typically substitute a slice-appending implementation instead.
type StderrRecorder struct {
	Out io.Writer
}

// NewStderrRecorder returns a Recorder writing to os.Stderr.
func NewStderrRecorder() *StderrRecorder {
	return &StderrRecorder{Out: os.Stderr}
}

func (r *StderrRecorder) DegenerateSample(leafSize int) {
	fmt.Fprintf(r.out(), "coreset: degenerate sample, chose dummy point among %d candidates\n", leafSize)
}

func (r *StderrRecorder) NoCentreNearest(pointIndex int) {
	fmt.Fprintf(r.out(), "coreset: no centre nearest for point index %d, dropped from split\n", pointIndex)
}

func (r *StderrRecorder) DummyCentre() {
	fmt.Fprintf(r.out(), "coreset: root cost exhausted early, emitting dummy centre\n")
}

func (r *StderrRecorder) out() io.Writer {
	if r.Out == nil {
		return os.Stderr
	}
	return r.Out
}
