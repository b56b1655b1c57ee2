package metrics

import "github.com/clustream-io/clustream/pkg/coreset"

// Recorder implements coreset.Recorder by incrementing the matching
// Metrics counters, then forwarding to an optional next Recorder (the
// production default is a coreset.StderrRecorder, so degeneracies are
// both counted and logged).
type Recorder struct {
	metrics *Metrics
	next    coreset.Recorder
}

// NewRecorder returns a coreset.Recorder that counts every event on m
// before forwarding it to next. next may be nil.
func NewRecorder(m *Metrics, next coreset.Recorder) *Recorder {
	return &Recorder{metrics: m, next: next}
}

func (r *Recorder) DegenerateSample(leafSize int) {
	r.metrics.DegenerateSamples.Inc()
	if r.next != nil {
		r.next.DegenerateSample(leafSize)
	}
}

func (r *Recorder) NoCentreNearest(pointIndex int) {
	r.metrics.NoCentreNearest.Inc()
	if r.next != nil {
		r.next.NoCentreNearest(pointIndex)
	}
}

func (r *Recorder) DummyCentre() {
	r.metrics.DummyCentres.Inc()
	if r.next != nil {
		r.next.DummyCentre()
	}
}
