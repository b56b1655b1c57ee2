package coreset

type recordingRecorder struct {
	degenerate []int
	noCentre   []int
	dummies    int
}

func (r *recordingRecorder) DegenerateSample(leafSize int) {
	r.degenerate = append(r.degenerate, leafSize)
}

func (r *recordingRecorder) NoCentreNearest(pointIndex int) {
	r.noCentre = append(r.noCentre, pointIndex)
}

func (r *recordingRecorder) DummyCentre() {
	r.dummies++
}
