// Package types holds the shared data model for the clustering engine.
package types

import "fmt"

// Point is a weighted vector with a stable identity and a transient
// cluster-assignment slot. Features store a *weighted* coordinate sum:
// the true coordinate is Features[l]/Weight when Weight != 0, else
// Features[l] directly. A Weight of 0 marks a dummy point, used as a
// placeholder when a tree node cannot supply a real centre.
type Point struct {
	Features       []float64
	Weight         float64
	Index          int
	AssignedCentre int
}

// NewPoint creates a Point from a dense feature vector with weight 1,
// the convention for raw stream points (spec.md §6).
func NewPoint(index int, features []float64) *Point {
	return &Point{
		Features: features,
		Weight:   1,
		Index:    index,
	}
}

// NewWeightedPoint creates a Point carrying an explicit weight, used for
// micro-cluster centroids and coreset-tree centres.
func NewWeightedPoint(index int, features []float64, weight float64) *Point {
	return &Point{
		Features: features,
		Weight:   weight,
		Index:    index,
	}
}

// Dimension returns the number of features.
func (p *Point) Dimension() int {
	return len(p.Features)
}

// Copy produces a deep duplicate preserving Index.
func (p *Point) Copy() *Point {
	features := make([]float64, len(p.Features))
	copy(features, p.Features)
	return &Point{
		Features:       features,
		Weight:         p.Weight,
		Index:          p.Index,
		AssignedCentre: p.AssignedCentre,
	}
}

// GetFeature returns the feature at dimension l.
func (p *Point) GetFeature(l int) float64 {
	return p.Features[l]
}

// SetFeature sets the feature at dimension l.
func (p *Point) SetFeature(l int, v float64) {
	p.Features[l] = v
}

// Coordinate returns the true coordinate at dimension l, undoing the
// weighted-sum convention when Weight != 0.
func (p *Point) Coordinate(l int) float64 {
	if p.Weight != 0 {
		return p.Features[l] / p.Weight
	}
	return p.Features[l]
}

// IsDummy reports whether this is a zero-weight placeholder point.
func (p *Point) IsDummy() bool {
	return p.Weight == 0 && p.Index == -1
}

// DummyCentre returns a placeholder centre derived from the given
// centre's dimensionality, per spec.md §4.4 step 2: every feature is
// -1e6, index -1, weight 0.
func DummyCentre(dim int) *Point {
	features := make([]float64, dim)
	for l := range features {
		features[l] = -1000000
	}
	return &Point{Features: features, Weight: 0, Index: -1}
}

// String renders a compact representation for logging.
func (p *Point) String() string {
	return fmt.Sprintf("Point{index=%d weight=%g dim=%d}", p.Index, p.Weight, len(p.Features))
}
