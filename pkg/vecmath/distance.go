// Package vecmath holds the distance, variance, and quantile helpers
// shared by the micro-cluster maintainer and the coreset tree.
package vecmath

import (
	"math"

	"github.com/clustream-io/clustream/pkg/types"
)

// SquaredEuclidean returns the squared Euclidean distance between the
// coordinate-normalized forms of a and b (spec.md §4.4's distance
// metric, used unconditionally by the coreset tree's cost functions).
func SquaredEuclidean(a, b *types.Point) float64 {
	sum := 0.0
	for l := 0; l < len(a.Features); l++ {
		d := a.Coordinate(l) - b.Coordinate(l)
		sum += d * d
	}
	return sum
}

// Euclidean returns the (non-squared) Euclidean distance between the
// coordinate-normalized forms of a and b. The CluStream maintainer uses
// this form for absorb/forget/merge argmin comparisons, matching
// original_source's distance() (which takes a sqrt) so that distances
// stay in the same units as radius (see DESIGN.md Open Question 5).
func Euclidean(a, b *types.Point) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// CostOfPoint returns the weighted squared distance of p from centre:
// d²(coord(p), coord(centre)) · p.Weight. Dummy points (weight 0)
// contribute zero cost (spec.md §4.4, treeNodeCostOfPoint).
func CostOfPoint(p, centre *types.Point) float64 {
	if p.Weight == 0 {
		return 0
	}
	return SquaredEuclidean(p, centre) * p.Weight
}
