// Package microcluster implements the CluStream online sufficient
// statistics summary (spec.md §3, §4.2), grounded on
// original_source/Clustream/Clu/Clustream.cpp's Microclusters class.
package microcluster

import (
	"fmt"
	"math"

	"github.com/clustream-io/clustream/pkg/types"
	"github.com/clustream-io/clustream/pkg/vecmath"
)

// MicroCluster holds the (n, ls, ss, lst, sst) sufficient statistics for
// a bounded-size summary of a substream, plus the t/m parameters it was
// created with (spec.md §3).
type MicroCluster struct {
	N   int
	LS  []float64
	SS  []float64
	LST float64
	SST float64

	T float64
	M int

	dim int
}

// Create builds a MicroCluster seeded by a single point, with n=1,
// ls=seed.Features, ss=seed.Features², lst=ts, sst=ts² (spec.md §4.2).
func Create(seed *types.Point, ts int64, t float64, m int) *MicroCluster {
	dim := seed.Dimension()
	ls := make([]float64, dim)
	ss := make([]float64, dim)
	for l := 0; l < dim; l++ {
		v := seed.Coordinate(l)
		ls[l] = v
		ss[l] = v * v
	}
	fts := float64(ts)
	return &MicroCluster{
		N:   1,
		LS:  ls,
		SS:  ss,
		LST: fts,
		SST: fts * fts,
		T:   t,
		M:   m,
		dim: dim,
	}
}

// Insert accumulates all five statistics for an absorbed point.
func (mc *MicroCluster) Insert(p *types.Point, ts int64) {
	for l := 0; l < mc.dim; l++ {
		v := p.Coordinate(l)
		mc.LS[l] += v
		mc.SS[l] += v * v
	}
	fts := float64(ts)
	mc.LST += fts
	mc.SST += fts * fts
	mc.N++
}

// Merge performs a component-wise addition of other's statistics into
// mc (spec.md §3's merge invariant). Precondition: same dim, t, m.
func (mc *MicroCluster) Merge(other *MicroCluster) error {
	if mc.dim != other.dim {
		return fmt.Errorf("microcluster merge: dimension mismatch (%d vs %d)", mc.dim, other.dim)
	}
	if mc.T != other.T || mc.M != other.M {
		return fmt.Errorf("microcluster merge: parameter mismatch (t=%v/%v m=%v/%v)", mc.T, other.T, mc.M, other.M)
	}
	for l := 0; l < mc.dim; l++ {
		mc.LS[l] += other.LS[l]
		mc.SS[l] += other.SS[l]
	}
	mc.LST += other.LST
	mc.SST += other.SST
	mc.N += other.N
	return nil
}

// Centroid derives the current centroid point: ls/n, or the seed point
// itself when n == 1.
func (mc *MicroCluster) Centroid() *types.Point {
	features := make([]float64, mc.dim)
	for l := 0; l < mc.dim; l++ {
		features[l] = mc.LS[l] / float64(mc.N)
	}
	return types.NewWeightedPoint(-1, features, 1)
}

// Radius returns t·σ where σ² is the mean-dimension variance implied by
// (ls, ss, n) (DESIGN.md Open Question 4), clamped to 0 before the
// square root. When n == 1 the radius is undefined; callers must
// substitute the neighbour-distance estimate instead (spec.md §3), and
// this returns +Inf as the sentinel spec.md §4.2 calls for.
func (mc *MicroCluster) Radius() float64 {
	if mc.N == 1 {
		return math.Inf(1)
	}
	variance := vecmath.Variance(mc.LS, mc.SS, mc.N)
	return mc.T * math.Sqrt(variance)
}

// RelevanceStamp returns the estimated age beyond which this
// micro-cluster is stale (spec.md §3): lst/n when n <= 2m, else the
// timestamp of the estimated m/(2n)-quantile of the absorption-time
// distribution under a Gaussian assumption.
func (mc *MicroCluster) RelevanceStamp() float64 {
	mean := mc.LST / float64(mc.N)
	if mc.N <= 2*mc.M {
		return mean
	}
	variance := vecmath.ScalarVariance(mc.LST, mc.SST, mc.N)
	sigma := math.Sqrt(variance)
	quantile := vecmath.GaussianQuantile(float64(mc.M) / (2 * float64(mc.N)))
	return mean + sigma*quantile
}
