// Package clustream implements the CluStream online micro-cluster
// maintainer (spec.md §4.3), grounded directly on
// original_source/Clustream/Clu/Clustream.cpp's offline_cluster.
package clustream

import (
	"math"

	"github.com/clustream-io/clustream/pkg/microcluster"
	"github.com/clustream-io/clustream/pkg/types"
	"github.com/clustream-io/clustream/pkg/vecmath"
)

// TransitionRecorder observes which of the four offline_cluster
// transitions (spec.md §4.3) a Maintainer takes for each arriving
// point. Implementations must be safe to call while the caller holds
// whatever lock guards the Maintainer; none of the methods may block.
type TransitionRecorder interface {
	RecordIngest()
	RecordBootstrap()
	RecordAbsorb()
	RecordForget()
	RecordMerge()
}

// Maintainer holds the bounded pool of MicroClusters and routes each
// arriving point through the absorb/forget/merge/spawn decision chain.
// It has no internal concurrency; it is the single logical owner of the
// pool (spec.md §5).
type Maintainer struct {
	cfg           Config
	clusters      []*microcluster.MicroCluster
	lastTimestamp int64
	haveTimestamp bool
	transitions   TransitionRecorder
}

// New creates a Maintainer for the given configuration. Returns a
// ConfigurationError if cfg fails validation.
func New(cfg Config) (*Maintainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Maintainer{cfg: cfg, clusters: make([]*microcluster.MicroCluster, 0, cfg.Q)}, nil
}

// SetTransitionRecorder installs the TransitionRecorder used to observe
// bootstrap/absorb/forget/merge transitions. Passing nil disables
// observation; this is the default.
func (m *Maintainer) SetTransitionRecorder(recorder TransitionRecorder) {
	m.transitions = recorder
}

// Len returns the current pool size.
func (m *Maintainer) Len() int {
	return len(m.clusters)
}

// Snapshot returns the current micro-cluster pool. Callers must not
// mutate the returned slice or its elements.
func (m *Maintainer) Snapshot() []*microcluster.MicroCluster {
	return m.clusters
}

// OfflineCluster executes exactly one of bootstrap/absorb/forget/merge
// for the arriving point, in that order, the first whose guard is
// satisfied (spec.md §4.3).
func (m *Maintainer) OfflineCluster(p *types.Point, ts int64) error {
	if p.Dimension() != m.cfg.Dim {
		return &ConfigurationError{Reason: "point dimension does not match configured dim"}
	}
	if p.Weight == 0 {
		return &PreconditionViolation{Reason: "zero-weight non-dummy point inserted"}
	}
	if m.haveTimestamp && ts < m.lastTimestamp {
		return &PreconditionViolation{Reason: "timestamp decreased across offline_cluster calls"}
	}
	m.lastTimestamp = ts
	m.haveTimestamp = true

	if m.transitions != nil {
		m.transitions.RecordIngest()
	}

	if len(m.clusters) < m.cfg.Q {
		m.bootstrap(p, ts)
		if m.transitions != nil {
			m.transitions.RecordBootstrap()
		}
		return nil
	}

	if m.absorb(p, ts) {
		if m.transitions != nil {
			m.transitions.RecordAbsorb()
		}
		return nil
	}

	if m.forget(p, ts) {
		if m.transitions != nil {
			m.transitions.RecordForget()
		}
		return nil
	}

	m.merge(p, ts)
	if m.transitions != nil {
		m.transitions.RecordMerge()
	}
	return nil
}

// bootstrap appends a freshly created MicroCluster while the pool has
// not yet reached capacity q (spec.md §4.3 step 1).
func (m *Maintainer) bootstrap(p *types.Point, ts int64) {
	m.clusters = append(m.clusters, microcluster.Create(p, ts, m.cfg.T, m.cfg.M))
}

// absorb finds C*, the MicroCluster minimizing Euclidean distance to p
// (DESIGN.md Open Question 5), and inserts p into it if p falls within
// C*'s radius (or the neighbour-distance estimate when C*.n == 1).
// Lowest index wins ties (spec.md §4.3's tie-breaking rule).
func (m *Maintainer) absorb(p *types.Point, ts int64) bool {
	closestIdx := -1
	minDistance := math.Inf(1)
	for i, c := range m.clusters {
		d := vecmath.Euclidean(p, c.Centroid())
		if d < minDistance {
			minDistance = d
			closestIdx = i
		}
	}

	closest := m.clusters[closestIdx]
	var radius float64
	if closest.N == 1 {
		radius = m.nearestNeighbourDistance(closestIdx)
	} else {
		radius = closest.Radius()
	}

	if minDistance < radius {
		closest.Insert(p, ts)
		return true
	}
	return false
}

// nearestNeighbourDistance estimates the radius of a singleton
// MicroCluster as the distance to the nearest other centroid (spec.md
// §3).
func (m *Maintainer) nearestNeighbourDistance(idx int) float64 {
	centre := m.clusters[idx].Centroid()
	min := math.Inf(1)
	for i, c := range m.clusters {
		if i == idx {
			continue
		}
		d := vecmath.Euclidean(centre, c.Centroid())
		if d < min {
			min = d
		}
	}
	return min
}

// forget scans the pool in order and replaces the first MicroCluster
// whose relevance stamp has fallen below the threshold θ = ts - h
// (spec.md §4.3 step 3).
func (m *Maintainer) forget(p *types.Point, ts int64) bool {
	threshold := float64(ts - int64(m.cfg.H))
	for i, c := range m.clusters {
		if c.RelevanceStamp() < threshold {
			m.clusters[i] = microcluster.Create(p, ts, m.cfg.T, m.cfg.M)
			return true
		}
	}
	return false
}

// merge finds the pair (i, j), i < j, minimizing the distance between
// their centroids, merges j into i, and replaces j in place with a
// freshly created MicroCluster seeded by p (spec.md §4.3 step 4).
// Lowest-index pair wins ties.
func (m *Maintainer) merge(p *types.Point, ts int64) {
	closestI, closestJ := 0, 1
	minDistance := math.Inf(1)
	for i := 0; i < len(m.clusters); i++ {
		for j := i + 1; j < len(m.clusters); j++ {
			d := vecmath.Euclidean(m.clusters[i].Centroid(), m.clusters[j].Centroid())
			if d < minDistance {
				minDistance = d
				closestI, closestJ = i, j
			}
		}
	}

	_ = m.clusters[closestI].Merge(m.clusters[closestJ])
	m.clusters[closestJ] = microcluster.Create(p, ts, m.cfg.T, m.cfg.M)
}
