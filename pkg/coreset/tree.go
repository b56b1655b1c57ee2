// Package coreset implements the randomized coreset-tree k-means++
// reducer (spec.md §4.4), grounded on
// original_source/src/Algorithm/DataStructure/CoresetTree.cpp.
package coreset

import (
	"math"

	"github.com/clustream-io/clustream/pkg/rng"
	"github.com/clustream-io/clustream/pkg/types"
	"github.com/clustream-io/clustream/pkg/vecmath"
)

// node is one binary-partition-tree node. Leaves carry the points
// currently assigned to centre; internal nodes carry only the
// aggregate cost of their two children.
type node struct {
	parent *node
	lc, rc *node
	points []*types.Point
	centre *types.Point
	cost   float64
}

func (nd *node) isLeaf() bool {
	return nd.lc == nil && nd.rc == nil
}

func (nd *node) size() int {
	return len(nd.points)
}

// centreChoice names which of two candidate centres a point is closer
// to during a split.
type centreChoice int

const (
	choiceOld centreChoice = iota
	choiceNew
)

// builder threads the per-call PRNG, degeneracy recorder, and an
// index of the caller's original points (so split can propagate
// AssignedCentre back onto them even though the tree itself works on
// deep copies) through one unionTreeCoreset invocation.
type builder struct {
	prng      rng.Source
	recorder  Recorder
	originals map[int]*types.Point
}

// UnionTreeCoreset builds a randomized coreset tree over setA ∪ setB
// and returns k weighted centres (spec.md §4.4). setA and setB are
// borrowed for the duration of the call; every point's AssignedCentre
// field is mutated in place to record the post-pass result, but no
// point is removed or reordered.
func UnionTreeCoreset(k int, setA, setB []*types.Point, prng rng.Source, recorder Recorder) ([]*types.Point, error) {
	n1, n2 := len(setA), len(setB)
	n := n1 + n2
	if n == 0 {
		return nil, &ConfigurationError{Reason: "unionTreeCoreset called with no input points"}
	}
	if k < 1 {
		return nil, &ConfigurationError{Reason: "k must be >= 1"}
	}
	if recorder == nil {
		recorder = NewStderrRecorder()
	}

	b := &builder{
		prng:      prng,
		recorder:  recorder,
		originals: make(map[int]*types.Point, n),
	}
	for _, p := range setA {
		b.originals[p.Index] = p
	}
	for _, p := range setB {
		b.originals[p.Index] = p
	}

	j := int(prng.Int31n(int32(n)))
	var seed *types.Point
	if j < n1 {
		seed = setA[j].Copy()
	} else {
		seed = setB[j-n1].Copy()
	}

	centres := make([]*types.Point, k)
	centres[0] = seed

	root := b.constructRoot(setA, setB, seed)
	defer freeTree(root)

	chosen := 1
	for chosen < k {
		if root.cost > 0.0 {
			leaf := b.selectNode(root)
			centre := b.chooseCentre(leaf)
			b.split(leaf, centre, chosen)
			centres[chosen] = centre.Copy()
		} else {
			b.recorder.DummyCentre()
			centres[chosen] = types.DummyCentre(root.centre.Dimension())
		}
		chosen++
	}

	for _, p := range setA {
		b.reweight(centres, p)
	}
	for _, p := range setB {
		b.reweight(centres, p)
	}

	return centres, nil
}

// constructRoot assigns every point AssignedCentre = 0 and computes the
// root's initial cost against the seed centre.
func (b *builder) constructRoot(setA, setB []*types.Point, centre *types.Point) *node {
	points := make([]*types.Point, 0, len(setA)+len(setB))
	points = append(points, setA...)
	points = append(points, setB...)
	for _, p := range points {
		p.AssignedCentre = 0
	}
	root := &node{points: points, centre: centre}
	root.cost = treeCost(points, centre)
	return root
}

// treeCost sums the weighted squared distance of every point from
// centre (spec.md §4.4's target function).
func treeCost(points []*types.Point, centre *types.Point) float64 {
	sum := 0.0
	for _, p := range points {
		sum += vecmath.CostOfPoint(p, centre)
	}
	return sum
}

// selectNode descends from root to a leaf, recursing into the left
// child with probability lc.cost/node.cost (spec.md §4.4 step 2a).
func (b *builder) selectNode(root *node) *node {
	random := b.prng.Float64Open01()
	cur := root
	for !cur.isLeaf() {
		switch {
		case cur.lc.cost == 0 && cur.rc.cost == 0:
			switch {
			case cur.lc.size() == 0:
				cur = cur.rc
			case cur.rc.size() == 0:
				cur = cur.lc
			case random < 0.5:
				random = b.prng.Float64Open01()
				cur = cur.lc
			default:
				random = b.prng.Float64Open01()
				cur = cur.rc
			}
		case random < cur.lc.cost/cur.cost:
			cur = cur.lc
		default:
			cur = cur.rc
		}
	}
	return cur
}

// chooseCentre performs up to three k-means++ weighted-sample trials
// over leaf's points, keeping whichever trial's point minimizes the
// hypothetical split cost (spec.md §4.4 step 2b).
func (b *builder) chooseCentre(leaf *node) *types.Point {
	const trials = 3
	minCost := leaf.cost
	var best *types.Point

	for t := 0; t < trials; t++ {
		sum := 0.0
		u := b.prng.Float64Open01()
		for _, p := range leaf.points {
			sum += vecmath.CostOfPoint(p, leaf.centre) / leaf.cost
			if sum < u {
				continue
			}
			if p.Weight == 0 {
				b.recorder.DegenerateSample(leaf.size())
				return fallbackCentre(leaf, best)
			}
			curCost := splitCost(leaf.points, leaf.centre, p)
			if curCost < minCost {
				best = p
				minCost = curCost
			}
			break
		}
	}

	return fallbackCentre(leaf, best)
}

// fallbackCentre returns best when a trial improved on the leaf's
// current cost, else the deterministic leaf.points[0] fallback
// (DESIGN.md Open Question 3; fixes the original's unreliable
// bestCentre->getIndex()==0 test).
func fallbackCentre(leaf *node, best *types.Point) *types.Point {
	if best == nil {
		return leaf.points[0]
	}
	return best
}

// splitCost computes the hypothetical cost of points if assigned to
// whichever of centreA/centreB is nearer.
func splitCost(points []*types.Point, centreA, centreB *types.Point) float64 {
	sum := 0.0
	for _, p := range points {
		dA := vecmath.SquaredEuclidean(p, centreA)
		dB := vecmath.SquaredEuclidean(p, centreB)
		if dA < dB {
			sum += dA * p.Weight
		} else {
			sum += dB * p.Weight
		}
	}
	return sum
}

// determineClosestCentre reports which of oldCentre/newCentre a point
// is nearer to. The second return is false only on the numeric
// anomaly spec.md §7 calls NoCentreNearest (a NaN distance).
func determineClosestCentre(p, oldCentre, newCentre *types.Point) (centreChoice, bool) {
	dOld := vecmath.SquaredEuclidean(p, oldCentre)
	dNew := vecmath.SquaredEuclidean(p, newCentre)
	if math.IsNaN(dOld) || math.IsNaN(dNew) {
		return choiceOld, false
	}
	if dOld < dNew {
		return choiceOld, true
	}
	return choiceNew, true
}

// split partitions parent.points by nearest of (parent.centre,
// newCentre) into two deep-copied child leaves, propagates
// AssignedCentre back onto the caller's original points, and
// recomputes cost up to the root (spec.md §4.4 step 2c).
func (b *builder) split(parent *node, newCentre *types.Point, newIndex int) {
	oldPoints := make([]*types.Point, 0, len(parent.points))
	newPoints := make([]*types.Point, 0, len(parent.points))

	for _, p := range parent.points {
		choice, ok := determineClosestCentre(p, parent.centre, newCentre)
		if !ok {
			b.recorder.NoCentreNearest(p.Index)
			continue
		}
		if choice == choiceNew {
			cp := p.Copy()
			cp.AssignedCentre = newIndex
			newPoints = append(newPoints, cp)
			if orig, ok := b.originals[p.Index]; ok {
				orig.AssignedCentre = newIndex
			}
			continue
		}
		oldPoints = append(oldPoints, p.Copy())
	}

	lc := &node{centre: parent.centre, points: oldPoints, parent: parent}
	lc.cost = treeCost(lc.points, lc.centre)

	rc := &node{centre: newCentre, points: newPoints, parent: parent}
	rc.cost = treeCost(rc.points, rc.centre)

	parent.lc = lc
	parent.rc = rc

	for n := parent; n != nil; n = n.parent {
		n.cost = n.lc.cost + n.rc.cost
	}
}

// reweight folds p's weighted contribution into its assigned centre,
// skipping the centre's own seed point (spec.md §4.4 step 3).
func (b *builder) reweight(centres []*types.Point, p *types.Point) {
	target := centres[p.AssignedCentre]
	if target.Index == p.Index {
		return
	}
	target.Weight += p.Weight
	if p.Weight == 0 {
		return
	}
	for l := 0; l < p.Dimension(); l++ {
		target.Features[l] += p.Features[l]
	}
}

// freeTree releases every node's child pointers and point slice,
// depth-first, so the tree's memory is eligible for collection as
// soon as unionTreeCoreset returns (spec.md §5's resource-release
// requirement survives the port even though Go is garbage collected).
func freeTree(root *node) {
	if root == nil {
		return
	}
	freeTree(root.lc)
	freeTree(root.rc)
	root.lc = nil
	root.rc = nil
	root.parent = nil
	root.points = nil
}
