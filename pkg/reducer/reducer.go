// Package reducer implements the façade that turns a CluStream
// micro-cluster pool into k representative weighted points via the
// randomized coreset tree (spec.md §4.5).
package reducer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/clustream-io/clustream/pkg/cache"
	"github.com/clustream-io/clustream/pkg/clustream"
	"github.com/clustream-io/clustream/pkg/coreset"
	"github.com/clustream-io/clustream/pkg/rng"
	"github.com/clustream-io/clustream/pkg/types"
)

// ConfigurationError signals k > q or k < 2, mirroring the taxonomy
// pkg/clustream and pkg/coreset already use (spec.md §7).
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// Reducer wraps a Maintainer and produces a k-point coreset on demand.
type Reducer struct {
	maintainer *clustream.Maintainer
	prng       rng.Source
	recorder   coreset.Recorder
	cache      cache.Cache
}

// New builds a Reducer over the given Maintainer. prng and recorder may
// be nil; nil prng defaults to a time-seeded rng.Source and nil
// recorder defaults to coreset.NewStderrRecorder.
func New(maintainer *clustream.Maintainer, prng rng.Source, recorder coreset.Recorder) *Reducer {
	if prng == nil {
		prng = rng.New()
	}
	return &Reducer{maintainer: maintainer, prng: prng, recorder: recorder}
}

// NewWithCache builds a Reducer exactly as New does, plus a result cache
// keyed on a fingerprint of the pool snapshot and k. A hit skips
// coreset.UnionTreeCoreset entirely. c may be nil, in which case
// Reduce behaves exactly as it does for a Reducer built with New.
func NewWithCache(maintainer *clustream.Maintainer, prng rng.Source, recorder coreset.Recorder, c cache.Cache) *Reducer {
	r := New(maintainer, prng, recorder)
	r.cache = c
	return r
}

// Reduce materializes the maintainer's current micro-cluster pool as
// weighted points (weight = n, feature = ls), splits them into two
// roughly-equal halves, and invokes coreset.UnionTreeCoreset for k
// centres (spec.md §4.5).
func (r *Reducer) Reduce(k int) ([]*types.Point, error) {
	q := r.maintainer.Len()
	if k < 2 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("k must be >= 2, got %d", k)}
	}
	if k > q {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("k (%d) must be <= pool size q (%d)", k, q)}
	}

	points := r.snapshotPoints()

	var key string
	if r.cache != nil {
		key = fingerprint(points, k)
		ctx := context.Background()
		if cached, err := r.cache.Get(ctx, key); err == nil {
			centres, decodeErr := decodeCentres(cached)
			if decodeErr == nil {
				return centres, nil
			}
		}
	}

	mid := len(points) / 2
	setA := points[:mid]
	setB := points[mid:]

	centres, err := coreset.UnionTreeCoreset(k, setA, setB, r.prng, r.recorder)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if encoded, encodeErr := json.Marshal(centres); encodeErr == nil {
			_ = r.cache.Set(context.Background(), key, encoded, 0)
		}
	}

	return centres, nil
}

// fingerprint derives a cache key from the pool snapshot's weighted
// feature vectors and the requested k, so an unchanged pool and k always
// hash to the same key and any change to either invalidates it.
func fingerprint(points []*types.Point, k int) string {
	h := sha256.New()
	_ = binary.Write(h, binary.LittleEndian, int64(k))
	for _, p := range points {
		_ = binary.Write(h, binary.LittleEndian, p.Weight)
		for l := 0; l < p.Dimension(); l++ {
			_ = binary.Write(h, binary.LittleEndian, p.Coordinate(l))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// decodeCentres unmarshals a cached Reduce result.
func decodeCentres(data []byte) ([]*types.Point, error) {
	var centres []*types.Point
	if err := json.Unmarshal(data, &centres); err != nil {
		return nil, err
	}
	return centres, nil
}

// snapshotPoints converts every MicroCluster in the pool to a weighted
// point carrying the cluster's linear sum as its feature vector.
func (r *Reducer) snapshotPoints() []*types.Point {
	clusters := r.maintainer.Snapshot()
	points := make([]*types.Point, len(clusters))
	for i, c := range clusters {
		features := make([]float64, len(c.LS))
		copy(features, c.LS)
		points[i] = types.NewWeightedPoint(i, features, float64(c.N))
	}
	return points
}
