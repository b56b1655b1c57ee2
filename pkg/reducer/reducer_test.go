package reducer

import (
	"testing"

	"github.com/clustream-io/clustream/pkg/cache"
	"github.com/clustream-io/clustream/pkg/clustream"
	"github.com/clustream-io/clustream/pkg/rng"
	"github.com/clustream-io/clustream/pkg/types"
)

func buildMaintainer(t *testing.T, q int) *clustream.Maintainer {
	t.Helper()
	m, err := clustream.New(clustream.Config{H: 100000, M: 1, T: 2, Q: q, Dim: 2})
	if err != nil {
		t.Fatalf("clustream.New() error = %v", err)
	}
	for i := int64(0); i < int64(q*5); i++ {
		p := types.NewPoint(int(i), []float64{float64(i % int64(q)), float64(i % int64(q))})
		if err := m.OfflineCluster(p, i+1); err != nil {
			t.Fatalf("OfflineCluster() error = %v", err)
		}
	}
	return m
}

func TestReduceReturnsKPoints(t *testing.T) {
	m := buildMaintainer(t, 8)
	r := New(m, rng.Seeded(5), nil)

	centres, err := r.Reduce(4)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if len(centres) != 4 {
		t.Fatalf("len(centres) = %d, want 4", len(centres))
	}
}

func TestReduceRejectsKGreaterThanQ(t *testing.T) {
	m := buildMaintainer(t, 5)
	r := New(m, rng.Seeded(1), nil)

	_, err := r.Reduce(6)
	if _, ok := err.(*ConfigurationError); !ok {
		t.Fatalf("Reduce() error = %v, want *ConfigurationError", err)
	}
}

func TestReduceRejectsKLessThanTwo(t *testing.T) {
	m := buildMaintainer(t, 5)
	r := New(m, rng.Seeded(1), nil)

	_, err := r.Reduce(1)
	if _, ok := err.(*ConfigurationError); !ok {
		t.Fatalf("Reduce() error = %v, want *ConfigurationError", err)
	}
}

func TestReduceWithCachePopulatesAndHitsOnUnchangedPool(t *testing.T) {
	m := buildMaintainer(t, 6)
	c := cache.NewMemoryCache(cache.DefaultConfig())
	defer func() { _ = c.Close() }()

	r := NewWithCache(m, rng.Seeded(9), nil, c)

	first, err := r.Reduce(3)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if c.Stats().Sets != 1 {
		t.Fatalf("Stats().Sets = %d, want 1 after a miss", c.Stats().Sets)
	}

	second, err := r.Reduce(3)
	if err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
	if c.Stats().Hits != 1 {
		t.Fatalf("Stats().Hits = %d, want 1 on the repeat call", c.Stats().Hits)
	}
	if len(second) != len(first) {
		t.Fatalf("len(second) = %d, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].Index != second[i].Index || first[i].Weight != second[i].Weight {
			t.Errorf("centre %d changed across cache hit: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestFingerprintChangesWithK(t *testing.T) {
	points := []*types.Point{types.NewWeightedPoint(0, []float64{1, 2}, 3)}
	if fingerprint(points, 2) == fingerprint(points, 3) {
		t.Error("fingerprint should differ when k differs")
	}
}

func TestReducerWithNilCacheSkipsCaching(t *testing.T) {
	m := buildMaintainer(t, 5)
	r := NewWithCache(m, rng.Seeded(1), nil, nil)

	if _, err := r.Reduce(3); err != nil {
		t.Fatalf("Reduce() error = %v", err)
	}
}
