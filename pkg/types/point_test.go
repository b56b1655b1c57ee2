package types

import "testing"

func TestPointCopyPreservesIndex(t *testing.T) {
	p := NewWeightedPoint(7, []float64{1, 2, 3}, 2)
	cp := p.Copy()

	if cp.Index != p.Index {
		t.Fatalf("copy changed index: got %d want %d", cp.Index, p.Index)
	}
	if cp == p {
		t.Fatalf("copy returned same pointer")
	}
	cp.Features[0] = 99
	if p.Features[0] == 99 {
		t.Fatalf("copy is not deep: mutating copy affected original")
	}
}

func TestPointCoordinateWeightedConvention(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		want   float64
	}{
		{"weighted sum divides by weight", 2, 5},
		{"zero weight returns raw feature", 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewWeightedPoint(1, []float64{10}, tt.weight)
			if got := p.Coordinate(0); got != tt.want {
				t.Errorf("Coordinate(0) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDummyCentre(t *testing.T) {
	d := DummyCentre(3)
	if d.Weight != 0 || d.Index != -1 {
		t.Fatalf("dummy centre has wrong weight/index: %+v", d)
	}
	for l, f := range d.Features {
		if f != -1000000 {
			t.Errorf("feature %d = %v, want -1e6", l, f)
		}
	}
	if !d.IsDummy() {
		t.Errorf("IsDummy() = false, want true")
	}
}

func TestNewPointDefaultsWeightOne(t *testing.T) {
	p := NewPoint(5, []float64{1, 2})
	if p.Weight != 1 {
		t.Errorf("Weight = %v, want 1", p.Weight)
	}
	if p.Dimension() != 2 {
		t.Errorf("Dimension() = %d, want 2", p.Dimension())
	}
}
