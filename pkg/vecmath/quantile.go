package vecmath

import "gonum.org/v1/gonum/stat/distuv"

// GaussianQuantile returns Φ⁻¹(p), the inverse CDF of the standard
// normal distribution, used by the relevance-stamp formula (spec.md
// §3): relevanceStamp = μ + σ_t·Φ⁻¹(m/(2n)) when n > 2m.
func GaussianQuantile(p float64) float64 {
	n := distuv.UnitNormal
	return n.Quantile(p)
}
