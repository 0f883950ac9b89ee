// Package nullrho holds the statistical primitives shared by the null distribution
// generators: rho scaling, ranking, contract validation and sample summaries.
package nullrho

// RhoMultiplier returns 6/(n(n²-1)), the factor turning a sum of squared rank
// differences over n observations into Spearman's rho.
func RhoMultiplier(n int) float64 {
	nf := float64(n)
	return 6 / (nf * (nf*nf - 1))
}

// RhoFromSquaredDiff converts a sum of squared rank differences into rho.
// The result is not clamped to [-1, 1].
func RhoFromSquaredDiff(sum, mult float64) float64 {
	return 1 - sum*mult
}

// PermutationSquaredDiff returns Σ (perm[j] - j)², the squared distance between a
// permutation of 0..n-1 and the identity ranking.
func PermutationSquaredDiff(perm []int) float64 {
	sum := 0.0
	for j, p := range perm {
		d := float64(p - j)
		sum += d * d
	}
	return sum
}

// SquaredRankDiff returns Σ (a[j] - b[j])². Both rank vectors must have equal length.
func SquaredRankDiff(a, b []int) float64 {
	sum := 0.0
	for j := range a {
		d := float64(a[j] - b[j])
		sum += d * d
	}
	return sum
}
