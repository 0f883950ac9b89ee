package testkit

import (
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"rhonull/adapters/projection"
	"rhonull/adapters/rng"
	"rhonull/app"
)

// TestKit provides testing utilities and fixtures
type TestKit struct {
	rngAdapter *rng.Adapter
}

// NewTestKit creates a new test kit instance
func NewTestKit() *TestKit {
	return &TestKit{rngAdapter: rng.NewAdapter()}
}

// NullService returns a null distribution service limited to workers goroutines
func (t *TestKit) NullService(workers int) *app.NullDistributionService {
	return app.NewNullDistributionService(t.rngAdapter, workers)
}

// Seeds returns the consecutive seeds first, first+1, ...
func Seeds(first int64, count int) []int64 {
	seeds := make([]int64, count)
	for i := range seeds {
		seeds[i] = first + int64(i)
	}
	return seeds
}

// RandomDesign returns an n×p design with an intercept column followed by
// standard normal covariates, so it has full column rank almost surely.
func RandomDesign(n, p int, seed int64) *mat.Dense {
	r := rand.New(rand.NewSource(seed))
	design := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if j == 0 {
				design.Set(i, j, 1)
				continue
			}
			design.Set(i, j, r.NormFloat64())
		}
	}
	return design
}

// GroupDesign returns a one-way layout: an indicator column per group, with groups
// assigned round-robin over the n observations.
func GroupDesign(n, groups int) *mat.Dense {
	design := mat.NewDense(n, groups, nil)
	for i := 0; i < n; i++ {
		design.Set(i, i%groups, 1)
	}
	return design
}

// Projector factorizes design, panicking on failure. Fixtures only.
func Projector(design mat.Matrix) *projection.Householder {
	h, err := projection.FromDesign(design)
	if err != nil {
		panic(err)
	}
	return h
}

// Moments returns the mean and sample variance of samples
func Moments(samples []float64) (mean, variance float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	mean, _ = stats.Mean(samples)
	if len(samples) < 2 {
		return mean, 0
	}
	variance, _ = stats.SampleVariance(samples)
	return mean, variance
}
