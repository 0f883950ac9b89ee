package app

import (
	"context"
	"log"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"rhonull/domain/nullrho"
	apperrors "rhonull/internal/errors"
	"rhonull/ports"
)

const (
	// minIterationsPerWorker keeps tiny requests on a single goroutine
	minIterationsPerWorker = 32

	// chunksPerWorker is the number of chunks queued per worker slot
	chunksPerWorker = 4
)

// NullDistributionService simulates null distributions of Spearman's rho
type NullDistributionService struct {
	rngPort ports.RNGPort
	workers int
}

// NewNullDistributionService creates a service drawing its streams from rngPort.
// A non-positive worker count means one worker per CPU.
func NewNullDistributionService(rngPort ports.RNGPort, workers int) *NullDistributionService {
	s := &NullDistributionService{rngPort: rngPort}
	s.SetWorkers(workers)
	return s
}

// SetWorkers configures the maximum number of concurrent workers
func (s *NullDistributionService) SetWorkers(workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s.workers = workers
}

// Workers returns the configured worker limit
func (s *NullDistributionService) Workers() int {
	return s.workers
}

// iterationFunc computes the sample for iteration i using worker-local state
type iterationFunc func(i int) (float64, error)

// UnconstrainedNull draws the null distribution of rho for n exchangeable
// observations. Iteration i shuffles the identity ranking with a stream seeded by
// seeds[i] and compares the permutation against the identity.
func (s *NullDistributionService) UnconstrainedNull(ctx context.Context, n, iterations int, seeds []int64) ([]float64, error) {
	if err := nullrho.ValidateUnconstrained(n, iterations, len(seeds)); err != nil {
		return nil, err
	}

	start := time.Now()
	mult := nullrho.RhoMultiplier(n)

	out, workers, err := s.run(ctx, iterations, func() iterationFunc {
		perm := make([]int, n)
		return func(i int) (float64, error) {
			stream, err := s.rngPort.SeededStream(ctx, "null-rho", seeds[i])
			if err != nil {
				return 0, err
			}
			for j := range perm {
				perm[j] = j
			}
			stream.ShuffleInts(perm)
			return nullrho.RhoFromSquaredDiff(nullrho.PermutationSquaredDiff(perm), mult), nil
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[NullDistribution] unconstrained n=%d iterations=%d workers=%d in %v",
		n, iterations, workers, time.Since(start))
	return out, nil
}

// ResidualNull draws the null distribution of rho between two residual vectors
// simulated in the residual space of the design behind proj. Both vectors of one
// iteration come from the same stream, seeded once from seeds[i]. proj is not
// used directly; every worker applies its own clone.
func (s *NullDistributionService) ResidualNull(ctx context.Context, proj ports.ProjectionPort, iterations int, seeds []int64) ([]float64, error) {
	if err := nullrho.ValidateResidual(iterations, len(seeds)); err != nil {
		return nil, err
	}
	if proj == nil {
		return nil, apperrors.InvalidInput("projection operator is required")
	}

	start := time.Now()
	n, p := proj.Observations(), proj.Coefficients()
	mult := nullrho.RhoMultiplier(n)

	out, workers, err := s.run(ctx, iterations, func() iterationFunc {
		op := proj.Clone()
		residual := make([]float64, n)
		first, second := make([]int, n), make([]int, n)
		scratch := make([]nullrho.RankPair, 0, n)

		return func(i int) (float64, error) {
			stream, err := s.rngPort.SeededStream(ctx, "null-rho-design", seeds[i])
			if err != nil {
				return 0, err
			}

			for _, ranks := range [2][]int{first, second} {
				for j := 0; j < p; j++ {
					residual[j] = 0
				}
				for j := p; j < n; j++ {
					residual[j] = stream.Normal()
				}
				if err := op.ApplyQ(residual, false); err != nil {
					return 0, err
				}
				scratch = nullrho.RankInto(ranks, residual, scratch)
			}

			return nullrho.RhoFromSquaredDiff(nullrho.SquaredRankDiff(first, second), mult), nil
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[NullDistribution] residual n=%d p=%d iterations=%d workers=%d in %v",
		n, p, iterations, workers, time.Since(start))
	return out, nil
}

// DeriveSeeds expands a base seed into count per-iteration seeds in [0, 2^31-1]
func (s *NullDistributionService) DeriveSeeds(ctx context.Context, base int64, count int) ([]int64, error) {
	if count < 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidIterationCount,
			"number of iterations should be non-negative, got %d", count)
	}
	stream, err := s.rngPort.SeededStream(ctx, "seed-derivation", base)
	if err != nil {
		return nil, err
	}
	seeds := make([]int64, count)
	for i := range seeds {
		seeds[i] = int64(stream.UniformInt(0, math.MaxInt32))
	}
	return seeds, nil
}

// run splits the iterations into contiguous chunks, several per worker, and runs
// each chunk on its own goroutine once the semaphore grants a slot. Each chunk
// builds its own state through setup and writes sample i into out[i], so the
// output order never depends on scheduling. The first error aborts the call.
func (s *NullDistributionService) run(ctx context.Context, iterations int, setup func() iterationFunc) ([]float64, int, error) {
	out := make([]float64, iterations)
	if iterations == 0 {
		return out, 0, nil
	}

	workers := s.workers
	chunk := (iterations + workers*chunksPerWorker - 1) / (workers * chunksPerWorker)
	if chunk < minIterationsPerWorker {
		chunk = minIterationsPerWorker
	}
	if chunks := (iterations + chunk - 1) / chunk; workers > chunks {
		workers = chunks
	}

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg       sync.WaitGroup
		failed   atomic.Bool
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		failed.Store(true)
	}

	for lo := 0; lo < iterations; lo += chunk {
		hi := min(lo+chunk, iterations)
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(err)
			break
		}
		if failed.Load() {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			defer sem.Release(1)

			iterate := setup()
			for i := lo; i < hi; i++ {
				if failed.Load() {
					return
				}
				rho, err := iterate(i)
				if err != nil {
					fail(err)
					return
				}
				out[i] = rho
			}
		}(lo, hi)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	return out, workers, nil
}
