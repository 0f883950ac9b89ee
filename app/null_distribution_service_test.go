package app_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rhonull/adapters/projection"
	"rhonull/adapters/rng"
	"rhonull/app"
	"rhonull/domain/nullrho"
	"rhonull/internal/testkit"
	"rhonull/ports"
)

type mockProjection struct {
	mock.Mock
}

func (m *mockProjection) Observations() int { return m.Called().Int(0) }
func (m *mockProjection) Coefficients() int { return m.Called().Int(0) }

func (m *mockProjection) ApplyQ(vec []float64, transpose bool) error {
	return m.Called(vec, transpose).Error(0)
}

func (m *mockProjection) ApplyQTo(dst, src []float64, transpose bool) error {
	return m.Called(dst, src, transpose).Error(0)
}

func (m *mockProjection) Clone() ports.ProjectionPort {
	return m.Called().Get(0).(ports.ProjectionPort)
}

type mockRNG struct {
	mock.Mock
}

func (m *mockRNG) SeededStream(ctx context.Context, name string, seed int64) (ports.RandomStream, error) {
	args := m.Called(ctx, name, seed)
	stream, _ := args.Get(0).(ports.RandomStream)
	return stream, args.Error(1)
}

func (m *mockRNG) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	return m.Called(ctx, name, seed, expected).Error(0)
}

func TestUnconstrainedNull_MatchesPermutationFormula(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(4)

	n := 17
	seeds := testkit.Seeds(100, 250)
	samples, err := service.UnconstrainedNull(ctx, n, len(seeds), seeds)
	require.NoError(t, err)
	require.Len(t, samples, len(seeds))

	mult := 6 / float64(n*(n*n-1))
	for i, seed := range seeds {
		perm := make([]int, n)
		for j := range perm {
			perm[j] = j
		}
		rng.NewStream(seed).ShuffleInts(perm)

		sum := 0.0
		for j, v := range perm {
			sum += float64((v - j) * (v - j))
		}
		require.Equal(t, 1-sum*mult, samples[i], "iteration %d", i)
	}

	again, err := service.UnconstrainedNull(ctx, n, len(seeds), seeds)
	require.NoError(t, err)
	assert.Equal(t, samples, again)
}

func TestUnconstrainedNull_ReferenceValues(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(1)

	// values produced by std::mt19937, std::shuffle and the same rho formula under g++
	tests := []struct {
		n    int
		seed int64
		want float64
	}{
		{5, 1, 0.90000000000000002},
		{17, 42, 0.16421568627450978},
		{100, -7, -0.0090729072907291819},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d/seed=%d", tt.n, tt.seed), func(t *testing.T) {
			samples, err := service.UnconstrainedNull(ctx, tt.n, 1, []int64{tt.seed})
			require.NoError(t, err)
			require.Len(t, samples, 1)
			assert.Equal(t, tt.want, samples[0])
		})
	}
}

func TestUnconstrainedNull_TwoObservations(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(1)

	samples, err := service.UnconstrainedNull(ctx, 2, 2, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for _, rho := range samples {
		assert.Contains(t, []float64{-1, 1}, rho)
	}

	seen := map[float64]int{}
	many, err := service.UnconstrainedNull(ctx, 2, 200, testkit.Seeds(0, 200))
	require.NoError(t, err)
	for _, rho := range many {
		seen[rho]++
	}
	assert.Len(t, seen, 2)
	assert.Greater(t, seen[1], 0)
	assert.Greater(t, seen[-1], 0)
}

func TestUnconstrainedNull_Moments(t *testing.T) {
	if testing.Short() {
		t.Skip("distributional check")
	}
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(0)

	n, m := 1000, 5000
	samples, err := service.UnconstrainedNull(ctx, n, m, testkit.Seeds(1, m))
	require.NoError(t, err)

	mean, variance := testkit.Moments(samples)
	expected := 1 / float64(n-1)
	assert.InDelta(t, 0, mean, 0.005)
	assert.InDelta(t, expected, variance, 0.1*expected)
}

func TestUnconstrainedNull_Validation(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(2)

	_, err := service.UnconstrainedNull(ctx, 1, 5, testkit.Seeds(0, 5))
	assert.True(t, errors.Is(err, nullrho.ErrInvalidObservationCount), "got %v", err)

	_, err = service.UnconstrainedNull(ctx, 10, 5, testkit.Seeds(0, 3))
	assert.True(t, errors.Is(err, nullrho.ErrSeedCountMismatch), "got %v", err)

	_, err = service.UnconstrainedNull(ctx, 10, -1, nil)
	assert.True(t, errors.Is(err, nullrho.ErrInvalidIterationCount), "got %v", err)

	empty, err := service.UnconstrainedNull(ctx, 10, 0, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestResidualNull_Validation(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(2)
	proj := testkit.Projector(testkit.RandomDesign(10, 2, 1))

	_, err := service.ResidualNull(ctx, proj, 0, nil)
	assert.True(t, errors.Is(err, nullrho.ErrInvalidIterationCount), "got %v", err)

	_, err = service.ResidualNull(ctx, proj, -3, nil)
	assert.True(t, errors.Is(err, nullrho.ErrInvalidIterationCount), "got %v", err)

	_, err = service.ResidualNull(ctx, proj, 5, testkit.Seeds(0, 3))
	assert.True(t, errors.Is(err, nullrho.ErrSeedCountMismatch), "got %v", err)

	_, err = service.ResidualNull(ctx, nil, 1, []int64{1})
	assert.Error(t, err)
}

func TestResidualNull_ReproducesManualSimulation(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(3)

	n, p := 25, 3
	proj := testkit.Projector(testkit.RandomDesign(n, p, 11))
	seeds := testkit.Seeds(500, 40)

	samples, err := service.ResidualNull(ctx, proj, len(seeds), seeds)
	require.NoError(t, err)
	require.Len(t, samples, len(seeds))

	mult := nullrho.RhoMultiplier(n)
	for i, seed := range seeds {
		stream := rng.NewStream(seed)
		var ranks [2][]int
		for k := range ranks {
			vec := make([]float64, n)
			for j := p; j < n; j++ {
				vec[j] = stream.Normal()
			}
			require.NoError(t, proj.ApplyQ(vec, false))
			ranks[k] = nullrho.Rank(vec)
		}
		want := nullrho.RhoFromSquaredDiff(nullrho.SquaredRankDiff(ranks[0], ranks[1]), mult)
		require.Equal(t, want, samples[i], "iteration %d", i)
	}

	// one continuous stream per iteration: the two vectors differ, so rho is rarely exactly 1
	ones := 0
	for _, rho := range samples {
		if rho == 1 {
			ones++
		}
	}
	assert.Less(t, ones, len(samples))
}

func TestResidualNull_EmptyDesignMatchesUnconstrained(t *testing.T) {
	if testing.Short() {
		t.Skip("distributional check")
	}
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(0)

	n, m := 50, 3000
	proj, err := projection.Identity(n)
	require.NoError(t, err)

	residual, err := service.ResidualNull(ctx, proj, m, testkit.Seeds(1, m))
	require.NoError(t, err)
	unconstrained, err := service.UnconstrainedNull(ctx, n, m, testkit.Seeds(1, m))
	require.NoError(t, err)

	expected := 1 / float64(n-1)
	rMean, rVar := testkit.Moments(residual)
	uMean, uVar := testkit.Moments(unconstrained)

	assert.InDelta(t, 0, rMean, 0.02)
	assert.InDelta(t, uMean, rMean, 0.03)
	assert.InDelta(t, expected, rVar, 0.15*expected)
	assert.InDelta(t, uVar, rVar, 0.2*expected)
}

func TestResidualNull_OneDimensionalResidualSpace(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(2)

	n := 8
	proj := testkit.Projector(testkit.RandomDesign(n, n-1, 21))
	samples, err := service.ResidualNull(ctx, proj, 100, testkit.Seeds(0, 100))
	require.NoError(t, err)

	signs := map[float64]int{}
	for i, rho := range samples {
		require.InDelta(t, 1, math.Abs(rho), 1e-12, "iteration %d: %v", i, rho)
		signs[math.Copysign(1, rho)]++
	}
	assert.Greater(t, signs[1], 0)
	assert.Greater(t, signs[-1], 0)
}

func TestResidualNull_BlockedDesign(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(0)

	proj := testkit.Projector(testkit.GroupDesign(60, 3))
	samples, err := service.ResidualNull(ctx, proj, 800, testkit.Seeds(9, 800))
	require.NoError(t, err)

	mean, variance := testkit.Moments(samples)
	assert.InDelta(t, 0, mean, 0.03)
	assert.Greater(t, variance, 0.0)
	for _, rho := range samples {
		assert.False(t, math.IsNaN(rho))
	}
}

func TestNullDistribution_WorkerCountInvariance(t *testing.T) {
	ctx := context.Background()
	kit := testkit.NewTestKit()
	proj := testkit.Projector(testkit.RandomDesign(40, 3, 5))
	seeds := testkit.Seeds(1000, 300)

	var reference, referenceResidual []float64
	for _, workers := range []int{1, 2, 7, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			service := kit.NullService(workers)

			unconstrained, err := service.UnconstrainedNull(ctx, 40, len(seeds), seeds)
			require.NoError(t, err)
			residual, err := service.ResidualNull(ctx, proj, len(seeds), seeds)
			require.NoError(t, err)

			if reference == nil {
				reference, referenceResidual = unconstrained, residual
				return
			}
			assert.Equal(t, reference, unconstrained)
			assert.Equal(t, referenceResidual, residual)
		})
	}
}

func TestResidualNull_PropagatesProjectionError(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(1)

	boom := errors.New("malformed factorization")
	proj := &mockProjection{}
	proj.On("Observations").Return(5)
	proj.On("Coefficients").Return(1)
	proj.On("Clone").Return(proj)
	proj.On("ApplyQ", mock.Anything, false).Return(boom)

	samples, err := service.ResidualNull(ctx, proj, 3, []int64{1, 2, 3})
	assert.Nil(t, samples)
	assert.Same(t, boom, err)
	proj.AssertNumberOfCalls(t, "ApplyQ", 1)
}

func TestNullDistribution_PropagatesStreamError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("entropy unavailable")

	rngPort := &mockRNG{}
	rngPort.On("SeededStream", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	service := app.NewNullDistributionService(rngPort, 1)

	_, err := service.UnconstrainedNull(ctx, 5, 2, []int64{1, 2})
	assert.Same(t, boom, err)
}

func TestDeriveSeeds(t *testing.T) {
	ctx := context.Background()
	service := testkit.NewTestKit().NullService(1)

	a, err := service.DeriveSeeds(ctx, 42, 100)
	require.NoError(t, err)
	b, err := service.DeriveSeeds(ctx, 42, 100)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	for _, s := range a {
		assert.GreaterOrEqual(t, s, int64(0))
		assert.LessOrEqual(t, s, int64(math.MaxInt32))
	}

	c, err := service.DeriveSeeds(ctx, 43, 100)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = service.DeriveSeeds(ctx, 42, -1)
	assert.Error(t, err)
}
