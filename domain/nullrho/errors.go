package nullrho

import (
	apperrors "rhonull/internal/errors"
)

// Sentinels for errors.Is. Errors returned by the validators carry the same codes
// with a message describing the offending values.
var (
	ErrInvalidObservationCount = apperrors.New(apperrors.CodeInvalidObservationCount, "invalid observation count")
	ErrInvalidIterationCount   = apperrors.New(apperrors.CodeInvalidIterationCount, "invalid iteration count")
	ErrSeedCountMismatch       = apperrors.New(apperrors.CodeSeedCountMismatch, "seed count mismatch")
)

// ValidateUnconstrained checks the contract of the permutation generator.
// Zero iterations are accepted.
func ValidateUnconstrained(n, iterations, seeds int) error {
	if n <= 1 {
		return apperrors.Newf(apperrors.CodeInvalidObservationCount,
			"number of observations should be greater than 1, got %d", n)
	}
	if iterations < 0 {
		return apperrors.Newf(apperrors.CodeInvalidIterationCount,
			"number of iterations should be non-negative, got %d", iterations)
	}
	return validateSeeds(iterations, seeds)
}

// ValidateResidual checks the contract of the design-aware generator.
// Unlike ValidateUnconstrained, zero iterations are rejected.
func ValidateResidual(iterations, seeds int) error {
	if iterations <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidIterationCount,
			"number of iterations should be positive, got %d", iterations)
	}
	return validateSeeds(iterations, seeds)
}

func validateSeeds(iterations, seeds int) error {
	if seeds != iterations {
		return apperrors.Newf(apperrors.CodeSeedCountMismatch,
			"number of iterations and seeds should be the same, got %d iterations and %d seeds", iterations, seeds)
	}
	return nil
}
