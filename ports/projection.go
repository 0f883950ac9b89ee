package ports

// ProjectionPort applies the orthogonal factor Q of a precomputed QR factorization
// of an n×p design matrix. Columns p..n-1 of Q span the residual space of the design.
//
// Implementations may keep private scratch state, so a single value is not safe for
// concurrent calls. Concurrent callers take one Clone per goroutine.
type ProjectionPort interface {
	// Observations returns n, the number of design rows
	Observations() int

	// Coefficients returns p, the number of design columns
	Coefficients() int

	// ApplyQ overwrites vec (length n) with Q·vec, or Qᵀ·vec when transpose is set
	ApplyQ(vec []float64, transpose bool) error

	// ApplyQTo writes Q·src (or Qᵀ·src) into dst, leaving src untouched
	ApplyQTo(dst, src []float64, transpose bool) error

	// Clone returns an independent operator bound to the same factorization
	Clone() ProjectionPort
}
