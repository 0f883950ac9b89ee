// Package projection applies the orthogonal factor of a QR factorization of a
// design matrix, stored in compact Householder form.
package projection

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack/lapack64"
	"gonum.org/v1/gonum/mat"

	apperrors "rhonull/internal/errors"
	"rhonull/ports"
)

// Householder applies Q from a compact QR factorization: an n×p row-major matrix
// whose entries below the diagonal hold the reflector vectors (the upper triangle,
// R, is ignored) and the p reflector scales tau. It does not support concurrent
// calls because the apply routine writes to the reflector diagonal while it runs
// and reuses one workspace.
type Householder struct {
	n, p int
	qr   []float64
	tau  []float64
	work []float64
}

// NewHouseholder binds an operator to a precomputed factorization. qr and tau are
// copied. p may be zero, in which case Q is the identity.
func NewHouseholder(n, p int, qr, tau []float64) (*Householder, error) {
	switch {
	case n <= 0:
		return nil, apperrors.Newf(apperrors.CodeProjection, "number of observations should be positive, got %d", n)
	case p < 0 || p > n:
		return nil, apperrors.Newf(apperrors.CodeProjection, "number of coefficients should be in [0, %d], got %d", n, p)
	case len(qr) != n*p:
		return nil, apperrors.Newf(apperrors.CodeProjection, "QR matrix should hold %d×%d values, got %d", n, p, len(qr))
	case len(tau) != p:
		return nil, apperrors.Newf(apperrors.CodeProjection, "expected %d reflector scales, got %d", p, len(tau))
	}

	h := &Householder{
		n:   n,
		p:   p,
		qr:  append([]float64(nil), qr...),
		tau: append([]float64(nil), tau...),
	}
	if p > 0 {
		query := make([]float64, 1)
		lapack64.Ormqr(blas.Left, blas.NoTrans, h.reflectors(), h.tau, h.column(make([]float64, n)), query, -1)
		h.work = make([]float64, int(query[0]))
	}
	return h, nil
}

// FromDesign factorizes a copy of an n×p design matrix with p ≤ n. The design's
// rank is not checked.
func FromDesign(design mat.Matrix) (*Householder, error) {
	n, p := design.Dims()
	if p > n {
		return nil, apperrors.Newf(apperrors.CodeProjection, "design has more columns (%d) than rows (%d)", p, n)
	}

	a := mat.DenseCopyOf(design).RawMatrix()
	tau := make([]float64, p)

	query := make([]float64, 1)
	lapack64.Geqrf(a, tau, query, -1)
	work := make([]float64, int(query[0]))
	lapack64.Geqrf(a, tau, work, len(work))

	return NewHouseholder(n, p, a.Data, tau)
}

// Identity returns the operator of an empty design over n observations
func Identity(n int) (*Householder, error) {
	return NewHouseholder(n, 0, nil, nil)
}

func (h *Householder) reflectors() blas64.General {
	return blas64.General{Rows: h.n, Cols: h.p, Stride: h.p, Data: h.qr}
}

func (h *Householder) column(vec []float64) blas64.General {
	return blas64.General{Rows: h.n, Cols: 1, Stride: 1, Data: vec}
}

func (h *Householder) Observations() int { return h.n }

func (h *Householder) Coefficients() int { return h.p }

// ApplyQ overwrites vec with Q·vec, or Qᵀ·vec when transpose is set
func (h *Householder) ApplyQ(vec []float64, transpose bool) error {
	if len(vec) != h.n {
		return apperrors.Newf(apperrors.CodeProjection, "vector should have length %d, got %d", h.n, len(vec))
	}
	if h.p == 0 {
		return nil
	}

	trans := blas.NoTrans
	if transpose {
		trans = blas.Trans
	}
	lapack64.Ormqr(blas.Left, trans, h.reflectors(), h.tau, h.column(vec), h.work, len(h.work))
	return nil
}

// ApplyQTo writes Q·src (or Qᵀ·src) into dst. dst and src may be the same slice.
func (h *Householder) ApplyQTo(dst, src []float64, transpose bool) error {
	if len(src) != h.n || len(dst) != h.n {
		return apperrors.Newf(apperrors.CodeProjection,
			"vectors should have length %d, got src=%d dst=%d", h.n, len(src), len(dst))
	}
	copy(dst, src)
	return h.ApplyQ(dst, transpose)
}

// Clone returns an operator with its own copy of the factorization and workspace
func (h *Householder) Clone() ports.ProjectionPort {
	return &Householder{
		n:    h.n,
		p:    h.p,
		qr:   append([]float64(nil), h.qr...),
		tau:  append([]float64(nil), h.tau...),
		work: make([]float64, len(h.work)),
	}
}

var _ ports.ProjectionPort = (*Householder)(nil)
