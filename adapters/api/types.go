package api

import "rhonull/domain/nullrho"

// SeedOptions selects the per-iteration seeds of a request. Explicit seeds win;
// otherwise seeds are derived from BaseSeed, or from the server default.
type SeedOptions struct {
	Iterations *int    `json:"iterations,omitempty"`
	Seeds      []int64 `json:"seeds,omitempty"`
	BaseSeed   *int64  `json:"base_seed,omitempty"`
}

// TestOptions optionally compares an observed rho against the simulated null
type TestOptions struct {
	Observed    *float64 `json:"observed,omitempty"`
	Alternative string   `json:"alternative,omitempty"` // greater, less, two-sided
	SummaryOnly bool     `json:"summary_only,omitempty"`
}

// UnconstrainedRequest asks for the null distribution of rho for n exchangeable observations
type UnconstrainedRequest struct {
	N int `json:"n"`
	SeedOptions
	TestOptions
}

// ResidualRequest asks for the null distribution of rho between residuals of a
// linear model with the given design, one row per observation
type ResidualRequest struct {
	Design [][]float64 `json:"design" binding:"required"`
	SeedOptions
	TestOptions
}

// PValues holds the p-values of an observed rho
type PValues struct {
	Observed    float64 `json:"observed"`
	Alternative string  `json:"alternative"`
	Empirical   float64 `json:"empirical"`
	Asymptotic  float64 `json:"asymptotic"`
}

// NullResponse is returned by both null distribution endpoints
type NullResponse struct {
	RunID        string           `json:"run_id"`
	Kind         string           `json:"kind"`
	Observations int              `json:"n"`
	Coefficients int              `json:"p"`
	Iterations   int              `json:"iterations"`
	Seeds        []int64          `json:"seeds,omitempty"`
	Samples      []float64        `json:"samples,omitempty"`
	Summary      *nullrho.Summary `json:"summary,omitempty"`
	PValues      *PValues         `json:"p_values,omitempty"`
	DurationMS   float64          `json:"duration_ms"`
}

// ErrorResponse carries the application error code of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
