package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"rhonull/adapters/projection"
	"rhonull/domain/nullrho"
	"rhonull/internal/errors"
	"rhonull/ports"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"workers": s.service.Workers(),
	})
}

func (s *Server) handleUnconstrained(c *gin.Context) {
	var req UnconstrainedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	start := time.Now()
	seeds, err := s.resolveSeeds(c, req.SeedOptions)
	if err != nil {
		writeError(c, err)
		return
	}

	samples, err := s.service.UnconstrainedNull(c.Request.Context(), req.N, len(seeds), seeds)
	if err != nil {
		writeError(c, err)
		return
	}

	resp, err := buildResponse("unconstrained", req.N, 0, seeds, samples, req.TestOptions)
	if err != nil {
		writeError(c, err)
		return
	}
	resp.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	log.Printf("[API] run %s: unconstrained n=%d iterations=%d", resp.RunID, req.N, len(seeds))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResidual(c *gin.Context) {
	var req ResidualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.InvalidInput("invalid request body: "+err.Error()))
		return
	}

	proj, err := projectorFromRows(req.Design)
	if err != nil {
		writeError(c, err)
		return
	}

	start := time.Now()
	seeds, err := s.resolveSeeds(c, req.SeedOptions)
	if err != nil {
		writeError(c, err)
		return
	}

	samples, err := s.service.ResidualNull(c.Request.Context(), proj, len(seeds), seeds)
	if err != nil {
		writeError(c, err)
		return
	}

	n, p := proj.Observations(), proj.Coefficients()
	resp, err := buildResponse("residual", n, p, seeds, samples, req.TestOptions)
	if err != nil {
		writeError(c, err)
		return
	}
	resp.DurationMS = float64(time.Since(start).Microseconds()) / 1000
	log.Printf("[API] run %s: residual n=%d p=%d iterations=%d", resp.RunID, n, p, len(seeds))
	c.JSON(http.StatusOK, resp)
}

// resolveSeeds returns one seed per iteration. Explicit seeds are used as given;
// an iteration count that disagrees with them is left for the service to reject.
func (s *Server) resolveSeeds(c *gin.Context, opts SeedOptions) ([]int64, error) {
	iterations := s.config.DefaultIterations
	if opts.Iterations != nil {
		iterations = *opts.Iterations
	}
	if iterations > s.config.MaxIterations {
		return nil, errors.Newf(errors.CodeValidationError,
			"iterations %d exceeds the limit of %d", iterations, s.config.MaxIterations)
	}

	if opts.Seeds != nil {
		if opts.Iterations != nil && *opts.Iterations != len(opts.Seeds) {
			return nil, errors.Newf(errors.CodeSeedCountMismatch,
				"length of seeds should be equal to number of iterations, got %d seeds for %d iterations",
				len(opts.Seeds), *opts.Iterations)
		}
		if len(opts.Seeds) > s.config.MaxIterations {
			return nil, errors.Newf(errors.CodeValidationError,
				"%d seeds exceed the limit of %d", len(opts.Seeds), s.config.MaxIterations)
		}
		return opts.Seeds, nil
	}

	base := s.config.BaseSeed
	if opts.BaseSeed != nil {
		base = *opts.BaseSeed
	}
	return s.service.DeriveSeeds(c.Request.Context(), base, iterations)
}

// projectorFromRows factorizes a row-major design. Rows without columns describe
// a model with no coefficients, whose projection is the identity.
func projectorFromRows(rows [][]float64) (ports.ProjectionPort, error) {
	n := len(rows)
	if n == 0 {
		return nil, errors.InvalidInput("design must have at least one row")
	}
	p := len(rows[0])
	for i, row := range rows {
		if len(row) != p {
			return nil, errors.Newf(errors.CodeInvalidInput,
				"design row %d has %d columns, expected %d", i, len(row), p)
		}
	}
	if p == 0 {
		proj, err := projection.Identity(n)
		if err != nil {
			return nil, err
		}
		return proj, nil
	}

	design := mat.NewDense(n, p, nil)
	for i, row := range rows {
		design.SetRow(i, row)
	}
	proj, err := projection.FromDesign(design)
	if err != nil {
		return nil, err
	}
	return proj, nil
}

func buildResponse(kind string, n, p int, seeds []int64, samples []float64, opts TestOptions) (*NullResponse, error) {
	resp := &NullResponse{
		RunID:        uuid.New().String(),
		Kind:         kind,
		Observations: n,
		Coefficients: p,
		Iterations:   len(samples),
	}
	if !opts.SummaryOnly {
		resp.Seeds = seeds
		resp.Samples = samples
	}
	if len(samples) == 0 {
		return resp, nil
	}

	summary, err := nullrho.Summarize(samples, n)
	if err != nil {
		return nil, err
	}
	resp.Summary = &summary

	if opts.Observed != nil {
		alternative, err := nullrho.ParseAlternative(opts.Alternative)
		if err != nil {
			return nil, err
		}
		resp.PValues = &PValues{
			Observed:    *opts.Observed,
			Alternative: string(alternative),
			Empirical:   nullrho.EmpiricalPValue(samples, *opts.Observed, alternative),
			Asymptotic:  nullrho.AsymptoticPValue(*opts.Observed, n, alternative),
		}
	}
	return resp, nil
}

func writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.CodeInvalidInput, errors.CodeValidationError, errors.CodeProjection,
		errors.CodeInvalidObservationCount, errors.CodeInvalidIterationCount, errors.CodeSeedCountMismatch:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
