package nullrho

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "rhonull/internal/errors"
)

// Summary provides key statistics about a sampled null distribution of rho
type Summary struct {
	Iterations   int     `json:"iterations"`
	Observations int     `json:"observations"`
	Mean         float64 `json:"mean"`
	Variance     float64 `json:"variance"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Median       float64 `json:"median"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`

	// ExpectedVariance is 1/(n-1), the exact null variance of rho without ties
	ExpectedVariance float64 `json:"expected_variance"`
}

// Summarize describes samples drawn for n observations. Variance is the sample
// (n-1 denominator) variance and is zero for a single sample.
func Summarize(samples []float64, n int) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, apperrors.InvalidInput("cannot summarize an empty null distribution")
	}
	if n <= 1 {
		return Summary{}, apperrors.Newf(apperrors.CodeInvalidObservationCount,
			"number of observations should be greater than 1, got %d", n)
	}

	summary := Summary{
		Iterations:       len(samples),
		Observations:     n,
		ExpectedVariance: 1 / float64(n-1),
	}

	var err error
	if summary.Mean, err = stats.Mean(samples); err != nil {
		return Summary{}, apperrors.Wrap(err, "mean")
	}
	if len(samples) > 1 {
		if summary.Variance, err = stats.SampleVariance(samples); err != nil {
			return Summary{}, apperrors.Wrap(err, "variance")
		}
		summary.StdDev = math.Sqrt(summary.Variance)
	}
	if summary.Min, err = stats.Min(samples); err != nil {
		return Summary{}, apperrors.Wrap(err, "min")
	}
	if summary.Max, err = stats.Max(samples); err != nil {
		return Summary{}, apperrors.Wrap(err, "max")
	}
	if summary.Median, err = stats.Median(samples); err != nil {
		return Summary{}, apperrors.Wrap(err, "median")
	}
	if summary.Percentile95, err = stats.Percentile(samples, 95); err != nil {
		return Summary{}, apperrors.Wrap(err, "95th percentile")
	}
	if summary.Percentile99, err = stats.Percentile(samples, 99); err != nil {
		return Summary{}, apperrors.Wrap(err, "99th percentile")
	}

	return summary, nil
}

// Alternative selects the tail of a significance test
type Alternative string

const (
	Greater  Alternative = "greater"
	Less     Alternative = "less"
	TwoSided Alternative = "two-sided"
)

// ParseAlternative maps a user-supplied name onto an Alternative
func ParseAlternative(s string) (Alternative, error) {
	switch Alternative(s) {
	case Greater, Less, TwoSided:
		return Alternative(s), nil
	case "":
		return TwoSided, nil
	}
	return "", apperrors.Newf(apperrors.CodeInvalidInput, "unknown alternative %q", s)
}

// EmpiricalPValue returns (k+1)/(m+1), where k counts the null samples at least as
// extreme as observed. The result is never zero.
func EmpiricalPValue(null []float64, observed float64, alternative Alternative) float64 {
	extreme := 0
	for _, rho := range null {
		switch alternative {
		case Greater:
			if rho >= observed {
				extreme++
			}
		case Less:
			if rho <= observed {
				extreme++
			}
		default:
			if math.Abs(rho) >= math.Abs(observed) {
				extreme++
			}
		}
	}
	return float64(extreme+1) / float64(len(null)+1)
}

// AsymptoticPValue approximates the null distribution of rho for n observations by
// a normal with zero mean and variance 1/(n-1).
func AsymptoticPValue(observed float64, n int, alternative Alternative) float64 {
	if n <= 1 {
		return 1
	}
	ref := distuv.Normal{Mu: 0, Sigma: 1 / math.Sqrt(float64(n-1))}

	switch alternative {
	case Greater:
		return ref.Survival(observed)
	case Less:
		return ref.CDF(observed)
	default:
		return math.Min(1, 2*ref.Survival(math.Abs(observed)))
	}
}
