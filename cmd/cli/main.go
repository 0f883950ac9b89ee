package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rhonull/adapters/api"
	"rhonull/adapters/excel"
	"rhonull/adapters/projection"
	"rhonull/adapters/rng"
	"rhonull/app"
	"rhonull/domain/nullrho"
	"rhonull/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// outputOptions are shared by the sampling commands
type outputOptions struct {
	summaryOnly bool
	asJSON      bool
	observed    float64
	alternative string
	hasObserved bool
}

func newRootCmd() *cobra.Command {
	var (
		workers    int
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:           "rhonull",
		Short:         "Empirical null distributions of Spearman's rho",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default RHONULL_CONFIG_FILE)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", -1, "Worker goroutines (default RHONULL_WORKERS, 0 means one per CPU)")

	loadService := func() (*config.Config, *app.NullDistributionService, error) {
		if configPath == "" {
			configPath = os.Getenv("RHONULL_CONFIG_FILE")
		}
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, nil, err
		}
		if workers >= 0 {
			cfg.Simulation.Workers = workers
		}
		adapter := rng.NewAdapter()
		adapter.Verbose = cfg.Simulation.VerboseRNG
		return cfg, app.NewNullDistributionService(adapter, cfg.Simulation.Workers), nil
	}

	rootCmd.AddCommand(
		newUnconstrainedCmd(loadService),
		newResidualCmd(loadService),
		newRnormCmd(),
		newServeCmd(loadService),
	)
	return rootCmd
}

type serviceLoader func() (*config.Config, *app.NullDistributionService, error)

func addOutputFlags(cmd *cobra.Command, opts *outputOptions) {
	cmd.Flags().BoolVar(&opts.summaryOnly, "summary-only", false, "Print only the summary statistics")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print results as JSON")
	cmd.Flags().Float64Var(&opts.observed, "observed", 0, "Observed rho to compare against the null distribution")
	cmd.Flags().StringVar(&opts.alternative, "alternative", "two-sided", "Alternative for --observed: greater|less|two-sided")
}

// seedFlags select the per-iteration seeds of a sampling command
type seedFlags struct {
	base     int64
	explicit []int64
}

func addSeedFlags(cmd *cobra.Command, seeds *seedFlags) {
	cmd.Flags().Int64Var(&seeds.base, "seed", 42, "Base seed for per-iteration seeds")
	cmd.Flags().Int64SliceVar(&seeds.explicit, "seeds", nil, "Per-iteration seeds, comma separated (overrides --seed)")
}

// resolveSeeds returns the iteration count and one seed per iteration. Explicit
// seeds are passed through unchanged; an --iterations value that disagrees with
// them is left for the service to reject.
func resolveSeeds(cmd *cobra.Command, service *app.NullDistributionService, cfg *config.Config, explicit []int64, iterations int, base int64) (int, []int64, error) {
	flags := cmd.Flags()
	if flags.Changed("seeds") {
		if !flags.Changed("iterations") {
			iterations = len(explicit)
		}
		return iterations, explicit, nil
	}

	if !flags.Changed("iterations") {
		iterations = cfg.Simulation.DefaultIterations
	}
	if !flags.Changed("seed") {
		base = cfg.Simulation.BaseSeed
	}
	seeds, err := service.DeriveSeeds(cmd.Context(), base, iterations)
	if err != nil {
		return 0, nil, err
	}
	return iterations, seeds, nil
}

func newUnconstrainedCmd(load serviceLoader) *cobra.Command {
	var (
		n          int
		iterations int
		seedOpts   seedFlags
		opts       outputOptions
	)

	cmd := &cobra.Command{
		Use:   "unconstrained",
		Short: "Sample the null distribution of rho for n exchangeable observations",
		Long: `Sample the null distribution of Spearman's rho by shuffling n ranks per iteration.

Per-iteration seeds are derived from --seed, or given one per iteration with
--seeds, so the same invocation always prints the same samples regardless of
--workers.

Examples:
  rhonull unconstrained --n 100 --iterations 10000 --seed 42 --summary-only
  rhonull unconstrained --n 5 --seeds 1,2,3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, service, err := load()
			if err != nil {
				return err
			}
			opts.hasObserved = cmd.Flags().Changed("observed")

			count, seeds, err := resolveSeeds(cmd, service, cfg, seedOpts.explicit, iterations, seedOpts.base)
			if err != nil {
				return err
			}
			samples, err := service.UnconstrainedNull(cmd.Context(), n, count, seeds)
			if err != nil {
				return err
			}
			return writeSamples(cmd.OutOrStdout(), samples, n, opts)
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "Number of observations")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "Number of null samples")
	addSeedFlags(cmd, &seedOpts)
	addOutputFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("n")
	return cmd
}

func newResidualCmd(load serviceLoader) *cobra.Command {
	var (
		designPath string
		sheet      string
		iterations int
		seedOpts   seedFlags
		opts       outputOptions
	)

	cmd := &cobra.Command{
		Use:   "residual",
		Short: "Sample the null distribution of rho between residuals of a linear model",
		Long: `Sample the null distribution of Spearman's rho between two residual vectors
simulated in the residual space of a design matrix.

The design is read from a .csv or .xlsx file with one row per observation and an
optional header row.

Example: rhonull residual --design design.csv --iterations 5000 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, service, err := load()
			if err != nil {
				return err
			}
			opts.hasObserved = cmd.Flags().Changed("observed")

			design, err := excel.NewDesignReaderWithConfig(excel.ReaderConfig{Sheet: sheet}).Read(designPath)
			if err != nil {
				return err
			}
			proj, err := projection.FromDesign(design)
			if err != nil {
				return err
			}

			count, seeds, err := resolveSeeds(cmd, service, cfg, seedOpts.explicit, iterations, seedOpts.base)
			if err != nil {
				return err
			}
			samples, err := service.ResidualNull(cmd.Context(), proj, count, seeds)
			if err != nil {
				return err
			}
			return writeSamples(cmd.OutOrStdout(), samples, proj.Observations(), opts)
		},
	}

	cmd.Flags().StringVar(&designPath, "design", "", "Design matrix file (.csv or .xlsx)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet of an .xlsx design (default first sheet)")
	cmd.Flags().IntVar(&iterations, "iterations", 1000, "Number of null samples")
	addSeedFlags(cmd, &seedOpts)
	addOutputFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("design")
	return cmd
}

func newRnormCmd() *cobra.Command {
	var (
		count int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "rnorm",
		Short: "Print standard normal draws from a seeded stream",
		Long: `Print standard normal draws from a freshly seeded random stream, for
checking that streams reproduce across platforms and builds.

Example: rhonull rnorm --count 5 --seed 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("count should be non-negative, got %d", count)
			}
			out := cmd.OutOrStdout()
			for _, v := range rng.Normals(count, seed) {
				fmt.Fprintln(out, formatSample(v))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of draws")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Stream seed")
	return cmd
}

func newServeCmd(load serviceLoader) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the null distribution API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return api.Serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default PORT)")
	return cmd
}

type samplesOutput struct {
	Samples []float64        `json:"samples,omitempty"`
	Summary *nullrho.Summary `json:"summary,omitempty"`
	PValue  *pValueOutput    `json:"p_value,omitempty"`
}

type pValueOutput struct {
	Observed    float64 `json:"observed"`
	Alternative string  `json:"alternative"`
	Empirical   float64 `json:"empirical"`
	Asymptotic  float64 `json:"asymptotic"`
}

func writeSamples(w io.Writer, samples []float64, n int, opts outputOptions) error {
	var result samplesOutput
	if !opts.summaryOnly {
		result.Samples = samples
	}
	if len(samples) > 0 {
		summary, err := nullrho.Summarize(samples, n)
		if err != nil {
			return err
		}
		result.Summary = &summary
	}
	if opts.hasObserved && len(samples) > 0 {
		alternative, err := nullrho.ParseAlternative(opts.alternative)
		if err != nil {
			return err
		}
		result.PValue = &pValueOutput{
			Observed:    opts.observed,
			Alternative: string(alternative),
			Empirical:   nullrho.EmpiricalPValue(samples, opts.observed, alternative),
			Asymptotic:  nullrho.AsymptoticPValue(opts.observed, n, alternative),
		}
	}

	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, v := range result.Samples {
		fmt.Fprintln(w, formatSample(v))
	}
	if s := result.Summary; s != nil {
		if len(result.Samples) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "iterations:        %d\n", s.Iterations)
		fmt.Fprintf(w, "observations:      %d\n", s.Observations)
		fmt.Fprintf(w, "mean:              %.6f\n", s.Mean)
		fmt.Fprintf(w, "variance:          %.6f (exact null %.6f)\n", s.Variance, s.ExpectedVariance)
		fmt.Fprintf(w, "min / max:         %.6f / %.6f\n", s.Min, s.Max)
		fmt.Fprintf(w, "median:            %.6f\n", s.Median)
		fmt.Fprintf(w, "95th / 99th pct:   %.6f / %.6f\n", s.Percentile95, s.Percentile99)
	}
	if p := result.PValue; p != nil {
		fmt.Fprintf(w, "p-value (%s, rho=%.4f): empirical %.6g, asymptotic %.6g\n",
			p.Alternative, p.Observed, p.Empirical, p.Asymptotic)
	}
	return nil
}

// formatSample prints v with enough digits to round-trip
func formatSample(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
