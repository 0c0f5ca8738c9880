package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/procsim/procsim/sim/experiment"
	"github.com/procsim/procsim/sim/scenario"
	"github.com/procsim/procsim/sim/trace"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	configPath     string
	seed           int64  // Seed of the experiment; trial seeds derive from it
	trials         int    // Number of independent trials
	workers        int    // Trials run in parallel; 0 means GOMAXPROCS
	horizon        float64
	servers        uint64
	arrivalRate    float64 // Customers per time unit
	arrivalProcess string
	arrivalCV      float64
	serviceMean    float64
	serviceProcess string
	serviceCV      float64
	highPriority   float64 // Fraction of customers in the high class
	preempt        bool
	output         string // text or json
	traceLevel     string
	logLevel       string
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "procsim",
	Short: "Process-oriented discrete-event simulation of priority queues",
}

// newRunCmd returns the run command bound to opts.
func newRunCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a queueing experiment",
		Long: `Run independent trials of a multi-server queue with two customer classes.
Parameters come from --config (YAML) and are overridden by any flag given
on the command line.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", opts.logLevel, err)
			}
			logrus.SetLevel(level)

			file, err := opts.experimentFile(cmd)
			if err != nil {
				return err
			}
			logrus.Infof("Starting %d trials: horizon=%g, servers=%d, offered load=%.3f",
				file.Trials, file.Horizon, file.Servers, file.OfferedLoad())

			startTime := time.Now()
			results, err := runTrials(cmd, file, opts.workers)
			if err != nil {
				return err
			}
			report := newReport(file, results, time.Since(startTime))
			if err := report.write(cmd.OutOrStdout(), opts.output); err != nil {
				return err
			}
			logrus.Info("Simulation complete.")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML scenario file; flags override its values")
	f.Int64Var(&opts.seed, "seed", 42, "Seed for the experiment")
	f.IntVar(&opts.trials, "trials", 1, "Number of independent trials")
	f.IntVar(&opts.workers, "workers", 0, "Trials run in parallel (0 = GOMAXPROCS)")
	f.Float64Var(&opts.horizon, "horizon", 10000, "Simulated time per trial")
	f.Uint64Var(&opts.servers, "servers", 2, "Number of servers")

	// Arrival stream
	f.Float64Var(&opts.arrivalRate, "arrival-rate", 1.0, "Customer arrivals per time unit")
	f.StringVar(&opts.arrivalProcess, "arrival-process", "poisson", "Inter-arrival distribution (poisson, gamma, weibull, lognormal, constant)")
	f.Float64Var(&opts.arrivalCV, "arrival-cv", 1.0, "Coefficient of variation of inter-arrival times")

	// Service
	f.Float64Var(&opts.serviceMean, "service-mean", 1.6, "Mean service time")
	f.StringVar(&opts.serviceProcess, "service-process", "exponential", "Service time distribution (exponential, gamma, weibull, lognormal, constant)")
	f.Float64Var(&opts.serviceCV, "service-cv", 1.0, "Coefficient of variation of service times")

	// Classes
	f.Float64Var(&opts.highPriority, "high-priority", 0, "Fraction of customers in the high-priority class")
	f.BoolVar(&opts.preempt, "preempt", false, "High-priority customers preempt low-priority ones")

	f.StringVar(&opts.output, "output", "text", "Report format (text, json)")
	f.StringVar(&opts.traceLevel, "trace", "none", "Dispatch trace level (none, events)")
	f.StringVar(&opts.logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	return cmd
}

// experimentFile loads --config, if any, and applies the flags that were set
// explicitly on top of it.
func (opts *runOptions) experimentFile(cmd *cobra.Command) (scenario.File, error) {
	file := scenario.File{Seed: 42, Trials: 1, Trace: string(trace.TraceLevelNone), Config: scenario.DefaultConfig()}
	if opts.configPath != "" {
		loaded, err := scenario.LoadFile(opts.configPath)
		if err != nil {
			return file, err
		}
		file = loaded
		logrus.Infof("Loaded scenario from %s", opts.configPath)
	}

	changed := func(name string) bool {
		return opts.configPath == "" || cmd.Flags().Changed(name)
	}
	if changed("seed") {
		file.Seed = opts.seed
	}
	if changed("trials") {
		file.Trials = opts.trials
	}
	if changed("trace") {
		file.Trace = opts.traceLevel
	}
	if changed("horizon") {
		file.Horizon = opts.horizon
	}
	if changed("servers") {
		file.Servers = opts.servers
	}
	if changed("arrival-process") {
		file.Arrival.Process = opts.arrivalProcess
	}
	if changed("arrival-rate") {
		if opts.arrivalRate <= 0 {
			return file, fmt.Errorf("--arrival-rate must be positive, got %g", opts.arrivalRate)
		}
		file.Arrival.Mean = 1 / opts.arrivalRate
	}
	if changed("arrival-cv") {
		cv := opts.arrivalCV
		file.Arrival.CV = &cv
	}
	if changed("service-process") {
		file.Service.Process = opts.serviceProcess
	}
	if changed("service-mean") {
		file.Service.Mean = opts.serviceMean
	}
	if changed("service-cv") {
		cv := opts.serviceCV
		file.Service.CV = &cv
	}
	if changed("high-priority") {
		file.HighPriority = opts.highPriority
	}
	if changed("preempt") {
		file.Preempt = opts.preempt
	}

	if file.Trials < 1 {
		return file, fmt.Errorf("trials must be at least 1, got %d", file.Trials)
	}
	if !trace.IsValidTraceLevel(file.Trace) {
		return file, fmt.Errorf("unknown trace level %q; valid: none, events", file.Trace)
	}
	if opts.output != "text" && opts.output != "json" {
		return file, fmt.Errorf("unknown output format %q; valid: text, json", opts.output)
	}
	if err := file.Validate(); err != nil {
		return file, fmt.Errorf("invalid scenario: %w", err)
	}
	return file, nil
}

// runTrials runs every trial of file in parallel. Trial i is seeded from the
// experiment seed and i, so results do not depend on the worker count.
func runTrials(cmd *cobra.Command, file scenario.File, workers int) ([]scenario.Result, error) {
	results := make([]scenario.Result, file.Trials)
	traceCfg := trace.TraceConfig{Level: trace.TraceLevel(file.Trace)}
	err := experiment.Run(cmd.Context(), results, func(_ context.Context, i int, out *scenario.Result) error {
		r, err := scenario.RunTrial(file.Config, scenario.TrialOptions{
			Trial:  i,
			Seed:   trialSeed(file.Seed, i),
			Logger: logrus.StandardLogger(),
			Trace:  traceCfg,
		})
		if err != nil {
			return err
		}
		*out = r
		return nil
	}, experiment.WithWorkers(workers))
	return results, err
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.AddCommand(newRunCmd(&runOptions{}))
}
