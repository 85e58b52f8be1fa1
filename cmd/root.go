package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stox-sim/stox-sim/sim"
	"github.com/stox-sim/stox-sim/sim/modelfile"
	"github.com/stox-sim/stox-sim/sim/report"
)

var (
	// CLI flags for the simulation run
	seed              int64   // Seed for the bootstrap random stream (< 0 seeds from the clock)
	iterations        int     // Number of Monte Carlo iterations
	initialPopulation float64 // Population cast into the root stage each iteration
	eps               float64 // Quasi-zero floor substituted for zero transition values
	logLevel          string  // Log verbosity level
	modelPath         string  // Path to the model file (.yaml or .sxm)
	outputPath        string  // Output file for the result matrix ("" = stdout)
	outputFormat      string  // Result matrix format: tsv or html
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "stox-sim",
	Short: "Stochastic multistage simulator for seed-fate recruitment models",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recruitment simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if modelPath == "" {
			logrus.Fatalf("Model file not provided. Exiting simulation.")
		}

		// Interrupt cancels between iterations; rows already emitted are kept.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := runModel(ctx, os.Stdout); err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
	},
}

// runModel loads, checks, and runs the model, then writes the result matrix
// and its summary.
func runModel(ctx context.Context, stdout io.Writer) error {
	tree, reg, err := loadModel(modelPath)
	if err != nil {
		return err
	}

	check := sim.Check(tree, reg)
	for _, w := range check.Warnings {
		logrus.Warnf("Check: %s", w)
	}
	if !check.OK {
		return fmt.Errorf("model is not consistent: %w", check.Err)
	}

	params := sim.Params{
		InitialPopulation: initialPopulation,
		Iterations:        iterations,
		Eps:               eps,
	}
	engine, err := sim.NewEngine(tree, reg, params, sim.NewRunRand(seed))
	if err != nil {
		return err
	}

	startTime := time.Now()
	matrix, runErr := engine.Run(ctx)

	// A failed run still produced valid rows; write what we have before
	// reporting the error.
	if matrix != nil {
		if err := writeMatrix(matrix, stdout); err != nil {
			return err
		}
		if err := report.WriteSummary(stdout, report.Summarize(matrix)); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	switch engine.Status() {
	case sim.StatusCancelled:
		logrus.Warnf("Run cancelled after %d of %d iterations (partial output kept).", len(matrix.Rows), iterations)
	default:
		logrus.Infof("Model successfully ran: %d iterations in %v.", len(matrix.Rows), time.Since(startTime))
	}
	return nil
}

func writeMatrix(m *report.Matrix, stdout io.Writer) error {
	out := stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch outputFormat {
	case "tsv":
		return report.WriteTSV(out, m)
	case "html":
		return report.WriteHTML(out, m)
	}
	return fmt.Errorf("unknown output format %q (want tsv or html)", outputFormat)
}

// loadModel reads a model file in either supported container: YAML by
// default, the binary codec form for .sxm files.
func loadModel(path string) (*sim.Tree, *sim.Registry, error) {
	if isBinaryModelPath(path) {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening model file: %w", err)
		}
		defer f.Close()
		return sim.Decode(f)
	}
	return modelfile.Load(path)
}

func init() {
	runCmd.Flags().StringVar(&modelPath, "model", "", "Path to the model file (.yaml or .sxm)")
	runCmd.Flags().IntVar(&iterations, "iterations", 100, "Number of Monte Carlo iterations")
	runCmd.Flags().Float64Var(&initialPopulation, "initial", 1000, "Initial population cast into the root stage")
	runCmd.Flags().Float64Var(&eps, "eps", 0.001, "Quasi-zero substituted for zero transition values")
	runCmd.Flags().Int64Var(&seed, "seed", -1, "Random seed; negative seeds from the clock")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Write the result matrix to this file instead of stdout")
	runCmd.Flags().StringVar(&outputFormat, "format", "tsv", "Result matrix format: tsv or html")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: panic, fatal, error, warn, info, debug, trace")
	_ = runCmd.MarkFlagRequired("model")

	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
