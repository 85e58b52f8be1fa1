package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stox-sim/stox-sim/sim"
)

var checkModelPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a model for structural and statistical consistency",
	Long: "Validate the stage tree against its castings: stage types must match child " +
		"counts, every caster must resolve a casting with the right number of columns, " +
		"and every casting row should sum to 1.0 (deviations are warnings, not errors).",
	Run: func(cmd *cobra.Command, args []string) {
		if err := checkModel(checkModelPath, os.Stdout); err != nil {
			logrus.Fatalf("Check failed: %v", err)
		}
	},
}

func checkModel(path string, stdout io.Writer) error {
	tree, reg, err := loadModel(path)
	if err != nil {
		return err
	}
	check := sim.Check(tree, reg)
	if !check.OK {
		return check.Err
	}
	for _, w := range check.Warnings {
		logrus.Warnf("Check: %s", w)
	}
	if len(check.Warnings) == 0 {
		fmt.Fprintln(stdout, "Model checked and found consistent.")
	} else {
		fmt.Fprintf(stdout, "Model checked and found workable (with %d warnings).\n", len(check.Warnings))
	}
	return nil
}

func init() {
	checkCmd.Flags().StringVar(&checkModelPath, "model", "", "Path to the model file (.yaml or .sxm)")
	_ = checkCmd.MarkFlagRequired("model")

	rootCmd.AddCommand(checkCmd)
}
