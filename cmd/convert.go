package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stox-sim/stox-sim/sim"
	"github.com/stox-sim/stox-sim/sim/modelfile"
)

var (
	convertInPath  string
	convertOutPath string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a model between YAML and binary form",
	Long: "Read a model in either container (YAML document or binary .sxm record " +
		"stream) and write it in the container implied by the output extension. The " +
		"two forms carry the same model and round-trip losslessly.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := convertModel(convertInPath, convertOutPath); err != nil {
			logrus.Fatalf("Convert failed: %v", err)
		}
		logrus.Infof("Converted %s -> %s", convertInPath, convertOutPath)
	},
}

// isBinaryModelPath reports whether path names the binary codec container.
func isBinaryModelPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sxm", ".bin":
		return true
	}
	return false
}

func convertModel(inPath, outPath string) error {
	tree, reg, err := loadModel(inPath)
	if err != nil {
		return err
	}
	if isBinaryModelPath(outPath) {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		return sim.Encode(f, tree, reg)
	}
	return modelfile.Save(outPath, tree, reg)
}

func init() {
	convertCmd.Flags().StringVar(&convertInPath, "in", "", "Input model file (.yaml or .sxm)")
	convertCmd.Flags().StringVar(&convertOutPath, "out", "", "Output model file (.yaml or .sxm)")
	_ = convertCmd.MarkFlagRequired("in")
	_ = convertCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(convertCmd)
}
