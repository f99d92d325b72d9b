package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/formlio/forml/internal/core/ports/driving"
)

var (
	trainLineage string
	trainLower   float64
	trainUpper   float64
)

var trainCmd = &cobra.Command{
	Use:   "train <project>",
	Short: "Train a new generation",
	Long: `Fits the project pipeline on the source data and commits the result
as a new generation of the lineage. Without an explicit lower bound the
training continues from the ordinal the previous generation consumed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVarP(&trainLineage, "lineage", "l", "", "lineage version (default latest)")
	trainCmd.Flags().Float64Var(&trainLower, "lower", 0, "lower ordinal bound (exclusive)")
	trainCmd.Flags().Float64Var(&trainUpper, "upper", 0, "upper ordinal bound (inclusive)")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	req := driving.TrainRequest{Project: args[0], Lineage: trainLineage}
	if cmd.Flags().Changed("lower") {
		req.Lower = &trainLower
	}
	if cmd.Flags().Changed("upper") {
		req.Upper = &trainUpper
	}
	report, err := lifecycleService.Train(cmd.Context(), req)
	if err != nil {
		return err
	}
	cmd.Printf("Trained %s/%s generation %d (%d states)\n",
		report.Project, report.Lineage, report.Generation, report.States)
	return nil
}
