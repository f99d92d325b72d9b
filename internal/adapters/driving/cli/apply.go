package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/formlio/forml/internal/core/ports/driving"
)

var (
	applyLineage    string
	applyGeneration string
)

var applyCmd = &cobra.Command{
	Use:   "apply <project>",
	Short: "Score fresh data",
	Long: `Restores a trained generation and runs the source data through the
pipeline, publishing the predictions to the configured sink.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyLineage, "lineage", "l", "", "lineage version (default latest)")
	applyCmd.Flags().StringVarP(&applyGeneration, "generation", "g", "", "generation ordinal (default latest)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	report, err := lifecycleService.Apply(cmd.Context(), driving.ApplyRequest{
		Project:    args[0],
		Lineage:    applyLineage,
		Generation: applyGeneration,
	})
	if err != nil {
		return err
	}
	cmd.Printf("Applied %s/%s/%d to %d rows\n",
		report.Project, report.Lineage, report.Generation, report.Rows)
	return nil
}
