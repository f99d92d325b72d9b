package cli

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/formlio/forml/internal/core/ports/driving"
)

var (
	tuneLineage string
	tuneRounds  int
	tuneSeed    int64
)

var tuneCmd = &cobra.Command{
	Use:   "tune <project>",
	Short: "Random-search the tuning space",
	Long: `Sweeps the hyperparameter space declared in the project descriptor,
scoring each candidate on a holdout split and reporting the winner.`,
	Args: cobra.ExactArgs(1),
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().StringVarP(&tuneLineage, "lineage", "l", "", "lineage version (default latest)")
	tuneCmd.Flags().IntVarP(&tuneRounds, "rounds", "n", 0, "number of candidates to draw")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 0, "random seed for a reproducible sweep")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	report, err := lifecycleService.Tune(cmd.Context(), driving.TuneRequest{
		Project: args[0],
		Lineage: tuneLineage,
		Rounds:  tuneRounds,
		Seed:    tuneSeed,
	})
	if err != nil {
		return err
	}
	cmd.Printf("Tuned %s/%s over %d rounds: %s=%.4f\n",
		report.Project, report.Lineage, report.Rounds, report.Metric, report.Score)
	refs := make([]string, 0, len(report.Params))
	for ref := range report.Params {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		cmd.Printf("  %s = %v\n", ref, report.Params[ref])
	}
	return nil
}
