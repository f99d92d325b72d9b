package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [project [lineage]]",
	Short: "List registry content",
	Long: `Enumerates the registry: projects when called bare, the lineages of
a project, or the trained generations of a lineage.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	var project, lineage string
	if len(args) > 0 {
		project = args[0]
	}
	if len(args) > 1 {
		lineage = args[1]
	}
	items, err := lifecycleService.List(cmd.Context(), project, lineage)
	if err != nil {
		return err
	}
	for _, item := range items {
		cmd.Println(item)
	}
	return nil
}
