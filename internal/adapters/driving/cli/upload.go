package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [path]",
	Short: "Publish a project to the registry",
	Long: `Packages the project tree (or an already built .4ml archive) and
pushes it to the registry as a new lineage. The lineage version must
supersede every previously published one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	report, err := lifecycleService.Upload(cmd.Context(), path)
	if err != nil {
		return err
	}
	cmd.Printf("Uploaded %s/%s\n", report.Project, report.Lineage)
	return nil
}
