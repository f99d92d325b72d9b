package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var initDir string

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Scaffold a new project",
	Long: `Creates a new project skeleton: the manifest, a starter pipeline
descriptor and a sample data directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "parent directory for the project")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if lifecycleService == nil {
		return errors.New("lifecycle service not configured")
	}
	target, err := lifecycleService.Init(cmd.Context(), args[0], initDir)
	if err != nil {
		return err
	}
	cmd.Printf("Project created at %s\n", target)
	return nil
}
