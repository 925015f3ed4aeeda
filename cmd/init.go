package cmd

import (
	"github.com/spf13/cobra"

	"github.com/prograin/agent-backend/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize prograin-agent configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the service and generates a .prograin-agent.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
