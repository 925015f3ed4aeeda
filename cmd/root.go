package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "prograin-agent",
	Short: "AI assistant backend for the ProGrain marketplace",
	Long: `prograin-agent is the backend service that ingests marketplace events
idempotently and brokers generative requests to an LLM provider: it
answers buyer/seller chat messages and drafts listing descriptions
with price suggestions, hardened into a strict client-safe schema.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".prograin-agent.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
