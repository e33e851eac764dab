package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "pipelinectl",
	Short: "Operator CLI for the prospect pipeline",
	Long: `Operator tooling for the prospect pipeline.

Available commands:
  migrate   - Apply pending database migrations
  client    - Register paying clients
  campaign  - Create campaigns for a client
  tool      - Manage the discovery tool catalog
  reset     - Send a prospect back to the start of the pipeline
  run-once  - Run a single orchestrator cycle and exit`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to pipeline YAML config (default $CONFIG_FILE)")
	rootCmd.AddCommand(migrateCmd, resetCmd, toolCmd, clientCmd, campaignCmd, runOnceCmd)
}

func main() {
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
