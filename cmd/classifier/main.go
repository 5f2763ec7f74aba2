// Command classifier runs call transcripts through the classification chain,
// either as an HTTP service or one event at a time from the command line.
package main

import (
	"fmt"
	"os"

	"call-classifier/internal/config"
	"call-classifier/pkg/logger"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "classifier",
	Short: "Classify call transcripts through a chain of processors",
	Long: `classifier routes events through an ordered chain of processors.

The first processor that accepts an event handles it; events nobody accepts
are returned unchanged. A "newcall" event has its transcript classified and
stored.

Examples:
  classifier serve                          # HTTP API on HTTP_ADDR
  classifier run --sample                   # classify the built-in sample call
  classifier run --event '{"type":"get_classification","classification_id":1}'
  echo '{"type":"newcall","text":"hi"}' | classifier run`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		var err error
		if envFile != "" {
			cfg, err = config.LoadFile(envFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger.Init(cfg.Prod(), cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env, or .env.test when TESTING is set)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}
