// Eventparsed is the hybrid event extraction daemon.
//
// It converts free-form text into structured calendar event fields over a
// three-tier pipeline: deterministic patterns first, a backup recognizer
// service for medium-confidence fields, and a constrained model call for
// whatever is still unresolved.
//
// Usage:
//
//	# Start the server with defaults
//	eventparsed serve
//
//	# Configure via file and environment
//	eventparsed serve --config /etc/eventparse/config.yaml
//	EVENTPARSE_SERVER_PORT=9090 eventparsed serve
//
//	# One-shot extraction from the command line
//	eventparsed parse "Team meeting tomorrow at 2pm in Conference Room A"
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the optional YAML configuration file.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventparsed",
	Short: "Hybrid event extraction daemon",
	Long: `eventparsed extracts structured calendar event fields from free-form
text, with per-field confidence, provenance, and audit trails.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
}
