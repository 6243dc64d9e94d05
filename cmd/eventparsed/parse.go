package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JacoLabs/eventparse/internal/config"
	"github.com/JacoLabs/eventparse/internal/httpapi"
	"github.com/JacoLabs/eventparse/internal/logging"
	"github.com/JacoLabs/eventparse/internal/pipeline"
)

var (
	parseTimezone string
	parseAudit    bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [text]",
	Short: "Extract event fields from text without starting a server",
	Long: `Run one extraction locally and print the result as JSON.

Examples:
  # Parse an argument
  eventparsed parse "Team meeting tomorrow at 2pm in Conference Room A"

  # Parse from stdin
  echo "standup every monday 9:30" | eventparsed parse -

  # Include the routing audit trail
  eventparsed parse --audit "lunch friday noon"`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseTimezone, "timezone", "UTC", "IANA timezone for temporal resolution")
	parseCmd.Flags().BoolVar(&parseAudit, "audit", false, "include the routing audit trail")
}

func runParse(cmd *cobra.Command, args []string) error {
	text := args[0]
	if text == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	// One-shot runs log to stderr so stdout stays clean JSON.
	cfg.Logging.Format = "console"

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	p, _ := buildPipeline(cfg, logger)

	result, audit, err := p.Parse(context.Background(), pipeline.Request{
		Text:     text,
		Timezone: parseTimezone,
		Audit:    parseAudit,
	})
	if err != nil {
		return err
	}

	resp := httpapi.ParseResponse{Event: result}
	if parseAudit {
		resp.Audit = audit
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
