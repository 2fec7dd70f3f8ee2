package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/cmd/imovelguide/commands"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
)

var rootCmd = &cobra.Command{
	Use:   "imovelguide",
	Short: "imovelguide - real-estate feed integration workers",
	Long: `imovelguide - real-estate feed integration workers.

Imports listing feeds published by partner systems (VRSync, Zap, ImovelWeb)
into the canonical listing store, with images resized into object storage.

Available commands:
  am            - Show and validate configuration
  db            - Manage the integration database
  integrations  - Register and list feed integrations
  enqueue       - Queue an integration run
  jobs          - Inspect the integration job queue
  run           - Run one integration in the foreground
  pulse         - Start the worker daemon (queue workers + scheduler)

Examples:
  imovelguide integrations add --account 21 --system vrsync --url https://example.com/feed.xml
  imovelguide run 7 --file ./feed.xml
  imovelguide pulse start --workers 4`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.InitializeWithLevel(jsonLogs, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: cascade of /etc/imovelguide, ~/.imovelguide and ./imovelguide.toml)")

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.IntegrationsCmd)
	rootCmd.AddCommand(commands.EnqueueCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
