package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Show and validate configuration",
	Long: sym.AM + ` am - integration worker configuration

Configuration sources (in order of precedence):
1. Environment variables (IMOVELGUIDE_* prefix, e.g. IMOVELGUIDE_PULSE_WORKERS)
2. --config file, or the nearest ./imovelguide.toml
3. User config (~/.imovelguide/imovelguide.toml)
4. System config (/etc/imovelguide/imovelguide.toml)
5. Default values

Examples:
  imovelguide am show                 # Effective configuration as TOML
  imovelguide am show --format json   # ... as JSON
  imovelguide am validate             # Check the configuration
  imovelguide am init ./imovelguide.toml`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runAmShow,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE:  runAmValidate,
}

var amInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a config file holding every default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := am.WriteDefaults(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", sym.AM, args[0])
		return nil
	},
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amInitCmd)
}

// loadConfig loads the --config file when given, the config cascade otherwise.
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *am.Config
		err error
	)
	if path != "" {
		cfg, err = am.LoadFromFile(path)
	} else {
		cfg, err = am.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

func runAmShow(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	out, err := am.Marshal(am.Settings(), configFormat)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if files := am.LoadedFiles(); len(files) > 0 && configFormat != "json" {
		fmt.Fprintf(w, "# loaded from %v\n", files)
	}
	_, err = w.Write(out)
	return err
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
	return nil
}
