package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/db"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the integration database",
	Long: sym.DB + ` db - integration database operations

Examples:
  imovelguide db migrate   # Apply pending migrations
  imovelguide db status    # List migrations and whether they are applied`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, err := openDatabase(cfg, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Database %s is up to date\n", sym.DB, cfg.Database.Path)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, err := db.Open(cfg.Database.Path, logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		statuses, err := db.Status(cmd.Context(), conn)
		if err != nil {
			return err
		}
		rows := pterm.TableData{{"VERSION", "NAME", "STATUS"}}
		for _, s := range statuses {
			status := "pending"
			if s.Applied {
				status = "applied"
			}
			rows = append(rows, []string{s.Version, s.Name, status})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	},
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatusCmd)
}
