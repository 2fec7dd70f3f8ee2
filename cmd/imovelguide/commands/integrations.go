package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
)

// IntegrationsCmd groups integration management
var IntegrationsCmd = &cobra.Command{
	Use:     "integrations",
	Aliases: []string{"integration", "it"},
	Short:   "Register and list feed integrations",
	Long: `Register and list feed integrations.

An integration is one account's subscription to a partner feed. Its system
names the adapter used to read the feed (vrsync, zapimoveis, imovelweb) or
"auto" to detect it from the document.

Examples:
  imovelguide integrations add --account 21 --system vrsync --url https://example.com/feed.xml
  imovelguide integrations ls --status in_analysis
  imovelguide integrations disable 7`,
}

var integrationsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an integration and queue its first run",
	RunE:  runIntegrationsAdd,
}

var integrationsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List integrations",
	RunE:  runIntegrationsLs,
}

var integrationsDisableCmd = &cobra.Command{
	Use:   "disable <integration-id>",
	Short: "Exclude an integration from scheduling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStores(cmd, func(s stores) error {
			if err := s.integrations.SetStatus(cmd.Context(), id, integration.StatusDisabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Integration %d disabled\n", id)
			return nil
		})
	},
}

var (
	addAccount    int64
	addSystem     string
	addURL        string
	addClass      string
	addHighlights int
	addNoEnqueue  bool

	lsAccount int64
	lsStatus  string
	lsLimit   int
)

func init() {
	integrationsAddCmd.Flags().Int64Var(&addAccount, "account", 0, "Owning account id")
	integrationsAddCmd.Flags().StringVar(&addSystem, "system", "auto", "Feed system: vrsync, zapimoveis, imovelweb or auto")
	integrationsAddCmd.Flags().StringVar(&addURL, "url", "", "Feed URL or local path")
	integrationsAddCmd.Flags().StringVar(&addClass, "class", string(async.ClassNormal), "Queue class: plan, level or normal")
	integrationsAddCmd.Flags().IntVar(&addHighlights, "highlights", 0, "Highlighted listings allowed by the account plan")
	integrationsAddCmd.Flags().BoolVar(&addNoEnqueue, "no-enqueue", false, "Do not queue the first run")
	_ = integrationsAddCmd.MarkFlagRequired("account")
	_ = integrationsAddCmd.MarkFlagRequired("url")

	integrationsLsCmd.Flags().Int64Var(&lsAccount, "account", 0, "Only this account")
	integrationsLsCmd.Flags().StringVar(&lsStatus, "status", "", "Only this status")
	integrationsLsCmd.Flags().IntVar(&lsLimit, "limit", 100, "Maximum rows")

	IntegrationsCmd.AddCommand(integrationsAddCmd)
	IntegrationsCmd.AddCommand(integrationsLsCmd)
	IntegrationsCmd.AddCommand(integrationsDisableCmd)
}

func runIntegrationsAdd(cmd *cobra.Command, args []string) error {
	if !async.IsValidClass(addClass) {
		return errors.NewInvalidRequestError("unknown queue class %q", addClass)
	}
	return withStores(cmd, func(s stores) error {
		ctx := cmd.Context()
		it := &integration.Integration{
			AccountID:      addAccount,
			System:         addSystem,
			FeedURL:        addURL,
			QueueClass:     async.QueueClass(addClass),
			HighlightLimit: addHighlights,
		}
		if err := s.integrations.Create(ctx, it); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Integration %d created for account %d\n", it.ID, it.AccountID)
		if addNoEnqueue {
			return nil
		}
		job, err := s.queue.Enqueue(ctx, it.ID, it.QueueClass, 0)
		if err != nil {
			return errors.Wrapf(err, "integration %d created but not queued", it.ID)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", job.ID, job.Class)
		return nil
	})
}

func runIntegrationsLs(cmd *cobra.Command, args []string) error {
	if lsStatus != "" && !integration.IsValidStatus(lsStatus) {
		return errors.NewInvalidRequestError("unknown status %q", lsStatus)
	}
	return withStores(cmd, func(s stores) error {
		list, err := s.integrations.List(cmd.Context(), integration.Filter{
			AccountID: lsAccount,
			Status:    integration.Status(lsStatus),
			Limit:     lsLimit,
		})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No integrations")
			return nil
		}
		rows := pterm.TableData{{"ID", "ACCOUNT", "SYSTEM", "STATUS", "CLASS", "LAST SUCCESS", "ITEMS", "LAST ERROR"}}
		for _, it := range list {
			rows = append(rows, []string{
				strconv.FormatInt(it.ID, 10),
				strconv.FormatInt(it.AccountID, 10),
				it.System,
				string(it.Status),
				string(it.QueueClass),
				formatTime(it.LastSuccessAt),
				fmt.Sprintf("%d/%d", it.ProcessedItems, it.TotalItems),
				truncate(it.LastError, 60),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	})
}

// stores are the database-backed stores commands read and write directly.
type stores struct {
	integrations *integration.Store
	queue        *async.Queue
}

// withStores opens the database for the duration of fn.
func withStores(cmd *cobra.Command, fn func(stores) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, err := openDatabase(cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(stores{
		integrations: integration.NewStore(conn),
		queue:        async.NewQueue(conn).WithPolicy(async.PolicyFromConfig(cfg.Pulse)),
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequestError("invalid integration id %q", s)
	}
	return id, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
