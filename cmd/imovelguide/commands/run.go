package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/orchestrator"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// RunCmd runs one integration in the foreground
var RunCmd = &cobra.Command{
	Use:   "run <integration-id>",
	Short: sym.IX + " Run one integration in the foreground",
	Long: sym.IX + ` Run one integration in the foreground.

The run takes the same slots and lock as a worker would, so it never overlaps
a run of the same integration elsewhere. --file replaces the feed URL for
this run only; "-" reads the feed from standard input.

Examples:
  imovelguide run 7
  imovelguide run 7 --file ./vrsync.xml
  curl -s https://example.com/feed.xml | imovelguide run 7 --file -`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runFile string

func init() {
	RunCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read the feed from this path (\"-\" for stdin)")
}

func runRun(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := logger.WithComponent(cmd.Context(), "cli")
	a, err := newApp(ctx, cfg, logger.ComponentLogger("run"))
	if err != nil {
		return err
	}
	defer a.Close()

	it, err := a.integrations.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := a.queue.Enqueue(ctx, id, it.QueueClass, 0); err != nil {
		return errors.Wrapf(err, "queue integration %d", id)
	}

	verbosity, _ := cmd.Flags().GetCount("verbose")
	out := cmd.OutOrStdout()
	outcome, err := a.orchestrator.RunWith(ctx, id, 0, orchestrator.RunOptions{
		Source:   runFile,
		Fetcher:  a.sources,
		Progress: NewCLIEmitter(out, verbosity),
	})
	if err != nil {
		return err
	}
	if outcome.Report != nil {
		printReport(out, outcome.Report)
	}
	return outcomeError(outcome)
}

// outcomeError turns an unsuccessful outcome into the command's exit error.
func outcomeError(o orchestrator.Outcome) error {
	switch {
	case o.Success:
		return nil
	case o.Action == orchestrator.ActionMarkFailed:
		return errors.Newf("run failed: %s", o.Reason)
	case !o.Metrics.EndedAt.IsZero():
		return errors.Newf("run failed: %s (retry in %s)", o.Reason, o.RetryAfter)
	case o.Reason == orchestrator.ReasonDisabled:
		return errors.New("integration is disabled")
	default:
		return errors.Newf("run not started: %s (retry in %s)", o.Reason, o.RetryAfter)
	}
}

func printReport(w io.Writer, rep *report.RunReport) {
	c := rep.Counts
	rows := pterm.TableData{
		{"PROVIDER", "TOTAL", "PROCESSED", "SKIPPED", "INSERTED", "UPDATED", "UNCHANGED", "PROTECTED", "REMOVED", "IMAGES +/-", "IMAGE FAILURES"},
		{
			rep.Provider,
			strconv.Itoa(c.Total),
			strconv.Itoa(c.Processed),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Inserted),
			strconv.Itoa(c.Updated),
			strconv.Itoa(c.Unchanged),
			strconv.Itoa(c.Protected),
			strconv.Itoa(c.Removed),
			fmt.Sprintf("%d/%d", c.ImagesInserted, c.ImagesRemoved),
			strconv.Itoa(c.ImageFailures),
		},
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()

	skips := rep.SkipsByReason()
	if len(skips) > 0 {
		reasons := pterm.TableData{{"SKIP REASON", "CODES"}}
		for _, r := range rep.Reasons() {
			if n, ok := skips[r]; ok {
				reasons = append(reasons, []string{string(r), strconv.Itoa(n)})
			}
		}
		_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(reasons).Render()
	}
	for _, warning := range rep.Warnings {
		pterm.Fprintln(w, pterm.Yellow("! "+warning))
	}
}

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin
