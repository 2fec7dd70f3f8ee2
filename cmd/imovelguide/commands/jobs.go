package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// EnqueueCmd queues a run of one integration
var EnqueueCmd = &cobra.Command{
	Use:   "enqueue <integration-id>",
	Short: sym.Pulse + " Queue an integration run",
	Long: sym.Pulse + ` Queue an integration run.

There is one job per integration. Enqueueing a finished job reopens it with
fresh attempts; a job waiting for a retry keeps its attempts; a pending job
only moves to a higher priority class; a running job is left alone.

Examples:
  imovelguide enqueue 7
  imovelguide enqueue 7 --class plan --delay 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runEnqueue,
}

// JobsCmd inspects the job queue
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: sym.Pulse + " Inspect the integration job queue",
	Long: sym.Pulse + ` Inspect the integration job queue.

Examples:
  imovelguide jobs ls                  # Jobs in priority order
  imovelguide jobs ls --status stopped # Jobs waiting for a retry
  imovelguide jobs show 7              # Job of integration 7`,
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs",
	RunE:  runJobsLs,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <integration-id>",
	Short: "Show the job of an integration",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var (
	enqueueClass string
	enqueueDelay time.Duration

	jobsStatus string
	jobsClass  string
	jobsLimit  int
	jobsJSON   bool
)

func init() {
	EnqueueCmd.Flags().StringVar(&enqueueClass, "class", "", "Queue class: plan, level or normal (default: the integration's class)")
	EnqueueCmd.Flags().DurationVar(&enqueueDelay, "delay", 0, "Delay before the job becomes due (e.g. 30s, 10m)")

	jobsLsCmd.Flags().StringVar(&jobsStatus, "status", "", "Only this status")
	jobsLsCmd.Flags().StringVar(&jobsClass, "class", "", "Only this queue class")
	jobsLsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "Maximum rows")
	jobsShowCmd.Flags().BoolVarP(&jobsJSON, "json", "j", false, "Output as JSON")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if enqueueDelay < 0 {
		return errors.NewInvalidRequestError("delay must not be negative, got %s", enqueueDelay)
	}
	if enqueueClass != "" && !async.IsValidClass(enqueueClass) {
		return errors.NewInvalidRequestError("unknown queue class %q", enqueueClass)
	}

	return withStores(cmd, func(s stores) error {
		ctx := cmd.Context()
		it, err := s.integrations.Get(ctx, id)
		if err != nil {
			return err
		}
		class := it.QueueClass
		if enqueueClass != "" {
			class = async.QueueClass(enqueueClass)
		}
		job, err := s.queue.Enqueue(ctx, id, class, enqueueDelay)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Job %s for integration %d: %s, %s, due %s\n",
			sym.Pulse, job.ID, id, job.Status, job.Class, job.AvailableAt.UTC().Format("2006-01-02 15:04:05"))
		return nil
	})
}

func runJobsLs(cmd *cobra.Command, args []string) error {
	if jobsStatus != "" && !async.IsValidStatus(jobsStatus) {
		return errors.NewInvalidRequestError("unknown job status %q", jobsStatus)
	}
	if jobsClass != "" && !async.IsValidClass(jobsClass) {
		return errors.NewInvalidRequestError("unknown queue class %q", jobsClass)
	}
	return withStores(cmd, func(s stores) error {
		jobs, err := s.queue.ListJobs(cmd.Context(), async.ListFilter{
			Status: async.JobStatus(jobsStatus),
			Class:  async.QueueClass(jobsClass),
			Limit:  jobsLimit,
		})
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
			return nil
		}
		rows := pterm.TableData{{"INTEGRATION", "STATUS", "CLASS", "ATTEMPTS", "AVAILABLE AT", "FAILED STEP", "LAST ERROR"}}
		for _, j := range jobs {
			rows = append(rows, []string{
				strconv.FormatInt(j.IntegrationID, 10),
				string(j.Status),
				string(j.Class),
				strconv.Itoa(j.Attempts),
				j.AvailableAt.UTC().Format("2006-01-02 15:04:05"),
				j.FailedStep,
				truncate(j.LastError, 60),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(rows).Render()
	})
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withStores(cmd, func(s stores) error {
		job, err := s.queue.GetByIntegration(cmd.Context(), id)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if jobsJSON {
			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return errors.Wrap(err, "encode job")
			}
			fmt.Fprintln(w, string(out))
			return nil
		}

		fmt.Fprintf(w, "Job:          %s\n", job.ID)
		fmt.Fprintf(w, "Integration:  %d\n", job.IntegrationID)
		fmt.Fprintf(w, "Status:       %s\n", job.Status)
		fmt.Fprintf(w, "Class:        %s\n", job.Class)
		fmt.Fprintf(w, "Attempts:     %d\n", job.Attempts)
		fmt.Fprintf(w, "Available at: %s\n", job.AvailableAt.UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Started at:   %s\n", formatTime(job.StartedAt))
		fmt.Fprintf(w, "Ended at:     %s\n", formatTime(job.EndedAt))
		if job.LastError != "" {
			fmt.Fprintf(w, "Failed step:  %s\n", job.FailedStep)
			fmt.Fprintf(w, "Last error:   %s\n", job.LastError)
		}
		return nil
	})
}
