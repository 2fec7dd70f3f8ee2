package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/metrics"
	"github.com/matheusluizig/imovelguide-integracao-sub000/orchestrator"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/schedule"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// PulseCmd represents the pulse command - the integration worker daemon
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: sym.Pulse + " Manage the Pulse daemon (integration workers + scheduler)",
	Long: sym.Pulse + ` Pulse daemon - integration workers.

The Pulse daemon provides:
- A worker pool that runs due integration jobs, highest queue class first
- A scheduler that re-enqueues integrations whose feed is due for a refresh
- A Prometheus /metrics endpoint

Any number of daemons may share one database; execution slots and a lock
per integration keep them from running the same feed twice.

Example:
  imovelguide pulse start                  # Start daemon in foreground
  imovelguide pulse start --workers 4      # Start with 4 concurrent workers
  imovelguide pulse start --queues plan    # Serve only the plan queue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd starts the Pulse daemon
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Pulse daemon",
	RunE:  runPulseStart,
}

// PulseStatusCmd prints queue counts
var PulseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued and running job counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStores(cmd, func(s stores) error {
			queued, running, err := s.queue.GetJobCounts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d queued, %d running\n", sym.Pulse, queued, running)
			return nil
		})
	},
}

func init() {
	PulseStartCmd.Flags().Int("workers", 0, "Number of concurrent workers (default: pulse.workers)")
	PulseStartCmd.Flags().StringSlice("queues", nil, "Queue classes to serve, highest priority first (default: pulse.queues)")
	PulseStartCmd.Flags().Bool("no-schedule", false, "Do not run the scheduler in this process")
	PulseCmd.AddCommand(PulseStartCmd)
	PulseCmd.AddCommand(PulseStatusCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Pulse.Workers = workers
	}
	if queues, _ := cmd.Flags().GetStringSlice("queues"); len(queues) > 0 {
		cfg.Pulse.Queues = queues
	}
	if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); noSchedule {
		cfg.Schedule.Enabled = false
	}

	poolCfg, err := async.PoolConfigFromAm(cfg.Pulse)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Logger
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := async.NewWorkerPool(ctx, a.queue, orchestrator.NewExecutor(a.orchestrator), poolCfg, log)
	pool.Start()

	var ticker *schedule.Ticker
	if cfg.Schedule.Enabled {
		ticker = schedule.NewTicker(ctx, a.integrations, a.queue, pool, schedule.TickerConfigFromAm(cfg.Schedule), log)
		ticker.Start()
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		srv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(a),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Metrics server stopped", logger.FieldError, err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Pulse daemon started\n", sym.Pulse)
	fmt.Fprintf(out, "  Database:      %s\n", cfg.Database.Path)
	fmt.Fprintf(out, "  Workers:       %d\n", pool.Workers())
	fmt.Fprintf(out, "  Queues:        %v\n", poolCfg.Classes)
	fmt.Fprintf(out, "  Poll interval: %v\n", poolCfg.PollInterval)
	fmt.Fprintf(out, "  Stop timeout:  %v\n", poolCfg.StopTimeout)
	if ticker != nil {
		fmt.Fprintf(out, "  Schedule:      every %d minutes\n", cfg.Schedule.IntervalMinutes)
	}
	if srv != nil {
		fmt.Fprintf(out, "  Metrics:       %s/metrics\n", cfg.Metrics.Addr)
	}
	fmt.Fprintf(out, "\n%s Press Ctrl+C for graceful shutdown\n\n", sym.Pulse)

	<-ctx.Done()
	// A second signal kills the process; interrupted runs recover as stuck.
	stop()
	fmt.Fprintf(out, "\n%s Shutting down, waiting up to %v for running integrations (Ctrl+C again to exit now)...\n",
		sym.Pulse, poolCfg.StopTimeout)

	// Reverse order of startup.
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}
	if ticker != nil {
		ticker.Stop()
	}
	pool.Stop()

	fmt.Fprintf(out, "%s Pulse daemon stopped (%d jobs processed)\n", sym.Pulse, pool.JobsProcessed())
	return nil
}

func metricsMux(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
