package commands

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/db"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest/providers"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/media"
	"github.com/matheusluizig/imovelguide-integracao-sub000/metrics"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
	"github.com/matheusluizig/imovelguide-integracao-sub000/orchestrator"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/async"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse/coord"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/upsert"
)

// app holds everything a command needs to drive integrations.
type app struct {
	cfg          *am.Config
	db           *sql.DB
	integrations *integration.Store
	listings     *listing.Store
	queue        *async.Queue
	orchestrator *orchestrator.Orchestrator
	sources      ixgest.Fetcher // run --file: local paths, file:// and stdin
	registry     *prometheus.Registry
	watcher      *am.FileWatcher
	logger       *zap.SugaredLogger
}

// openDatabase opens the configured database and applies pending migrations.
func openDatabase(cfg *am.Config, log *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := db.OpenWithMigrations(cfg.Database.Path, log)
	if err != nil {
		return nil, errors.Wrapf(err, "database %s", cfg.Database.Path)
	}
	return conn, nil
}

// newApp wires the pipeline from cfg. Close releases the database and the
// lookup watcher.
func newApp(ctx context.Context, cfg *am.Config, log *zap.SugaredLogger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	conn, err := openDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:          cfg,
		db:           conn,
		integrations: integration.NewStore(conn),
		listings:     listing.NewStore(conn),
		queue: async.NewQueue(conn).
			WithPolicy(async.PolicyFromConfig(cfg.Pulse)).
			WithClaimLease(cfg.Pulse.ClaimLease()),
		registry: prometheus.NewRegistry(),
		logger:   log,
	}

	lookups, err := a.loadLookups()
	if err != nil {
		a.Close()
		return nil, err
	}

	objects, err := media.NewObjectStore(ctx, cfg.Storage, log)
	if err != nil {
		a.Close()
		return nil, errors.Wrap(err, "object storage")
	}
	images := media.NewIngestor(objects, a.listings, media.NewDownloader(media.DownloaderOptions{
		Timeout:           time.Duration(cfg.Images.TimeoutSeconds) * time.Second,
		MaxBytes:          cfg.Images.MaxBytes,
		RequestsPerSecond: cfg.Images.RequestsPerSecond,
		Burst:             cfg.Images.Burst,
		AllowPrivate:      cfg.Images.AllowPrivate,
	}), media.Transcoder{
		Quality:    cfg.Images.Quality,
		BaseMax:    cfg.Images.BaseMaxSize,
		MediumSize: cfg.Images.MediumSize,
		SmallSize:  cfg.Images.SmallSize,
	}, media.IngestorOptions{
		MaxPerListing: cfg.Images.MaxPerListing,
		Concurrency:   cfg.Images.Concurrency,
	}, log)

	fetcher := ixgest.NewGetterFetcher(time.Duration(cfg.Feed.TimeoutSeconds)*time.Second, cfg.Feed.AllowPrivate, log)
	a.sources = stdinFetcher{next: fetcher.WithLocalFiles(), in: stdin}

	a.orchestrator = orchestrator.New(orchestrator.Deps{
		Integrations: a.integrations,
		Queue:        a.queue,
		Coordinator:  coord.New(conn, log),
		Fetcher:      fetcher,
		Adapters:     providers.NewRegistry(),
		Normalizer:   normalize.NewEngine(lookups, normalize.NewLocationStore(conn), log),
		Upserter:     upsert.NewEngine(a.listings, images, log).WithFailureThreshold(cfg.Images.FailureThreshold),
		Notifier:     report.NewLogNotifier(log),
		Metrics:      metrics.New(a.registry),
	}, orchestrator.ConfigFromAm(cfg.Pulse), log)
	return a, nil
}

func (a *app) loadLookups() (*normalize.LookupSet, error) {
	path := a.cfg.Normalize.LookupPath
	if path == "" {
		l, err := normalize.DefaultLookups()
		if err != nil {
			return nil, err
		}
		return normalize.NewLookupSet(l), nil
	}

	l, err := normalize.LoadLookups(path)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup tables %s", path)
	}
	set := normalize.NewLookupSet(l)
	if a.cfg.Normalize.WatchLookups {
		w, err := normalize.WatchLookups(set, path, a.logger)
		if err != nil {
			return nil, errors.Wrapf(err, "watch lookup tables %s", path)
		}
		a.watcher = w
	}
	return set, nil
}

// Close stops the lookup watcher and closes the database.
func (a *app) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	return a.db.Close()
}

// StdinSource is the feed source that reads the document from standard input.
const StdinSource = "-"

// stdinFetcher serves StdinSource from in and everything else from next.
type stdinFetcher struct {
	next ixgest.Fetcher
	in   io.Reader
}

func (f stdinFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	if source == StdinSource {
		return io.NopCloser(f.in), nil
	}
	return f.next.Fetch(ctx, source)
}
