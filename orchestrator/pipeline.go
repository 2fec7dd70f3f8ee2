package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/integration"
	"github.com/matheusluizig/imovelguide-integracao-sub000/ixgest"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/normalize"
	"github.com/matheusluizig/imovelguide-integracao-sub000/pulse"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/upsert"
)

// feedSource is where a run reads its feed from. A stored location is the
// integration's feed URL and must be http(s).
type feedSource struct {
	fetcher  ixgest.Fetcher
	location string
	stored   bool
}

// pipeline runs fetch, extract, normalize, upsert, images and reconcile in
// that order. Any returned error is a *report.Abort naming the failing step;
// the report holds whatever the completed steps produced.
func (o *Orchestrator) pipeline(ctx context.Context, it *integration.Integration, src feedSource, progress pulse.ProgressEmitter, log *zap.SugaredLogger) (rep *report.RunReport, err error) {
	rep = report.New()
	rep.IntegrationID = it.ID

	step := report.StepFetch
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Pipeline panicked", logger.FieldStep, step, "panic", r, "stack", string(debug.Stack()))
			err = report.NewAbort(step, errors.Newf("panic: %v", r))
		}
	}()

	progress.EmitStage(string(step), "Fetching feed")
	if src.stored {
		if err := integration.ValidateFeedURL(src.location); err != nil {
			return rep, report.NewAbort(step, err)
		}
	}
	feed, err := src.fetcher.Fetch(ctx, src.location)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	defer feed.Close()

	step = report.StepExtract
	progress.EmitStage(string(step), "Parsing feed")
	doc, err := ixgest.ParseDocument(feed)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	adapter, err := o.Adapters.Resolve(it.System, doc)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	rep.Provider = adapter.Name()
	raws, err := adapter.Extract(doc)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	logger.IXInfow(log, "Feed extracted", logger.FieldProvider, adapter.Name(), logger.FieldCount, len(raws))

	step = report.StepNormalize
	progress.EmitStage(string(step), fmt.Sprintf("Normalizing %d records", len(raws)))
	listings, normalized, err := o.Normalizer.Batch(ctx, normalize.Owner{AccountID: it.AccountID, IntegrationID: it.ID}, raws)
	rep.Merge(normalized)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	progress.EmitProgress(len(listings), len(raws))

	target := upsert.Target{AccountID: it.AccountID, IntegrationID: it.ID, HighlightLimit: it.HighlightLimit}

	step = report.StepUpsert
	progress.EmitStage(string(step), fmt.Sprintf("Saving %d listings", len(listings)))
	touched, upserted, err := o.Upserter.Upsert(ctx, target, listings)
	rep.Merge(upserted)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}

	step = report.StepImages
	progress.EmitStage(string(step), fmt.Sprintf("Syncing images of %d listings", len(touched)))
	images, err := o.Upserter.SyncImages(ctx, target, touched)
	rep.Merge(images)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}

	step = report.StepReconcile
	progress.EmitStage(string(step), "Removing listings absent from the feed")
	removed, err := o.Upserter.RemoveAbsent(ctx, target, listings)
	rep.Merge(removed)
	if err != nil {
		return rep, report.NewAbort(step, err)
	}
	return rep, nil
}
