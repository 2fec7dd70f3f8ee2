// Package upsert persists normalized listings for one account: it decides
// insert, update or no-op per listing, keeps stored images in step with the
// feed and removes feed listings the latest run no longer carries.
package upsert

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/media"
	"github.com/matheusluizig/imovelguide-integracao-sub000/report"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// ListingStore is the persistence the engine needs. *listing.Store implements it.
type ListingStore interface {
	ListByAccount(ctx context.Context, accountID int64) (map[string]*listing.Listing, error)
	Insert(ctx context.Context, l *listing.Listing) error
	Update(ctx context.Context, l *listing.Listing, changes listing.Changes) error
	Delete(ctx context.Context, id int64) error
	Images(ctx context.Context, listingID int64) ([]listing.ImageAsset, error)
}

// ImageSyncer keeps stored images in step with a listing. *media.Ingestor implements it.
type ImageSyncer interface {
	Sync(ctx context.Context, l *listing.Listing) (media.Result, error)
	RemoveAll(ctx context.Context, listingID int64) (int, error)
	DesiredNames(l *listing.Listing) []string
}

// Target identifies whose listings a run writes.
type Target struct {
	AccountID     int64
	IntegrationID int64
	// HighlightLimit caps highlighted listings per run. Negative disables the cap.
	HighlightLimit int
}

// Engine applies normalized listings to the listing store.
type Engine struct {
	store            ListingStore
	images           ImageSyncer
	failureThreshold int
	logger           *zap.SugaredLogger
}

// NewEngine creates an engine. images may be nil, in which case image sync
// and image removal are skipped.
func NewEngine(store ListingStore, images ImageSyncer, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{store: store, images: images, logger: logger}
}

// WithFailureThreshold sets how many image failures a run tolerates before a
// warning is attached to its report. Zero disables the warning.
func (e *Engine) WithFailureThreshold(n int) *Engine {
	e.failureThreshold = n
	return e
}

// Upsert inserts new listings, updates changed ones and leaves the rest
// untouched. It returns the listings whose images need syncing: inserted,
// updated, and unchanged listings whose stored image set differs from the feed.
//
// A run only writes listings it owns: feed listings of its integration, or
// feed listings left without one. Manual listings and listings of another
// integration of the account with the same code are protected and noted.
func (e *Engine) Upsert(ctx context.Context, t Target, listings []*listing.Listing) ([]*listing.Listing, *report.RunReport, error) {
	rep := report.New()
	rep.IntegrationID = t.IntegrationID
	log := e.logger.With(logger.FieldAccountID, t.AccountID, logger.FieldIntegrationID, t.IntegrationID)

	existing, err := e.store.ListByAccount(ctx, t.AccountID)
	if err != nil {
		return nil, rep, errors.Wrap(err, "load existing listings")
	}

	e.capHighlights(t, listings, rep)

	var touched []*listing.Listing
	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return touched, rep, err
		}
		l.AccountID = t.AccountID
		l.IntegrationID = t.IntegrationID

		current, ok := existing[l.Code]
		if !ok {
			l.Source = listing.SourceFeed
			if err := e.store.Insert(ctx, l); err != nil {
				return touched, rep, errors.Wrapf(err, "insert listing %s", l.Code)
			}
			rep.Inserted++
			touched = append(touched, l)
			continue
		}

		if current.ManuallyDeactivated {
			rep.Protected++
			rep.Note(l.Code, report.ReasonManuallyDeactivated, "feed data ignored")
			continue
		}
		if current.Source == listing.SourceManual {
			rep.Protected++
			rep.Note(l.Code, report.ReasonManualListing, "created by the account owner; feed data ignored")
			continue
		}
		if current.IntegrationID != 0 && current.IntegrationID != t.IntegrationID {
			rep.Protected++
			rep.Note(l.Code, report.ReasonOtherIntegration, fmt.Sprintf("owned by integration %d", current.IntegrationID))
			continue
		}

		l.ID = current.ID
		l.Source = current.Source
		l.CreatedAt = current.CreatedAt
		changes := Diff(current, l)
		if changes.Any() {
			if err := e.store.Update(ctx, l, changes); err != nil {
				return touched, rep, errors.Wrapf(err, "update listing %s", l.Code)
			}
			rep.Updated++
			touched = append(touched, l)
			log.Debugw("Listing updated", logger.FieldListingCode, l.Code, "fields", changes.Fields())
			continue
		}

		rep.Unchanged++
		stale, err := e.imagesStale(ctx, l)
		if err != nil {
			return touched, rep, err
		}
		if stale {
			touched = append(touched, l)
		}
	}

	log.Infow("Listings upserted",
		"inserted", rep.Inserted,
		"updated", rep.Updated,
		"unchanged", rep.Unchanged,
		"protected", rep.Protected,
		logger.FieldSymbol, sym.Store)
	return touched, rep, nil
}

// capHighlights keeps the highlight flag on the first HighlightLimit flagged
// listings in feed order and clears it on the rest.
func (e *Engine) capHighlights(t Target, listings []*listing.Listing, rep *report.RunReport) {
	if t.HighlightLimit < 0 {
		return
	}
	kept := 0
	for _, l := range listings {
		if !l.Highlighted {
			continue
		}
		if kept < t.HighlightLimit {
			kept++
			continue
		}
		l.Highlighted = false
		rep.Note(l.Code, report.ReasonHighlightCapped, fmt.Sprintf("limit %d", t.HighlightLimit))
	}
}

func (e *Engine) imagesStale(ctx context.Context, l *listing.Listing) (bool, error) {
	if e.images == nil {
		return false, nil
	}
	stored, err := e.store.Images(ctx, l.ID)
	if err != nil {
		return false, errors.Wrapf(err, "load images of listing %s", l.Code)
	}
	names := make([]string, len(stored))
	for i, img := range stored {
		names[i] = img.Name
	}
	want := e.images.DesiredNames(l)
	slices.Sort(names)
	slices.Sort(want)
	return !slices.Equal(names, want), nil
}

// SyncImages syncs the stored images of each listing. Per-image failures
// become diagnostics; an unreachable object store aborts.
func (e *Engine) SyncImages(ctx context.Context, t Target, listings []*listing.Listing) (*report.RunReport, error) {
	rep := report.New()
	rep.IntegrationID = t.IntegrationID
	if e.images == nil {
		return rep, nil
	}

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := e.images.Sync(ctx, l)
		rep.ImagesInserted += res.Inserted
		rep.ImagesRemoved += res.Removed
		if err != nil {
			return rep, errors.WithDetailf(err, "listing %s", l.Code)
		}
		for _, c := range res.Collisions {
			rep.Note(l.Code, report.ReasonImageNameCollision, fmt.Sprintf("%s dropped: same stored name as %s", c.URL, c.Kept))
		}
		if res.Capped > 0 {
			rep.Note(l.Code, report.ReasonImageCapExceeded, fmt.Sprintf("%d images beyond the cap", res.Capped))
		}
		for _, f := range res.Failures {
			rep.ImageFailures++
			rep.Note(l.Code, report.ReasonImageFailed, fmt.Sprintf("%s: %v", f.URL, f.Err))
		}
	}

	if e.failureThreshold > 0 && rep.ImageFailures > e.failureThreshold {
		rep.Warn("%d image failures exceed the threshold of %d", rep.ImageFailures, e.failureThreshold)
		e.logger.Warnw("Image failures above threshold",
			logger.FieldIntegrationID, t.IntegrationID,
			logger.FieldCount, rep.ImageFailures,
			"threshold", e.failureThreshold,
			logger.FieldSymbol, sym.Media)
	}
	return rep, nil
}

// RemoveAbsent deletes the feed listings of the target integration whose codes
// are not in kept, images first. Manual listings and listings owned by other
// integrations of the account are left alone.
func (e *Engine) RemoveAbsent(ctx context.Context, t Target, kept []*listing.Listing) (*report.RunReport, error) {
	rep := report.New()
	rep.IntegrationID = t.IntegrationID

	existing, err := e.store.ListByAccount(ctx, t.AccountID)
	if err != nil {
		return rep, errors.Wrap(err, "load existing listings")
	}

	keep := make(map[string]bool, len(kept))
	for _, l := range kept {
		keep[l.Code] = true
	}

	var absent []*listing.Listing
	for code, l := range existing {
		if keep[code] || l.Source != listing.SourceFeed || l.IntegrationID != t.IntegrationID {
			continue
		}
		absent = append(absent, l)
	}
	slices.SortFunc(absent, func(a, b *listing.Listing) int { return cmp.Compare(a.ID, b.ID) })

	for _, l := range absent {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if e.images != nil {
			n, err := e.images.RemoveAll(ctx, l.ID)
			if err != nil {
				return rep, errors.Wrapf(err, "remove images of listing %s", l.Code)
			}
			rep.ImagesRemoved += n
		}
		if err := e.store.Delete(ctx, l.ID); err != nil && !errors.IsNotFoundError(err) {
			return rep, errors.Wrapf(err, "delete listing %s", l.Code)
		}
		rep.Removed++
		e.logger.Debugw("Listing removed", logger.FieldListingCode, l.Code, logger.FieldListingID, l.ID)
	}

	if rep.Removed > 0 {
		e.logger.Infow("Absent listings removed",
			logger.FieldIntegrationID, t.IntegrationID,
			logger.FieldCount, rep.Removed,
			"images_removed", rep.ImagesRemoved,
			logger.FieldSymbol, sym.Store)
	}
	return rep, nil
}
