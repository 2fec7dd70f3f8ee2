// Package media ingests listing images: it downloads the feed-referenced
// sources, transcodes them into base, medium and small JPEG variants, stores
// them under deterministic names and deletes variants no longer referenced.
//
// Per-image failures never abort a listing or a run; they are returned as
// Failures. Only an unreachable object store (ErrStorageUnavailable)
// propagates, since every following image would fail the same way.
package media

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/logger"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// DefaultMaxPerListing caps the images ingested for one listing.
const DefaultMaxPerListing = 20

// ImageIndex records which images are stored for each listing.
// listing.Store implements it.
type ImageIndex interface {
	Images(ctx context.Context, listingID int64) ([]listing.ImageAsset, error)
	AddImage(ctx context.Context, img *listing.ImageAsset) error
	DeleteImages(ctx context.Context, listingID int64, names []string) error
}

// Fetcher downloads a source image. *Downloader implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Failure is one image that could not be ingested.
type Failure struct {
	URL string
	Err error
}

// Result summarizes the image sync of one listing.
type Result struct {
	Inserted int
	Removed  int
	Capped   int // feed URLs beyond the per-listing cap
	Failures []Failure
	// Collisions are feed URLs dropped because an earlier URL of the listing
	// maps to the same stored name (same file name on another path).
	Collisions []Collision
}

// Collision is a feed URL that lost its stored name to an earlier URL.
type Collision struct {
	URL  string
	Kept string
}

// Ingestor syncs listing images with object storage.
type Ingestor struct {
	store       ObjectStore
	index       ImageIndex
	fetcher     Fetcher
	transcoder  Transcoder
	maxImages   int
	concurrency int
	logger      *zap.SugaredLogger
}

// IngestorOptions configures an Ingestor.
type IngestorOptions struct {
	MaxPerListing int
	Concurrency   int
}

// NewIngestor creates an ingestor.
func NewIngestor(store ObjectStore, index ImageIndex, fetcher Fetcher, transcoder Transcoder, opts IngestorOptions, log *zap.SugaredLogger) *Ingestor {
	if opts.MaxPerListing <= 0 {
		opts.MaxPerListing = DefaultMaxPerListing
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ingestor{
		store:       store,
		index:       index,
		fetcher:     fetcher,
		transcoder:  transcoder,
		maxImages:   opts.MaxPerListing,
		concurrency: opts.Concurrency,
		logger:      log,
	}
}

type desiredImage struct {
	name     string
	url      string
	position int
}

// DesiredNames returns the stored names the listing's current feed URLs map
// to, after the per-listing cap.
func (in *Ingestor) DesiredNames(l *listing.Listing) []string {
	desired, _, _ := in.desired(l)
	names := make([]string, len(desired))
	for i, d := range desired {
		names[i] = d.name
	}
	return names
}

func (in *Ingestor) desired(l *listing.Listing) ([]desiredImage, int, []Collision) {
	urls := l.ImageURLs
	capped := 0
	if len(urls) > in.maxImages {
		capped = len(urls) - in.maxImages
		urls = urls[:in.maxImages]
	}
	seen := make(map[string]string, len(urls))
	out := make([]desiredImage, 0, len(urls))
	var collisions []Collision
	for _, u := range urls {
		name := Name(l.AccountID, l.Code, u)
		if kept, ok := seen[name]; ok {
			if kept != u {
				collisions = append(collisions, Collision{URL: u, Kept: kept})
			}
			continue
		}
		seen[name] = u
		out = append(out, desiredImage{name: name, url: u, position: len(out)})
	}
	return out, capped, collisions
}

// Sync makes the stored images of l match its feed URLs: stored images the
// feed no longer references are deleted with all variants, and referenced
// images not yet stored are ingested. l.ID must be set.
func (in *Ingestor) Sync(ctx context.Context, l *listing.Listing) (Result, error) {
	log := in.logger.With(logger.FieldListingCode, l.Code, logger.FieldListingID, l.ID)

	desired, capped, collisions := in.desired(l)
	res := Result{Capped: capped, Collisions: collisions}

	existing, err := in.index.Images(ctx, l.ID)
	if err != nil {
		return res, err
	}
	stored := make(map[string]bool, len(existing))
	want := make(map[string]bool, len(desired))
	for _, d := range desired {
		want[d.name] = true
	}

	var stale []string
	for _, img := range existing {
		stored[img.Name] = true
		if !want[img.Name] {
			stale = append(stale, img.Name)
		}
	}
	if err := in.remove(ctx, l.ID, stale); err != nil {
		return res, err
	}
	res.Removed = len(stale)

	var missing []desiredImage
	for _, d := range desired {
		if !stored[d.name] {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for _, d := range missing {
		d := d
		g.Go(func() error {
			err := in.ingest(gctx, l.ID, d)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Inserted++
			case errors.Is(err, errors.ErrStorageUnavailable):
				return err
			default:
				res.Failures = append(res.Failures, Failure{URL: d.url, Err: err})
				logger.MediaWarnw(log, "Image ingestion failed", logger.FieldURL, d.url, logger.FieldError, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, errors.Wrapf(err, "ingest images of listing %s", l.Code)
	}

	if res.Inserted > 0 || res.Removed > 0 {
		log.Debugw("Images synced", "inserted", res.Inserted, "removed", res.Removed, "failed", len(res.Failures), logger.FieldSymbol, sym.Media)
	}
	return res, nil
}

func (in *Ingestor) ingest(ctx context.Context, listingID int64, d desiredImage) error {
	data, err := in.fetcher.Fetch(ctx, d.url)
	if err != nil {
		return err
	}
	variants, err := in.transcoder.Transcode(data)
	if err != nil {
		return err
	}
	for _, v := range Variants {
		if err := in.store.Put(ctx, Key(d.name, v), variants[v], "image/jpeg"); err != nil {
			return err
		}
	}
	return in.index.AddImage(ctx, &listing.ImageAsset{
		ListingID: listingID,
		Name:      d.name,
		Position:  d.position,
		SourceURL: d.url,
	})
}

// RemoveAll deletes every stored image of a listing, variants included.
// Reconciliation calls it before deleting the listing row.
func (in *Ingestor) RemoveAll(ctx context.Context, listingID int64) (int, error) {
	existing, err := in.index.Images(ctx, listingID)
	if err != nil {
		return 0, err
	}
	names := make([]string, len(existing))
	for i, img := range existing {
		names[i] = img.Name
	}
	return len(names), in.remove(ctx, listingID, names)
}

func (in *Ingestor) remove(ctx context.Context, listingID int64, names []string) error {
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		for _, key := range Keys(name) {
			if err := in.store.Delete(ctx, key); err != nil {
				if errors.Is(err, errors.ErrStorageUnavailable) {
					return err
				}
				logger.MediaWarnw(in.logger, "Failed to delete image variant", logger.FieldKey, key, logger.FieldError, err)
			}
		}
	}
	return in.index.DeleteImages(ctx, listingID, names)
}
