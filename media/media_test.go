package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	igtest "github.com/matheusluizig/imovelguide-integracao-sub000/internal/testing"
	"github.com/matheusluizig/imovelguide-integracao-sub000/listing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 120, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNameIsDeterministic(t *testing.T) {
	a := Name(10, "AP-1", "https://cdn-a.example/fotos/sala.jpg")
	b := Name(10, "AP-1", "https://cdn-b.example/outra/pasta/sala.jpg")
	assert.Equal(t, a, b, "only the file name takes part in the hash")
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.Len(t, a, 40+len(".jpg"))

	assert.NotEqual(t, a, Name(11, "AP-1", "https://cdn-a.example/fotos/sala.jpg"))
	assert.NotEqual(t, a, Name(10, "AP-2", "https://cdn-a.example/fotos/sala.jpg"))
	assert.NotEqual(t, Name(10, "AP-1", "https://x.example/img?id=1"), Name(10, "AP-1", "https://x.example/img?id=2"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"images/h.jpg", "images/medium/h.jpg", "images/small/h.jpg"}, Keys("h.jpg"))
}

func TestTranscode(t *testing.T) {
	tr := Transcoder{Quality: 80, BaseMax: 200, MediumSize: 100, SmallSize: 40}
	variants, err := tr.Transcode(pngBytes(t, 400, 200))
	require.NoError(t, err)
	require.Len(t, variants, 3)

	sizes := map[Variant]image.Point{
		VariantBase:   {200, 100},
		VariantMedium: {100, 50},
		VariantSmall:  {40, 20},
	}
	for v, want := range sizes {
		img, err := imaging.Decode(bytes.NewReader(variants[v]))
		require.NoError(t, err, v)
		assert.Equal(t, want, img.Bounds().Size(), v)
	}

	small, err := Transcoder{BaseMax: 1600, MediumSize: 800, SmallSize: 320}.Transcode(pngBytes(t, 50, 30))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(small[VariantBase]))
	require.NoError(t, err)
	assert.Equal(t, image.Point{50, 30}, img.Bounds().Size(), "no upscaling")

	_, err = tr.Transcode([]byte("<html>not an image</html>"))
	assert.Error(t, err)
}

func TestDownloader(t *testing.T) {
	payload := pngBytes(t, 10, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(payload)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		case "/huge.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(make([]byte, 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	d := NewDownloader(DownloaderOptions{Timeout: 5 * time.Second, MaxBytes: 1024, AllowPrivate: true, RequestsPerSecond: 100, Burst: 10})
	ctx := testContext(t)

	data, err := d.Fetch(ctx, srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = d.Fetch(ctx, srv.URL+"/page.html")
	assert.True(t, errors.Is(err, ErrNotImage))

	_, err = d.Fetch(ctx, srv.URL+"/huge.jpg")
	assert.ErrorContains(t, err, "larger than 1024")

	_, err = d.Fetch(ctx, srv.URL+"/missing.jpg")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = NewDownloader(DownloaderOptions{}).Fetch(ctx, srv.URL+"/ok.png")
	assert.Error(t, err, "private addresses are refused by default")
}

// fakeFetcher serves generated images, failing for URLs containing "broken".
type fakeFetcher struct {
	t     *testing.T
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	f.calls.Add(1)
	if strings.Contains(rawURL, "broken") {
		return nil, errors.New("connection reset")
	}
	return pngBytes(f.t, 64, 48), nil
}

type ingestFixture struct {
	ingestor *Ingestor
	store    *MemoryStore
	listings *listing.Store
	fetcher  *fakeFetcher
	listing  *listing.Listing
}

func newIngestFixture(t *testing.T, urls ...string) *ingestFixture {
	t.Helper()
	db := igtest.CreateMigratedDB(t)
	listings := listing.NewStore(db)

	l := &listing.Listing{AccountID: 10, Code: "AP-1", OfferType: listing.OfferSale, ImageURLs: urls}
	require.NoError(t, listings.Insert(testContext(t), l))

	store := NewMemoryStore()
	fetcher := &fakeFetcher{t: t}
	in := NewIngestor(store, listings, fetcher,
		Transcoder{Quality: 70, BaseMax: 64, MediumSize: 32, SmallSize: 16},
		IngestorOptions{MaxPerListing: 3, Concurrency: 2},
		zaptest.NewLogger(t).Sugar())
	return &ingestFixture{ingestor: in, store: store, listings: listings, fetcher: fetcher, listing: l}
}

func TestSyncIngestsAndIsIdempotent(t *testing.T) {
	f := newIngestFixture(t,
		"https://cdn.example/1.jpg",
		"https://cdn.example/broken.jpg",
		"https://cdn.example/2.jpg",
		"https://cdn.example/3.jpg",
	)
	ctx := testContext(t)

	res, err := f.ingestor.Sync(ctx, f.listing)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Capped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "https://cdn.example/broken.jpg", res.Failures[0].URL)
	assert.Len(t, f.store.Keys(), 6)

	stored, err := f.listings.Images(ctx, f.listing.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, Name(10, "AP-1", "https://cdn.example/1.jpg"), stored[0].Name)
	assert.Equal(t, 0, stored[0].Position)

	calls := f.fetcher.calls.Load()
	res, err = f.ingestor.Sync(ctx, f.listing)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Removed)
	assert.Equal(t, calls+1, f.fetcher.calls.Load(), "only the failed image is retried")
}

func TestSyncRemovesUnreferencedImages(t *testing.T) {
	f := newIngestFixture(t, "https://cdn.example/1.jpg", "https://cdn.example/2.jpg")
	ctx := testContext(t)

	_, err := f.ingestor.Sync(ctx, f.listing)
	require.NoError(t, err)

	f.listing.ImageURLs = []string{"https://cdn.example/2.jpg", "https://cdn.example/4.jpg"}
	res, err := f.ingestor.Sync(ctx, f.listing)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.Inserted)

	gone := Name(10, "AP-1", "https://cdn.example/1.jpg")
	for _, key := range Keys(gone) {
		_, ok := f.store.Get(key)
		assert.False(t, ok, key)
	}
	assert.ElementsMatch(t, f.ingestor.DesiredNames(f.listing), namesOf(t, f))
}

func TestSyncAbortsWhenStorageUnavailable(t *testing.T) {
	f := newIngestFixture(t, "https://cdn.example/1.jpg")
	f.store.FailWith = errors.Wrap(errors.ErrStorageUnavailable, "dial tcp: connection refused")

	_, err := f.ingestor.Sync(testContext(t), f.listing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageUnavailable))
}

func TestRemoveAll(t *testing.T) {
	f := newIngestFixture(t, "https://cdn.example/1.jpg", "https://cdn.example/2.jpg")
	ctx := testContext(t)

	_, err := f.ingestor.Sync(ctx, f.listing)
	require.NoError(t, err)

	n, err := f.ingestor.RemoveAll(ctx, f.listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, f.store.Keys())
	assert.Empty(t, namesOf(t, f))
}

func namesOf(t *testing.T, f *ingestFixture) []string {
	t.Helper()
	stored, err := f.listings.Images(testContext(t), f.listing.ID)
	require.NoError(t, err)
	var names []string
	for _, img := range stored {
		names = append(names, img.Name)
	}
	return names
}

func TestSyncReportsNameCollisions(t *testing.T) {
	f := newIngestFixture(t,
		"https://cdn.example/123/original.jpg",
		"https://cdn.example/124/original.jpg",
		"https://cdn.example/123/original.jpg",
	)

	res, err := f.ingestor.Sync(testContext(t), f.listing)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []Collision{{
		URL:  "https://cdn.example/124/original.jpg",
		Kept: "https://cdn.example/123/original.jpg",
	}}, res.Collisions, "a repeated URL is not a collision")
	assert.Len(t, f.ingestor.DesiredNames(f.listing), 1)
}
