package media

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/internal/httpclient"
)

// ErrNotImage is returned for payloads that are not images.
var ErrNotImage = errors.New("payload is not an image")

// Downloader fetches source images. Requests to the same host share a rate
// limiter so a feed with thousands of photos on one CDN does not hammer it.
type Downloader struct {
	client   *httpclient.SaferClient
	maxBytes int64
	rps      rate.Limit
	burst    int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	Timeout           time.Duration
	MaxBytes          int64
	RequestsPerSecond float64 // per host; 0 disables limiting
	Burst             int
	AllowPrivate      bool
}

// NewDownloader creates a downloader.
func NewDownloader(opts DownloaderOptions) *Downloader {
	d := &Downloader{
		client:   httpclient.New(httpclient.Options{Timeout: opts.Timeout, AllowPrivate: opts.AllowPrivate}),
		maxBytes: opts.MaxBytes,
		rps:      rate.Inf,
		burst:    opts.Burst,
		limiters: make(map[string]*rate.Limiter),
	}
	if opts.RequestsPerSecond > 0 {
		d.rps = rate.Limit(opts.RequestsPerSecond)
	}
	if d.burst < 1 {
		d.burst = 1
	}
	if d.maxBytes <= 0 {
		d.maxBytes = 15 << 20
	}
	return d
}

// Fetch downloads rawURL. The response must be 200 with an image/*
// content type and at most MaxBytes long.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := d.client.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if err := d.limiter(u.Host).Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	resp, err := d.client.Get(ctx, rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("download image: HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !isImageType(ct) {
		return nil, errors.WithDetailf(ErrNotImage, "content type %q", ct)
	}
	if resp.ContentLength > d.maxBytes {
		return nil, errors.Newf("image larger than %d bytes: %d", d.maxBytes, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "read image body")
	}
	if int64(len(data)) > d.maxBytes {
		return nil, errors.Newf("image larger than %d bytes", d.maxBytes)
	}
	return data, nil
}

func (d *Downloader) limiter(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(d.rps, d.burst)
		d.limiters[host] = l
	}
	return l
}

func isImageType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mt, "image/")
}
