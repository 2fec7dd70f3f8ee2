package ixgest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/internal/httpclient"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// Fetcher retrieves a feed document.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (io.ReadCloser, error)
}

// GetterFetcher downloads feeds with go-getter. A source is an http(s) URL,
// or a compressed variant of one (feed.xml.gz); HTTP downloads go through
// the SSRF-safe client. Local paths and file:// URLs are only served by a
// fetcher built WithLocalFiles.
type GetterFetcher struct {
	client     *httpclient.SaferClient
	localFiles bool
	logger     *zap.SugaredLogger
}

// NewGetterFetcher creates a fetcher. allowPrivate permits feeds served from
// private addresses.
func NewGetterFetcher(timeout time.Duration, allowPrivate bool, logger *zap.SugaredLogger) *GetterFetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GetterFetcher{
		client: httpclient.New(httpclient.Options{Timeout: timeout, AllowPrivate: allowPrivate}),
		logger: logger,
	}
}

// WithLocalFiles returns a copy of f that also reads local paths and
// file:// URLs.
func (f *GetterFetcher) WithLocalFiles() *GetterFetcher {
	local := *f
	local.localFiles = true
	return &local
}

// Fetch downloads source into a temporary file and returns it open. Closing
// the reader removes the temporary file.
func (f *GetterFetcher) Fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	pwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "get working directory")
	}
	detected, err := getter.Detect(source, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(err, "detect feed source %s", source)
	}
	u, err := url.Parse(detected)
	if err != nil {
		return nil, errors.Wrapf(err, "parse feed source %s", source)
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
	case u.Scheme == "file" && f.localFiles:
	default:
		return nil, errors.NewInvalidRequestError("feed source %s: scheme %q not allowed", source, u.Scheme)
	}

	tempDir, err := os.MkdirTemp("", "imovelguide-feed-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp directory")
	}
	dst := filepath.Join(tempDir, "feed.xml")

	header := make(http.Header)
	header.Set("User-Agent", httpclient.DefaultUserAgent)
	httpGetter := &getter.HttpGetter{
		Client:                f.client.Client,
		Header:                header,
		XTerraformGetDisabled: true,
	}

	getters := map[string]getter.Getter{
		"http":  httpGetter,
		"https": httpGetter,
	}
	if f.localFiles {
		getters["file"] = &getter.FileGetter{Copy: true}
	}
	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     dst,
		Pwd:     pwd,
		Mode:    getter.ClientModeFile,
		Getters: getters,
	}

	start := time.Now()
	if err := client.Get(); err != nil {
		os.RemoveAll(tempDir)
		return nil, errors.WithDetailf(errors.Wrap(err, "fetch feed"), "source: %s", source)
	}

	file, err := os.Open(dst)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, errors.Wrap(err, "open fetched feed")
	}
	if info, err := file.Stat(); err == nil {
		f.logger.Infow("Fetched feed",
			"url", source,
			"bytes", info.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"symbol", sym.IX)
	}
	return &tempFile{File: file, dir: tempDir}, nil
}

type tempFile struct {
	*os.File
	dir string
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	os.RemoveAll(t.dir)
	return err
}
