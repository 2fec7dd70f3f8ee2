package media

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
	"github.com/matheusluizig/imovelguide-integracao-sub000/sym"
)

// ObjectStore stores image variants. Implementations return errors marked
// with ErrStorageUnavailable when the store itself cannot be reached; any
// other error concerns the single object.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// NewObjectStore builds the store selected by cfg.Driver.
func NewObjectStore(ctx context.Context, cfg am.StorageConfig, logger *zap.SugaredLogger) (ObjectStore, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "minio", "":
		return NewMinioStore(ctx, cfg, logger)
	default:
		return nil, errors.NewInvalidRequestError("unknown storage driver %q", cfg.Driver)
	}
}

// MinioStore stores objects in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.SugaredLogger
}

// NewMinioStore connects to the bucket, creating it when missing.
func NewMinioStore(ctx context.Context, cfg am.StorageConfig, logger *zap.SugaredLogger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create minio client for %s", cfg.Endpoint)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, classify(errors.Wrapf(err, "check bucket %s", cfg.Bucket), err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, classify(errors.Wrapf(err, "create bucket %s", cfg.Bucket), err)
		}
		logger.Infow("Created image bucket", "bucket", cfg.Bucket, "symbol", sym.Media)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Put uploads data under key.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return classify(errors.Wrapf(err, "put %s", key), err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return classify(errors.Wrapf(err, "delete %s", key), err)
	}
	return nil
}

// classify marks wrapped as ErrStorageUnavailable when cause is not an S3
// error response (connection refused, DNS, timeouts) or a server-side error.
func classify(wrapped, cause error) error {
	resp := minio.ToErrorResponse(cause)
	if resp.StatusCode == 0 || resp.StatusCode >= 500 {
		return errors.WithSecondaryError(errors.Wrap(errors.ErrStorageUnavailable, wrapped.Error()), cause)
	}
	return wrapped
}

// MemoryStore keeps objects in memory. It backs `storage.driver = memory`
// for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.objects[key] = slices.Clone(data)
	m.types[key] = contentType
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.objects, key)
	delete(m.types, key)
	return nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns every stored key, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
