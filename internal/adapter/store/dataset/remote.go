package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var errCircuitOpen = errors.New("circuit breaker open")

// ObjectOpener opens a cloud object for reading.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Remote materializes gs:// store locations into a local cache directory.
// Local paths pass through unchanged.
type Remote struct {
	cacheDir string
	open     ObjectOpener
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger

	mu sync.Mutex // Serializes downloads so one object is fetched once.
}

// NewRemote creates a Remote that downloads through the Google Cloud Storage
// client. The client is created on first use, so credentials are only needed
// when a gs:// location is configured.
func NewRemote(cacheDir string, log *zap.Logger) *Remote {
	var (
		once      sync.Once
		client    *storage.Client
		clientErr error
	)
	opener := func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		once.Do(func() {
			client, clientErr = storage.NewClient(context.Background())
		})
		if clientErr != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", clientErr)
		}
		return client.Bucket(bucket).Object(object).NewReader(ctx)
	}
	return NewRemoteWithOpener(cacheDir, opener, log)
}

// NewRemoteWithOpener creates a Remote with a custom object opener.
func NewRemoteWithOpener(cacheDir string, open ObjectOpener, log *zap.Logger) *Remote {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store-download",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Remote{cacheDir: cacheDir, open: open, breaker: cb, log: log}
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	object = strings.Trim(object, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URI must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// IsRemote reports whether location refers to cloud storage.
func IsRemote(location string) bool {
	return strings.HasPrefix(location, "gs://")
}

// Resolve returns a local file path for location, downloading it first if
// it is a gs:// URI that is not cached yet.
func (r *Remote) Resolve(ctx context.Context, location string) (string, error) {
	if !IsRemote(location) {
		return location, nil
	}
	bucket, object, err := ParseGCSURI(location)
	if err != nil {
		return "", err
	}
	local := filepath.Join(r.cacheDir, bucket, filepath.FromSlash(object))

	r.mu.Lock()
	defer r.mu.Unlock()

	if info, err := os.Stat(local); err == nil && info.Mode().IsRegular() {
		return local, nil
	}

	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.download(ctx, bucket, object, local)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	if err != nil {
		return "", err
	}
	r.log.Info("store downloaded", zap.String("uri", location), zap.String("path", local))
	return local, nil
}

// download copies the object to a uniquely named temp file next to local and
// renames it into place.
func (r *Remote) download(ctx context.Context, bucket, object, local string) error {
	//nolint:gosec // G301: Cache directory shared with other readers.
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	rc, err := r.open(ctx, bucket, object)
	if err != nil {
		return fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer func() { _ = rc.Close() }()

	tmp := filepath.Join(filepath.Dir(local), "."+filepath.Base(local)+"."+uuid.NewString()+".part")
	f, err := os.Create(tmp) //nolint:gosec // G304: Path built from configuration.
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to download gs://%s/%s: %w", bucket, object, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync download: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close download: %w", err)
	}
	if err := os.Rename(tmp, local); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish download: %w", err)
	}
	return nil
}
