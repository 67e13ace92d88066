package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"

	"go.ngs.io/weather-maps-api/internal/domain"
)

func TestRegistryOpensOncePerModel(t *testing.T) {
	path := createForecastStore(t)
	log := zaptest.NewLogger(t)
	reg := NewRegistry(map[domain.ModelID]string{domain.ModelCerrora: path}, NewRemote(t.TempDir(), log), log)
	defer func() { _ = reg.Close() }()

	var opens atomic.Int32
	reg.openFn = func(p string) (*Dataset, error) {
		opens.Add(1)
		return Open(p)
	}

	const workers = 8
	results := make([]*Dataset, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := reg.Open(context.Background(), domain.ModelCerrora)
			if err != nil {
				t.Errorf("Open: %v", err)
				return
			}
			results[i] = ds
		}(i)
	}
	wg.Wait()

	if got := opens.Load(); got != 1 {
		t.Errorf("store opened %d times, want 1", got)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("worker %d received a different handle", i)
		}
	}
}

func TestRegistryUnconfiguredModel(t *testing.T) {
	log := zaptest.NewLogger(t)
	reg := NewRegistry(map[domain.ModelID]string{}, NewRemote(t.TempDir(), log), log)
	if reg.Configured(domain.ModelGraphcast) {
		t.Errorf("graphcast should not be configured")
	}
	_, err := reg.Open(context.Background(), domain.ModelGraphcast)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRegistryRetriesFailedOpen(t *testing.T) {
	path := createForecastStore(t)
	log := zaptest.NewLogger(t)
	reg := NewRegistry(map[domain.ModelID]string{domain.ModelGraphcast: path}, NewRemote(t.TempDir(), log), log)
	defer func() { _ = reg.Close() }()

	fail := true
	reg.openFn = func(p string) (*Dataset, error) {
		if fail {
			return nil, errors.New("transient")
		}
		return Open(p)
	}

	if _, err := reg.Open(context.Background(), domain.ModelGraphcast); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	fail = false
	if _, err := reg.Open(context.Background(), domain.ModelGraphcast); err != nil {
		t.Fatalf("second open should succeed: %v", err)
	}
}

func TestLazySourceDefersOpen(t *testing.T) {
	log := zaptest.NewLogger(t)
	reg := NewRegistry(map[domain.ModelID]string{domain.ModelCerrora: createForecastStore(t)}, NewRemote(t.TempDir(), log), log)
	defer func() { _ = reg.Close() }()

	src := reg.Source(domain.ModelCerrora)
	if len(reg.entries) != 0 {
		t.Fatalf("Source must not open the store")
	}
	arr, err := src.Variable(context.Background(), "t2m")
	if err != nil || arr == nil {
		t.Fatalf("Variable: %v", err)
	}
	times, err := src.TimeAxis(context.Background())
	if err != nil || len(times) != 3 {
		t.Fatalf("TimeAxis = %v, %v", times, err)
	}
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://weather-data/cerrora/2022.nc")
	if err != nil || bucket != "weather-data" || object != "cerrora/2022.nc" {
		t.Errorf("got %q %q %v", bucket, object, err)
	}
	for _, bad := range []string{"s3://bucket/key", "gs://bucket", "gs:///key"} {
		if _, _, err := ParseGCSURI(bad); err == nil {
			t.Errorf("ParseGCSURI(%q) should fail", bad)
		}
	}
}

func TestRemoteResolveLocalPassthrough(t *testing.T) {
	r := NewRemote(t.TempDir(), zaptest.NewLogger(t))
	got, err := r.Resolve(context.Background(), "/data/graphcast.nc")
	if err != nil || got != "/data/graphcast.nc" {
		t.Errorf("Resolve = %q, %v", got, err)
	}
}

func TestRemoteResolveDownloadsOnce(t *testing.T) {
	cacheDir := t.TempDir()
	var calls atomic.Int32
	opener := func(_ context.Context, bucket, object string) (io.ReadCloser, error) {
		calls.Add(1)
		return io.NopCloser(bytes.NewReader([]byte(bucket + "/" + object))), nil
	}
	r := NewRemoteWithOpener(cacheDir, opener, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		local, err := r.Resolve(context.Background(), "gs://bkt/stores/cerrora.nc")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if want := filepath.Join(cacheDir, "bkt", "stores", "cerrora.nc"); local != want {
			t.Fatalf("local = %q, want %q", local, want)
		}
		data, err := os.ReadFile(local) //nolint:gosec // G304: Test path.
		if err != nil || string(data) != "bkt/stores/cerrora.nc" {
			t.Fatalf("content = %q, %v", data, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("object opened %d times, want 1", calls.Load())
	}

	entries, _ := os.ReadDir(filepath.Join(cacheDir, "bkt", "stores"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestRemoteBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	opener := func(context.Context, string, string) (io.ReadCloser, error) {
		calls.Add(1)
		return nil, errors.New("unavailable")
	}
	r := NewRemoteWithOpener(t.TempDir(), opener, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		if _, err := r.Resolve(context.Background(), "gs://bkt/a.nc"); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("opener called %d times, want 3 before the breaker opens", calls.Load())
	}
	_, err := r.Resolve(context.Background(), "gs://bkt/a.nc")
	if !errors.Is(err, errCircuitOpen) {
		t.Errorf("expected circuit open error, got %v", err)
	}
}
