package render

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
)

// writeAtomic encodes img as lossy WebP into a uniquely named temp file in the
// destination directory and renames it over path. Readers see either no file
// or the complete image.
func writeAtomic(path string, img image.Image, quality float32) (err error) {
	dir := filepath.Dir(path)
	//nolint:gosec // G301: Served directory must be world-readable.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.Create(tmp) //nolint:gosec // G304: Path derived from the cache key.
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err = webp.Encode(w, img, &webp.Options{Quality: quality}); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync image: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	//nolint:gosec // G302: Images are served publicly.
	if err = os.Chmod(tmp, 0o644); err != nil {
		return fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to publish image: %w", err)
	}
	return nil
}
