package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const assetCacheControl = "public, max-age=31536000"

// PendingChecker reports whether an image is being rendered.
type PendingChecker interface {
	Pending(rel string) bool
}

// staticAssets serves rendered images from root. A request for an image
// that is still being rendered waits for it instead of failing.
type staticAssets struct {
	root     string
	pending  PendingChecker
	timeout  time.Duration
	interval time.Duration
}

func (s *staticAssets) serve(c *gin.Context) {
	rel := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
	if rel == "" || strings.Contains(rel, "..") {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	file := filepath.Join(s.root, filepath.FromSlash(rel))

	// Pending state lives in this process. Instances sharing the output root
	// see each other's images once written, never their in-flight renders,
	// so a file another instance is still drawing is a 404 here.
	if !regularFile(file) {
		switch {
		case s.pending.Pending(rel):
			if !s.wait(c, rel, file) {
				return
			}
		case !regularFile(file):
			c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
			return
		}
	}

	c.Header("Cache-Control", assetCacheControl)
	c.Header("ETag", `"v1_`+path.Base(rel)+`"`)
	if strings.HasSuffix(rel, ".webp") {
		c.Header("Content-Type", "image/webp")
	}
	c.File(file)
}

// wait polls until file exists. It writes the error response and returns
// false when the file does not appear in time.
func (s *staticAssets) wait(c *gin.Context, rel, file string) bool {
	ctx := c.Request.Context()
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.Abort()
			return false
		case <-timer.C:
			c.Header("Retry-After", strconv.Itoa(int(s.interval.Seconds())+1))
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Image generation timed out. Please try again."})
			return false
		case <-ticker.C:
			if regularFile(file) {
				return true
			}
			if !s.pending.Pending(rel) && !regularFile(file) {
				// The render finished without producing the file.
				c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
				return false
			}
		}
	}
}

func regularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
