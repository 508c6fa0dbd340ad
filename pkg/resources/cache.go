// Package resources materializes bundled build resources as real files
package resources

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/apkforge/apkforge/pkg/logger"
)

// Cache extracts each bundled resource at most once and hands out the
// path of the extracted copy for the lifetime of the cache.
type Cache struct {
	bundle  fs.FS
	tempDir string
	logger  logger.Logger

	mu    sync.RWMutex
	paths map[string]string
	group singleflight.Group

	extractions int
}

// NewCache creates a cache over bundle. Extracted files land in tempDir,
// or the system temp directory when tempDir is empty.
func NewCache(bundle fs.FS, tempDir string, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Discard()
	}
	return &Cache{
		bundle:  bundle,
		tempDir: tempDir,
		logger:  log,
		paths:   make(map[string]string),
	}
}

// Resolve returns the filesystem path of the extracted resource
func (c *Cache) Resolve(logicalPath string) (string, error) {
	if p, ok := c.lookup(logicalPath); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(logicalPath, func() (interface{}, error) {
		// A previous flight may have finished between lookup and Do.
		if p, ok := c.lookup(logicalPath); ok {
			return p, nil
		}

		p, err := c.extract(logicalPath)
		if err != nil {
			return "", &ExtractionError{Path: logicalPath, Err: err}
		}

		c.mu.Lock()
		c.paths[logicalPath] = p
		c.extractions++
		c.mu.Unlock()

		c.logger.Debug("Extracted resource",
			logger.WithField("resource", logicalPath),
			logger.WithField("path", p))
		return p, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) lookup(logicalPath string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[logicalPath]
	return p, ok
}

func (c *Cache) extract(logicalPath string) (string, error) {
	src, err := c.bundle.Open(logicalPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	prefix, suffix := TempPattern(logicalPath)
	if c.tempDir != "" {
		if err := os.MkdirAll(c.tempDir, 0o755); err != nil {
			return "", err
		}
	}

	dst, err := os.CreateTemp(c.tempDir, prefix+"*"+suffix)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	if err := os.Chmod(dst.Name(), 0o755); err != nil {
		os.Remove(dst.Name())
		return "", err
	}

	return dst.Name(), nil
}

// TempPattern derives the temp file prefix and suffix for a resource:
// the base name without extension padded with "_" to three characters,
// and the extension including its dot.
func TempPattern(logicalPath string) (prefix, suffix string) {
	base := path.Base(logicalPath)
	prefix = base
	if i := strings.LastIndex(base, "."); i >= 0 {
		prefix = base[:i]
		suffix = base[i:]
	}
	for len(prefix) < 3 {
		prefix += "_"
	}
	return prefix, suffix
}

// Extractions reports how many files have been extracted so far
func (c *Cache) Extractions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extractions
}

// Cleanup removes every extracted file and forgets it
func (c *Cache) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failed []string
	for logical, p := range c.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			failed = append(failed, p)
			continue
		}
		delete(c.paths, logical)
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to remove %d extracted resources: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}
