// Package web_cache stores the pages downloaded for one search as HTML files
// that the corpus builder later reads back.
package web_cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PageExtensions are the file suffixes the corpus builder understands.
var PageExtensions = []string{".html", ".htm", ".mhtml"}

const maxCollisions = 10000

// Cache is a single flat directory of downloaded pages.
type Cache struct {
	dir    string
	logger *zap.Logger
}

func New(dir string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{dir: dir, logger: logger}
}

func (c *Cache) Dir() string { return c.dir }

// Reset removes the directory with everything in it and recreates it empty.
func (c *Cache) Reset() error {
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	return nil
}

// Write stores body under the sanitized title. When <name>.html exists the
// first free <name>_<n>.html (n = 1, 2, ...) is used; names are claimed with
// O_EXCL so concurrent writers never share a file.
func (c *Cache) Write(title, body string) (string, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("write page: %w", err)
	}
	stem := SafeFilename(title, MaxFilenameRunes)
	for n := 0; n < maxCollisions; n++ {
		name := stem + ".html"
		if n > 0 {
			name = stem + "_" + strconv.Itoa(n) + ".html"
		}
		path := filepath.Join(c.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("write page: %w", err)
		}
		_, werr := f.WriteString(body)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("write page %s: %w", name, err)
		}
		c.logger.Debug("page cached", zap.String("file", name), zap.Int("bytes", len(body)))
		return path, nil
	}
	return "", fmt.Errorf("write page: too many files named %q", stem)
}

// HasPages reports whether the directory holds at least one page file.
func (c *Cache) HasPages() bool {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && IsPage(e.Name()) {
			return true
		}
	}
	return false
}

// LastModified returns the newest modification time in the directory, or the
// zero time when it is missing or empty.
func (c *Cache) LastModified() time.Time {
	var newest time.Time
	_ = filepath.WalkDir(c.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest
}

// IsPage reports whether name has one of PageExtensions.
func IsPage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
