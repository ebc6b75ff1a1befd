// Package cache is a content-addressed store for downloaded repository
// files, shared by every process running under the same user account.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	dirName = "rpmdeplint"

	// EnvCacheHome overrides the cache root directory.
	EnvCacheHome = "XDG_CACHE_HOME"
	// EnvExpirySeconds overrides the eviction window, in seconds.
	EnvExpirySeconds = "RPMDEPLINT_EXPIRY_SECONDS"

	defaultExpiry = 7 * 24 * time.Hour
)

// Fetcher downloads a URL, streaming the body to dst.
type Fetcher interface {
	Fetch(ctx context.Context, url string, dst io.Writer) error
}

// Cache stores immutable files keyed by their content checksum. Entries live
// at <base>/<checksum[0]>/<checksum[1:]>; the filesystem is the only
// registry, so concurrent processes share the cache safely.
type Cache struct {
	dir    string
	expiry time.Duration
}

// New builds a Cache rooted at the default location, honouring the
// environment overrides.
func New() *Cache {
	expiry := defaultExpiry
	if v := os.Getenv(EnvExpirySeconds); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			expiry = time.Duration(secs * float64(time.Second))
		}
	}

	base := os.Getenv(EnvCacheHome)
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".cache")
		}
	}
	return &Cache{dir: filepath.Join(base, dirName), expiry: expiry}
}

// BasePath is the cache root directory.
func (c *Cache) BasePath() string { return c.dir }

// EntryPath is the location of the entry for checksum. Pure path
// arithmetic, no I/O.
func (c *Cache) EntryPath(checksum string) string {
	return filepath.Join(c.dir, checksum[:1], checksum[1:])
}

// Clean deletes every entry whose modification time is older than the
// expiry window. Safe to run while other processes read or write the
// cache: unlinking a file another process holds open does not disturb
// that reader.
func (c *Cache) Clean() {
	cutoff := time.Now().Add(-c.expiry)

	subdirs, err := os.ReadDir(c.dir)
	if err != nil {
		return // nothing to do
	}
	for _, subdir := range subdirs {
		// Should be a subdirectory named after the first checksum letter.
		if !subdir.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(c.dir, subdir.Name()))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				p := filepath.Join(c.dir, subdir.Name(), entry.Name())
				slog.Debug("purging expired cache file", slog.String("path", p))
				_ = os.Remove(p)
			}
		}
	}
}

// Get returns an open handle to the content with the given checksum,
// downloading url through fetcher on a miss. Hits bump the entry's mtime so
// Clean approximates LRU. Downloads are written to a temp file in the entry's
// directory and renamed into place, so readers never observe a partial entry.
func (c *Cache) Get(ctx context.Context, checksum, url string, fetcher Fetcher) (*os.File, error) {
	if checksum == "" {
		return nil, errors.New("empty checksum")
	}
	p := c.EntryPath(checksum)

	if info, err := os.Stat(p); err == nil {
		if info.IsDir() {
			// A pre-existing directory here is the superseded cache layout.
			// Repair by deleting it and treating the lookup as a miss.
			slog.Debug("repairing legacy cache directory", slog.String("path", p))
			if err := os.RemoveAll(p); err != nil {
				return nil, fmt.Errorf("removing legacy cache entry: %w", err)
			}
		} else {
			f, err := os.Open(p)
			if err == nil {
				slog.Debug("using cached file", slog.String("path", p), slog.String("url", url))
				now := time.Now()
				_ = os.Chtimes(p, now, now)
				return f, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".download-*")
	if err != nil {
		return nil, fmt.Errorf("creating cache temp file: %w", err)
	}
	slog.Debug("downloading to cache temp file", slog.String("url", url), slog.String("path", tmp.Name()))

	if err := c.fill(ctx, tmp, url, fetcher); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	// Rename is atomic; if a concurrent writer for the same checksum races
	// us here, both files hold identical content and last writer wins.
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}

	slog.Debug("using cached file", slog.String("path", p), slog.String("url", url))
	return os.Open(p)
}

func (c *Cache) fill(ctx context.Context, tmp *os.File, url string, fetcher Fetcher) error {
	if err := fetcher.Fetch(ctx, url, tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	return tmp.Chmod(0o644)
}
