package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rpmdeplint/rpmdeplint/pkg/cache"
	"github.com/rpmdeplint/rpmdeplint/pkg/fetch"
	"github.com/rpmdeplint/rpmdeplint/pkg/repomd"
	"github.com/rpmdeplint/rpmdeplint/pkg/rpm"
)

// Deps carries the shared collaborators a Session needs. One Cache and one
// fetch.Client are constructed per process and passed in explicitly.
type Deps struct {
	Cache *cache.Cache
	Fetch *fetch.Client
	// Verifier decides package header completeness; defaults to
	// rpm.LeadVerifier.
	Verifier rpm.HeaderVerifier
	// ScratchDir is the parent for per-session temp directories; defaults
	// to os.TempDir().
	ScratchDir string
}

// Session is the resolved state of one repository for one analysis run: the
// root location, the parsed manifest, and open handles to the primary and
// filelists index files. The caller owns cleanup of RootPath for remote
// sessions.
type Session struct {
	repo *Repo
	deps Deps

	root    string
	local   bool
	mirrors []string

	manifest     *repomd.Repomd
	primary      *os.File
	filelists    *os.File
	primaryRec   repomd.Record
	filelistsRec repomd.Record
}

// Download resolves the repository's metadata. Remote repositories fetch
// repomd.xml freshly into a scratch directory, then pull the index files
// named by it through the content cache. Local repositories read everything
// in place, with no network access.
func (r *Repo) Download(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Verifier == nil {
		deps.Verifier = rpm.LeadVerifier{}
	}
	if deps.ScratchDir == "" {
		deps.ScratchDir = os.TempDir()
	}
	if deps.Cache != nil {
		deps.Cache.Clean()
	}

	slog.Debug("loading repodata", slog.String("repo", r.Name), slog.String("source", r.Source()))

	s := &Session{repo: r, deps: deps}
	if root, ok := r.localRoot(); ok {
		s.root = root
		s.local = true
		if err := s.openLocal(); err != nil {
			return nil, &RepoDownloadError{Repo: r.Name, Err: err}
		}
		return s, nil
	}

	if err := s.openRemote(ctx); err != nil {
		if s.root != "" {
			_ = os.RemoveAll(s.root)
		}
		return nil, &RepoDownloadError{Repo: r.Name, Err: err}
	}
	return s, nil
}

func (s *Session) openLocal() error {
	f, err := os.Open(filepath.Join(s.root, "repodata", "repomd.xml"))
	if err != nil {
		return fmt.Errorf("cannot read repomd.xml: %w", err)
	}
	defer f.Close()
	manifest, err := repomd.Parse(f)
	if err != nil {
		return err
	}
	s.manifest = manifest

	if err := s.loadRecords(); err != nil {
		return err
	}
	if s.primary, err = os.Open(filepath.Join(s.root, s.primaryRec.Location.Href)); err != nil {
		return err
	}
	if s.filelists, err = os.Open(filepath.Join(s.root, s.filelistsRec.Location.Href)); err != nil {
		_ = s.primary.Close()
		return err
	}
	return nil
}

func (s *Session) openRemote(ctx context.Context) error {
	scratch, err := os.MkdirTemp(s.deps.ScratchDir, "rpmdeplint-"+s.repo.Name+"-")
	if err != nil {
		return err
	}
	s.root = scratch

	if err := s.resolveMirrors(ctx); err != nil {
		return err
	}
	manifestBytes, err := s.fetchManifest(ctx)
	if err != nil {
		return err
	}
	if s.repo.GPGKey != "" {
		if err := s.verifyManifest(ctx, manifestBytes); err != nil {
			return err
		}
	}

	manifest, err := repomd.Parse(bytes.NewReader(manifestBytes))
	if err != nil {
		return err
	}
	s.manifest = manifest
	if err := s.loadRecords(); err != nil {
		return err
	}

	if s.primary, err = s.deps.Cache.Get(ctx, s.primaryRec.Checksum.Value, s.indexURL(s.primaryRec), s.deps.Fetch); err != nil {
		return err
	}
	if s.filelists, err = s.deps.Cache.Get(ctx, s.filelistsRec.Checksum.Value, s.indexURL(s.filelistsRec), s.deps.Fetch); err != nil {
		_ = s.primary.Close()
		return err
	}
	return nil
}

func (s *Session) resolveMirrors(ctx context.Context) error {
	if s.repo.BaseURL != "" {
		s.mirrors = []string{strings.TrimSuffix(s.repo.BaseURL, "/")}
		return nil
	}

	doc, err := s.deps.Fetch.Document(ctx, s.repo.Metalink)
	if err != nil {
		return fmt.Errorf("cannot download mirror metadata: %w", err)
	}
	mirrors, err := repomd.ParseMetalink(doc)
	if err != nil {
		// Not a metalink; mirrorlists are plain-text URL lists.
		mirrors = repomd.ParseMirrorList(doc)
	}
	if len(mirrors) == 0 {
		return fmt.Errorf("no usable mirrors at %s", s.repo.Metalink)
	}
	s.mirrors = mirrors
	return nil
}

// fetchManifest always downloads repomd.xml freshly: its own checksum is
// unknown beforehand, so it cannot go through the content cache.
func (s *Session) fetchManifest(ctx context.Context) ([]byte, error) {
	dest := filepath.Join(s.root, "repomd.xml")
	var lastErr error
	for i, mirror := range s.mirrors {
		f, err := os.Create(dest)
		if err != nil {
			return nil, err
		}
		err = s.deps.Fetch.Fetch(ctx, mirror+"/repodata/repomd.xml", f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			lastErr = err
			continue
		}
		// Remember the mirror that worked for the index and package fetches.
		if i > 0 {
			s.mirrors[0], s.mirrors[i] = s.mirrors[i], s.mirrors[0]
		}
		return os.ReadFile(dest)
	}
	return nil, fmt.Errorf("cannot download repomd.xml: %w", lastErr)
}

func (s *Session) verifyManifest(ctx context.Context, manifest []byte) error {
	var sig strings.Builder
	if err := s.deps.Fetch.Fetch(ctx, s.mirrors[0]+"/repodata/repomd.xml.asc", &sig); err != nil {
		return fmt.Errorf("cannot download repomd.xml.asc: %w", err)
	}
	return repomd.Verify(manifest, []byte(sig.String()), s.repo.GPGKey)
}

func (s *Session) loadRecords() error {
	var ok bool
	if s.primaryRec, ok = s.manifest.Record(repomd.RolePrimary); !ok {
		return fmt.Errorf("repomd has no %s record", repomd.RolePrimary)
	}
	if s.filelistsRec, ok = s.manifest.Record(repomd.RoleFilelists); !ok {
		return fmt.Errorf("repomd has no %s record", repomd.RoleFilelists)
	}
	return nil
}

func (s *Session) indexURL(rec repomd.Record) string {
	if s.local {
		return filepath.Join(s.root, rec.Location.Href)
	}
	return s.mirrors[0] + "/" + rec.Location.Href
}

// Manifest is the parsed repomd.xml for this session.
func (s *Session) Manifest() *repomd.Repomd { return s.manifest }

// RootPath is the resolved repository root: the local directory, or the
// scratch directory holding this session's downloads.
func (s *Session) RootPath() string { return s.root }

func (s *Session) PrimaryChecksum() string   { return s.primaryRec.Checksum.Value }
func (s *Session) FilelistsChecksum() string { return s.filelistsRec.Checksum.Value }
func (s *Session) PrimaryURL() string        { return s.indexURL(s.primaryRec) }
func (s *Session) FilelistsURL() string      { return s.indexURL(s.filelistsRec) }

// Primary is the open handle to the primary index file.
func (s *Session) Primary() *os.File { return s.primary }

// Filelists is the open handle to the filelists index file.
func (s *Session) Filelists() *os.File { return s.filelists }

// PrimaryReader wraps the primary index in its decompressor.
func (s *Session) PrimaryReader() (io.Reader, error) {
	return repomd.OpenIndex(s.primary, s.primaryRec.Location.Href)
}

// FilelistsReader wraps the filelists index in its decompressor.
func (s *Session) FilelistsReader() (io.Reader, error) {
	return repomd.OpenIndex(s.filelists, s.filelistsRec.Location.Href)
}

// Close releases the index file handles. The scratch directory is left for
// the caller to remove.
func (s *Session) Close() error {
	var firstErr error
	for _, f := range []*os.File{s.primary, s.filelists} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// headerByteRanges are the escalating prefix sizes tried when downloading a
// package header; 0 means the whole file.
var headerByteRanges = []int64{100_000, 1_000_000, 5_000_000, 0}

// DownloadPackageHeader downloads just enough of the package at location to
// contain its complete metadata header, and returns the local path. Local
// repositories short-circuit to the original file. Partial downloads are
// never checksum-verified, so completeness is judged structurally only.
func (s *Session) DownloadPackageHeader(ctx context.Context, location, baseurl string) (string, error) {
	if s.local {
		p := filepath.Join(s.root, location)
		slog.Debug("using package from local filesystem directly", slog.String("path", p))
		return p, nil
	}

	localPath := filepath.Join(s.root, filepath.Base(location))
	if s.deps.Verifier.HeaderComplete(localPath) {
		slog.Debug("using already downloaded package", slog.String("path", localPath))
		return localPath, nil
	}

	if baseurl == "" {
		baseurl = s.mirrors[0]
	}
	url := strings.TrimSuffix(baseurl, "/") + "/" + strings.TrimPrefix(path.Clean(location), "/")

	slog.Debug("loading package", slog.String("location", location), slog.String("repo", s.repo.Name))
	for _, end := range headerByteRanges {
		f, err := os.Create(localPath)
		if err != nil {
			return "", err
		}
		if end > 0 {
			slog.Debug("downloading package prefix",
				slog.Int64("bytes", end), slog.String("location", location))
			err = s.deps.Fetch.FetchPrefix(ctx, url, f, end)
		} else {
			slog.Debug("downloading package", slog.String("location", location))
			err = s.deps.Fetch.Fetch(ctx, url, f)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", &PackageDownloadError{Repo: s.repo.Name, Location: location, Err: err}
		}
		if s.deps.Verifier.HeaderComplete(localPath) {
			break
		}
	}

	slog.Debug("saved package header", slog.String("path", localPath))
	return localPath, nil
}
