// Package repo resolves package repositories: descriptors from system or
// tool configuration, repodata sessions backed by the content cache, and
// partial package downloads for header inspection.
package repo

import (
	"errors"
	"os"
	"strings"
)

// Repo describes one package repository to test dependencies against.
// Exactly one of BaseURL and Metalink is set. Immutable after construction.
type Repo struct {
	// Name identifies the repository in problems and error messages.
	Name string
	// BaseURL is a URL or filesystem path to the root of the repository
	// (a repodata subdirectory lives under it).
	BaseURL string
	// Metalink is a URL to a metalink or mirrorlist document describing
	// mirrors where the repository can be found.
	Metalink string
	// SkipIfUnavailable suppresses errors downloading this repo's metadata.
	SkipIfUnavailable bool
	// GPGKey is an optional path to an armored keyring; when set, the
	// repomd.xml signature is verified against it.
	GPGKey string
}

// NewRepo builds a Repo, enforcing that exactly one source is given.
func NewRepo(name, baseurl, metalink string) (*Repo, error) {
	if baseurl == "" && metalink == "" {
		return nil, errors.New("must specify either baseurl or metalink for repo")
	}
	if baseurl != "" && metalink != "" {
		return nil, errors.New("cannot specify both baseurl and metalink for repo")
	}
	return &Repo{
		Name:     name,
		BaseURL:  strings.TrimPrefix(baseurl, "file://"),
		Metalink: metalink,
	}, nil
}

// IsLocal reports whether the repository root is a directory on the local
// filesystem.
func (r *Repo) IsLocal() bool {
	_, ok := r.localRoot()
	return ok
}

func (r *Repo) localRoot() (string, bool) {
	if r.BaseURL == "" {
		return "", false
	}
	if info, err := os.Stat(r.BaseURL); err == nil && info.IsDir() {
		return r.BaseURL, true
	}
	return "", false
}

// Source is the configured origin, for logging.
func (r *Repo) Source() string {
	if r.BaseURL != "" {
		return r.BaseURL
	}
	return r.Metalink
}
