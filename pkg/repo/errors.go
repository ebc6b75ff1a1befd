package repo

import "fmt"

// RepoDownloadError reports a failed metadata download for a repository.
// Callers may treat it as recoverable when the repo is configured with
// SkipIfUnavailable.
type RepoDownloadError struct {
	Repo string
	Err  error
}

func (e *RepoDownloadError) Error() string {
	return fmt.Sprintf("failed to download repodata for repo %q: %v", e.Repo, e.Err)
}

func (e *RepoDownloadError) Unwrap() error { return e.Err }

// PackageDownloadError reports a failed package download.
type PackageDownloadError struct {
	Repo     string
	Location string
	Err      error
}

func (e *PackageDownloadError) Error() string {
	return fmt.Sprintf("failed to download %s from repo %q: %v", e.Location, e.Repo, e.Err)
}

func (e *PackageDownloadError) Unwrap() error { return e.Err }

// ConfigError reports a malformed repository configuration section.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("repo config section %q %s", e.Section, e.Reason)
}
