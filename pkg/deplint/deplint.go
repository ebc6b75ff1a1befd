// Package deplint wires repositories to the dependency solver and the
// package header parser, both of which are external capabilities consumed
// through interfaces.
package deplint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rpmdeplint/rpmdeplint/pkg/repo"
)

// Package identifies one candidate or repository package.
type Package struct {
	Name    string
	Epoch   string
	Version string
	Release string
	Arch    string
	// Location is the package's path relative to its repository root.
	Location string
	// Repo names the repository the package came from; empty for candidates.
	Repo string
}

func (p Package) String() string {
	if p.Epoch != "" {
		return fmt.Sprintf("%s-%s:%s-%s.%s", p.Name, p.Epoch, p.Version, p.Release, p.Arch)
	}
	return fmt.Sprintf("%s-%s-%s.%s", p.Name, p.Version, p.Release, p.Arch)
}

// Problem is one dependency problem reported by the solver.
type Problem struct {
	Package     Package
	Description string
}

// Solver resolves dependencies against loaded repository metadata.
type Solver interface {
	// LoadRepo feeds one repository's decompressed primary and filelists
	// indexes into the solver's universe.
	LoadRepo(ctx context.Context, name string, primary, filelists io.Reader) error
	// Resolve returns the install set for the candidates, plus any
	// satisfiability problems.
	Resolve(ctx context.Context, candidates []Package) ([]Package, []Problem, error)
}

// HeaderParser builds a package record from a file whose leading bytes hold
// a complete metadata header.
type HeaderParser interface {
	Parse(path string) (Package, error)
}

// Result of one analysis run.
type Result struct {
	Install  []Package
	Problems []Problem
	// HeaderPaths maps each installed package's String() to the local file
	// holding its downloaded header.
	HeaderPaths map[string]string
}

// Analyzer drives one run: open a session per repository, feed the solver,
// then download headers for the packages the solver selected.
type Analyzer struct {
	Repos  []*repo.Repo
	Solver Solver
	Parser HeaderParser
	Deps   repo.Deps
}

// Run analyzes the candidates against every configured repository.
// Repositories marked skip-if-unavailable are dropped with a warning when
// their metadata cannot be fetched; any other failure aborts the run.
func (a *Analyzer) Run(ctx context.Context, candidates []Package) (*Result, error) {
	sessions := make(map[string]*repo.Session, len(a.Repos))
	defer func() {
		for _, sess := range sessions {
			_ = sess.Close()
		}
	}()

	for _, r := range a.Repos {
		sess, err := r.Download(ctx, a.Deps)
		if err != nil {
			var rde *repo.RepoDownloadError
			if r.SkipIfUnavailable && errors.As(err, &rde) {
				slog.Warn("skipping unavailable repo", slog.String("repo", r.Name), slog.String("error", err.Error()))
				continue
			}
			return nil, err
		}
		sessions[r.Name] = sess

		primary, err := sess.PrimaryReader()
		if err != nil {
			return nil, fmt.Errorf("reading primary for repo %q: %w", r.Name, err)
		}
		filelists, err := sess.FilelistsReader()
		if err != nil {
			return nil, fmt.Errorf("reading filelists for repo %q: %w", r.Name, err)
		}
		if err := a.Solver.LoadRepo(ctx, r.Name, primary, filelists); err != nil {
			return nil, fmt.Errorf("loading repo %q into solver: %w", r.Name, err)
		}
	}

	install, problems, err := a.Solver.Resolve(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies: %w", err)
	}

	res := &Result{
		Install:     install,
		Problems:    problems,
		HeaderPaths: make(map[string]string, len(install)),
	}
	for _, pkg := range install {
		sess, ok := sessions[pkg.Repo]
		if !ok {
			continue // a candidate, not a repository package
		}
		p, err := sess.DownloadPackageHeader(ctx, pkg.Location, "")
		if err != nil {
			return nil, err
		}
		if a.Parser != nil {
			if _, err := a.Parser.Parse(p); err != nil {
				return nil, fmt.Errorf("parsing header of %s: %w", pkg, err)
			}
		}
		res.HeaderPaths[pkg.String()] = p
	}
	return res, nil
}
