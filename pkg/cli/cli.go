// Package cli is the command-line surface over the metadata acquisition
// core.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpmdeplint/rpmdeplint/pkg/cache"
	"github.com/rpmdeplint/rpmdeplint/pkg/fetch"
	"github.com/rpmdeplint/rpmdeplint/pkg/repo"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	debug       bool
	repoFlags   []string
	systemRepos bool
}

// Execute runs the CLI until completion or ctx cancellation.
func Execute(ctx context.Context) error {
	var opts options

	root := &cobra.Command{
		Use:           "rpmdeplint",
		Short:         "Check packages against their repositories' dependency graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging(opts.debug)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "rpmdeplint.yml", "path to the tool config file")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	pf.StringArrayVar(&opts.repoFlags, "repo", nil, "additional repo as name,url (repeatable)")
	pf.BoolVar(&opts.systemRepos, "repos-from-system", false, "also load system yum/dnf repos")

	root.AddCommand(newReposCmd(&opts), newFetchCmd(&opts), newCleanCmd())
	return root.ExecuteContext(ctx)
}

func newReposCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repos",
		Short: "List the repositories that would be checked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repos, err := loadRepos(opts)
			if err != nil {
				return err
			}
			for _, r := range repos {
				flags := ""
				if r.SkipIfUnavailable {
					flags = " (skip-if-unavailable)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s%s\n", r.Name, r.Source(), flags)
			}
			return nil
		},
	}
}

func newFetchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download repository metadata and report index checksums",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repos, err := loadRepos(opts)
			if err != nil {
				return err
			}

			deps := repo.Deps{
				Cache: cache.New(),
				Fetch: fetch.NewClient(),
			}
			for _, r := range repos {
				sess, err := r.Download(cmd.Context(), deps)
				if err != nil {
					var rde *repo.RepoDownloadError
					if r.SkipIfUnavailable && errors.As(err, &rde) {
						slog.Warn("skipping unavailable repo", slog.String("repo", r.Name), slog.String("error", err.Error()))
						continue
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tprimary %s\tfilelists %s\n",
					r.Name, sess.PrimaryChecksum(), sess.FilelistsChecksum())
				_ = sess.Close()
			}
			return nil
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Evict expired entries from the download cache",
		RunE: func(*cobra.Command, []string) error {
			cache.New().Clean()
			return nil
		},
	}
}

func loadRepos(opts *options) ([]*repo.Repo, error) {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	repos, err := cfg.BuildRepos()
	if err != nil {
		return nil, err
	}

	for _, arg := range opts.repoFlags {
		name, url, ok := strings.Cut(arg, ",")
		if !ok {
			return nil, fmt.Errorf("invalid --repo %q, expected name,url", arg)
		}
		r, err := repo.NewRepo(name, url, "")
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}

	if opts.systemRepos || cfg.SystemRepos {
		system, err := repo.FromSystemConfig(repo.DefaultSystemConfig(), repo.Yumvars())
		if err != nil {
			return nil, err
		}
		repos = append(repos, system...)
	}
	return repos, nil
}
