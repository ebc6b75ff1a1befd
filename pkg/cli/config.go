package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/rpmdeplint/rpmdeplint/pkg/repo"
	"gopkg.in/yaml.v3"
)

// Config is the tool's own configuration file, distinct from the system
// package-manager configuration.
type Config struct {
	// SystemRepos also loads the system yum/dnf repo configuration.
	SystemRepos bool `yaml:"system_repos"`

	Repos map[string]RepoConfig `yaml:"repos"`
}

type RepoConfig struct {
	BaseURL           string `yaml:"baseurl"`
	Metalink          string `yaml:"metalink"`
	Mirrorlist        string `yaml:"mirrorlist"`
	SkipIfUnavailable bool   `yaml:"skip_if_unavailable"`
	GPGKey            string `yaml:"gpgkey"`
}

// LoadConfig reads the config file at path; a missing file yields an empty
// config.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("error decoding config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error opening config: %w", err)
	} else {
		slog.Debug("no config file found, using defaults", slog.String("path", path))
	}

	return &cfg, nil
}

// BuildRepos constructs repositories from the config, sorted by name.
func (c *Config) BuildRepos() ([]*repo.Repo, error) {
	names := make([]string, 0, len(c.Repos))
	for name := range c.Repos {
		names = append(names, name)
	}
	sort.Strings(names)

	repos := make([]*repo.Repo, 0, len(names))
	for _, name := range names {
		rc := c.Repos[name]
		metalink := rc.Metalink
		if metalink == "" {
			metalink = rc.Mirrorlist
		}
		r, err := repo.NewRepo(name, rc.BaseURL, metalink)
		if err != nil {
			return nil, fmt.Errorf("error building repo %q: %w", name, err)
		}
		r.SkipIfUnavailable = rc.SkipIfUnavailable
		r.GPGKey = rc.GPGKey
		repos = append(repos, r)
	}
	return repos, nil
}
