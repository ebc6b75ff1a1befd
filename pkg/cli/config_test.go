package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rpmdeplint/rpmdeplint/pkg/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "rpmdeplint.yml")
	require.NoError(t, os.WriteFile(p, []byte(`---
system_repos: true
repos:
  fedora:
    metalink: https://mirrors.fedoraproject.org/metalink?repo=fedora-$releasever&arch=$basearch
  updates:
    mirrorlist: https://mirrors.fedoraproject.org/mirrorlist?repo=updates
    skip_if_unavailable: true
  local:
    baseurl: /srv/repo
    gpgkey: /etc/pki/repo.asc
`), 0o644))

	cfg, err := cli.LoadConfig(p)
	require.NoError(t, err)
	assert.True(t, cfg.SystemRepos)
	assert.Len(t, cfg.Repos, 3)

	repos, err := cfg.BuildRepos()
	require.NoError(t, err)
	require.Len(t, repos, 3)

	// sorted by name
	assert.Equal(t, "fedora", repos[0].Name)
	assert.NotEmpty(t, repos[0].Metalink)

	assert.Equal(t, "local", repos[1].Name)
	assert.Equal(t, "/srv/repo", repos[1].BaseURL)
	assert.Equal(t, "/etc/pki/repo.asc", repos[1].GPGKey)

	assert.Equal(t, "updates", repos[2].Name)
	assert.True(t, repos[2].SkipIfUnavailable)
	assert.Equal(t, "https://mirrors.fedoraproject.org/mirrorlist?repo=updates", repos[2].Metalink)
}

func TestLoadConfig_Missing(t *testing.T) {
	t.Parallel()
	cfg, err := cli.LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Repos)

	repos, err := cfg.BuildRepos()
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestLoadConfig_InvalidRepo(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "rpmdeplint.yml")
	require.NoError(t, os.WriteFile(p, []byte(`---
repos:
  broken: {}
`), 0o644))

	cfg, err := cli.LoadConfig(p)
	require.NoError(t, err)
	_, err = cfg.BuildRepos()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
