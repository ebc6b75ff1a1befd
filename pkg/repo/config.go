package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// SystemConfig locates the system package-manager configuration.
type SystemConfig struct {
	// MainPath is the main config file, e.g. /etc/yum.conf.
	MainPath string
	// ReposGlob matches repo fragment files, e.g. /etc/yum.repos.d/*.repo.
	ReposGlob string
}

// DefaultSystemConfig points at the standard yum/dnf locations.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		MainPath:  "/etc/yum.conf",
		ReposGlob: "/etc/yum.repos.d/*.repo",
	}
}

// Yumvars returns the runtime substitution values for configured URLs:
// $arch, $basearch and $releasever. Values that cannot be detected are left
// as their literal placeholder, matching the reference tool's fallback.
func Yumvars() map[string]string {
	arch := rpmArch(runtime.GOARCH)
	vars := map[string]string{
		"arch":       arch,
		"basearch":   arch,
		"releasever": "$releasever",
	}
	if b, err := os.ReadFile("/etc/os-release"); err == nil {
		if v := osReleaseVersion(string(b)); v != "" {
			vars["releasever"] = v
		}
	}
	return vars
}

func rpmArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "ppc64le", "s390x", "riscv64":
		return goarch
	default:
		return goarch
	}
}

func osReleaseVersion(data string) string {
	for _, line := range strings.Split(data, "\n") {
		if v, ok := strings.CutPrefix(line, "VERSION_ID="); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

// SubstituteYumvars replaces each literal $name in s with its value. There
// is no escaping and no recursive expansion.
func SubstituteYumvars(s string, vars map[string]string) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s = strings.ReplaceAll(s, "$"+name, vars[name])
	}
	return s
}

// FromSystemConfig loads enabled repositories from the system configuration:
// the main INI file plus every fragment matching the glob. Each section
// other than "main" must carry exactly one of baseurl, metalink or
// mirrorlist (mirrorlist is treated as a metalink).
func FromSystemConfig(cfg SystemConfig, vars map[string]string) ([]*Repo, error) {
	files, err := filepath.Glob(cfg.ReposGlob)
	if err != nil {
		return nil, fmt.Errorf("globbing repo configs: %w", err)
	}
	sort.Strings(files)

	others := make([]any, len(files))
	for i, f := range files {
		others[i] = f
	}
	f, err := ini.LooseLoad(cfg.MainPath, others...)
	if err != nil {
		return nil, fmt.Errorf("parsing repo configs: %w", err)
	}

	var repos []*Repo
	for _, section := range f.Sections() {
		name := section.Name()
		if name == ini.DefaultSection || name == "main" {
			continue
		}
		if key, err := section.GetKey("enabled"); err == nil && !key.MustBool(true) {
			continue
		}

		var baseurl, metalink string
		switch {
		case section.HasKey("baseurl"):
			baseurl = SubstituteYumvars(section.Key("baseurl").String(), vars)
		case section.HasKey("metalink"):
			metalink = SubstituteYumvars(section.Key("metalink").String(), vars)
		case section.HasKey("mirrorlist"):
			metalink = SubstituteYumvars(section.Key("mirrorlist").String(), vars)
		default:
			return nil, &ConfigError{Section: name, Reason: "has no baseurl, metalink or mirrorlist"}
		}

		r, err := NewRepo(name, baseurl, metalink)
		if err != nil {
			return nil, &ConfigError{Section: name, Reason: err.Error()}
		}
		if key, err := section.GetKey("skip_if_unavailable"); err == nil {
			r.SkipIfUnavailable = key.MustBool(false)
		}
		if section.Key("repo_gpgcheck").MustBool(false) && section.HasKey("gpgkey") {
			r.GPGKey = strings.TrimPrefix(section.Key("gpgkey").String(), "file://")
		}
		repos = append(repos, r)
	}
	return repos, nil
}
