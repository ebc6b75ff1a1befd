package repomd

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

const repomdSuffix = "/repodata/repomd.xml"

type metalink struct {
	Files []metalinkFile `xml:"files>file"`
}

type metalinkFile struct {
	Name      string        `xml:"name,attr"`
	Resources []metalinkURL `xml:"resources>url"`
}

type metalinkURL struct {
	Protocol   string `xml:"protocol,attr"`
	Preference int    `xml:"preference,attr"`
	URL        string `xml:",chardata"`
}

// ParseMetalink extracts repository base URLs from a metalink document,
// highest preference first. Only HTTP(S) mirrors are kept.
func ParseMetalink(data []byte) ([]string, error) {
	var doc metalink
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing metalink: %w", err)
	}

	var resources []metalinkURL
	for _, f := range doc.Files {
		if f.Name != "repomd.xml" {
			continue
		}
		for _, u := range f.Resources {
			if u.Protocol == "http" || u.Protocol == "https" {
				resources = append(resources, u)
			}
		}
	}
	sort.SliceStable(resources, func(i, j int) bool {
		return resources[i].Preference > resources[j].Preference
	})

	mirrors := make([]string, 0, len(resources))
	for _, u := range resources {
		base := strings.TrimSpace(u.URL)
		base = strings.TrimSuffix(base, repomdSuffix)
		mirrors = append(mirrors, strings.TrimSuffix(base, "/"))
	}
	if len(mirrors) == 0 {
		return nil, fmt.Errorf("metalink lists no usable mirrors")
	}
	return mirrors, nil
}

// ParseMirrorList extracts base URLs from a plain-text mirrorlist, one URL
// per line, comments and blanks skipped.
func ParseMirrorList(data []byte) []string {
	var mirrors []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		mirrors = append(mirrors, strings.TrimSuffix(line, "/"))
	}
	return mirrors
}
