// Package repomd parses the top-level manifest of a yum repository and the
// documents used to locate its mirrors.
package repomd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Roles of the index files this tool consumes.
const (
	RolePrimary   = "primary"
	RoleFilelists = "filelists"
)

// Repomd is the parsed repomd.xml manifest, mapping logical roles to index
// file locations and checksums.
type Repomd struct {
	XMLName  xml.Name `xml:"repomd"`
	Revision string   `xml:"revision"`
	Data     []Record `xml:"data"`
}

// Record describes one index file within the repository.
type Record struct {
	Type      string   `xml:"type,attr"`
	Checksum  Checksum `xml:"checksum"`
	Location  Location `xml:"location"`
	Size      int64    `xml:"size"`
	Timestamp float64  `xml:"timestamp"`
}

type Checksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type Location struct {
	Href string `xml:"href,attr"`
}

// Parse decodes a repomd.xml document.
func Parse(r io.Reader) (*Repomd, error) {
	var doc Repomd
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing repomd: %w", err)
	}
	for i := range doc.Data {
		doc.Data[i].Checksum.Value = strings.TrimSpace(doc.Data[i].Checksum.Value)
	}
	return &doc, nil
}

// Record returns the record for the given role.
func (r *Repomd) Record(role string) (Record, bool) {
	for _, rec := range r.Data {
		if rec.Type == role {
			return rec, true
		}
	}
	return Record{}, false
}
