// Package rpm inspects the framing of RPM package files just enough to
// decide whether a downloaded prefix contains the complete metadata header.
// Decoding header tags into package records is left to an external parser.
package rpm

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
)

// HeaderVerifier reports whether the file at path contains a structurally
// complete metadata header. Implementations treat any parse failure as
// "incomplete", never as a hard error.
type HeaderVerifier interface {
	HeaderComplete(path string) bool
}

// LeadVerifier decides completeness from the lead and the header section
// length fields alone, without decoding any header contents.
type LeadVerifier struct{}

var _ HeaderVerifier = LeadVerifier{}

func (LeadVerifier) HeaderComplete(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return headerComplete(f)
}

const leadSize = 96

var (
	leadMagic   = []byte{0xed, 0xab, 0xee, 0xdb}
	headerMagic = []byte{0x8e, 0xad, 0xe8, 0x01}
)

// An RPM file opens with a 96-byte lead, then a signature header padded to
// an 8-byte boundary, then the metadata header. Each header is a 16-byte
// preamble followed by 16 bytes per index entry and the data blob.
func headerComplete(r io.Reader) bool {
	lead := make([]byte, leadSize)
	if _, err := io.ReadFull(r, lead); err != nil {
		return false
	}
	if !bytes.Equal(lead[:4], leadMagic) {
		return false
	}

	sig, ok := sectionSize(r)
	if !ok {
		return false
	}
	pad := (8 - sig%8) % 8
	if _, err := io.CopyN(io.Discard, r, sig+pad); err != nil {
		return false
	}

	hdr, ok := sectionSize(r)
	if !ok {
		return false
	}
	_, err := io.CopyN(io.Discard, r, hdr)
	return err == nil
}

// sectionSize consumes a header preamble and returns the remaining length
// of that header section.
func sectionSize(r io.Reader) (int64, bool) {
	pre := make([]byte, 16)
	if _, err := io.ReadFull(r, pre); err != nil {
		return 0, false
	}
	if !bytes.Equal(pre[:4], headerMagic) {
		return 0, false
	}
	indexCount := binary.BigEndian.Uint32(pre[8:12])
	dataLen := binary.BigEndian.Uint32(pre[12:16])
	return int64(indexCount)*16 + int64(dataLen), true
}
