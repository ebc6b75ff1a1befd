package rpm_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpmdeplint/rpmdeplint/pkg/rpm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildRPM assembles a synthetic package: lead, signature header, metadata
// header with the given data length, then payload bytes.
func buildRPM(tb testing.TB, headerDataLen uint32, payload int) []byte {
	tb.Helper()
	var buf bytes.Buffer

	lead := make([]byte, 96)
	copy(lead, []byte{0xed, 0xab, 0xee, 0xdb})
	buf.Write(lead)

	writeSection := func(indexCount, dataLen uint32) {
		buf.Write([]byte{0x8e, 0xad, 0xe8, 0x01})
		buf.Write(make([]byte, 4)) // reserved
		_ = binary.Write(&buf, binary.BigEndian, indexCount)
		_ = binary.Write(&buf, binary.BigEndian, dataLen)
		buf.Write(make([]byte, int(indexCount)*16+int(dataLen)))
	}

	start := buf.Len()
	writeSection(2, 32)
	if pad := (8 - (buf.Len()-start)%8) % 8; pad > 0 {
		buf.Write(make([]byte, pad))
	}
	writeSection(4, headerDataLen)
	buf.Write(make([]byte, payload))
	return buf.Bytes()
}

func writeFile(t *testing.T, b []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pkg.rpm")
	require.NoError(t, os.WriteFile(p, b, 0o644))
	return p
}

func TestLeadVerifier_Complete(t *testing.T) {
	t.Parallel()
	full := buildRPM(t, 512, 4096)
	assert.True(t, rpm.LeadVerifier{}.HeaderComplete(writeFile(t, full)))
}

func TestLeadVerifier_ExactHeaderNoPayload(t *testing.T) {
	t.Parallel()
	exact := buildRPM(t, 512, 0)
	assert.True(t, rpm.LeadVerifier{}.HeaderComplete(writeFile(t, exact)))
}

func TestLeadVerifier_TruncatedHeader(t *testing.T) {
	t.Parallel()
	full := buildRPM(t, 512, 0)
	truncated := full[:len(full)-100]
	assert.False(t, rpm.LeadVerifier{}.HeaderComplete(writeFile(t, truncated)))
}

func TestLeadVerifier_TruncatedLead(t *testing.T) {
	t.Parallel()
	full := buildRPM(t, 512, 0)
	assert.False(t, rpm.LeadVerifier{}.HeaderComplete(writeFile(t, full[:50])))
}

func TestLeadVerifier_NotAnRPM(t *testing.T) {
	t.Parallel()
	junk := bytes.Repeat([]byte("junk"), 100)
	assert.False(t, rpm.LeadVerifier{}.HeaderComplete(writeFile(t, junk)))
}

func TestLeadVerifier_MissingFile(t *testing.T) {
	t.Parallel()
	assert.False(t, rpm.LeadVerifier{}.HeaderComplete(filepath.Join(t.TempDir(), "nope.rpm")))
}
