package repomd

import (
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/ulikunitz/xz"
)

type Compression string

const (
	CompressionNone = Compression("")
	CompressionGZIP = Compression("gz")
	CompressionXZ   = Compression("xz")
)

func ParseCompression(s string) Compression {
	switch strings.TrimPrefix(s, ".") {
	case "gz":
		return CompressionGZIP
	case "xz":
		return CompressionXZ
	default:
		return CompressionNone
	}
}

func (c Compression) String() string {
	return string(c)
}

// Reader wraps r with the matching decompressor.
func (c Compression) Reader(r io.Reader) (io.Reader, error) {
	switch c {
	case CompressionGZIP:
		return gzip.NewReader(r)
	case CompressionXZ:
		return xz.NewReader(r)
	default:
		return r, nil
	}
}

// OpenIndex wraps an index file in a decompressing reader chosen by the
// file name's extension, e.g. primary.xml.gz or filelists.xml.xz.
func OpenIndex(r io.Reader, name string) (io.Reader, error) {
	return ParseCompression(path.Ext(name)).Reader(r)
}
