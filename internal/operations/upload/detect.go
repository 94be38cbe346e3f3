package upload

import (
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when neither content nor name identify a type.
const DefaultContentType = "application/octet-stream"

// sniffLen is how many leading bytes are inspected.
const sniffLen = 512

// DetectContentType sniffs the first bytes of src and falls back to the
// extension of name when the content is not recognised.
func DetectContentType(src io.ReaderAt, size int64, name string) string {
	byExt := ""
	if ext := strings.ToLower(path.Ext(name)); ext != "" {
		byExt = mime.TypeByExtension(ext)
	}

	n := int64(sniffLen)
	if size < n {
		n = size
	}
	if n > 0 {
		buf := make([]byte, n)
		read, _ := src.ReadAt(buf, 0)
		if read > 0 {
			detected := mimetype.Detect(buf[:read])
			// plain text and unknown binary say less than a known extension
			if !generic(detected) || byExt == "" {
				return detected.String()
			}
		}
	}

	if byExt != "" {
		return byExt
	}
	return DefaultContentType
}

func generic(m *mimetype.MIME) bool {
	return m.Is("application/octet-stream") || m.Is("text/plain")
}
