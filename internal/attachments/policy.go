// Package attachments stores receipt files for transactions and enforces the
// upload policy (type and size) shared by every backend.
package attachments

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"moneytracker/internal/core"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes int64 = 5 << 20

// extensionTypes maps each accepted extension to the MIME type it must be
// declared with.
var extensionTypes = map[string]string{
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
}

// mimeAliases normalises non-canonical types some clients send.
var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
}

type Policy struct {
	MaxBytes int64
}

func NewPolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return Policy{MaxBytes: maxBytes}
}

// Validate checks name, size and declared content type. The extension and
// the MIME type must both be allowed and must describe the same format.
func (p Policy) Validate(name string, size int64, contentType string) error {
	if size <= 0 {
		return core.NewValidationError("attachment", "is empty")
	}
	if size > p.MaxBytes {
		return core.NewValidationError("attachment", "exceeds the maximum size of "+humanize.IBytes(uint64(p.MaxBytes)))
	}

	ext := strings.ToLower(filepath.Ext(name))
	want, ok := extensionTypes[ext]
	if !ok {
		return core.NewValidationError("attachment", "must be a jpeg, jpg, png, gif or pdf file")
	}
	got := NormalizeContentType(contentType)
	if got == "" {
		return core.NewValidationError("attachment", "has no declared content type")
	}
	if got != want {
		return core.NewValidationError("attachment", "content type "+got+" does not match extension "+ext)
	}
	return nil
}

// Check validates an upload.
func (p Policy) Check(u *core.Upload) error {
	if u == nil {
		return nil
	}
	size := u.Size
	if size == 0 {
		size = int64(len(u.Data))
	}
	return p.Validate(u.Filename, size, u.ContentType)
}

// NormalizeContentType lower-cases the media type and strips parameters.
func NormalizeContentType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	mt = strings.ToLower(mt)
	if alias, ok := mimeAliases[mt]; ok {
		return alias
	}
	return mt
}
