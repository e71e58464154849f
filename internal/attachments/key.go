package attachments

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

const keyPrefix = "transactions"

// ObjectKey returns the storage key of a transaction's receipt. One key per
// transaction and extension, so a re-upload overwrites the previous file.
func ObjectKey(ownerID, txID, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return OwnerPrefix(ownerID) + sanitizeSegment(txID) + "/receipt" + sanitizeExt(ext)
}

// OwnerPrefix is the key prefix of every object owned by ownerID. Downloads
// are authorized by it, so distinct owners never share a prefix.
func OwnerPrefix(ownerID string) string {
	return keyPrefix + "/" + ownerSegment(ownerID) + "/"
}

// ownerSegment encodes an owner id as unpadded base64url. The encoding is
// injective and never yields "." or "..".
func ownerSegment(ownerID string) string {
	if ownerID == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(ownerID))
}

func sanitizeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, ".") == "" {
		return "_"
	}
	return out
}

func sanitizeExt(ext string) string {
	if _, ok := extensionTypes[ext]; ok {
		return ext
	}
	return ""
}

// validKey rejects keys that could escape the storage root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
