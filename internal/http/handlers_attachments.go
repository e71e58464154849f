package http

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"moneytracker/internal/attachments"
	"moneytracker/internal/core"
	applog "moneytracker/internal/log"
)

const msgAttachmentNotFound = "Attachment not found"

// handleAttachment streams a receipt kept by the file backend. Keys outside
// the caller's prefix answer 404 like missing ones.
func (s *Server) handleAttachment(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if s.deps.Files == nil || !strings.HasPrefix(key, attachments.OwnerPrefix(ownerID(r))) {
		NotFoundError(msgAttachmentNotFound).Write(w)
		return
	}

	f, modTime, err := s.deps.Files.Open(key)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError(msgAttachmentNotFound).Write(w)
		return
	}
	if err != nil {
		writeServiceError(w, r, applog.OpRead, &core.StorageError{Op: "open", Err: err}, msgAttachmentNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Disposition", "inline")
	http.ServeContent(w, r, path.Base(key), modTime, f)
}
