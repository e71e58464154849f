package attachments

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

var _ ports.AttachmentStore = (*FileStore)(nil)

// FileStore keeps attachments in a local directory. Refs are URL paths
// under publicPath that the HTTP layer serves back to the owner.
type FileStore struct {
	root       string
	publicPath string
}

func NewFileStore(root, publicPath string) *FileStore {
	return &FileStore{
		root:       filepath.Clean(root),
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}
}

// EnsureContainer creates the root directory.
func (s *FileStore) EnsureContainer(_ context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return &core.StorageError{Op: "ensure container", Err: err}
	}
	return nil
}

// Upload writes to a temp file and renames it over the final path so
// readers never see a partial receipt.
func (s *FileStore) Upload(ctx context.Context, data []byte, originalName, _ string, ownerID, txID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	key := ObjectKey(ownerID, txID, originalName)
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", &core.StorageError{Op: "upload", Err: err}
	}

	slog.DebugContext(ctx, "Attachment stored", "key", key, "size", len(data))
	return s.publicPath + "/" + key, nil
}

// Delete removes the blob behind ref. A missing file is not an error.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	key, err := s.KeyFromRef(ref)
	if err != nil {
		return &core.StorageError{Op: "delete", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &core.StorageError{Op: "delete", Err: err}
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &core.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// KeyFromRef accepts a served ref or a bare key.
func (s *FileStore) KeyFromRef(ref string) (string, error) {
	key := strings.TrimPrefix(ref, s.publicPath+"/")
	if !validKey(key) {
		return "", fmt.Errorf("invalid attachment ref %q", ref)
	}
	return key, nil
}

// Open returns the stored file for key along with its modification time.
func (s *FileStore) Open(key string) (*os.File, time.Time, error) {
	if !validKey(key) {
		return nil, time.Time{}, core.ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, core.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		f.Close()
		return nil, time.Time{}, core.ErrNotFound
	}
	return f, st.ModTime(), nil
}
