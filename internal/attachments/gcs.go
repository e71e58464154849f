package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"moneytracker/internal/core"
	"moneytracker/internal/ports"
)

const gcsPublicBase = "https://storage.googleapis.com"

var _ ports.AttachmentStore = (*GCSStore)(nil)

// GCSStore keeps attachments in a Google Cloud Storage bucket.
type GCSStore struct {
	svc       *gstorage.Service
	bucket    string
	projectID string
}

// NewGCSStore builds the storage client. Credentials come from opts or,
// when none are given, Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, projectID string, opts ...option.ClientOption) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("missing GCS bucket name")
	}
	opts = append([]option.ClientOption{option.WithScopes(gstorage.DevstorageReadWriteScope)}, opts...)
	svc, err := gstorage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSStore{svc: svc, bucket: bucket, projectID: projectID}, nil
}

// EnsureContainer creates the bucket when it does not exist yet.
func (s *GCSStore) EnsureContainer(ctx context.Context) error {
	_, err := s.svc.Buckets.Get(s.bucket).Context(ctx).Do()
	if err == nil {
		return nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return &core.StorageError{Op: "ensure container", Err: err}
	}
	if s.projectID == "" {
		return &core.StorageError{Op: "ensure container", Err: fmt.Errorf("bucket %s does not exist and no project id is configured", s.bucket)}
	}

	_, err = s.svc.Buckets.Insert(s.projectID, &gstorage.Bucket{Name: s.bucket}).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusConflict) {
		return &core.StorageError{Op: "ensure container", Err: err}
	}
	slog.InfoContext(ctx, "Created attachment bucket", "bucket", s.bucket)
	return nil
}

func (s *GCSStore) Upload(ctx context.Context, data []byte, originalName, contentType, ownerID, txID string) (string, error) {
	key := ObjectKey(ownerID, txID, originalName)
	contentType = NormalizeContentType(contentType)

	obj := &gstorage.Object{Name: key, ContentType: contentType}
	_, err := s.svc.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).Do()
	if err != nil {
		return "", &core.StorageError{Op: "upload", Err: err}
	}
	return s.ref(key), nil
}

// Delete removes the object behind ref. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	key := s.keyFromRef(ref)
	if !validKey(key) {
		return &core.StorageError{Op: "delete", Err: fmt.Errorf("invalid attachment ref %q", ref)}
	}
	err := s.svc.Objects.Delete(s.bucket, key).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return &core.StorageError{Op: "delete", Err: err}
	}
	return nil
}

func (s *GCSStore) ref(key string) string {
	return gcsPublicBase + "/" + s.bucket + "/" + key
}

func (s *GCSStore) keyFromRef(ref string) string {
	return strings.TrimPrefix(ref, gcsPublicBase+"/"+s.bucket+"/")
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
