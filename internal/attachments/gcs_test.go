package attachments

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"moneytracker/internal/core"
)

type fakeObject struct {
	contentType string
	data        []byte
}

// fakeGCS implements the handful of JSON API calls GCSStore makes.
type fakeGCS struct {
	mu            sync.Mutex
	bucket        string
	bucketExists  bool
	objects       map[string]fakeObject
	bucketInserts int
	failUploads   bool
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucketPath := "/storage/v1/b/" + f.bucket
	objectPrefix := bucketPath + "/o/"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == bucketPath:
		if !f.bucketExists {
			writeGCSError(w, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"name": f.bucket})
	case r.Method == http.MethodPost && r.URL.Path == "/storage/v1/b":
		f.bucketInserts++
		f.bucketExists = true
		json.NewEncoder(w).Encode(map[string]string{"name": f.bucket})
	case r.Method == http.MethodPost && r.URL.Path == "/upload/storage/v1/b/"+f.bucket+"/o":
		if f.failUploads {
			writeGCSError(w, http.StatusForbidden)
			return
		}
		name, obj, err := readMultipartUpload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[name] = obj
		json.NewEncoder(w).Encode(map[string]string{"name": name, "bucket": f.bucket})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, objectPrefix):
		name := strings.TrimPrefix(r.URL.Path, objectPrefix)
		if _, ok := f.objects[name]; !ok {
			writeGCSError(w, http.StatusNotFound)
			return
		}
		delete(f.objects, name)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

func writeGCSError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": http.StatusText(code)}})
}

func readMultipartUpload(r *http.Request) (string, fakeObject, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return "", fakeObject{}, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	meta, err := mr.NextPart()
	if err != nil {
		return "", fakeObject{}, err
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(meta).Decode(&obj); err != nil {
		return "", fakeObject{}, err
	}
	media, err := mr.NextPart()
	if err != nil {
		return "", fakeObject{}, err
	}
	data, err := io.ReadAll(media)
	if err != nil {
		return "", fakeObject{}, err
	}
	return obj.Name, fakeObject{contentType: media.Header.Get("Content-Type"), data: data}, nil
}

func newFakeGCSStore(t *testing.T, fake *fakeGCS) *GCSStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewGCSStore(context.Background(), fake.bucket, "proj",
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("new gcs store: %v", err)
	}
	return s
}

func TestGCSStoreEnsureContainer(t *testing.T) {
	fake := &fakeGCS{bucket: "receipts", objects: map[string]fakeObject{}}
	s := newFakeGCSStore(t, fake)
	ctx := context.Background()

	if err := s.EnsureContainer(ctx); err != nil {
		t.Fatalf("ensure container: %v", err)
	}
	if err := s.EnsureContainer(ctx); err != nil {
		t.Fatalf("ensure container again: %v", err)
	}
	if fake.bucketInserts != 1 {
		t.Fatalf("bucket should be created exactly once, got %d", fake.bucketInserts)
	}
}

func TestGCSStoreUploadAndDelete(t *testing.T) {
	fake := &fakeGCS{bucket: "receipts", bucketExists: true, objects: map[string]fakeObject{}}
	s := newFakeGCSStore(t, fake)
	ctx := context.Background()

	ref, err := s.Upload(ctx, []byte("%PDF-1.4"), "Invoice.PDF", "application/pdf", "u1", "t1")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if ref != "https://storage.googleapis.com/receipts/transactions/dTE/t1/receipt.pdf" {
		t.Fatalf("unexpected ref %q", ref)
	}
	obj, ok := fake.objects["transactions/dTE/t1/receipt.pdf"]
	if !ok || string(obj.data) != "%PDF-1.4" || obj.contentType != "application/pdf" {
		t.Fatalf("object not stored correctly: %+v ok=%v", obj, ok)
	}

	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("object not removed")
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("deleting a missing object must succeed, got %v", err)
	}
}

func TestGCSStoreUploadFailure(t *testing.T) {
	fake := &fakeGCS{bucket: "receipts", bucketExists: true, objects: map[string]fakeObject{}, failUploads: true}
	s := newFakeGCSStore(t, fake)

	_, err := s.Upload(context.Background(), []byte("x"), "a.png", "image/png", "u1", "t1")
	if !core.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
