package staging

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	listErr error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, object string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	f.objects[bucket+"/"+object] = data
	f.mu.Unlock()
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) RemoveObject(_ context.Context, bucket, object string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	delete(f.objects, bucket+"/"+object)
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) ListObjects(_ context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects)+1)
	defer close(ch)

	if f.listErr != nil {
		ch <- minio.ObjectInfo{Err: f.listErr}
		return ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		object := strings.TrimPrefix(key, bucket+"/")
		if strings.HasPrefix(object, opts.Prefix) {
			ch <- minio.ObjectInfo{Key: object}
		}
	}
	return ch
}

func TestMinIOAreaStageAndList(t *testing.T) {
	store := newFakeObjectStore()
	area := NewMinIOArea(store, "staging", nil)
	ctx := context.Background()

	h, err := area.Stage(ctx, "u1", "a.bin", 1, []byte("bbb"))
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if h.Location != "u1/a.bin.part0001" {
		t.Fatalf("unexpected object key %s", h.Location)
	}
	if _, err := area.Stage(ctx, "u1", "a.bin", 0, []byte("aaa")); err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if _, err := area.Stage(ctx, "u2", "b.bin", 0, []byte("ccc")); err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}

	names, err := area.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(names) != 2 || names[0] != "a.bin.part0000" || names[1] != "a.bin.part0001" {
		t.Fatalf("unexpected names %v", names)
	}

	if err := area.Unstage(ctx, h); err != nil {
		t.Fatalf("Unstage returned error: %v", err)
	}
	names, _ = area.List(ctx, "u1")
	if len(names) != 1 {
		t.Fatalf("expected one remaining chunk, got %v", names)
	}
}

func TestMinIOAreaWrapsStoreErrors(t *testing.T) {
	store := newFakeObjectStore()
	store.putErr = errors.New("bucket unreachable")
	area := NewMinIOArea(store, "staging", nil)

	if _, err := area.Stage(context.Background(), "u1", "a.bin", 0, []byte("x")); !errors.Is(err, ErrStaging) {
		t.Fatalf("expected ErrStaging, got %v", err)
	}

	store.putErr = nil
	store.listErr = errors.New("access denied")
	if _, err := area.List(context.Background(), "u1"); !errors.Is(err, ErrStaging) {
		t.Fatalf("expected ErrStaging from List, got %v", err)
	}
}

func TestMinIOAreaRejectsInvalidNames(t *testing.T) {
	area := NewMinIOArea(newFakeObjectStore(), "staging", nil)

	if _, err := area.Stage(context.Background(), "u1", "../x", 0, nil); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}
