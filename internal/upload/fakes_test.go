package upload

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/abduss/chunkrelay/internal/metadata"
	"github.com/abduss/chunkrelay/internal/repohost"
	"github.com/abduss/chunkrelay/internal/staging"
)

type memoryStore struct {
	mu       sync.Mutex
	chunks   []metadata.ChunkRecord
	files    []metadata.FileRecord
	clock    time.Time
	chunkErr error
	fileErr  error
	sumErr   error
	listErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{clock: time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)}
}

func (s *memoryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memoryStore) RecordChunk(_ context.Context, rec metadata.ChunkRecord) (metadata.ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunkErr != nil {
		return metadata.ChunkRecord{}, s.chunkErr
	}
	rec.ID = int64(len(s.chunks) + 1)
	rec.UploadTimestamp = s.tick()
	rec.Status = metadata.StatusCompleted
	s.chunks = append(s.chunks, rec)
	return rec, nil
}

func (s *memoryStore) RecordFile(_ context.Context, rec metadata.FileRecord) (metadata.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileErr != nil {
		return metadata.FileRecord{}, s.fileErr
	}
	rec.ID = fmt.Sprintf("file-%d", len(s.files)+1)
	rec.UploadTimestamp = s.tick()
	rec.Status = metadata.StatusCompleted
	s.files = append(s.files, rec)
	return rec, nil
}

func (s *memoryStore) SumChunkSizes(_ context.Context, uploadID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sumErr != nil {
		return 0, s.sumErr
	}
	var total int64
	for _, c := range s.chunks {
		if c.UploadID == uploadID {
			total += c.ChunkSize
		}
	}
	return total, nil
}

func (s *memoryStore) ListFiles(_ context.Context) ([]metadata.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	files := append([]metadata.FileRecord{}, s.files...)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadTimestamp.After(files[j].UploadTimestamp)
	})
	return files, nil
}

func (s *memoryStore) ListChunks(_ context.Context, uploadID string) ([]metadata.ChunkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []metadata.ChunkRecord
	for _, c := range s.chunks {
		if c.UploadID == uploadID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) FindFileByUpload(_ context.Context, uploadID string) (metadata.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.files) - 1; i >= 0; i-- {
		if s.files[i].UploadID == uploadID {
			return s.files[i], nil
		}
	}
	return metadata.FileRecord{}, metadata.ErrFileNotFound
}

func (s *memoryStore) filesNamed(name string) []metadata.FileRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []metadata.FileRecord
	for _, f := range s.files {
		if f.OriginalFilename == name {
			out = append(out, f)
		}
	}
	return out
}

type fakeGateway struct {
	mu        sync.Mutex
	projects  map[int]repohost.Project
	files     map[string][]byte
	commits   []string
	upsertErr error
	lookupErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		projects: map[int]repohost.Project{7: {ID: 7, Name: "demo"}},
		files:    map[string][]byte{},
	}
}

func (g *fakeGateway) GetProject(_ context.Context, projectID int) (repohost.Project, error) {
	if g.lookupErr != nil {
		return repohost.Project{}, g.lookupErr
	}
	p, ok := g.projects[projectID]
	if !ok {
		return repohost.Project{}, fmt.Errorf("get project: %w", repohost.ErrNotFound)
	}
	return p, nil
}

func (g *fakeGateway) UpsertFile(_ context.Context, projectID int, path string, content []byte) (repohost.UpsertResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.upsertErr != nil {
		return repohost.UpsertResult{}, g.upsertErr
	}
	key := fmt.Sprintf("%d:%s", projectID, path)
	_, exists := g.files[key]
	g.files[key] = append([]byte(nil), content...)
	if exists {
		g.commits = append(g.commits, "update "+path)
	} else {
		g.commits = append(g.commits, "create "+path)
	}
	return repohost.UpsertResult{Path: path, Created: !exists}, nil
}

type harness struct {
	coordinator *Coordinator
	store       *memoryStore
	remote      *fakeGateway
	area        *staging.LocalArea
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	area, err := staging.NewLocalArea(filepath.Join(t.TempDir(), "chunks"), nil)
	if err != nil {
		t.Fatalf("NewLocalArea returned error: %v", err)
	}
	store := newMemoryStore()
	remote := newFakeGateway()
	return &harness{
		coordinator: NewCoordinator(area, remote, store, nil),
		store:       store,
		remote:      remote,
		area:        area,
	}
}

func chunk(n, total int, data string) ChunkInput {
	return ChunkInput{
		ProjectID:   7,
		Data:        []byte(data),
		ChunkNumber: n,
		TotalChunks: total,
		FileName:    "a.bin",
		UploadID:    "u1",
	}
}
