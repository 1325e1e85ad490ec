package repohost

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateProject(ctx context.Context, name string, namespaceID int) (Project, error) {
	args := m.Called(ctx, name, namespaceID)
	return args.Get(0).(Project), args.Error(1)
}

func (m *mockClient) ListGroupProjects(ctx context.Context, groupID int) ([]Project, error) {
	args := m.Called(ctx, groupID)
	projects, _ := args.Get(0).([]Project)
	return projects, args.Error(1)
}

func (m *mockClient) GetProject(ctx context.Context, projectID int) (Project, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(Project), args.Error(1)
}

func (m *mockClient) GetFile(ctx context.Context, projectID int, path, ref string) (FileHandle, error) {
	args := m.Called(ctx, projectID, path, ref)
	return args.Get(0).(FileHandle), args.Error(1)
}

func (m *mockClient) CreateFile(ctx context.Context, projectID int, path, branch, contentB64, message string) error {
	return m.Called(ctx, projectID, path, branch, contentB64, message).Error(0)
}

func (m *mockClient) UpdateFile(ctx context.Context, file FileHandle, branch, contentB64, message string) error {
	return m.Called(ctx, file, branch, contentB64, message).Error(0)
}

type fakeCache struct {
	values map[string][]byte
	sets   int
	dels   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.sets++
	f.values[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	f.dels++
	delete(f.values, key)
	return nil
}

const testGroup = 109704268

func TestUpsertFileCreatesWhenMissing(t *testing.T) {
	client := new(mockClient)
	service := NewService(client, testGroup, "main", nil)
	ctx := context.Background()
	content := []byte("0123456789")
	encoded := base64.StdEncoding.EncodeToString(content)

	client.On("GetFile", ctx, 7, "a.bin.part0000", "main").Return(FileHandle{}, ErrNotFound)
	client.On("CreateFile", ctx, 7, "a.bin.part0000", "main", encoded, "Add chunk a.bin.part0000").Return(nil)

	res, err := service.UpsertFile(ctx, 7, "a.bin.part0000", content)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "a.bin.part0000", res.Path)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "UpdateFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertFileUpdatesWhenPresent(t *testing.T) {
	client := new(mockClient)
	service := NewService(client, testGroup, "main", nil)
	ctx := context.Background()
	existing := FileHandle{ProjectID: 7, Path: "a.bin.part0000", Ref: "main", LastCommitID: "abc"}
	encoded := base64.StdEncoding.EncodeToString([]byte("new"))

	client.On("GetFile", ctx, 7, "a.bin.part0000", "main").Return(existing, nil)
	client.On("UpdateFile", ctx, existing, "main", encoded, "Update chunk a.bin.part0000").Return(nil)

	res, err := service.UpsertFile(ctx, 7, "a.bin.part0000", []byte("new"))
	require.NoError(t, err)
	assert.False(t, res.Created)
	client.AssertExpectations(t)
}

func TestUpsertFileSecondCreateReportsUpstreamFailure(t *testing.T) {
	client := new(mockClient)
	service := NewService(client, testGroup, "main", nil)
	ctx := context.Background()
	exists := &UpstreamError{Op: "create file", Status: 400, Message: "A file with this name already exists"}

	client.On("GetFile", ctx, 7, "a.bin.part0000", "main").Return(FileHandle{}, ErrNotFound)
	client.On("CreateFile", ctx, 7, "a.bin.part0000", "main", mock.Anything, mock.Anything).Return(exists)

	_, err := service.UpsertFile(ctx, 7, "a.bin.part0000", []byte("x"))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 400, upstream.Status)
}

func TestUpsertFileStopsOnLookupFailure(t *testing.T) {
	client := new(mockClient)
	service := NewService(client, testGroup, "main", nil)
	ctx := context.Background()
	boom := &UpstreamError{Op: "get file", Status: 503, Message: "unavailable"}

	client.On("GetFile", ctx, 7, "a.bin.part0000", "main").Return(FileHandle{}, boom)

	_, err := service.UpsertFile(ctx, 7, "a.bin.part0000", []byte("x"))
	assert.ErrorIs(t, err, boom)
	client.AssertNotCalled(t, "CreateFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRepositoryUsesGroupAndInvalidatesCache(t *testing.T) {
	client := new(mockClient)
	cache := newFakeCache()
	service := NewService(client, testGroup, "main", nil).WithCache(cache, time.Minute)
	ctx := context.Background()
	cache.values[service.cacheKey()] = []byte(`[]`)

	client.On("CreateProject", ctx, "demo", testGroup).Return(Project{ID: 7, Name: "demo"}, nil)

	project, err := service.CreateRepository(ctx, "  demo ")
	require.NoError(t, err)
	assert.Equal(t, 7, project.ID)
	assert.Equal(t, 1, cache.dels)
	assert.NotContains(t, cache.values, service.cacheKey())
}

func TestCreateRepositoryRejectsBlankName(t *testing.T) {
	service := NewService(new(mockClient), testGroup, "main", nil)

	_, err := service.CreateRepository(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestListRepositoriesServedFromCache(t *testing.T) {
	client := new(mockClient)
	cache := newFakeCache()
	service := NewService(client, testGroup, "main", nil).WithCache(cache, time.Minute)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	client.On("ListGroupProjects", ctx, testGroup).
		Return([]Project{{ID: 7, Name: "demo", WebURL: "https://gitlab.com/g/demo", CreatedAt: &created}}, nil).
		Once()

	first, err := service.ListRepositories(ctx)
	require.NoError(t, err)
	second, err := service.ListRepositories(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.sets)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.True(t, created.Equal(*second[0].CreatedAt))
	client.AssertNumberOfCalls(t, "ListGroupProjects", 1)
}

func TestListRepositoriesWithoutCachePropagatesErrors(t *testing.T) {
	client := new(mockClient)
	service := NewService(client, testGroup, "main", nil)
	ctx := context.Background()

	client.On("ListGroupProjects", ctx, testGroup).Return(nil, errors.New("dial tcp: timeout"))

	_, err := service.ListRepositories(ctx)
	assert.Error(t, err)
}
