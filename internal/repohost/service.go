package repohost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/chunkrelay/internal/metrics"
	"go.uber.org/zap"
)

// Service exposes repository operations scoped to one parent group.
type Service struct {
	client  Client
	groupID int
	branch  string
	log     *zap.Logger

	cache    ListCache
	cacheTTL time.Duration
}

// NewService constructs a gateway service committing to branch.
func NewService(client Client, groupID int, branch string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		client:  client,
		groupID: groupID,
		branch:  branch,
		log:     log,
	}
}

// WithCache enables caching of the repository listing for ttl.
func (s *Service) WithCache(cache ListCache, ttl time.Duration) *Service {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

func (s *Service) cacheKey() string {
	return fmt.Sprintf("chunkrelay:repositories:%d", s.groupID)
}

// CreateRepository creates a private, readme-initialised project under the group.
func (s *Service) CreateRepository(ctx context.Context, name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, ErrInvalidName
	}

	project, err := s.client.CreateProject(ctx, name, s.groupID)
	if err != nil {
		s.failed("create_project", err)
		return Project{}, err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, s.cacheKey()); err != nil {
			s.log.Warn("invalidate repository cache", zap.Error(err))
		}
	}

	s.log.Info("repository created", zap.Int("project_id", project.ID), zap.String("name", project.Name))
	return project, nil
}

// ListRepositories returns every project in the group.
func (s *Service) ListRepositories(ctx context.Context) ([]Project, error) {
	if s.cache != nil {
		if projects, ok := s.cachedList(ctx); ok {
			return projects, nil
		}
	}

	projects, err := s.client.ListGroupProjects(ctx, s.groupID)
	if err != nil {
		s.failed("list_projects", err)
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(projects); err == nil {
			if err := s.cache.Set(ctx, s.cacheKey(), encoded, s.cacheTTL); err != nil {
				s.log.Warn("store repository cache", zap.Error(err))
			}
		}
	}
	return projects, nil
}

func (s *Service) cachedList(ctx context.Context) ([]Project, bool) {
	encoded, ok, err := s.cache.Get(ctx, s.cacheKey())
	if err != nil {
		s.log.Warn("read repository cache", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var projects []Project
	if err := json.Unmarshal(encoded, &projects); err != nil {
		s.log.Warn("decode repository cache", zap.Error(err))
		return nil, false
	}
	return projects, true
}

// GetProject resolves a project by id.
func (s *Service) GetProject(ctx context.Context, projectID int) (Project, error) {
	project, err := s.client.GetProject(ctx, projectID)
	if err != nil {
		s.failed("get_project", err)
		return Project{}, err
	}
	return project, nil
}

// UpsertFile writes content to path on the configured branch, updating the
// file when it exists and creating it otherwise. Two concurrent writers that
// both see the file missing race on create; the loser gets the host's error.
func (s *Service) UpsertFile(ctx context.Context, projectID int, path string, content []byte) (UpsertResult, error) {
	encoded := base64.StdEncoding.EncodeToString(content)

	existing, err := s.client.GetFile(ctx, projectID, path, s.branch)
	switch {
	case err == nil:
		if err := s.client.UpdateFile(ctx, existing, s.branch, encoded, "Update chunk "+path); err != nil {
			s.failed("update_file", err)
			return UpsertResult{}, err
		}
		return UpsertResult{Path: path, Created: false}, nil

	case errors.Is(err, ErrNotFound):
		if err := s.client.CreateFile(ctx, projectID, path, s.branch, encoded, "Add chunk "+path); err != nil {
			s.failed("create_file", err)
			return UpsertResult{}, err
		}
		return UpsertResult{Path: path, Created: true}, nil

	default:
		s.failed("get_file", err)
		return UpsertResult{}, err
	}
}

func (s *Service) failed(op string, err error) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	metrics.GatewayError(op)
	s.log.Warn("repository host call failed", zap.String("operation", op), zap.Error(err))
}
