package repohost

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

const pageSize = 100

// Client is the repository host API the service depends on.
type Client interface {
	CreateProject(ctx context.Context, name string, namespaceID int) (Project, error)
	ListGroupProjects(ctx context.Context, groupID int) ([]Project, error)
	GetProject(ctx context.Context, projectID int) (Project, error)
	GetFile(ctx context.Context, projectID int, path, ref string) (FileHandle, error)
	CreateFile(ctx context.Context, projectID int, path, branch, contentB64, message string) error
	UpdateFile(ctx context.Context, file FileHandle, branch, contentB64, message string) error
}

// GitLabClient implements Client over the GitLab REST API.
type GitLabClient struct {
	api *gitlab.Client
}

// NewGitLabClient authenticates with a personal or group access token.
func NewGitLabClient(baseURL, token string, opts ...gitlab.ClientOptionFunc) (*GitLabClient, error) {
	opts = append([]gitlab.ClientOptionFunc{gitlab.WithBaseURL(baseURL)}, opts...)
	api, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gitlab client: %w", err)
	}
	return &GitLabClient{api: api}, nil
}

func (c *GitLabClient) CreateProject(ctx context.Context, name string, namespaceID int) (Project, error) {
	p, resp, err := c.api.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:                 gitlab.Ptr(name),
		NamespaceID:          gitlab.Ptr(namespaceID),
		Visibility:           gitlab.Ptr(gitlab.PrivateVisibility),
		InitializeWithReadme: gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return Project{}, translate("create project", resp, err)
	}
	return toProject(p), nil
}

func (c *GitLabClient) ListGroupProjects(ctx context.Context, groupID int) ([]Project, error) {
	opt := &gitlab.ListGroupProjectsOptions{
		ListOptions: gitlab.ListOptions{PerPage: pageSize, Page: 1},
	}

	projects := []Project{}
	for {
		page, resp, err := c.api.Groups.ListGroupProjects(groupID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, translate("list group projects", resp, err)
		}
		for _, p := range page {
			projects = append(projects, toProject(p))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return projects, nil
}

func (c *GitLabClient) GetProject(ctx context.Context, projectID int) (Project, error) {
	p, resp, err := c.api.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return Project{}, translate("get project", resp, err)
	}
	return toProject(p), nil
}

func (c *GitLabClient) GetFile(ctx context.Context, projectID int, path, ref string) (FileHandle, error) {
	f, resp, err := c.api.RepositoryFiles.GetFile(projectID, path, &gitlab.GetFileOptions{
		Ref: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return FileHandle{}, translate("get file", resp, err)
	}
	return FileHandle{
		ProjectID:    projectID,
		Path:         f.FilePath,
		Ref:          f.Ref,
		BlobID:       f.BlobID,
		LastCommitID: f.LastCommitID,
	}, nil
}

func (c *GitLabClient) CreateFile(ctx context.Context, projectID int, path, branch, contentB64, message string) error {
	_, resp, err := c.api.RepositoryFiles.CreateFile(projectID, path, &gitlab.CreateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Encoding:      gitlab.Ptr("base64"),
		Content:       gitlab.Ptr(contentB64),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return translate("create file", resp, err)
	}
	return nil
}

func (c *GitLabClient) UpdateFile(ctx context.Context, file FileHandle, branch, contentB64, message string) error {
	_, resp, err := c.api.RepositoryFiles.UpdateFile(file.ProjectID, file.Path, &gitlab.UpdateFileOptions{
		Branch:        gitlab.Ptr(branch),
		Encoding:      gitlab.Ptr("base64"),
		Content:       gitlab.Ptr(contentB64),
		CommitMessage: gitlab.Ptr(message),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return translate("update file", resp, err)
	}
	return nil
}

func toProject(p *gitlab.Project) Project {
	if p == nil {
		return Project{}
	}
	return Project{
		ID:        p.ID,
		Name:      p.Name,
		WebURL:    p.WebURL,
		CloneURL:  p.HTTPURLToRepo,
		CreatedAt: p.CreatedAt,
	}
}

// translate maps client errors onto ErrNotFound or *UpstreamError. Context
// errors are passed through so callers can tell a cancelled request apart.
func translate(op string, resp *gitlab.Response, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	message := err.Error()
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		message = errResp.Message
	}
	return &UpstreamError{Op: op, Status: status, Message: message}
}
