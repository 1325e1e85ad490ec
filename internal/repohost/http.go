package repohost

import (
	"errors"
	"net/http"
	"time"

	"github.com/abduss/chunkrelay/internal/apierr"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RegisterRoutes mounts repository endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/gitlab/create-repository", handler.createRepository)
	group.GET("/gitlab/repositories", handler.listRepositories)
}

type httpHandler struct {
	service *Service
}

type createRepositoryRequest struct {
	RepoName string `form:"repo_name" binding:"required"`
}

type repositoryView struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	CreatedAt *time.Time `json:"created_at"`
}

func (h *httpHandler) createRepository(c *gin.Context) {
	var req createRepositoryRequest
	if err := c.ShouldBindWith(&req, binding.Form); err != nil {
		apierr.Validation(c, err)
		return
	}

	project, err := h.service.CreateRepository(c.Request.Context(), req.RepoName)
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.Is(err, ErrInvalidName):
			apierr.Field(c, "repo_name", "field required")
		case errors.As(err, &upstream) && upstream.Rejected():
			apierr.Abort(c, http.StatusBadRequest, "Failed to create repository: "+upstream.Message)
		default:
			apierr.Abort(c, http.StatusInternalServerError, "Unexpected error: "+err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"project_id":   project.ID,
		"project_name": project.Name,
		"repo_url":     project.WebURL,
		"clone_url":    project.CloneURL,
	})
}

func (h *httpHandler) listRepositories(c *gin.Context) {
	projects, err := h.service.ListRepositories(c.Request.Context())
	if err != nil {
		apierr.Abort(c, http.StatusInternalServerError, "Error listing repositories: "+err.Error())
		return
	}

	repositories := make([]repositoryView, 0, len(projects))
	for _, p := range projects {
		repositories = append(repositories, repositoryView{
			ID:        p.ID,
			Name:      p.Name,
			URL:       p.WebURL,
			CreatedAt: p.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "repositories": repositories})
}
