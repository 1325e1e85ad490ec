package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/abduss/chunkrelay/internal/apierr"
	"github.com/abduss/chunkrelay/internal/staging"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// RegisterRoutes mounts upload endpoints onto the router.
func RegisterRoutes(group *gin.RouterGroup, coordinator *Coordinator) {
	handler := &httpHandler{coordinator: coordinator}
	group.POST("/gitlab/upload-chunk/:projectID", handler.uploadChunk)
	group.GET("/files", handler.listFiles)
	group.GET("/uploads/:uploadID", handler.session)
}

type httpHandler struct {
	coordinator *Coordinator
}

type uploadChunkRequest struct {
	File        *multipart.FileHeader `form:"file" binding:"required"`
	ChunkNumber *int                  `form:"chunk_number" binding:"required,gte=0"`
	TotalChunks *int                  `form:"total_chunks" binding:"required,gte=1"`
	FileName    string                `form:"file_name" binding:"required,ne=.,ne=..,excludesall=/\\"`
	UploadID    string                `form:"upload_id" binding:"required,ne=.,ne=..,excludesall=/\\"`
}

func (h *httpHandler) uploadChunk(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Param("projectID"))
	if err != nil {
		apierr.Field(c, "project_id", "value is not a valid integer")
		return
	}

	var req uploadChunkRequest
	if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
		apierr.Validation(c, err)
		return
	}

	data, err := readPart(req.File)
	if err != nil {
		apierr.Abort(c, http.StatusInternalServerError, "Upload error: "+err.Error())
		return
	}

	result, err := h.coordinator.UploadChunk(c.Request.Context(), ChunkInput{
		ProjectID:   projectID,
		Data:        data,
		ContentType: req.File.Header.Get("Content-Type"),
		ChunkNumber: *req.ChunkNumber,
		TotalChunks: *req.TotalChunks,
		FileName:    req.FileName,
		UploadID:    req.UploadID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidChunk), errors.Is(err, staging.ErrInvalidName):
			apierr.Field(c, "body", err.Error())
		case errors.Is(err, ErrProjectNotFound):
			apierr.Abort(c, http.StatusNotFound, fmt.Sprintf("Project %d not found", projectID))
		default:
			apierr.Abort(c, http.StatusInternalServerError, "Upload error: "+err.Error())
		}
		return
	}

	resp := gin.H{
		"success":           true,
		"message":           result.Message(),
		"chunk_number":      result.ChunkNumber,
		"total_chunks":      result.TotalChunks,
		"gitlab_chunk_path": result.RemotePath,
		"completed":         result.Completed,
	}
	if result.Completed {
		resp["postgres_doc_id"] = result.FileID
	}
	if result.Degraded() {
		resp["metadata_degraded"] = true
	}
	c.JSON(http.StatusOK, resp)
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded chunk: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read uploaded chunk: %w", err)
	}
	return data, nil
}

func (h *httpHandler) listFiles(c *gin.Context) {
	files, err := h.coordinator.ListFiles(c.Request.Context())
	if err != nil {
		apierr.Abort(c, http.StatusInternalServerError, "Error retrieving files: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *httpHandler) session(c *gin.Context) {
	view, err := h.coordinator.Session(c.Request.Context(), c.Param("uploadID"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidChunk):
			apierr.Field(c, "upload_id", err.Error())
		case errors.Is(err, ErrSessionNotFound):
			apierr.Abort(c, http.StatusNotFound, "Upload not found")
		default:
			apierr.Abort(c, http.StatusInternalServerError, "Error retrieving upload: "+err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, view)
}
