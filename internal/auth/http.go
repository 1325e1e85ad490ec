package auth

import (
	"errors"
	"net/http"

	"github.com/abduss/chunkrelay/internal/apierr"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts token issuance. The group must already run Middleware.
func RegisterRoutes(router *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	router.POST("/auth/token", handler.issueToken)
}

type httpHandler struct {
	service *Service
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (h *httpHandler) issueToken(c *gin.Context) {
	// a token may only be exchanged for the password, never for another token
	if Method(c) != MethodBasic {
		apierr.Abort(c, http.StatusForbidden, "Token issuance requires username and password")
		return
	}

	token, err := h.service.IssueToken(Subject(c))
	if err != nil {
		if errors.Is(err, ErrTokensDisabled) {
			apierr.Abort(c, http.StatusNotFound, "Token authentication is not enabled")
			return
		}
		apierr.Abort(c, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   token.ExpiresAt.Unix(),
	})
}
