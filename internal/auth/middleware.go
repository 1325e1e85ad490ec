package auth

import (
	"net/http"
	"strings"

	"github.com/abduss/chunkrelay/internal/apierr"
	"github.com/gin-gonic/gin"
)

const (
	// Challenge is sent with every 401.
	Challenge = `Basic realm="chunkrelay"`

	failureDetail = "Invalid username or password"

	subjectKey = "authSubject"
	methodKey  = "authMethod"

	MethodBasic  = "basic"
	MethodBearer = "bearer"
)

// Middleware accepts HTTP Basic credentials, or a bearer token when token
// authentication is enabled. Failed requests never reach the route handler.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")

		if token, ok := bearerToken(header); ok {
			if claims, err := service.ValidateToken(token); err == nil {
				authenticated(c, claims.Subject, MethodBearer)
				return
			}
		} else if username, password, ok := c.Request.BasicAuth(); ok && service.Verify(username, password) {
			authenticated(c, username, MethodBasic)
			return
		}

		c.Header("WWW-Authenticate", Challenge)
		apierr.Abort(c, http.StatusUnauthorized, failureDetail)
	}
}

func authenticated(c *gin.Context, subject, method string) {
	c.Set(subjectKey, subject)
	c.Set(methodKey, method)
	c.Next()
}

// Subject returns the authenticated username.
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}

// Method returns how the request authenticated: MethodBasic or MethodBearer.
func Method(c *gin.Context) string {
	return c.GetString(methodKey)
}

func bearerToken(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(header[7:]), true
}
