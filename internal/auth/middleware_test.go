package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(service *Service, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api", Middleware(service))
	api.GET("/", func(c *gin.Context) {
		*hits++
		c.JSON(http.StatusOK, gin.H{"subject": Subject(c), "method": Method(c)})
	})
	RegisterRoutes(api, service)
	return router
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, ""), &hits)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, Challenge, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error": true, "detail": "Invalid username or password"}`, rec.Body.String())
	assert.Zero(t, hits, "route handler must not run")
}

func TestMiddlewareRejectsWrongPassword(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, ""), &hits)

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.SetBasicAuth("admin", "nope")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, hits)
}

func TestMiddlewareAcceptsBasic(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, ""), &hits)

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, hits)
	assert.JSONEq(t, `{"subject": "admin", "method": "basic"}`, rec.Body.String())
}

func TestTokenExchangeAndBearerAccess(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, "token-secret"), &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var token tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	assert.Equal(t, "bearer", token.TokenType)
	require.NotEmpty(t, token.AccessToken)

	req = httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject": "admin", "method": "bearer"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerRejectedWhenTokensDisabled(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, ""), &hits)

	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, hits)
}

func TestTokenEndpointDisabledWithoutSecret(t *testing.T) {
	hits := 0
	router := newProtectedRouter(newTestService(t, ""), &hits)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
