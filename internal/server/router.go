package server

import (
	"net/http"
	"time"

	"github.com/abduss/chunkrelay/internal/apierr"
	"github.com/abduss/chunkrelay/internal/auth"
	"github.com/abduss/chunkrelay/internal/config"
	"github.com/abduss/chunkrelay/internal/logger"
	"github.com/abduss/chunkrelay/internal/metrics"
	"github.com/abduss/chunkrelay/internal/repohost"
	"github.com/abduss/chunkrelay/internal/upload"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const apiVersion = "1.0.0"

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config       config.Config
	Logger       *zap.Logger
	Checks       []ReadinessCheck
	AuthService  *auth.Service
	Repositories *repohost.Service
	Uploads      *upload.Coordinator
}

// NewRouter builds a Gin engine with foundational middleware and routes.
// Everything under /api requires credentials.
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	apierr.UseRequestFieldNames()

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		deps.Logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		apierr.Abort(c, http.StatusInternalServerError, "Internal Server Error")
	}))
	router.Use(logger.Middleware(deps.Logger))
	router.Use(metrics.Middleware())
	if origins := deps.Config.CORS.AllowedOrigins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowCredentials: true,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Origin", "X-Requested-With", logger.CorrelationIDHeader},
			ExposeHeaders:    []string{logger.CorrelationIDHeader},
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(secureHeaders())

	router.NoRoute(func(c *gin.Context) {
		apierr.Abort(c, http.StatusNotFound, "Not Found")
	})

	registerHealthRoutes(router, deps.Checks)
	if path := deps.Config.Metrics.PrometheusPath; path != "" {
		metrics.Register(router, path)
	}

	api := router.Group("/api", auth.Middleware(deps.AuthService))
	api.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "File Upload System API", "version": apiVersion})
	})
	auth.RegisterRoutes(api, deps.AuthService)
	if deps.Repositories != nil {
		repohost.RegisterRoutes(api, deps.Repositories)
	}
	if deps.Uploads != nil {
		upload.RegisterRoutes(api, deps.Uploads)
	}

	return router
}
