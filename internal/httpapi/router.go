package httpapi

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/cognicore/tagvault/internal/httpapi/handlers"
	httpMW "github.com/cognicore/tagvault/internal/httpapi/middleware"
	"github.com/cognicore/tagvault/internal/logger"
)

type RouterConfig struct {
	TagHandler    *httpH.TagHandler
	HealthHandler *httpH.HealthHandler

	Logger         *logger.Logger
	AllowedOrigins []string
	// RateLimiter guards the write endpoints. Nil disables limiting.
	RateLimiter *httpMW.RateLimiter
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestID())
	r.Use(httpMW.RequestLogger(cfg.Logger))
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(httpMW.CORS(cfg.AllowedOrigins))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.TagHandler != nil {
			api.GET("/genres", cfg.TagHandler.ListGenres)
			api.GET("/categories", cfg.TagHandler.ListCategories)
		}
	}

	writes := api.Group("/")
	{
		if cfg.RateLimiter != nil {
			writes.Use(cfg.RateLimiter.Middleware())
		}

		if cfg.TagHandler != nil {
			writes.POST("/genres", cfg.TagHandler.IngestGenres)
			writes.POST("/capture", cfg.TagHandler.Capture)
		}
	}

	return r
}
