// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabula/internal/crud"
	"tabula/internal/infrastructure/http/v1/handlers"
	"tabula/internal/infrastructure/http/v1/middleware"
	"tabula/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (used by health checks).
	Pool *pgxpool.Pool

	// Service implements the table operations.
	Service *crud.Service

	// Logger for request logging.
	Logger *logger.Logger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	tablesHandler := handlers.NewTablesHandler(handlers.NewBaseHandler(), cfg.Service)
	api := router.Group("/api/v1")
	{
		tables := api.Group("/tables")
		tables.GET("", tablesHandler.List)
		tables.GET("/:table", tablesHandler.View)
		tables.GET("/:table/form", tablesHandler.CreateForm)
		tables.GET("/:table/export", tablesHandler.Export)
		tables.GET("/:table/:key/form", tablesHandler.EditForm)
		tables.POST("/:table", tablesHandler.Create)
		tables.PUT("/:table/:key", tablesHandler.Update)
		tables.DELETE("/:table/:key", tablesHandler.Delete)
	}

	return router
}
