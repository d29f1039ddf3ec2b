package handlers

import (
	"context"
	"net/http"

	"gaggiuino_mcp"
	_ "gaggiuino_mcp/internal/docs"
	"gaggiuino_mcp/internal/logger"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// StatusSource reads the live machine status.
type StatusSource interface {
	GetSystemStatus(ctx context.Context) (gaggiuino_mcp.SystemStatus, error)
}

// Handler wires the HTTP transport: the MCP endpoint plus the operational
// routes around it.
type Handler struct {
	status  StatusSource
	mcp     http.Handler
	metrics http.Handler
	log     *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. mcpHandler,
// metrics and log may be nil.
func NewHandler(status StatusSource, mcpHandler, metrics http.Handler, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{status: status, mcp: mcpHandler, metrics: metrics, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	// Streamable MCP uses POST for calls, GET for the event stream and
	// DELETE to end a session.
	if h.mcp != nil {
		mcpHandler := gin.WrapH(h.mcp)
		router.POST("/mcp", mcpHandler)
		router.GET("/mcp", mcpHandler)
		router.DELETE("/mcp", mcpHandler)
	}

	router.GET("/ws/status", h.wsStatus)

	return router
}
