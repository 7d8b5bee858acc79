package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"feedsync/internal/app/feed"
	"feedsync/internal/app/health"
	"feedsync/internal/middleware"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(logger *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())
	return &Router{Engine: engine}
}

func (r *Router) RegisterHealthRoutes(h health.Handler) {
	health.RegisterRoutes(r.Engine.Group("/api"), h)
}

func (r *Router) RegisterFeedRoutes(h feed.Handler) {
	feed.RegisterRoutes(r.Engine.Group("/api"), h)
}
