package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/AmyLu0828/the-resume-hub/internal/compiler"
	"github.com/AmyLu0828/the-resume-hub/internal/polish"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
	"github.com/AmyLu0828/the-resume-hub/internal/storage"
	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	asynqClient *asynq.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	sessions *session.Manager,
	polisher *polish.Polisher,
	comp *compiler.Compiler,
	templates *template.Store,
	clamdAddr string,
) {
	sessionHandler := NewSessionHandler(sessions, logger)
	polishHandler := NewPolishHandler(sessions, polisher, redisClient, logger)
	compileHandler := NewCompileHandler(sessions, comp, db, asynqClient, storageClient, logger)
	templateHandler := NewTemplateHandler(templates, logger, clamdAddr)
	wsHandler := NewWsHandler(redisClient, sessions, logger, nil)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		sessionGroup := v1.Group("/sessions")
		{
			sessionGroup.POST("", sessionHandler.CreateSession)
			sessionGroup.GET("/:id/document", sessionHandler.GetDocument)
			sessionGroup.POST("/:id/updates", sessionHandler.ApplyUpdate)
			sessionGroup.POST("/:id/submit", sessionHandler.Submit)
			sessionGroup.POST("/:id/polish", polishHandler.Polish)
			sessionGroup.POST("/:id/compile", compileHandler.Compile)
			sessionGroup.POST("/:id/finalize", compileHandler.Finalize)
		}

		v1.GET("/jobs/:id", compileHandler.GetJob)

		templateGroup := v1.Group("/templates")
		{
			templateGroup.POST("/acquire", templateHandler.Acquire)
			templateGroup.POST("/reset", templateHandler.Reset)
			templateGroup.POST("/upload", templateHandler.Upload)
		}
	}
}
