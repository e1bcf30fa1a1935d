package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/handler"
	"github.com/mbeoliero/parley/internal/middleware"
)

// Handlers holds all HTTP handlers
type Handlers struct {
	Profile      *handler.ProfileHandler
	Conversation *handler.ConversationHandler
	Thread       *handler.ThreadHandler
	Message      *handler.MessageHandler
	Attachment   *handler.AttachmentHandler
}

// SetupRouter sets up all routes
func SetupRouter(r *route.Engine, handlers *Handlers, cfg *config.Config) {
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	auth := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer)

	profileGroup := r.Group("/profile", auth)
	{
		profileGroup.GET("/info", handlers.Profile.GetProfileInfo)
		profileGroup.GET("/:profile_id", handlers.Profile.GetProfileInfoById)
	}

	convGroup := r.Group("/conversation", auth)
	{
		convGroup.POST("/open", handlers.Conversation.OpenConversation)
		convGroup.GET("/list", handlers.Conversation.GetConversationList)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.POST("/deactivate", handlers.Conversation.Deactivate)
		convGroup.POST("/mark_read", handlers.Conversation.MarkRead)
		convGroup.POST("/msg/send", handlers.Message.SendConversationMessage)
		convGroup.GET("/msg/history", handlers.Message.GetConversationHistory)
	}

	threadGroup := r.Group("/thread", auth)
	{
		threadGroup.POST("/create", handlers.Thread.CreateThread)
		threadGroup.GET("/list", handlers.Thread.GetThreadList)
		threadGroup.GET("/info", handlers.Thread.GetThread)
		threadGroup.POST("/mark_read", handlers.Thread.MarkRead)
		threadGroup.POST("/msg/send", handlers.Message.SendThreadMessage)
		threadGroup.GET("/msg/history", handlers.Message.GetThreadHistory)
	}

	r.GET("/unread/summary", auth, handlers.Thread.GetUnreadSummary)
	r.POST("/attachment/upload", auth, handlers.Attachment.Upload)
}
