package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/sendframe/sendframe/api/handlers"
	"github.com/sendframe/sendframe/api/middleware"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *repository.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))
	r.Use(middleware.RequestIDMiddleware())

	apiHandlers := handlers.InitHandlers(s, repos)

	// Health endpoint stays outside auth
	r.GET("/health", handlers.HealthCheck)

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(apikey))
	api.Use(middleware.OwnerContextMiddleware())
	api.Use(middleware.TracingMiddleware())
	{
		senders := api.Group("/senders")
		{
			senders.POST("", apiHandlers.Senders.Create())
			senders.GET("", apiHandlers.Senders.List())
			senders.DELETE("/:id", apiHandlers.Senders.Delete())
			senders.POST("/:id/bounces/check", apiHandlers.Bounces.Check())
			senders.GET("/:id/bounces", apiHandlers.Bounces.History())
		}

		templates := api.Group("/templates")
		{
			templates.POST("", apiHandlers.Templates.Create())
			templates.GET("", apiHandlers.Templates.List())
			templates.GET("/:id", apiHandlers.Templates.Get())
			templates.PUT("/:id", apiHandlers.Templates.Update())
			templates.DELETE("/:id", apiHandlers.Templates.Delete())
			templates.GET("/:id/variables", apiHandlers.Templates.Variables())
		}

		batches := api.Group("/batches")
		{
			batches.POST("", apiHandlers.Batches.Create())
			batches.GET("", apiHandlers.Batches.List())
			batches.GET("/:id", apiHandlers.Batches.Get())
			batches.GET("/:id/stream", apiHandlers.Batches.Stream())
			batches.POST("/:id/send", apiHandlers.Batches.SendChunk())
			batches.POST("/:id/recipients", apiHandlers.Batches.AddRecipients())
			batches.PATCH("/:id/recipients/:recipientId", apiHandlers.Batches.EditRecipient())
		}
	}
}
