package api

import (
	"net/http"

	"thinkwrapper-backend/internal/auth/delivery"
	authUsecase "thinkwrapper-backend/internal/auth/usecase"
	billingDelivery "thinkwrapper-backend/internal/billing/delivery"
	nlDelivery "thinkwrapper-backend/internal/newsletter/delivery"
	taskDelivery "thinkwrapper-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, newsletterHandler *nlDelivery.NewsletterHandler, taskHandler *taskDelivery.TaskHandler, webhookHandler *billingDelivery.WebhookHandler) {
	authHandler := delivery.NewAuthHandler(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
		}

		// Newsletter routes (protected)
		newsletters := api.Group("/newsletters")
		newsletters.Use(delivery.AuthMiddleware(authUsecase))
		{
			newsletters.GET("", newsletterHandler.GetNewsletters)
			newsletters.POST("", newsletterHandler.CreateNewsletter)
			newsletters.GET("/:id", newsletterHandler.GetNewsletterByID)
			newsletters.PUT("/:id", newsletterHandler.UpdateNewsletter)
			newsletters.DELETE("/:id", newsletterHandler.DeactivateNewsletter)
			newsletters.GET("/:id/issues", newsletterHandler.GetIssues)
			newsletters.GET("/:id/issues/:issueId", newsletterHandler.GetIssueByID)
		}

		// Task routes (protected) - on-demand generation and status polling
		tasks := api.Group("/tasks")
		tasks.Use(delivery.AuthMiddleware(authUsecase))
		{
			tasks.POST("/generate", taskHandler.SubmitGenerate)
			tasks.GET("/:id", taskHandler.GetStatus)
		}

		// Webhook routes (signature-verified, no session auth)
		webhooks := api.Group("/webhooks")
		{
			webhooks.POST("/paddle", webhookHandler.HandlePaddle)
		}

		// Settings routes - Runtime configuration
		settings := api.Group("/settings")
		settings.Use(delivery.AuthMiddleware(authUsecase))
		{
			settings.GET("/ollama", GetOllamaSettings)
			settings.PUT("/ollama", UpdateOllamaSettings)
			settings.POST("/ollama/test", TestOllamaConnection)
		}
	}
}
