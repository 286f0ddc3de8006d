package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskbot/api/handler"
)

type Handlers struct {
	Auth      *apiHandler.AuthHandler
	Profile   *apiHandler.ProfileHandler
	Task      *apiHandler.TaskHandler
	Assistant *apiHandler.AssistantHandler
	Webhook   *apiHandler.WebhookHandler
	Health    *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Telegram delivers updates here; the handler checks the secret header.
	r.POST("/telegram/webhook", handlers.Webhook.Receive)

	r.POST("/api/v1/auth/session", handlers.Auth.Session)

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile/motivation", authMiddleware(handlers.Profile.SetMotivation))
	r.GET("/api/v1/admin/stats", authMiddleware(handlers.Profile.AdminStats))

	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.PUT("/api/v1/tasks/{id}/complete", authMiddleware(handlers.Task.CompleteTask))
	r.PUT("/api/v1/tasks/{id}/snooze", authMiddleware(handlers.Task.SnoozeTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))

	r.POST("/api/v1/ai", authMiddleware(handlers.Assistant.Handle))

	return r
}
