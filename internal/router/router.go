package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/taskmarket/backend/api/handler"
)

type Handlers struct {
	Task    *apiHandler.TaskHandler
	Sync    *apiHandler.SyncHandler
	Profile *apiHandler.ProfileHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	r.GET("/api/v1/tasks/{id}/responses", authMiddleware(handlers.Task.GetResponses))
	r.POST("/api/v1/tasks/{id}/responses", authMiddleware(handlers.Task.RespondToTask))

	r.GET("/api/v1/sync", authMiddleware(handlers.Sync.Sync))

	return r
}
