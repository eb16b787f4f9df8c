package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/draftforge/draftforge-backend/internal/handlers"
	"github.com/draftforge/draftforge-backend/internal/middleware"
)

type RouterConfig struct {
	CORSOrigins        []string
	AuthMiddleware     *middleware.AuthMiddleware
	HealthcheckHandler *handlers.HealthcheckHandler
	PlanHandler        *handlers.ContentPlanHandler
	RunHandler         *handlers.RunHandler
	SSEHandler         *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// SSE
	api.GET("/sse/stream", cfg.SSEHandler.Stream)

	// Plans
	api.POST("/plans", cfg.PlanHandler.CreatePlan)
	api.GET("/plans", cfg.PlanHandler.ListPlans)
	api.GET("/plans/:planID", cfg.PlanHandler.GetPlan)
	api.PUT("/plans/:planID", cfg.PlanHandler.UpdatePlan)
	api.DELETE("/plans/:planID", cfg.PlanHandler.DeletePlan)
	api.GET("/plans/:planID/status", cfg.PlanHandler.GetStatus)
	api.POST("/plans/:planID/process", cfg.PlanHandler.Execute)
	api.POST("/plans/:planID/retry", cfg.PlanHandler.Retry)

	// Runs
	api.POST("/plans/:planID/runs/:runID/status", cfg.RunHandler.SetRunStatus)
	api.PUT("/plans/:planID/runs/:runID/content", cfg.RunHandler.UpdateRunContent)
	api.POST("/plans/:planID/runs/:runID/validate", cfg.RunHandler.RerunValidation)

	return router
}
