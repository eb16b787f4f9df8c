package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftforge/draftforge-backend/internal/config"
	"github.com/draftforge/draftforge-backend/internal/db"
	"github.com/draftforge/draftforge-backend/internal/handlers"
	"github.com/draftforge/draftforge-backend/internal/logger"
	"github.com/draftforge/draftforge-backend/internal/middleware"
	"github.com/draftforge/draftforge-backend/internal/repos"
	"github.com/draftforge/draftforge-backend/internal/server"
	"github.com/draftforge/draftforge-backend/internal/services"
	"github.com/draftforge/draftforge-backend/internal/sse"
	"github.com/draftforge/draftforge-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	planRepo := repos.NewContentPlanRepo(thePG, log)
	itemRepo := repos.NewContentItemRepo(thePG, log)

	// SSE
	hub := sse.NewSSEHub(log)

	// Services
	log.Info("Setting up services...")
	aiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Fatal("OpenAI client init failed", "error", err)
	}
	researchSvc := services.NewResearchService(log, aiClient)
	generationSvc := services.NewGenerationService(log, aiClient)
	validationSvc := services.NewValidationService(log, aiClient)
	pipelineSvc := services.NewContentPipelineService(thePG, log, planRepo, itemRepo, researchSvc, generationSvc, validationSvc)
	planSvc := services.NewContentPlanService(thePG, log, planRepo, cfg.Pipeline)
	runManagerSvc := services.NewRunManagerService(thePG, log, planRepo, itemRepo, validationSvc)

	// Dispatcher
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	handler := services.NewPipelineJobHandler(log, pipelineSvc, hub)
	var dispatcher services.Dispatcher
	var redisDispatcher interface{ Wait() }
	switch cfg.Queue.Mode {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
		if err := rdb.Ping(workerCtx).Err(); err != nil {
			log.Fatal("Redis init failed", "addr", cfg.Queue.RedisAddr, "error", err)
		}
		rd := services.NewRedisDispatcher(log, rdb, cfg.Queue.Key, cfg.Queue.Workers, handler)
		rd.StartWorkers(workerCtx)
		dispatcher = rd
		redisDispatcher = rd
	default:
		dispatcher = services.NewInlineDispatcher(log, handler)
	}
	executionSvc := services.NewExecutionService(log, planRepo, dispatcher, hub)

	// Handlers
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)
	healthcheckHandler := handlers.NewHealthcheckHandler()
	planHandler := handlers.NewContentPlanHandler(log, planSvc, runManagerSvc, executionSvc)
	runHandler := handlers.NewRunHandler(log, runManagerSvc)
	sseHandler := handlers.NewSSEHandler(log, hub)

	// Router
	router := server.NewRouter(server.RouterConfig{
		CORSOrigins:        cfg.CORSOrigins,
		AuthMiddleware:     authMiddleware,
		HealthcheckHandler: healthcheckHandler,
		PlanHandler:        planHandler,
		RunHandler:         runHandler,
		SSEHandler:         sseHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("Server listening", "port", cfg.Port, "queue_mode", dispatcher.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", "error", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain queue workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
	stopWorkers()
	if redisDispatcher != nil {
		redisDispatcher.Wait()
	}
	log.Info("Shutdown complete")
}
