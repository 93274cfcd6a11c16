package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskmarket/backend/api/handler"
	"github.com/taskmarket/backend/internal/config"
	"github.com/taskmarket/backend/internal/infrastructure/monitor"
	"github.com/taskmarket/backend/internal/infrastructure/notify"
	pgInfra "github.com/taskmarket/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskmarket/backend/internal/infrastructure/redis"
	"github.com/taskmarket/backend/internal/middleware"
	"github.com/taskmarket/backend/internal/router"
	"github.com/taskmarket/backend/internal/services"
	"github.com/taskmarket/backend/internal/services/lifecycle"
	"github.com/taskmarket/backend/pkg/httpcontext"
	"github.com/taskmarket/backend/pkg/logger"
	"github.com/taskmarket/backend/repository/postgres"
	redisRepo "github.com/taskmarket/backend/repository/redis"
	profileUC "github.com/taskmarket/backend/usecase/profile"
	syncUC "github.com/taskmarket/backend/usecase/sync"
	taskUC "github.com/taskmarket/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	notifyQueue, err := notify.Open(cfg.Notify.Path, "notifications")
	if err != nil {
		zapLogger.Fatal("failed to open notification queue", zap.Error(err))
	}
	manager.Register("notify_queue", func(ctx context.Context) error {
		return notifyQueue.Close()
	})

	mon := monitor.New(pool, redisClient, notifyQueue, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	responseRepo := postgres.NewResponseRepository(pool)
	changeLogRepo := postgres.NewChangeLogRepository(pool)
	syncCursor := redisRepo.NewSyncCursorCache(redisClient)

	dispatcher := services.NewNotifyDispatcher(
		notifyQueue,
		zapLogger,
		services.DispatcherConfig{
			Interval:       cfg.Notify.DrainInterval,
			BatchSize:      cfg.Notify.BatchSize,
			MaxRetries:     cfg.Notify.MaxRetry,
			Parallelism:    cfg.Notify.Parallelism,
			DeliverTimeout: cfg.Notify.DeliverTimeout,
			Retention:      time.Duration(cfg.Notify.RetentionHours) * time.Hour,
		},
	)
	dispatcher.Start()
	manager.Register("notify_dispatcher", func(ctx context.Context) error {
		dispatcher.Stop(ctx)
		return nil
	})

	notifyBridge := services.NewNotifyBridge(dispatcher, userRepo, zapLogger)

	taskUseCase := taskUC.New(taskRepo, responseRepo, changeLogRepo, syncCursor, notifyBridge, zapLogger)
	syncUseCase := syncUC.New(changeLogRepo, syncCursor, zapLogger)
	profileUseCase := profileUC.New(userRepo, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Sync:    apiHandler.NewSyncHandler(syncUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
