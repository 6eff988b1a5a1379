package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"classattend/internal/attendance"
	"classattend/internal/classroom"
	"classattend/internal/config"
	"classattend/internal/httpapi"
	"classattend/internal/httpmiddleware"
	"classattend/internal/logger"
	"classattend/internal/reports"
	"classattend/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.Default()
	if err := log.Initialize(cfg.LogDir, logger.LogLevel(cfg.LogLevel)); err != nil {
		log.Warnf("file logging disabled: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App, log *logger.Logger) error {
	ctx := context.Background()
	health := map[string]httpapi.HealthCheck{}

	var (
		classRepo  classroom.Repository
		attStore   attendance.Store
		reportRepo reports.Repository
	)
	switch cfg.StoreBackend {
	case "memory":
		log.Warnf("using in-memory store; data is lost on restart")
		classRepo = classroom.NewMemoryRepository()
		attStore = attendance.NewMemoryStore()
		reportRepo = reports.NewMemoryRepository()
	default:
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		health["db"] = db.Healthy
		classRepo = classroom.NewPostgresRepository(db.Client)
		attStore = attendance.NewRepository(db.Client)
		reportRepo = reports.NewPostgresRepository(db.Client)
	}

	var counter httpmiddleware.Counter = httpmiddleware.NewMemoryCounter()
	if cfg.RedisAddr != "" {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		health["redis"] = redisClient.Healthy
		counter = httpmiddleware.NewRedisCounter(redisClient.Client, "")
	}

	classes := classroom.NewService(classRepo, cfg.DefaultThreshold)
	att := attendance.NewService(classes, attStore, attendance.Options{
		SafetyBuffer:    cfg.SafetyBuffer,
		CountUnverified: cfg.CountUnverified,
	})
	reps := reports.NewService(reportRepo, classes, att)

	r := httpapi.NewRouter(httpapi.Deps{
		Config:        cfg,
		Classes:       classes,
		Attendance:    att,
		Reports:       reps,
		Log:           log,
		ReportLimiter: httpmiddleware.NewFixedWindow("reports", counter, cfg.ReportLimit, cfg.ReportWindow).GinMiddleware(),
		Health:        health,
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("starting server on :%s (store=%s)", cfg.HTTPPort, cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}

	log.Infof("server exited")
	return nil
}
