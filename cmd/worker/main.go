package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"classattend/internal/attendance"
	"classattend/internal/classroom"
	"classattend/internal/config"
	"classattend/internal/logger"
	"classattend/internal/queue"
	"classattend/internal/reminder"
	"classattend/internal/store"
)

// Worker runs the reminder job on a schedule and delivers the notices it
// queues.
func main() {
	cfg := config.Load()
	log := logger.Default()
	if err := log.Initialize(cfg.LogDir, logger.LogLevel(cfg.LogLevel)); err != nil {
		log.Warnf("file logging disabled: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	var (
		classRepo classroom.Repository
		attStore  attendance.Store
	)
	if cfg.StoreBackend == "memory" {
		log.Warnf("using in-memory store; only useful together with an in-process api")
		classRepo = classroom.NewMemoryRepository()
		attStore = attendance.NewMemoryStore()
	} else {
		db, err := store.NewDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		classRepo = classroom.NewPostgresRepository(db.Client)
		attStore = attendance.NewRepository(db.Client)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		redisClient := store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	classes := classroom.NewService(classRepo, cfg.DefaultThreshold)
	att := attendance.NewService(classes, attStore, attendance.Options{
		SafetyBuffer:    cfg.SafetyBuffer,
		CountUnverified: cfg.CountUnverified,
	})
	job := reminder.NewJob(classes, att, q, log)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(cfg.ReminderSchedule, func() {
		runCtx, done := context.WithTimeout(ctx, 10*time.Minute)
		defer done()
		if _, err := job.Run(runCtx); err != nil {
			log.Errorf("reminder run failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid reminder schedule %q: %v", cfg.ReminderSchedule, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Infof("worker started, reminders on %q", cfg.ReminderSchedule)
	n := reminder.Deliver(ctx, messages, reminder.LogNotifier{Log: log}, log)
	log.Infof("worker stopped after delivering %d notices", n)
}
