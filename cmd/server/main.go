// Package main is the entry point for the orchestrator: it wires the
// shared store, job queue, lock, scheduler, monitor, workers, workflow
// engine and admin control surface, then runs until an interrupt signal
// requests a graceful shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/scoutgrid/orchestrator/internal/admin"
	"github.com/scoutgrid/orchestrator/internal/archival"
	"github.com/scoutgrid/orchestrator/internal/config"
	"github.com/scoutgrid/orchestrator/internal/events"
	"github.com/scoutgrid/orchestrator/internal/jobs"
	"github.com/scoutgrid/orchestrator/internal/lock"
	"github.com/scoutgrid/orchestrator/internal/monitor"
	"github.com/scoutgrid/orchestrator/internal/monitorstate"
	"github.com/scoutgrid/orchestrator/internal/notify"
	"github.com/scoutgrid/orchestrator/internal/ratelimit"
	"github.com/scoutgrid/orchestrator/internal/scheduler"
	"github.com/scoutgrid/orchestrator/internal/schedulerstate"
	"github.com/scoutgrid/orchestrator/internal/store"
	"github.com/scoutgrid/orchestrator/internal/worker"
	"github.com/scoutgrid/orchestrator/internal/workflow/definition"
	"github.com/scoutgrid/orchestrator/internal/workflow/engine"
	"github.com/scoutgrid/orchestrator/internal/workflow/nodes"
	"github.com/scoutgrid/orchestrator/internal/workflow/registry"
	"github.com/scoutgrid/orchestrator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogFormat != "json",
	})
	log.Info().Strs("platforms", cfg.Platforms).Msg("starting orchestrator")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := store.Dial(ctx, cfg.StoreAddr, cfg.StorePassword, cfg.StoreDB)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.StoreAddr).Msg("failed to connect to shared store")
	}
	defer redisClient.Close()
	sharedStore := store.NewRedisStore(redisClient)
	log.Info().Str("addr", cfg.StoreAddr).Msg("connected to shared store")

	jobRepo := jobs.NewRepository(sharedStore)
	locks := lock.New(sharedStore, cfg.LockTTL)
	schedState := schedulerstate.New(sharedStore, cfg.OnSaleRatio)
	monState := monitorstate.New(sharedStore)
	bus := events.NewBus(log)

	defs, err := definition.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load workflow definitions")
	}

	mirror, err := definition.OpenMirror(cfg.DefinitionMirrorPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open workflow definition mirror, continuing without it")
	} else {
		defer mirror.Close()
		if err := mirror.Sync(ctx, defs.All()); err != nil {
			log.Error().Err(err).Msg("failed to sync workflow definition mirror")
		}
	}

	reg := registry.New()
	nodes.Wire(reg, nil, func(platform string) string {
		return fmt.Sprintf(cfg.PlatformAPIBaseURLTemplate, platform)
	})

	eng := engine.New(defs, reg, jobRepo, log)

	rateLimiter := ratelimit.New(5, time.Second, 10)
	eng.WithRateLimiter(rateLimiter)

	slackClient := notify.NewSlackClient(cfg.SlackWebhookURL, log)
	eng.WithNotifier(slackClient)
	eng.WithMonitorRecorder(monState)

	if cfg.ArchiveBucket != "" {
		archiver, err := archival.New(archival.Config{
			AccountID:       cfg.ArchiveAccountID,
			AccessKeyID:     cfg.ArchiveAccessKey,
			SecretAccessKey: cfg.ArchiveSecretKey,
			Bucket:          cfg.ArchiveBucket,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to wire thumbnail archival client, continuing without it")
		} else {
			eng.WithArchiver(archiver)
		}
	}

	sched := scheduler.New(scheduler.Config{
		Platforms:            cfg.Platforms,
		CheckInterval:        cfg.CheckInterval,
		InterPlatformDelay:   cfg.InterPlatformDelay,
		SamePlatformCooldown: cfg.SamePlatformCooldown,
		DefaultLimit:         cfg.DefaultLimit,
		DefaultBatchSize:     cfg.DefaultBatchSize,
		DefaultConcurrency:   cfg.DefaultConcurrency,
	}, jobRepo, schedState, locks, log).WithBus(bus)

	monTasks := make([]monitor.Task, 0, len(cfg.MonitorTasks))
	adminMonTasks := make([]admin.MonitorTaskInfo, 0, len(cfg.MonitorTasks))
	for _, t := range cfg.MonitorTasks {
		monTasks = append(monTasks, monitor.Task{ID: t.ID, Name: t.Name, URL: t.URL, Interval: t.Interval, Cron: t.Cron})
		adminMonTasks = append(adminMonTasks, admin.MonitorTaskInfo{ID: t.ID, Name: t.Name})
	}
	mon := monitor.New(monTasks, cfg.CheckInterval, jobRepo, monState, log).WithBus(bus)

	workers := make([]*worker.Worker, 0, len(cfg.Platforms))
	for _, platform := range cfg.Platforms {
		w := worker.New(worker.Config{Platform: platform}, jobRepo, locks, schedState, eng, log).WithBus(bus)
		workers = append(workers, w)
		go w.Run(ctx)
	}
	log.Info().Int("count", len(workers)).Msg("workers started")

	sched.Start(ctx)
	log.Info().Msg("scheduler started")

	mon.Start(ctx)
	log.Info().Msg("monitor started")

	adminSrv := admin.New(admin.Config{
		Platforms:      cfg.Platforms,
		MonitorTasks:   adminMonTasks,
		Jobs:           jobRepo,
		Locks:          locks,
		SchedulerState: schedState,
		MonitorState:   monState,
		Bus:            bus,
	}, log)

	httpServer := newAdminHTTPServer(cfg.AdminAddr, adminSrv.Handler())
	go func() {
		log.Info().Str("addr", cfg.AdminAddr).Msg("admin control surface listening")
		if err := httpServer.ListenAndServe(); err != nil && !isServerClosed(err) {
			log.Error().Err(err).Msg("admin server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sched.Stop()
	mon.Stop()
	for _, w := range workers {
		w.Stop()
	}
	for _, w := range workers {
		<-w.Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}

	log.Info().Msg("orchestrator stopped")
}

func newAdminHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

func isServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
