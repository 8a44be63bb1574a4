package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ourdates/internal/auth"
	"ourdates/internal/config"
	"ourdates/internal/couple"
	"ourdates/internal/dates"
	"ourdates/internal/db"
	httpx "ourdates/internal/http"
	"ourdates/internal/jobs"
	"ourdates/internal/logging"
	"ourdates/internal/realtime"
	"ourdates/internal/storage"
)

func main() {
	if err := run(); err != nil {
		logging.New(os.Stderr, "error", "text").Error(context.Background(), "fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	photos, err := storage.NewS3(ctx, storage.Config{
		Endpoint:      cfg.S3.Endpoint,
		Region:        cfg.S3.Region,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
		Bucket:        cfg.S3.Bucket,
		PublicBaseURL: cfg.S3.PublicBaseURL,
	})
	if err != nil {
		return err
	}

	hub := realtime.NewHub(log.With("component", "hub"))
	datesSvc := &dates.Service{DB: gdb, PhotoKey: photos.KeyFromURL}

	// postgres emits changes from a trigger; everything else publishes
	// in-process after commit
	source := cfg.RealtimeSource
	if source == "auto" {
		source = "local"
		if db.IsPostgres(cfg.DatabaseURL) {
			source = "postgres"
		}
	}
	switch source {
	case "postgres":
		listener := &realtime.PGListener{DSN: cfg.DatabaseURL, Hub: hub, Log: log.With("component", "pglistener")}
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error(ctx, "change listener stopped", "err", err)
			}
		}()
	default:
		datesSvc.Notifier = hub
	}
	log.Info(ctx, "realtime source", "source", source)

	couples, err := couple.NewService(gdb)
	if err != nil {
		return err
	}
	couples.PhotoKey = photos.KeyFromURL

	jwtSvc := auth.NewJWT(cfg.JWTSecret)
	r := httpx.NewRouter(httpx.Deps{
		Config:  cfg,
		DB:      gdb,
		JWT:     jwtSvc,
		Log:     log,
		Dates:   datesSvc,
		Couples: couples,
		Photos:  photos,
		Hub:     hub,
	})

	// worker
	worker := &jobs.Worker{
		ID:       "worker-1",
		Repo:     &jobs.Repo{DB: gdb},
		Photos:   photos,
		Log:      log.With("component", "worker"),
		Interval: cfg.WorkerPollInterval,
		Permanent: func(err error) bool {
			return errors.Is(err, storage.ErrInvalidURL)
		},
	}
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
	case err := <-errCh:
		return err
	}

	log.Info(ctx, "shutting down")
	cancel()
	// close open change streams
	hub.Reset()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
