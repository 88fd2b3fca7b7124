package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/database"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var (
	serveMigrate   bool
	serveAccessLog bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the dispatch loop and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "apply database migrations before starting")
	serveCmd.Flags().BoolVar(&serveAccessLog, "access-log", true, "log every HTTP request")
}

func serve(ctx context.Context) error {
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg

	if serveMigrate {
		if err := database.Migrate(rt.db, cfg.DatabaseDriver); err != nil {
			return err
		}
	}

	dispatcher := rt.dispatcher()

	var (
		kicks       service.KickScheduler
		asynqServer *asynq.Server
	)
	if uri := redisURI(cfg.RedisURI); uri != "" {
		connOpt, err := asynq.ParseRedisURI(uri)
		if err != nil {
			return fmt.Errorf("parsing REDIS_URI: %w", err)
		}

		client := asynq.NewClient(connOpt)
		defer client.Close()
		kicks = queue.NewKickScheduler(client)

		redisClient, err := queue.NewRedisClient(ctx, uri)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		dispatcher.WithLocker(queue.NewRedisTickLock(redisClient, ""))

		asynqServer = asynq.NewServer(connOpt, asynq.Config{
			Concurrency: 10,
		})
		mux := asynq.NewServeMux()
		queue.NewQueue(dispatcher).Register(mux)

		slog.Info("starting the asynq server")
		if err := asynqServer.Start(mux); err != nil {
			return fmt.Errorf("starting asynq server: %w", err)
		}
	} else {
		slog.Info("REDIS_URI not set, dispatch runs on the periodic tick only")
	}

	var media service.MediaService
	if cfg.R2.BucketName != "" {
		r2Client, err := service.NewR2Client(ctx, cfg.R2)
		if err != nil {
			return fmt.Errorf("creating R2 client: %w", err)
		}
		media = service.NewMediaService(service.NewR2Service(r2Client, cfg.R2))
	}

	app := api.NewApp(api.Options{
		SecretKey:  cfg.SecretKey,
		CookieName: cfg.CookieName,
		AccessLog:  serveAccessLog,
	}, api.Services{
		Posts:    service.NewPostService(rt.posts, rt.accounts, rt.history, rt.vault, rt.registry, kicks),
		Accounts: service.NewAccountService(rt.accounts, rt.vault, rt.registry),
		AI:       service.NewAIService(rt.keys, rt.vault, buildFacade(cfg)),
		Media:    media,
		Health:   rt.db.PingContext,
	})

	refreshTokenJob := job.NewTokenRefreshJob(rt.accounts, rt.vault, rt.registry)
	c := cron.New()
	if err := c.AddFunc(job.TokenRefreshSchedule, refreshTokenJob.RefreshTokens); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	if err := dispatcher.Start(context.Background()); err != nil {
		return err
	}

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("server is running", "addr", cfg.HTTPAddr, "providers", rt.registry.Providers())
		listenErr <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-listenErr:
		slog.Error("HTTP server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("failed to shut down HTTP server", "error", err)
	}
	if asynqServer != nil {
		asynqServer.Shutdown()
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("failed to stop dispatcher", "error", err)
	}

	slog.Info("server shutdown complete")
	return nil
}
