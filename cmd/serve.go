package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/api"
	"github.com/gardenbot/stock-watcher/internal/clock/system"
	"github.com/gardenbot/stock-watcher/internal/dispatcher"
	sha256hash "github.com/gardenbot/stock-watcher/internal/hash/sha256"
	"github.com/gardenbot/stock-watcher/internal/id/uuid"
	memoryqueue "github.com/gardenbot/stock-watcher/internal/queue/memory"
	"github.com/gardenbot/stock-watcher/internal/scheduler"
	"github.com/gardenbot/stock-watcher/internal/watcher"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Runs the stock watcher service",
		Long: `Starts the long-running service: a scheduler that checks the stock page
on a fixed interval, a worker pool that executes checks, and an HTTP API for
status, history, and manual checks.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	queue := memoryqueue.NewQueue(c.cfg.Watch.QueueDepth)
	hasher := sha256hash.New()
	clock := system.New()
	idGen := uuid.New()

	workerCfg := c.workerConfig(false)
	var workers []*watcher.Worker
	for i := 0; i < c.cfg.Watch.Concurrency; i++ {
		workers = append(workers, watcher.New(
			queue,
			c.store,
			c.blobStore,
			c.publisher,
			c.notifier,
			hasher,
			clock,
			idGen,
			c.probe,
			c.headless,
			c.detector,
			c.retry,
			workerCfg,
			logger.Named("watcher").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)
	sched := scheduler.New(c.cfg.Interval(), c.store, dispatch, idGen, clock, logger.Named("scheduler"))
	apiServer := api.NewServer(c.store, dispatch, idGen, clock, c.cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()
	go func() {
		logger.Info("scheduler started", zap.Duration("interval", c.cfg.Interval()))
		sched.Run(ctx)
	}()
	go func() {
		logger.Info("http server started", zap.Int("port", c.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
	return nil
}
