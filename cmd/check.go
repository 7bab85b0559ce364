package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gardenbot/stock-watcher/internal/clock/system"
	sha256hash "github.com/gardenbot/stock-watcher/internal/hash/sha256"
	"github.com/gardenbot/stock-watcher/internal/id/uuid"
	"github.com/gardenbot/stock-watcher/internal/stock"
	"github.com/gardenbot/stock-watcher/internal/watcher"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Runs a single stock check and exits",
		Long: `Performs one scrape of the stock page, sends an alert if any target seed
is in stock, and exits. Intended for cron-style scheduling; the alert
cooldown is skipped so every invocation reports what it found.`,
		RunE: runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	clock := system.New()
	idGen := uuid.New()

	checkID, err := idGen.NewID()
	if err != nil {
		return fmt.Errorf("generate check id: %w", err)
	}
	check := stock.Check{
		ID:        checkID,
		Status:    stock.CheckStatusQueued,
		Trigger:   stock.TriggerOneShot,
		Requested: clock.Now(),
	}
	if err := c.store.CreateCheck(ctx, check); err != nil {
		return fmt.Errorf("create check: %w", err)
	}

	worker := watcher.New(
		nil,
		c.store,
		c.blobStore,
		c.publisher,
		c.notifier,
		sha256hash.New(),
		clock,
		idGen,
		c.probe,
		c.headless,
		c.detector,
		c.retry,
		c.workerConfig(true),
		logger.Named("watcher"),
	)

	req := stock.CheckRequest{
		CheckID:   checkID,
		Trigger:   stock.TriggerOneShot,
		Submitted: check.Requested.Unix(),
	}
	if err := worker.RunCheck(ctx, req); err != nil {
		return fmt.Errorf("check %s: %w", checkID, err)
	}

	final, err := c.store.GetCheck(ctx, checkID)
	if err != nil {
		return fmt.Errorf("read check result: %w", err)
	}
	logger.Info("check finished",
		zap.String("check_id", checkID),
		zap.String("status", string(final.Status)),
		zap.Int("items_seen", final.Counters.ItemsSeen),
		zap.Int("targets_available", final.Counters.TargetsAvail),
	)
	return nil
}
