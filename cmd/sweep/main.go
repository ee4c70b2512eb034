// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	accountflag "github.com/someoneelse131/purfacted-sub003/internal/flag"
	"github.com/someoneelse131/purfacted-sub003/internal/ban"
	"github.com/someoneelse131/purfacted-sub003/internal/config"
	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/moderator"
	"github.com/someoneelse131/purfacted-sub003/internal/user"
)

// The sweep binary runs the periodic moderation maintenance pass and
// exits. It is driven by an external scheduler (cron, a k8s CronJob), not
// by an in-process timer, so a crashed run never wedges the API.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("sweep failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	provider := config.NewProvider(cfg)

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("database close error", "error", closeErr)
		}
	}()

	banHasher := ban.NewHasher(provider.Trust().BlocklistSalt)
	banSvc := ban.NewService(ban.NewRepository(db.DB), banHasher, provider)

	flagSvc := accountflag.NewService(
		accountflag.NewRepository(db.DB),
		banSvc,
		provider,
	)

	userRepo := user.NewRepository(db.DB)
	moderatorSvc := moderator.NewService(
		moderator.NewRepository(db.DB),
		userRepo,
		provider,
	)

	flagged, err := flagSvc.AutoFlagNegativeVetoUsers(ctx)
	if err != nil {
		return err
	}
	logger.Info("negative-veto sweep complete", "flagged", flagged)

	report, err := moderatorSvc.Reconcile(ctx)
	if err != nil {
		return err
	}
	logger.Info("moderator reconcile complete",
		"phase", report.Phase,
		"population", report.Population,
		"marked_inactive", report.MarkedInactive,
		"auto_demoted", report.AutoDemoted,
		"promoted", report.Promoted,
		"elected", report.Elected,
	)

	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
