/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/hearth_tv/internal/config"
	"github.com/friendsincode/hearth_tv/internal/db"
	"github.com/friendsincode/hearth_tv/internal/events"
	"github.com/friendsincode/hearth_tv/internal/library"
	"github.com/friendsincode/hearth_tv/internal/logging"
	"github.com/friendsincode/hearth_tv/internal/playback"
	"github.com/friendsincode/hearth_tv/internal/player"
	"github.com/friendsincode/hearth_tv/internal/schedule"
	"github.com/friendsincode/hearth_tv/internal/server"
	"github.com/friendsincode/hearth_tv/internal/session"
	"github.com/friendsincode/hearth_tv/internal/settings"
	"github.com/friendsincode/hearth_tv/internal/telemetry"
	"github.com/friendsincode/hearth_tv/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hearthtv",
	Short: "Hearth TV - Unattended video playback appliance",
	Long:  "Hearth TV drives an external video player through a shuffled, time-boxed rotation with interludes, intro/outro bumpers, and an off-air fallback.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playback service",
	Long:  "Start the playback loop, the admin HTTP API, and the media watcher.",
	RunE:  runServe,
}

var importCmd = &cobra.Command{
	Use:   "import <manifest.json>",
	Short: "Import a mediascan manifest into the library index",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment)
	return nil
}

func newPlayer() player.Controller {
	opts := player.Options{
		ConnectAttempts: cfg.PlayerConnectAttempts,
		ConnectDelay:    cfg.PlayerConnectDelay,
		RequestTimeout:  cfg.PlayerRequestTimeout,
	}
	if cfg.PlayerBackend == config.PlayerVLC {
		return player.NewVLC(cfg.VLCAddr, opts, logger)
	}
	return player.NewMPV(cfg.MPVSocketPath, opts, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logger.Info().
		Str("version", version.Version).
		Str("backend", string(cfg.PlayerBackend)).
		Msg("Hearth TV starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "hearth-tv",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracer shutdown failed")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("database close failed")
		}
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	bus := events.NewBus()
	settingsSvc := settings.New(database, logger)
	librarySvc := library.New(database, logger)
	librarySvc.RefreshMetrics(context.Background())
	clock := session.New(settingsSvc, logger)
	sched := schedule.New(librarySvc, settingsSvc, clock, logger)
	sched.SetBufferSize(cfg.QueueBufferSize)

	controller := newPlayer()
	if err := controller.Connect(context.Background()); err != nil {
		// The playback loop keeps retrying; starting without the player up
		// is normal on boot.
		logger.Warn().Err(err).Msg("player not reachable yet")
	}
	defer func() {
		if err := controller.Disconnect(); err != nil {
			logger.Warn().Err(err).Msg("player disconnect failed")
		}
	}()

	if cfg.LogoEnabled {
		if err := controller.UpdateLogo(context.Background(), player.LogoConfig{
			Enabled:   true,
			Path:      cfg.LogoPath,
			MaxHeight: cfg.LogoMaxHeight,
			Align:     cfg.LogoAlign,
			OffsetX:   cfg.LogoOffsetX,
			OffsetY:   cfg.LogoOffsetY,
			Opacity:   cfg.LogoOpacity,
		}); err != nil {
			logger.Warn().Err(err).Msg("logo overlay setup failed")
		}
	}

	orch := playback.New(playback.Config{
		PollInterval:      cfg.PollInterval,
		StopRecheckDelay:  cfg.StopRecheckDelay,
		DisconnectBackoff: cfg.DisconnectBackoff,
	}, controller, sched, clock, librarySvc, librarySvc, settingsSvc, bus, logger)

	updates := version.NewChecker(logger)
	srv := server.New(cfg, orch, settingsSvc, librarySvc, bus, updates, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates.Start(ctx)
	defer updates.Stop()

	go func() {
		if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("playback loop exited")
		}
	}()

	watcher := library.NewWatcher(cfg.MediaRoot, 2*time.Second, bus, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("media watcher exited")
		}
	}()

	// A changed media root re-partitions the scheduler's snapshot so new
	// files join the rotation on the next session or rescan.
	libraryChanges := bus.Subscribe(events.EventLibraryChanged)
	go func() {
		for range libraryChanges {
			if err := orch.RefreshLibrary(ctx); err != nil {
				logger.Warn().Err(err).Msg("snapshot refresh after library change failed")
			}
		}
	}()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	cancel()

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := orch.Stop(timeoutCtx); err != nil {
		logger.Warn().Err(err).Msg("session stop on shutdown failed")
	}
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := metricsServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("metrics shutdown failed")
	}

	logger.Info().Msg("Hearth TV stopped")
	return nil
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	return mux
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	manifest, err := library.ReadManifest(args[0])
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		_ = db.Close(database)
	}()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	librarySvc := library.New(database, logger)
	result, err := librarySvc.ImportManifest(context.Background(), manifest)
	if err != nil {
		return fmt.Errorf("import manifest: %w", err)
	}

	fmt.Printf("imported: %d created, %d updated, %d pruned\n", result.Created, result.Updated, result.Pruned)
	return nil
}
