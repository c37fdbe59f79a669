package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/weatherbot/config"
	"github.com/alejandrodnm/weatherbot/internal/adapters/notify"
	"github.com/alejandrodnm/weatherbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/weatherbot/internal/adapters/storage"
	"github.com/alejandrodnm/weatherbot/internal/domain"
	"github.com/alejandrodnm/weatherbot/internal/engine"
	"github.com/alejandrodnm/weatherbot/internal/portfolio"
	"github.com/alejandrodnm/weatherbot/internal/scorer"
	"github.com/alejandrodnm/weatherbot/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full candidate table per cycle (default: compact 1-line)")
	autoStart := flag.Bool("start", false, "start trading immediately (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("weatherbot starting",
		"config", *configPath,
		"interval", cfg.MonitorInterval(),
		"cities", len(cfg.Scan.Cities),
		"capital", cfg.Strategy.InitialCapital,
		"web", cfg.Web.Addr,
	)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, polymarket.ScanConfig{
		Cities:          cfg.Scan.Cities,
		CityOffsets:     config.CityUTCOffset,
		MinVolume:       cfg.Scan.MinVolume,
		ScanDaysAhead:   cfg.Scan.ScanDaysAhead,
		MinLocalHour:    cfg.Scan.MinLocalHour,
		EntryBandCenter: (cfg.Strategy.EntryNoMin + cfg.Strategy.EntryNoMax) / 2,
	})

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	pf := portfolio.New(portfolio.Config{
		MaxPositions:      cfg.Strategy.MaxPositions,
		TrailStopDistance: cfg.Strategy.TrailStopDistance,
		HalfExitGain:      cfg.Strategy.HalfExitGain,
		HardStopDrop:      cfg.Strategy.HardStopDrop,
	}, store, cfg.Strategy.InitialCapital)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	restored, err := pf.Rehydrate(ctx)
	if err != nil {
		slog.Error("failed to restore state", "err", err)
		os.Exit(1)
	}
	if restored {
		slog.Info("estado restaurado desde storage", "open", pf.OpenCount())
	}

	scorerCfg := scorer.DefaultConfig()
	scorerCfg.ZoneCMin = cfg.Strategy.EntryNoMin
	scorerCfg.VolumeHigh = cfg.Strategy.ScoreVolumeHigh
	scorerCfg.VolumeMid = cfg.Strategy.ScoreVolumeMid
	scorerCfg.VolumeLow = cfg.Strategy.ScoreVolumeLow
	scorerCfg.HistoryTTL = cfg.PriceHistoryTTL()
	scorerCfg.CityOffsets = config.CityUTCOffset
	sc := scorer.New(scorerCfg)

	notifier := notify.NewConsole(*table)

	runner := engine.New(engine.Config{
		MonitorInterval:     cfg.MonitorInterval(),
		PriceUpdateInterval: cfg.PriceUpdateInterval(),
		EntryNoMin:          cfg.Strategy.EntryNoMin,
		EntryNoMax:          cfg.Strategy.EntryNoMax,
		MinEntryScore:       cfg.Strategy.MinEntryScore,
		Sizing: domain.SizingConfig{
			MinScore: cfg.Strategy.MinEntryScore,
			BasePct:  cfg.Strategy.BasePositionPct,
			MaxPct:   cfg.Strategy.MaxPositionPct,
		},
		MaxCLOBVerify: cfg.Scan.MaxCLOBVerify,
	}, client, client, pf, sc, notifier)

	if cfg.Strategy.AutoStart || *autoStart {
		runner.Start(ctx)
		slog.Info("trading arrancado automáticamente")
	} else {
		slog.Info("trading en espera — arrancar vía POST /api/bot/start")
	}

	server := web.NewServer(ctx, cfg.Web.Addr, pf, runner, sc)

	webErr := make(chan error, 1)
	go func() { webErr <- server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-webErr:
		if err != nil {
			slog.Error("web server failed", "err", err)
		}
		cancel()
	}

	// Parada ordenada: primero los workers, después el HTTP server.
	runner.Stop()
	runner.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("web server shutdown", "err", err)
	}

	slog.Info("weatherbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
