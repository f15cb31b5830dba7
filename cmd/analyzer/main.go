package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradebot/config"
	"tradebot/internal/cache"
	"tradebot/internal/candle"
	"tradebot/internal/notifier"
	"tradebot/internal/orchestrator"
	platformhttp "tradebot/internal/platform/http"
	"tradebot/internal/storage"
)

func main() {
	// Missing .env is fine in containerized deployments.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	httpClient := platformhttp.NewClient(platformhttp.ClientOptions{
		Timeout:        cfg.RequestTimeout,
		RequestsPerSec: cfg.PairsPerSecond,
	})
	source := candle.NewBinanceSource(cfg.BinanceBaseURL, httpClient)
	resultCache := cache.New(cfg.CacheTTL)
	orch := orchestrator.New(source, store, resultCache, cfg.CandleLimit)

	var notify notifier.Notifier = notifier.Noop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notifier.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize telegram notifier")
		}
		notify = tg
	}

	sched := orchestrator.NewScheduler(orch, notify, orchestrator.SchedulerConfig{
		Symbols:        cfg.Symbols,
		Timeframes:     cfg.Timeframes,
		Interval:       cfg.SweepInterval,
		ErrBackoff:     cfg.SweepBackoff,
		PairsPerSecond: float64(cfg.PairsPerSecond),
	})

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("scheduler stopped")
	}
	log.Info().Msg("shutting down")
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
