package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/cheapeats-bot/internal/bot"
	"github.com/raine/cheapeats-bot/internal/config"
	"github.com/raine/cheapeats-bot/internal/httpapi"
	"github.com/raine/cheapeats-bot/internal/janitor"
	"github.com/raine/cheapeats-bot/internal/llm"
	"github.com/raine/cheapeats-bot/internal/observability"
	"github.com/raine/cheapeats-bot/internal/storage"
)

const logFileName = "cheapeats-bot.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	if missing := config.MissingRequired(); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.)
			config.FatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd; journald keeps the logs there.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			config.FatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.Load()
	if err != nil {
		config.FatalWithWait("invalid config: %v", err)
	}
	if err := cfg.RequireBot(); err != nil {
		config.FatalWithWait("invalid config: %v", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown LOG_LEVEL, using info")
	}

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		config.FatalWithWait("failed to initialize telegram bot: %v", err)
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

	bot.RegisterCommands(tg)

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		config.FatalWithWait("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := llm.NewGemini(ctx, llm.SearchOptions{
		Model:     cfg.GeminiModel,
		MinRating: cfg.MinRating,
		RadiusKm:  cfg.SearchRadiusKm,
	}, metrics)
	if err != nil {
		config.FatalWithWait("failed to initialize gemini: %v", err)
	}
	vision := llm.NewCachedVision(gemini, store, cfg.PriceCacheTTL, metrics)
	log.Info().Str("model", cfg.GeminiModel).Dur("priceCacheTTL", cfg.PriceCacheTTL).Msg("gemini provider initialized")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runBot(ctx, tg, store, gemini, vision, cfg, metrics)
	})

	g.Go(func() error {
		janitor.NewService(store, cfg.PriceCacheTTL).Run(ctx)
		return nil
	})

	if cfg.HTTPAddr != "" {
		server := httpapi.NewServer(cfg.HTTPAddr, store)
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func runBot(
	ctx context.Context,
	tg *tgbotapi.BotAPI,
	store storage.Store,
	searcher llm.SearchProvider,
	vision llm.VisionProvider,
	cfg *config.Config,
	metrics *observability.Metrics,
) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, store, cfg.AdminTelegramID, bot.Options{
		MinRating:       cfg.MinRating,
		LocationTimeout: cfg.LocationTimeout,
		Metrics:         metrics,
	})
	b.SetProviders(searcher, vision)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
