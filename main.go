package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/config"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/httpserver"
	"github.com/robalobadob/riddler/internal/oracle"
	"github.com/robalobadob/riddler/internal/riddles"
	"github.com/robalobadob/riddler/internal/store"
	"github.com/robalobadob/riddler/internal/telegram"
	"github.com/robalobadob/riddler/internal/vision"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := loadBank(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load riddles")
	}
	counts := bank.Stats()
	log.Info().
		Int("easy", counts[riddles.Easy]).
		Int("normal", counts[riddles.Normal]).
		Int("hard", counts[riddles.Hard]).
		Msg("riddle catalog loaded")

	orc := newOracle(ctx, cfg)
	mem := store.NewMemoryStore(func(id string) *game.Controller {
		return game.NewController(bank, orc, game.WithID(id))
	}, cfg.SessionTTL)

	opts := httpserver.Options{
		ClientOrigin:   cfg.ClientOrigin,
		SessionSecret:  cfg.SessionSecret,
		DailySalt:      cfg.DailySalt,
		Catalog:        bank,
		HandlerTimeout: cfg.OracleTimeout + 15*time.Second,
	}
	if cfg.VisionCredentialsFile != "" {
		if l, err := vision.NewFromCredentialsFile(ctx, cfg.VisionCredentialsFile); err != nil {
			log.Warn().Err(err).Msg("image labels disabled")
		} else {
			opts.Labeler = l
		}
	}
	srv, err := httpserver.New(mem, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	if cfg.TelegramToken != "" {
		bot, err := telegram.New(cfg.TelegramToken, mem, cfg.DailySalt)
		if err != nil {
			log.Warn().Err(err).Msg("telegram bot disabled")
		} else {
			go bot.Start(ctx)
		}
	}

	log.Info().Str("port", cfg.Port).Msg("starting riddler")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("bye")
}

func setupLogging(cfg config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// loadBank picks the catalog source: SQLite, then a JSON file, then the
// embedded default.
func loadBank(ctx context.Context, cfg config.Config) (*riddles.Bank, error) {
	switch {
	case cfg.CatalogDB != "":
		log.Info().Str("db", cfg.CatalogDB).Msg("using sqlite catalog")
		return catalogFromDB(ctx, cfg.CatalogDB, cfg.MigrationsDir)
	case cfg.RiddlesFile != "":
		log.Info().Str("file", cfg.RiddlesFile).Msg("using riddle file")
		return riddles.Load(cfg.RiddlesFile)
	}
	return riddles.Default()
}

// newOracle builds the chat-completions oracle, fronted by a reply cache
// (Redis when REDIS_ADDR is set, otherwise in-process).
func newOracle(ctx context.Context, cfg config.Config) game.Oracle {
	client := oracle.New(oracle.Config{
		APIKey:     cfg.OracleAPIKey,
		BaseURL:    cfg.OracleBaseURL,
		Model:      cfg.OracleModel,
		Timeout:    cfg.OracleTimeout,
		MaxRetries: cfg.OracleMaxRetries,
	})
	if cfg.OracleAPIKey == "" {
		log.Warn().Msg("ORACLE_API_KEY not set; questions will be refused")
	}
	if cfg.OracleCacheTTL <= 0 {
		return client
	}

	var cache oracle.Cache = oracle.NewMemoryCache()
	if cfg.RedisAddr != "" {
		rc, err := oracle.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; using in-process oracle cache")
		} else {
			cache = rc
			log.Info().Str("addr", cfg.RedisAddr).Msg("oracle cache on redis")
		}
	}
	return oracle.NewCached(client, cache, cfg.OracleCacheTTL)
}
