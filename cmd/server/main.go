package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"saathi-backend/internal/chat"
	"saathi-backend/internal/config"
	"saathi-backend/internal/database"
	"saathi-backend/internal/handlers"
	"saathi-backend/internal/locale"
	"saathi-backend/internal/logging"
	"saathi-backend/internal/middleware"
	"saathi-backend/internal/repository"
	"saathi-backend/internal/router"
	"saathi-backend/internal/services"
	"saathi-backend/internal/websocket"
	"saathi-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("env", cfg.Env).Str("store", cfg.StoreBackend).Msg("starting Swasth Saathi chat backend")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Phrasebook ────
	phrases, err := locale.Default()
	if err != nil {
		return errors.Wrap(err, "load phrasebook")
	}

	// ──── Step 3: Redis (optional unless it is the store) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "connect Redis")
		}
		defer redisClients.Close()
		log.Info().Msg("redis connected")
	}

	// ──── Step 4: Chat log store ────
	store, closeStore, err := openStore(cfg, redisClients)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info().Str("backend", cfg.StoreBackend).Dur("ttl", cfg.SessionTTL).Msg("chat log store ready")

	// ──── Step 5: Answer service ────
	var responder services.Responder
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiResponder(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
		if err != nil {
			return errors.Wrap(err, "initialize Gemini")
		}
		defer gemini.Close()
		responder = gemini
		log.Info().Str("model", cfg.GeminiModel).Msg("gemini responder enabled")
	}
	engine := services.NewAnswerEngine(phrases, responder)

	var answerer chat.Answerer = engine
	if cfg.AnswerServiceURL != "" {
		answerer = services.NewAnswerClient(cfg.AnswerServiceURL, cfg.AnswerTimeout)
		log.Info().Str("url", cfg.AnswerServiceURL).Msg("using remote answer service")
	}

	// ──── Step 6: Worker pool, hub, registry ────
	workerPool := worker.NewPool(cfg.AnswerWorkers, cfg.AnswerWorkers*4)
	workerPool.Start()
	defer workerPool.Stop()

	wsHub := newHub(redisClients, cfg.FrontendURL)
	defer wsHub.Close()

	registry := chat.NewRegistry(chat.Options{
		Store:          store,
		Answerer:       answerer,
		Phrases:        phrases,
		Notifier:       wsHub,
		Dispatcher:     workerPool,
		Delay:          chat.Delay{Min: cfg.ReplyDelayMin, Max: cfg.ReplyDelayMax, Failure: cfg.FailureDelay},
		RequestTimeout: cfg.AnswerTimeout,
	}, phrases.Welcome)

	sweeper := services.NewSessionSweeper(registry, store, cfg.SessionIdle)
	sweeper.Start()
	defer sweeper.Stop()

	// ──── Step 7: HTTP Server ────
	submitLimiter := middleware.NewRateLimiter(cfg.SubmitRatePerMinute, time.Minute)
	submitLimiter.KeyFunc = router.SessionKey
	defer submitLimiter.Stop()

	r := router.New(
		handlers.NewChatHandler(registry, phrases, wsHub),
		handlers.NewChatbotHandler(engine),
		submitLimiter,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newHub(redisClients *database.RedisClients, frontendURL string) *websocket.Hub {
	if redisClients == nil {
		return websocket.NewHub(nil, frontendURL)
	}
	return websocket.NewHub(redisClients.PubSub, frontendURL)
}

// openStore builds the chat log store for cfg.StoreBackend. The returned
// func releases whatever the store opened.
func openStore(cfg *config.Config, redisClients *database.RedisClients) (chat.LogStore, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreRedis:
		return repository.NewRedisLogStore(redisClients.Store, cfg.SessionTTL), noop, nil

	case config.StorePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect PostgreSQL")
		}
		if err := database.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		return repository.NewChatLogRepo(pool, cfg.SessionTTL), pool.Close, nil

	case config.StoreSQLite:
		s, err := repository.NewSQLiteLogStore(cfg.SQLitePath, cfg.SessionTTL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open SQLite")
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Warn().Err(err).Msg("closing SQLite store")
			}
		}, nil

	default:
		if cfg.IsProduction() {
			log.Warn().Msg("in-memory chat store in production; logs are lost on restart")
		}
		return repository.NewMemoryLogStore(cfg.SessionTTL), noop, nil
	}
}
