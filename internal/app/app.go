// Package app wires the configured components together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xaenox/slimday-bot/internal/assistant"
	"github.com/xaenox/slimday-bot/internal/bot"
	"github.com/xaenox/slimday-bot/internal/clock"
	"github.com/xaenox/slimday-bot/internal/faq"
	"github.com/xaenox/slimday-bot/internal/knowledge"
	"github.com/xaenox/slimday-bot/internal/push"
	"github.com/xaenox/slimday-bot/internal/resolver"
	"github.com/xaenox/slimday-bot/internal/state"
	"github.com/xaenox/slimday-bot/internal/storage"
	"github.com/xaenox/slimday-bot/pkg/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	LineWebhookPath = "/webhook/line"
	HealthPath      = "/healthz"
)

const warmTimeout = 2 * time.Minute

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	clock    *clock.Clock
	tables   *knowledge.Tables
	durable  storage.Storage
	states   *state.CachedStore
	gateway  *assistant.Gateway
	resolver *resolver.Resolver
}

// New builds everything that does not talk to a chat platform.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	clk, err := clock.New(cfg.Program.Timezone)
	if err != nil {
		return nil, err
	}

	durable, err := newStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		durable.Close()
		return nil, err
	}

	tables := knowledge.Load(cfg.Knowledge.Dir, logger)
	states := state.NewCachedStore(durable, clk, logger)
	gateway := assistant.NewGateway(backend, assistant.Options{
		Cooldown: cfg.AI.Cooldown,
		Timeout:  cfg.AI.Timeout,
	}, logger)

	return &App{
		cfg:     cfg,
		logger:  logger,
		clock:   clk,
		tables:  tables,
		durable: durable,
		states:  states,
		gateway: gateway,
		resolver: resolver.New(resolver.Deps{
			Tables: tables,
			Clock:  clk,
			States: states,
			FAQ:    faq.NewMatcher(tables.FAQ()),
			AI:     gateway,
			Logger: logger,
		}),
	}, nil
}

func newStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Info("Using in-memory storage")
		return storage.NewMemoryStorage(), nil
	case config.DriverSQLite:
		logger.Info("Using SQLite storage", zap.String("path", cfg.SQLite.Path))
		return storage.NewSQLiteStorage(cfg.SQLite.Path, logger)
	case config.DriverPostgres:
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Database.Host))
		return storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}, logger)
	case config.DriverSheet:
		logger.Info("Using sheet storage")
		return storage.NewSheetStorage(cfg.Sheet.URL, cfg.Sheet.Secret, cfg.Sheet.Timeout, logger), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// newBackend returns a nil Backend when no knowledge base or key is set.
func newBackend(cfg *config.Config, logger *zap.Logger) (assistant.Backend, error) {
	if cfg.AI.KnowledgeBase == "" || cfg.OpenAI.APIKey == "" {
		logger.Info("AI assistant disabled",
			zap.Bool("knowledge_base_set", cfg.AI.KnowledgeBase != ""),
			zap.Bool("api_key_set", cfg.OpenAI.APIKey != ""))
		return nil, nil
	}
	backend, err := assistant.NewOpenAIBackend(assistant.OpenAIConfig{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		EmbeddingModel: cfg.OpenAI.EmbeddingModel,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		Temperature:    cfg.OpenAI.Temperature,
		TopK:           cfg.AI.TopK,
		KnowledgeBase:  cfg.AI.KnowledgeBase,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI backend: %w", err)
	}
	return backend, nil
}

func (a *App) Resolver() *resolver.Resolver {
	return a.resolver
}

// Handler serves the LINE webhook (when given) and the health check.
func (a *App) Handler(line *bot.LineWebhook) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if line != nil {
		mux.Handle(LineWebhookPath, line)
	}
	return mux
}

// Run starts every enabled transport and the push scheduler, and blocks
// until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	b := bot.New(a.resolver, a.logger)

	var (
		line     *bot.LineWebhook
		telegram *bot.TelegramPoller
		pusher   bot.RoutingPusher
	)
	if a.cfg.LineEnabled() {
		messenger, err := bot.NewLineMessenger(a.cfg.Line.ChannelToken)
		if err != nil {
			return err
		}
		line = bot.NewLineWebhook(a.cfg.Line.ChannelSecret, messenger, b, a.logger)
		pusher.Line = line
	}
	if a.cfg.TelegramEnabled() {
		api, err := bot.NewTelegramAPI(a.cfg.Telegram.Token)
		if err != nil {
			return err
		}
		telegram = bot.NewTelegramPoller(api, b, a.logger)
		pusher.Telegram = telegram
	}

	var scheduler *push.Scheduler
	if a.cfg.Push.Enabled {
		job := push.NewJob(a.states, a.clock, a.tables, pusher, a.logger)
		var err error
		scheduler, err = push.NewScheduler(a.cfg.Push.Schedule, a.clock.Location(), job, a.logger)
		if err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: a.Handler(line),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		warmCtx, cancel := context.WithTimeout(gctx, warmTimeout)
		defer cancel()
		a.gateway.Warm(warmCtx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if line != nil {
			line.Wait()
		}
		return err
	})
	if telegram != nil {
		g.Go(func() error {
			a.logger.Info("Telegram poller started")
			return telegram.Start(gctx)
		})
	}
	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Start(gctx)
		})
	}

	return g.Wait()
}

// Close waits for pending state writes and releases the durable store.
func (a *App) Close() error {
	a.states.Flush()
	return a.durable.Close()
}
