package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/p-n-ai/sinifplanim/internal/ai"
	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/forum"
	"github.com/p-n-ai/sinifplanim/internal/httpapi"
	"github.com/p-n-ai/sinifplanim/internal/live"
	"github.com/p-n-ai/sinifplanim/internal/platform/cache"
	"github.com/p-n-ai/sinifplanim/internal/platform/config"
	"github.com/p-n-ai/sinifplanim/internal/platform/database"
	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/schedule"
	"github.com/p-n-ai/sinifplanim/internal/survey"
	"github.com/p-n-ai/sinifplanim/internal/tier"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     a.api.Handler(),
		ReadTimeout: 10 * time.Second,
		// AI actions can run for the whole provider timeout.
		WriteTimeout: time.Duration(cfg.AI.TimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type app struct {
	api     *httpapi.Server
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type stores struct {
	schedule schedule.Store
	surveys  survey.Store
	forum    forum.Store
	tiers    tier.Store
	roster   roster.Store
}

func memoryStores() stores {
	return stores{
		schedule: schedule.NewMemoryStore(),
		surveys:  survey.NewMemoryStore(),
		forum:    forum.NewMemoryStore(),
		tiers:    tier.NewMemoryStore(),
		roster:   roster.NewMemoryStore(),
	}
}

func postgresStores(db *database.DB) (stores, error) {
	var (
		s   stores
		err error
	)
	if s.schedule, err = schedule.NewPostgresStore(db.Pool); err != nil {
		return s, err
	}
	if s.surveys, err = survey.NewPostgresStore(db.Pool); err != nil {
		return s, err
	}
	if s.forum, err = forum.NewPostgresStore(db.Pool); err != nil {
		return s, err
	}
	if s.tiers, err = tier.NewPostgresStore(db.Pool); err != nil {
		return s, err
	}
	if s.roster, err = roster.NewPostgresStore(db.Pool); err != nil {
		return s, err
	}
	return s, nil
}

// newRouter registers every configured provider; Gemini first.
func newRouter(cfg config.AIConfig) *ai.Router {
	router := ai.NewRouter(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if cfg.Google.APIKey != "" {
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
	}
	if cfg.OpenAI.APIKey != "" {
		opts := []ai.OpenAIOption{ai.WithOpenAIModel(cfg.OpenAI.Model)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, ai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, opts...))
	}
	return router
}

// buildApp connects the backends and wires the services. Background work
// started here stops when ctx is cancelled.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var checks []httpapi.Check

	st := memoryStores()
	if cfg.Store.Backend == "postgres" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.close()
				return nil, fmt.Errorf("migrate database: %w", err)
			}
		}
		if st, err = postgresStores(db); err != nil {
			a.close()
			return nil, fmt.Errorf("init stores: %w", err)
		}
		checks = append(checks, httpapi.Check{Name: "database", Fn: db.HealthCheck})
	}

	hub := live.NewHub()
	var pub live.Publisher = hub
	var sessions roster.SessionStore = roster.NewMemorySessionStore()
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		a.closers = append(a.closers, func() { c.Close() })
		sessions = roster.NewRedisSessionStore(c)

		broker := live.NewRedisBroker(c.Client, hub)
		pub = broker
		go func() {
			if err := broker.Run(ctx); err != nil {
				slog.Error("live relay stopped", "error", err)
			}
		}()
		checks = append(checks, httpapi.Check{Name: "cache", Fn: c.HealthCheck})
	} else {
		slog.Warn("no cache configured; sessions and live events stay in this process")
	}

	router := newRouter(cfg.AI)
	if !router.HasProvider() {
		slog.Warn("no AI provider configured; AI actions will answer with fallback text")
	}

	gate := tier.NewGate(st.tiers, pub)
	helper := assist.NewService(router, gate)
	catalog, err := survey.LoadCatalog()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("load survey catalog: %w", err)
	}

	a.api = httpapi.New(httpapi.Deps{
		Schedule: schedule.NewService(st.schedule, pub),
		Surveys:  survey.NewService(catalog, st.surveys, pub),
		Forum:    forum.NewService(st.forum, pub, helper),
		Tiers:    gate,
		Roster:   roster.NewService(st.roster, sessions, pub, time.Duration(cfg.Auth.StudentSessionTTL)*time.Minute),
		Assist:   helper,
		Hub:      hub,
		Auth:     cfg.Auth,
		Checks:   checks,
	})
	return a, nil
}
