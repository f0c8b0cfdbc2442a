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

	"github.com/p-n-ai/pai-course-creator/internal/ai"
	"github.com/p-n-ai/pai-course-creator/internal/auth"
	"github.com/p-n-ai/pai-course-creator/internal/certificate"
	"github.com/p-n-ai/pai-course-creator/internal/course"
	"github.com/p-n-ai/pai-course-creator/internal/curriculum"
	"github.com/p-n-ai/pai-course-creator/internal/events"
	"github.com/p-n-ai/pai-course-creator/internal/httpapi"
	"github.com/p-n-ai/pai-course-creator/internal/platform/cache"
	"github.com/p-n-ai/pai-course-creator/internal/platform/config"
	"github.com/p-n-ai/pai-course-creator/internal/platform/database"
	"github.com/p-n-ai/pai-course-creator/internal/progress"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoSchema {
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		slog.Info("database schema ensured")
	}

	checks := map[string]httpapi.Check{"database": db.HealthCheck}

	var (
		revoker auth.Revoker     = auth.NewMemoryRevoker()
		budget  ai.BudgetChecker = ai.NewInMemoryBudget(cfg.Generation.DailyTokenBudget)
	)
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Warn("cache unavailable, using in-process revocation and budgets", "error", err)
		} else {
			defer c.Close()
			revoker = auth.NewRedisRevoker(c.Client)
			budget = ai.NewRedisBudget(c.Client, cfg.Generation.DailyTokenBudget)
			checks["cache"] = c.HealthCheck
		}
	}

	router, err := newAIRouter(cfg.AI)
	if err != nil {
		return err
	}

	blueprint, err := curriculum.LoadBlueprint(cfg.Generation.BlueprintPath)
	if err != nil {
		return err
	}

	store, err := course.NewPostgresStore(db.Pool)
	if err != nil {
		return err
	}
	eventLog := events.NewPostgresLogger(db.Pool)

	generator := curriculum.NewGenerator(curriculum.GeneratorConfig{
		AI:              router,
		Budget:          budget,
		Blueprint:       blueprint,
		Timeout:         cfg.Generation.Timeout,
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
	})

	handler := httpapi.New(httpapi.Config{
		Courses: course.NewService(course.ServiceConfig{
			Store:     store,
			Generator: generator,
			Events:    eventLog,
			Settings:  course.SettingsFromBlueprint(blueprint),
		}),
		Tracker: progress.NewTracker(progress.TrackerConfig{Store: store, Events: eventLog}),
		Issuer:  certificate.NewIssuer(certificate.IssuerConfig{Store: store, Events: eventLog}),
		Verifier: auth.NewVerifier(cfg.Auth.JWTSecret,
			auth.WithCookieName(cfg.Auth.CookieName),
			auth.WithRevoker(revoker),
		),
		LoginURL: cfg.Auth.LoginURL,
		Checks:   checks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "providers", router.Providers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newAIRouter registers every configured provider in fallback order.
func newAIRouter(cfg config.AIConfig) (*ai.Router, error) {
	router := ai.NewRouter()

	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.OpenAI.Model)))
	}
	if cfg.Anthropic.APIKey != "" {
		var opts []ai.AnthropicOption
		if cfg.Anthropic.Model != "" {
			opts = append(opts, ai.WithAnthropicModel(cfg.Anthropic.Model))
		}
		p, err := ai.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
	}
	if cfg.Google.APIKey != "" {
		var opts []ai.GoogleOption
		if cfg.Google.Model != "" {
			opts = append(opts, ai.WithGoogleModel(cfg.Google.Model))
		}
		router.Register("google", ai.NewGoogleProvider(cfg.Google.APIKey, opts...))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithDefaultModel(cfg.DeepSeek.Model)))
	}
	if cfg.OpenRouter.APIKey != "" {
		router.Register("openrouter", ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, ai.WithDefaultModel(cfg.OpenRouter.Model)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithDefaultModel(cfg.Ollama.Model)))
	}

	if !router.HasProvider() {
		return nil, fmt.Errorf("no AI provider configured")
	}
	return router, nil
}
