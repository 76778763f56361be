package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"mockupstudio/internal/adapter/repo"
	"mockupstudio/internal/catalog"
	"mockupstudio/internal/http/handlers"
	httpapi "mockupstudio/internal/http/httpapi"
	"mockupstudio/internal/infra"
	"mockupstudio/internal/infra/credentials"
	"mockupstudio/internal/pipeline"
	"mockupstudio/internal/providers/genai"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, infra.Component(logger, "sql"))
	if err := repo.Migrate(ctx, runner); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	jobs := repo.NewJobRepository(runner)
	products := repo.NewBaseProductRepository(runner)
	references := repo.NewReferenceRepository(runner)
	prompts := repo.NewPromptTemplateRepository(runner)

	gemini, err := credentials.NewStore(runner).ResolveGemini(ctx, credentials.Gemini{APIKey: cfg.GeminiAPIKey})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load stored gemini credentials")
	}
	if gemini.Model == "" {
		gemini.Model = cfg.GeminiModel
	}

	blobs, local, err := storage.Resolve(ctx, cfg, infra.Component(logger, "storage"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise storage")
	}

	var limiter *rate.Limiter
	if cfg.GeminiRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.GeminiRatePerMin)), 1)
	}
	genLogger := infra.Component(logger, "genai")
	gen, err := genai.NewClient(genai.Options{
		APIKey:  gemini.APIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   gemini.Model,
		Logger:  &genLogger,
		Limiter: limiter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	if gen.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; generating placeholder images")
	}

	pool := worker.NewPool(context.Background(), cfg.WorkerConcurrency, cfg.WorkerQueueSize, infra.Component(logger, "worker"))

	orchestrator := pipeline.New(pipeline.Deps{
		Jobs:       jobs,
		Products:   products,
		References: references,
		Prompts:    prompts,
		Blobs:      blobs,
		Generator:  gen,
		Dispatcher: pool,
		Logger:     infra.Component(logger, "pipeline"),
		Timeout:    cfg.GenerationTimeout,
		InputCache: cache.New(30*time.Minute, 10*time.Minute),
	})
	if err := orchestrator.RecoverInterrupted(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to recover interrupted jobs")
	}

	cat := catalog.NewService(products, references, prompts, blobs, infra.Component(logger, "catalog"))
	if n, err := cat.SeedDefaultPrompts(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to seed prompt templates")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("seeded default prompt templates")
	}

	app := &handlers.App{
		Jobs:           orchestrator,
		Catalog:        cat,
		Blobs:          blobs,
		DB:             dbpool,
		Logger:         infra.Component(logger, "http"),
		StorageKind:    string(blobs.Kind()),
		Model:          gen.Model(),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	// Local refs stay readable after switching to a remote backend.
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		UploadsDir:      local.BasePath(),
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("worker pool did not drain")
	}
	logger.Info().Msg("server stopped")
}
