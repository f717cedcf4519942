package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docgen-backend/internal/ai"
	"docgen-backend/internal/ai/gemini"
	"docgen-backend/internal/ai/openai"
	"docgen-backend/internal/convert"
	"docgen-backend/internal/fields"
	"docgen-backend/internal/generate"
	"docgen-backend/internal/generations"
	"docgen-backend/internal/render"
	"docgen-backend/internal/retention"
	"docgen-backend/internal/services/health"
	"docgen-backend/internal/shared/config"
	"docgen-backend/internal/shared/server"
	"docgen-backend/internal/shared/server/middleware"
	"docgen-backend/internal/shared/storage/db"
	"docgen-backend/internal/shared/storage/object"
	localstore "docgen-backend/internal/shared/storage/object/local"
	s3store "docgen-backend/internal/shared/storage/object/s3"
	"docgen-backend/internal/shared/telemetry"
	"docgen-backend/internal/templates"
)

// App holds shared dependencies.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Redis     *redis.Client
	AI        ai.Client
	Converter convert.DocumentConverter
	Archive   object.ArtifactStore
	Ledger    generations.Repo
	Service   *generate.Service
	Sweeper   *retention.Sweeper
}

// Build prepares every dependency and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	store, err := templates.NewStore(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewRenderer(cfg.GeneratedDir)
	if err != nil {
		return nil, err
	}

	aiClient, err := buildAI(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		AI:        aiClient,
		Converter: convert.ForPlatform(runtime.GOOS, convert.Options{
			SofficeBin:  cfg.SofficeBin,
			Docx2PDFBin: cfg.Docx2PDFBin,
			Timeout:     cfg.ConvertTimeout,
		}),
		Archive: archive,
	}
	if sqlDB != nil {
		app.Ledger = &generations.PGRepo{DB: sqlDB}
	} else {
		app.Ledger = generations.NewMemoryRepo()
	}

	app.Service = &generate.Service{
		Templates: store,
		Fields:    &fields.Resolver{AI: aiClient, Schemas: store},
		Renderer:  renderer,
		Converter: app.Converter,
		OutputDir: renderer.Dir(),
		Ledger:    app.Ledger,
		Archive:   archive,
	}
	app.Sweeper = &retention.Sweeper{
		Dir:      renderer.Dir(),
		MaxAge:   cfg.RetentionMaxAge,
		Interval: cfg.RetentionInterval,
		Ledger:   app.Ledger,
	}

	limiter, err := app.buildLimiter()
	if err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Generate: generate.NewHandler(app.Service),
		Health:   health.NewService(app.Converter.Name(), aiClient.Name()),
		Limiter:  limiter,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"templates_dir": store.Dir(),
		"generated_dir": renderer.Dir(),
		"converter":     app.Converter.Name(),
		"ai_provider":   aiClient.Name(),
		"ledger":        ledgerName(sqlDB),
		"archive":       archiveName(archive),
		"retention":     cfg.RetentionMaxAge.String(),
		"env_files":     cfg.EnvFiles,
	})
	return app, nil
}

// Close releases the database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func buildAI(ctx context.Context, cfg config.Config) (ai.Client, error) {
	switch cfg.AIProvider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			telemetry.Warn("bootstrap.ai.disabled", map[string]any{"reason": "GEMINI_API_KEY is empty"})
			return ai.Disabled{}, nil
		}
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AITimeout)
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			telemetry.Warn("bootstrap.ai.disabled", map[string]any{"reason": "OPENAI_API_KEY is empty"})
			return ai.Disabled{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.AITimeout)
	default:
		return ai.Disabled{}, nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		telemetry.Info("bootstrap.ledger.memory", map[string]any{"reason": "DATABASE_URL empty"})
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.DefaultLambdaOptions())
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.DefaultServerOptions())
	}
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.ledger.memory", map[string]any{"reason": "database unavailable", "error": err})
			if sqlDB != nil && !db.IsLambdaRuntime() {
				_ = sqlDB.Close()
			}
			return nil, nil
		}
		return nil, fmt.Errorf("database: %w", err)
	}
	return sqlDB, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (object.ArtifactStore, error) {
	switch cfg.ArchiveStore {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "local":
		return localstore.New(cfg.ArchiveDir), nil
	default:
		return nil, nil
	}
}

func (a *App) buildLimiter() (middleware.Limiter, error) {
	url := strings.TrimSpace(a.Config.RateLimitRedisURL)
	if url == "" {
		return middleware.NewRateLimiter(nil), nil
	}
	client, err := middleware.NewRedisClient(url)
	if err != nil {
		return nil, err
	}
	a.Redis = client
	return middleware.NewRedisRateLimiter(client, "", nil), nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func ledgerName(sqlDB *sql.DB) string {
	if sqlDB != nil {
		return "postgres"
	}
	return "memory"
}

func archiveName(store object.ArtifactStore) string {
	if store == nil {
		return "none"
	}
	return store.Name()
}
