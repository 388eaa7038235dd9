package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"sheetchart-web/internal/apiclient"
	"sheetchart-web/internal/async"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/pages"
	"sheetchart-web/internal/services/health"
	"sheetchart-web/internal/session"
	"sheetchart-web/internal/shared/config"
	"sheetchart-web/internal/shared/server"
	"sheetchart-web/internal/shared/server/middleware"
	"sheetchart-web/internal/shared/storage/db"
	"sheetchart-web/internal/shared/storage/object"
	localstore "sheetchart-web/internal/shared/storage/object/local"
	s3store "sheetchart-web/internal/shared/storage/object/s3"
	"sheetchart-web/internal/shared/telemetry"
	"sheetchart-web/internal/workspace"
)

// App holds shared dependencies of the web process.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Sessions session.Store
	Store    object.ObjectStore
	Registry *workspace.Registry
	Health   *health.Service
}

// Build prepares the dependencies and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, sessions, err := buildSessions(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := workspace.NewRegistry(workspace.Deps{
		APIBaseURL: cfg.APIBaseURL,
		APITimeout: cfg.APITimeout,
		Store:      sessions,
		Observers:  []async.Observer{async.LogTransitions, async.RecordMetrics},
	}, cfg.WorkspaceIdleTimeout)

	checks := map[string]health.Pinger{
		"api": apiclient.New(cfg.APIBaseURL, apiclient.WithTimeout(cfg.APITimeout)),
	}
	if sqlDB != nil {
		checks["sessions"] = health.PingFunc(sqlDB.PingContext)
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Sessions: sessions,
		Store:    store,
		Registry: registry,
		Health:   health.NewService(checks),
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:  cfg,
		Pages:   pages.NewHandler(registry, &charts.Exporter{Store: store}),
		Health:  app.Health,
		Limiter: middleware.NewRateLimiter(nil),
	})
	return app, nil
}

// Close releases the database pool, if any.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// buildSessions picks the durable token store. Outside production a database
// failure falls back to memory.
func buildSessions(ctx context.Context, cfg config.Config) (*sql.DB, session.Store, error) {
	var (
		sqlDB   *sql.DB
		dialect db.Dialect
		err     error
	)
	switch cfg.SessionStore {
	case "postgres":
		dialect = db.DialectPostgres
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	case "sqlite":
		dialect = db.DialectSQLite
		sqlDB, err = db.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		telemetry.Info("bootstrap.sessions", map[string]any{"store": "memory"})
		return nil, session.NewMemoryStore(), nil
	}
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB, dialect)
	}
	if err != nil {
		if sqlDB != nil && dialect == db.DialectSQLite {
			sqlDB.Close()
		}
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.sessions_fallback", map[string]any{
				"store": cfg.SessionStore,
				"error": err.Error(),
			})
			return nil, session.NewMemoryStore(), nil
		}
		return nil, nil, fmt.Errorf("session store %s: %w", cfg.SessionStore, err)
	}

	telemetry.Info("bootstrap.sessions", map[string]any{"store": cfg.SessionStore})
	if dialect == db.DialectSQLite {
		return sqlDB, &session.SQLiteStore{DB: sqlDB}, nil
	}
	return sqlDB, &session.PGStore{DB: sqlDB}, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
