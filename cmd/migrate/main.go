package main

// Run session store migrations:
//   go run ./cmd/migrate
//   go run ./cmd/migrate -dialect sqlite -path ./data/sessions.db

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"sheetchart-web/internal/shared/config"
	"sheetchart-web/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	dialect := flag.String("dialect", "postgres", "postgres or sqlite")
	path := flag.String("path", cfg.SQLitePath, "sqlite database file")
	flag.Parse()

	ctx := context.Background()

	var (
		sqlDB *sql.DB
		d     db.Dialect
		err   error
	)
	switch *dialect {
	case "sqlite", "sqlite3":
		d = db.DialectSQLite
		sqlDB, err = db.OpenSQLite(ctx, *path)
	default:
		d = db.DialectPostgres
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	}
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, d); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
	version, err := db.MigrationStatus(ctx, sqlDB, d)
	if err != nil {
		log.Printf("failed to read migration status: %v", err)
		os.Exit(1)
	}
	log.Printf("migrations applied dialect=%s version=%d", d, version)
}
