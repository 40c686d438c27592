package migration

import (
	"database/sql"
	"embed"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

// Embed SQL files from the local migrations folder
//
//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations brings the app store up to date. Fatal on failure: the
// service cannot run against an unknown schema version.
func RunMigrations(dbURL string, logger zerolog.Logger) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()

	// Ensure the pipecraft schema exists before running migrations
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS pipecraft"); err != nil {
		logger.Fatal().Err(err).Msg("Failed to create schema pipecraft")
	}

	goose.SetBaseFS(embeddedMigrations)
	goose.SetTableName("pipecraft.goose_db_version")

	if err := goose.Up(db, "migrations"); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Info().Msg("Migrations completed successfully")
}
