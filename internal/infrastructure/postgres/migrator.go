package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// RunMigrations applies every pending migration under migrationsPath.
func RunMigrations(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	return withMigrator(databaseURL, migrationsPath, logger, func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return err
	})
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(databaseURL, migrationsPath string, logger zerolog.Logger) error {
	return withMigrator(databaseURL, migrationsPath, logger, func(m *migrate.Migrate) error {
		return m.Steps(-1)
	})
}

func withMigrator(databaseURL, migrationsPath string, logger zerolog.Logger, step func(*migrate.Migrate) error) error {
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", migrationsPath, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("closing migrator failed")
		}
	}()

	if err := step(m); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Msg("schema has no applied migrations")
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	}
	return nil
}
