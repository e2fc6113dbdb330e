package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// MigrationStatus is an applied migration as recorded in schema_migrations.
type MigrationStatus struct {
	Version   int       `db:"version"`
	AppliedAt time.Time `db:"applied_at"`
}

// Migrations returns all database migrations for the given dialect, ordered by version.
func Migrations(driver string) []Migration {
	serial := "BIGSERIAL PRIMARY KEY"
	if driver == DriverSQLite {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	migrations := []Migration{
		{
			Version: 1,
			Up: `
				CREATE TABLE IF NOT EXISTS chats (
					id BIGINT PRIMARY KEY,
					name VARCHAR(255) NOT NULL DEFAULT '',
					delete_messages BOOLEAN NOT NULL DEFAULT false,
					locale VARCHAR(16),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS users (
					id BIGINT PRIMARY KEY,
					username VARCHAR(255) NOT NULL DEFAULT '',
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);
			`,
			Down: `
				DROP TABLE IF EXISTS users;
				DROP TABLE IF EXISTS chats;
			`,
		},
		{
			Version: 2,
			Up: `
				CREATE TABLE IF NOT EXISTS moderators (
					user_id BIGINT NOT NULL,
					chat_id BIGINT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, chat_id)
				);

				CREATE INDEX IF NOT EXISTS idx_moderators_chat ON moderators(chat_id);
			`,
			Down: `
				DROP TABLE IF EXISTS moderators;
			`,
		},
		{
			Version: 3,
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS banned_words (
					id %s,
					chat_id BIGINT NOT NULL,
					word VARCHAR(255) NOT NULL,
					banned_by BIGINT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(chat_id, word)
				);
			`, serial),
			Down: `
				DROP TABLE IF EXISTS banned_words;
			`,
		},
		{
			Version: 4,
			Up: `
				CREATE TABLE IF NOT EXISTS message_templates (
					chat_id BIGINT NOT NULL,
					template_id INT NOT NULL,
					template_text TEXT NOT NULL,
					UNIQUE(chat_id, template_id)
				);
			`,
			Down: `
				DROP TABLE IF EXISTS message_templates;
			`,
		},
		{
			Version: 5,
			Up: fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS violation_logs (
					id %s,
					chat_id BIGINT NOT NULL,
					user_id BIGINT NOT NULL,
					username VARCHAR(255) NOT NULL DEFAULT '',
					message_id BIGINT NOT NULL,
					message_text TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL,
					words TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_violation_logs_chat ON violation_logs(chat_id, created_at);
			`, serial),
			Down: `
				DROP TABLE IF EXISTS violation_logs;
			`,
		},
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations
}

// RunMigrations runs all pending migrations
func RunMigrations(ctx context.Context, db *DB, logger *zap.Logger) error {
	// Ensure migrations table exists
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range Migrations(db.Driver) {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Info("Running migration", zap.Int("version", migration.Version))

		err := db.InTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
				return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx, db.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"), migration.Version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		logger.Info("Migration completed", zap.Int("version", migration.Version))
	}

	return nil
}

// RollbackLast reverts the most recently applied migration. It returns the reverted
// version, or 0 when nothing is applied.
func RollbackLast(ctx context.Context, db *DB, logger *zap.Logger) (int, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return 0, err
	}

	currentVersion, err := CurrentVersion(ctx, db)
	if err != nil || currentVersion == 0 {
		return 0, err
	}

	var target *Migration
	for _, m := range Migrations(db.Driver) {
		if m.Version == currentVersion {
			target = &m
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("migration %d is applied but unknown to this binary", currentVersion)
	}

	logger.Info("Rolling back migration", zap.Int("version", target.Version))

	err = db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, target.Down); err != nil {
			return fmt.Errorf("failed to roll back migration %d: %w", target.Version, err)
		}
		if _, err := tx.ExecContext(ctx, db.Rebind("DELETE FROM schema_migrations WHERE version = ?"), target.Version); err != nil {
			return fmt.Errorf("failed to unrecord migration %d: %w", target.Version, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return target.Version, nil
}

// Status lists applied migrations in ascending order.
func Status(ctx context.Context, db *DB) ([]MigrationStatus, error) {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return nil, err
	}
	var applied []MigrationStatus
	if err := db.SelectContext(ctx, &applied, "SELECT version, applied_at FROM schema_migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}
	return applied, nil
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(ctx context.Context, db *DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func ensureMigrationsTable(ctx context.Context, db *DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}
	return nil
}
