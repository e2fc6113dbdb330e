package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB wraps sqlx.DB and remembers the dialect it was opened with.
type DB struct {
	*sqlx.DB
	Driver string
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string) (*DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// sqlite serialises writers; a single connection also keeps :memory: databases alive
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return &DB{DB: db, Driver: driver}, nil
}

// NewPostgresDB connects to PostgreSQL
func NewPostgresDB(dsn string) (*DB, error) {
	return Open(DriverPostgres, dsn)
}

// NewSQLiteDB opens (or creates) an SQLite database file. Use ":memory:" for tests.
func NewSQLiteDB(path string) (*DB, error) {
	return Open(DriverSQLite, path)
}

// InTx runs fn inside a transaction, committing on success and rolling back otherwise.
func (db *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
