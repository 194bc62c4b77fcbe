// internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codr1/Excursions/internal/config"
	dbq "github.com/codr1/Excursions/internal/db/queries"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB pairs the connection pool with its generated queries. Inside RunInTx the
// queries are bound to the transaction.
type DB struct {
	*sql.DB
	Queries *dbq.Queries
}

// connParams are go-sqlite3 DSN options applied unless the caller set them.
// WAL lets the reminder sweep read while a booking commits.
var connParams = [][2]string{
	{"_fk", "1"},
	{"_busy_timeout", "5000"},
	{"_journal_mode", "WAL"},
}

// New opens the SQLite file at path, brings the schema up to date and binds
// the queries.
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := runMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &DB{DB: sqlDB, Queries: dbq.New(sqlDB)}, nil
}

// NewFromConfig creates the database directory if needed and opens the
// configured file.
func NewFromConfig(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("database config is required")
	}
	if cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Filename), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return New(cfg.Database.Filename)
}

func dsn(path string) string {
	base, rawQuery, _ := strings.Cut(path, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}
	inMemory := base == ":memory:" || query.Get("mode") == "memory"
	for _, p := range connParams {
		if p[0] == "_journal_mode" && inMemory {
			continue
		}
		if !query.Has(p[0]) {
			query.Set(p[0], p[1])
		}
	}
	return base + "?" + query.Encode()
}

// runMigrations applies the embedded migrations; "no change" is not an error.
func runMigrations(conn *sql.DB) error {
	driver, err := sqlite3.WithInstance(conn, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// MigrationsFS exposes the embedded migrations to tooling.
func MigrationsFS() embed.FS {
	return migrationsFS
}

// Ping checks the connection, for health probes.
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

// RunInTx runs fn against a transaction-bound DB. The transaction commits when
// fn returns nil and rolls back on error or panic.
func (db *DB) RunInTx(ctx context.Context, fn func(*DB) error) (err error) {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&DB{DB: db.DB, Queries: db.Queries.WithTx(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
