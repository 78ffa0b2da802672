package dbsource

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pool sizing: at most 10 open connections, at most 2 kept idle, a
// 15-second timeout on each query (which covers acquiring a connection),
// lazy connect. database/sql has no minimum pool size, so minConns caps the
// idle set and no connections are opened ahead of use. Grounded on the
// teacher's pkg/database.Client connection-pool setup.
const (
	minConns       = 2
	maxConns       = 10
	acquireTimeout = 15 * time.Second
)

// Open dials databaseURL with the lib/pq driver and a lazily-verified
// connection pool; it does not block on connectivity (sql.Open never
// dials), matching the "lazy connect" requirement.
func Open(databaseURL string, logger *log.Logger) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("dbsource: database url is empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("dbsource: open: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxIdleTime(30 * time.Minute)
	db.SetConnMaxLifetime(time.Hour)

	if logger != nil {
		logger.Printf("configured pool (min_conns=%d max_conns=%d acquire_timeout=%s)", minConns, maxConns, acquireTimeout)
	}
	return db, nil
}

// Migrate applies every embedded migration that has not yet been recorded
// in the schema_migrations table, in filename order. Grounded on the
// teacher's pkg/database.Client.MigrateUp.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("dbsource: create schema_migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("dbsource: read applied migrations: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("dbsource: scan applied migration: %w", err)
		}
		applied[name] = true
	}
	rows.Close()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("dbsource: read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if applied[name] {
			continue
		}
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		contents, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("dbsource: read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbsource: begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			tx.Rollback()
			return fmt.Errorf("dbsource: apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			return fmt.Errorf("dbsource: record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbsource: commit migration %s: %w", name, err)
		}
	}
	return nil
}
