// Package storage persists submitted domains and their crawl status in
// SQLite. The schema is versioned with embedded migrations so upgrades
// apply automatically on startup.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Domain statuses as stored in the domains table.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// Domain is one submitted overlay domain and its lifecycle state.
type Domain struct {
	ID          int64
	Name        string
	Status      string
	Source      string
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
}

// Open opens or creates the database at path and applies pending
// migrations. WAL mode keeps the submission path from blocking reads.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{conn: conn}, nil
}

func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(conn, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// UpsertDomain records a submission. Resubmitting an existing domain
// resets it to pending and refreshes the timestamp, which is what
// makes manual recrawl requests work.
func (s *Store) UpsertDomain(ctx context.Context, name, source string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO domains (name, status, source, submitted_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			status = excluded.status,
			source = excluded.source,
			updated_at = CURRENT_TIMESTAMP
	`, name, StatusPending, source)
	if err != nil {
		return fmt.Errorf("upsert domain %s: %w", name, err)
	}
	return nil
}

// SetStatus moves a domain to a new lifecycle state.
func (s *Store) SetStatus(ctx context.Context, name, status string) error {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE domains SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ?
	`, status, name)
	if err != nil {
		return fmt.Errorf("set status for %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("set status for %s: domain not found", name)
	}
	return nil
}

// GetDomain fetches one domain by name.
func (s *Store) GetDomain(ctx context.Context, name string) (*Domain, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, status, source, submitted_at, updated_at
		FROM domains WHERE name = ?
	`, name)
	var d Domain
	if err := row.Scan(&d.ID, &d.Name, &d.Status, &d.Source, &d.SubmittedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get domain %s: %w", name, err)
	}
	return &d, nil
}

// ListPending returns pending domains in submission order, oldest
// first, capped at limit. A non-positive limit means no cap.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Domain, error) {
	q := `
		SELECT id, name, status, source, submitted_at, updated_at
		FROM domains WHERE status = ? ORDER BY submitted_at, id
	`
	args := []interface{}{StatusPending}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.Source, &d.SubmittedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListDomains returns every domain ordered by name.
func (s *Store) ListDomains(ctx context.Context) ([]Domain, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, status, source, submitted_at, updated_at
		FROM domains ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		var d Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.Source, &d.SubmittedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountByStatus returns domain counts keyed by status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM domains GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count domains: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
