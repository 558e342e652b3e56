// Package pgstore implements store.SessionStore on PostgreSQL via
// pgx, the other pluggable backend the spec's storage-agnostic
// SessionStore interface admits (spec §1: "agnostic to whether
// sessions live in files, SQLite, or memory").
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrate

	"github.com/nextlevelbuilder/vargos/internal/store"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists sessions and messages in two Postgres tables, created
// by Migrate.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to dsn and returns a ready Store. Callers should call
// Migrate once at startup before first use.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies the embedded migrations/*.sql files via
// golang-migrate, the same migration tool the teacher uses for its own
// Postgres schema (internal/store/pg in the teacher repo).
func (s *Store) Migrate(dsn string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("pgstore: load migrations: %w", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("pgstore: open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("pgstore: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("pgstore: migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgstore: migrate up: %w", err)
	}
	return nil
}

func (s *Store) EnsureSession(ctx context.Context, key string, kind store.Kind) (*store.Session, error) {
	sess, err := s.Get(ctx, key)
	if err == nil {
		return sess, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	now := s.now()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vargos_sessions (session_key, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (session_key) DO NOTHING`, key, string(kind), now)
	if err != nil {
		return nil, fmt.Errorf("pgstore: ensure session: %w", err)
	}
	return s.Get(ctx, key)
}

func (s *Store) Get(ctx context.Context, key string) (*store.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT session_key, kind, label, agent_id, created_at, updated_at
		FROM vargos_sessions WHERE session_key = $1`, key)

	var sess store.Session
	var kind, label, agentID string
	if err := row.Scan(&sess.SessionKey, &kind, &label, &agentID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: get session: %w", err)
	}
	sess.Kind = store.Kind(kind)
	sess.Label = label
	sess.AgentID = agentID
	return &sess, nil
}

func (s *Store) List(ctx context.Context) ([]*store.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_key, kind, label, agent_id, created_at, updated_at
		FROM vargos_sessions`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list sessions: %w", err)
	}
	defer rows.Close()

	var out []*store.Session
	for rows.Next() {
		var sess store.Session
		var kind, label, agentID string
		if err := rows.Scan(&sess.SessionKey, &kind, &label, &agentID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pgstore: scan session: %w", err)
		}
		sess.Kind = store.Kind(kind)
		sess.Label = label
		sess.AgentID = agentID
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM vargos_sessions WHERE session_key = $1`, key)
	if err != nil {
		return fmt.Errorf("pgstore: delete session: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, key string, msg store.Message) error {
	if _, err := s.EnsureSession(ctx, key, store.KindChannel); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO vargos_messages (session_key, role, content, created_at)
		VALUES ($1, $2, $3, $4)`, key, string(msg.Role), msg.Content, msg.Timestamp); err != nil {
		return fmt.Errorf("pgstore: append message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE vargos_sessions SET updated_at = $2 WHERE session_key = $1`, key, s.now()); err != nil {
		return fmt.Errorf("pgstore: touch session: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) History(ctx context.Context, key string, limit int) ([]store.Message, error) {
	query := `SELECT role, content, created_at FROM vargos_messages WHERE session_key = $1 ORDER BY id ASC`
	args := []interface{}{key}
	if limit > 0 {
		query = `SELECT role, content, created_at FROM (
			SELECT role, content, created_at, id FROM vargos_messages
			WHERE session_key = $1 ORDER BY id DESC LIMIT $2
		) recent ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgstore: history: %w", err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		var msg store.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("pgstore: scan message: %w", err)
		}
		msg.Role = store.Role(role)
		out = append(out, msg)
	}
	return out, rows.Err()
}
