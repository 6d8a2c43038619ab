package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUndefinedTable = "42P01"

const schema = `
CREATE TABLE IF NOT EXISTS carts (
	session_id TEXT PRIMARY KEY,
	items      JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps each session's cart as a JSONB row. Open db with the
// pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, schema)
		return err
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (Cart, error) {
	var raw []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `
			SELECT items
			FROM carts
			WHERE session_id = $1
		`, sessionID).Scan(&raw)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Empty(), nil
	}
	if err != nil {
		return Cart{}, storageErr("load", sessionID, describePgError(err))
	}

	items := []Item{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return Cart{}, storageErr("load", sessionID, fmt.Errorf("decode items: %w", err))
	}
	return Cart{Items: items}, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionID string, c Cart) error {
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return storageErr("save", sessionID, err)
	}

	err = withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO carts (session_id, items, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (session_id)
			DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at
		`, sessionID, raw)
		return err
	})
	if err != nil {
		return storageErr("save", sessionID, describePgError(err))
	}
	return nil
}

func describePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("carts table missing, run migrate: %w", err)
	}
	return err
}
