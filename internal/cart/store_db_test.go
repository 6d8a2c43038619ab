//go:build integration
// +build integration

package cart

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("CARTD_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("CARTD_TEST_PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := NewPostgresStore(db)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM carts WHERE session_id IN ('unknown', 's1')`); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	storeContract(t, s)
}
