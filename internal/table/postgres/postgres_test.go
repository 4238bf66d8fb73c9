package postgres

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"inkpress/internal/database"
	"inkpress/internal/table"
	"inkpress/internal/table/tabletest"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB connects to the test PostgreSQL and runs migrations. If the
// database is unavailable, the test is skipped.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "inkpress")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "inkpress")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := database.Connect(dsn)
	if err != nil {
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTable(t *testing.T) {
	db := testDB(t)
	tabletest.Run(t, func(t *testing.T) table.Table {
		if _, err := db.Exec(`TRUNCATE items`); err != nil {
			t.Fatalf("truncate items: %v", err)
		}
		return New(db)
	})
}

func TestNullable(t *testing.T) {
	if nullable("").Valid {
		t.Error("empty string should be NULL")
	}
	if ns := nullable("go"); !ns.Valid || ns.String != "go" {
		t.Errorf("nullable(go): got %+v", ns)
	}
}

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

// Get maps a missing row to ErrNotFound even through the scan wrapper, and
// keeps other driver errors intact.
func TestGetResult(t *testing.T) {
	_, err := getResult(rowFunc(func(...any) error { return sql.ErrNoRows }), "BLOG#1", "METADATA")
	if err != table.ErrNotFound {
		t.Fatalf("missing row: got %v, want ErrNotFound", err)
	}

	boom := errors.New("connection reset")
	_, err = getResult(rowFunc(func(...any) error { return boom }), "BLOG#1", "METADATA")
	if !errors.Is(err, boom) || errors.Is(err, table.ErrNotFound) {
		t.Fatalf("driver error: got %v", err)
	}

	it, err := getResult(rowFunc(func(dest ...any) error {
		*dest[0].(*string) = "BLOG#1"
		*dest[1].(*string) = "METADATA"
		*dest[2].(*sql.NullString) = sql.NullString{String: "PUBLISHED", Valid: true}
		return nil
	}), "BLOG#1", "METADATA")
	if err != nil {
		t.Fatalf("getResult: %v", err)
	}
	if it.PK != "BLOG#1" || it.Status != "PUBLISHED" || it.Category != "" {
		t.Errorf("item = %+v", it)
	}
}
