// Package dbtest opens throwaway SQLite databases with the checkout schema applied.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/SigNoz/ecommerce-checkout/internal/db"
	"go.opentelemetry.io/otel/metric/noop"
)

// Open returns a migrated SQLite database living in t.TempDir()
func Open(t testing.TB) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "checkout.db")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"

	database, err := db.NewDB(db.DriverSQLite, dsn, noop.NewMeterProvider(), "test")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return database
}
