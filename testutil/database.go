package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/storage/database"
)

// PrepareDB opens and migrates the postgres test database configured by the TEST_DATABASE_* variables.
// Tests are skipped when TEST_DATABASE_HOST is not set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE_HOST") == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	t.Setenv("ENV", "TEST")

	conf := core.NewConfig()
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}

	ResetDB(t, db)
	t.Cleanup(func() {
		ResetDB(t, db)
		_ = db.Close()
	})
	return db
}
