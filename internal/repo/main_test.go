package repo_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/pressly/goose/v3"

	"github.com/pkordes/travelog/migrations"
	"github.com/pkordes/travelog/testutil"
)

// TestMain applies all pending migrations to the test database once for the
// whole binary so individual tests never need to think about schema state.
func TestMain(m *testing.M) {
	if os.Getenv(testutil.DSNEnv) == "" {
		// No test DB configured; every test skips via testutil.
		os.Exit(m.Run())
	}

	db := testutil.MustOpenSQLDB(os.Getenv(testutil.DSNEnv))
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		log.Fatalf("TestMain: create goose provider: %v", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		log.Fatalf("TestMain: run migrations: %v", err)
	}

	os.Exit(m.Run())
}
