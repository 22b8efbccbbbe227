//go:build integration

package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/store/postgres"
)

// testDB returns a migrated database for integration tests. Set
// TEST_DB_URL to reuse an external instance; otherwise an ephemeral
// testcontainers PostgreSQL is started per test.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	if url := os.Getenv("TEST_DB_URL"); url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		require.NoError(t, db.RunMigrations(migrationsPath()))
		return db
	}
	return setupTestContainer(t)
}

// pgImage is overridable so CI environments with a private registry
// mirror can pin their own image.
func pgImage() string {
	if img := os.Getenv("TEST_PG_IMAGE"); img != "" {
		return img
	}
	return "postgres:16-alpine"
}

// migrationsPath resolves the migrations directory relative to this
// source file, so tests work from any working directory.
func migrationsPath() string {
	_, currentFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(currentFile), "migrations")
}

func setupTestContainer(t *testing.T) *postgres.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		pgImage(),
		tcpostgres.WithDatabase("test_composer"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.New(postgres.Config{
		URL:             connStr,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.RunMigrations(migrationsPath()))
	return db
}

// randomTxID builds a fresh 32-byte transaction id from two UUIDs.
func randomTxID(t *testing.T) model.TransactionID {
	t.Helper()
	var id model.TransactionID
	a, b := uuid.New(), uuid.New()
	copy(id[:16], a[:])
	copy(id[16:], b[:])
	return id
}

// randomEid gives each test its own endpoint id so runs against a
// shared TEST_DB_URL database stay isolated.
func randomEid() uint32 {
	return 40000 + uint32(time.Now().UnixNano()%1000000)
}
