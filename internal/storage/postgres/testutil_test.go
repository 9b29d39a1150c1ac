package postgres_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/storage/migrations"
	"domain-market-indexer/internal/storage/postgres"
)

var ctx = context.Background()

// setupTestDB starts a throwaway PostgreSQL container, applies the
// embedded migrations and returns the transactional store. The cleanup
// function must be called after tests complete.
func setupTestDB(t *testing.T) (*postgres.DB, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to apply migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return postgres.NewDB(pool, nil), cleanup
}

// inTx runs fn in one transaction and fails the test on error.
func inTx(t *testing.T, db *postgres.DB, fn func(tx storage.Tx) error) {
	t.Helper()
	require.NoError(t, db.InTx(context.Background(), fn))
}

func wei(v int64) *big.Int {
	return big.NewInt(v)
}

var (
	testSeller = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testBidder = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testNFT    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testWETH   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testPool   = common.HexToAddress("0x5555555555555555555555555555555555555555")
)
