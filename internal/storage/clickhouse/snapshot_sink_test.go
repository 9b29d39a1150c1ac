package clickhouse_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"domain-market-indexer/internal/domain"
	chstore "domain-market-indexer/internal/storage/clickhouse"
	"domain-market-indexer/internal/storage/migrations"
	"domain-market-indexer/internal/wad"
)

// setupTestSink starts a ClickHouse container, applies the embedded
// migrations and returns the snapshot sink plus the underlying
// connection for verification queries.
func setupTestSink(t *testing.T) (*chstore.SnapshotSink, *chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/indexer_test", host, port.Port())
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}
	return chstore.NewSnapshotSink(conn), conn, cleanup
}

var snapPool = common.HexToAddress("0x5555555555555555555555555555555555555555")

func TestWritePoolMetrics(t *testing.T) {
	sink, conn, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	rows := []*domain.PoolMetrics{
		{
			ID:           "0xaa-0",
			Pool:         snapPool,
			TotalAssets:  big.NewInt(1_000_000),
			TotalShares:  big.NewInt(1_000_000),
			TotalDebt:    big.NewInt(250_000),
			ExchangeRate: new(big.Int).Set(wad.One),
			Utilization:  big.NewInt(250_000_000_000_000_000),
			Timestamp:    1700000100,
			BlockNumber:  110,
		},
		{
			ID:           "0xab-0",
			Pool:         snapPool,
			TotalAssets:  big.NewInt(1_100_000),
			TotalShares:  big.NewInt(1_100_000),
			TotalDebt:    big.NewInt(250_000),
			ExchangeRate: new(big.Int).Set(wad.One),
			Timestamp:    1700000200,
			BlockNumber:  120,
		},
	}
	require.NoError(t, sink.WritePoolMetrics(ctx, rows))

	var count uint64
	require.NoError(t, conn.QueryRow(ctx, "SELECT count() FROM pool_metrics").Scan(&count))
	assert.Equal(t, uint64(2), count)

	var assets big.Int
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT total_assets FROM pool_metrics WHERE id = '0xab-0'").Scan(&assets))
	assert.Equal(t, "1100000", assets.String())
}

func TestWriteRateSnapshots(t *testing.T) {
	sink, conn, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	rows := []*domain.InterestRateSnapshot{
		{
			ID:           "0xac-0",
			Pool:         snapPool,
			Utilization:  big.NewInt(500_000_000_000_000_000),
			ExchangeRate: new(big.Int).Set(wad.One),
			BorrowAPRBps: 800,
			Timestamp:    1700000300,
			BlockNumber:  130,
		},
	}
	require.NoError(t, sink.WriteRateSnapshots(ctx, rows))

	var bps uint32
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT borrow_apr_bps FROM interest_rate_snapshots WHERE id = '0xac-0'").Scan(&bps))
	assert.Equal(t, uint32(800), bps)
}

func TestWriteEmptyBatchIsNoop(t *testing.T) {
	sink, _, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, sink.WritePoolMetrics(ctx, nil))
	require.NoError(t, sink.WriteRateSnapshots(ctx, nil))
}

func TestReplayedSnapshotRowsDeduplicateOnMerge(t *testing.T) {
	sink, conn, cleanup := setupTestSink(t)
	defer cleanup()

	ctx := context.Background()
	row := []*domain.PoolMetrics{{
		ID:          "0xad-0",
		Pool:        snapPool,
		TotalAssets: big.NewInt(42),
		Timestamp:   1700000400,
		BlockNumber: 140,
	}}
	require.NoError(t, sink.WritePoolMetrics(ctx, row))
	require.NoError(t, sink.WritePoolMetrics(ctx, row))

	var count uint64
	require.NoError(t, conn.QueryRow(ctx,
		"SELECT count() FROM pool_metrics FINAL WHERE id = '0xad-0'").Scan(&count))
	assert.Equal(t, uint64(1), count)
}
