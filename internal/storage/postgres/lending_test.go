package postgres_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/wad"
)

func TestPoolRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	pool := &domain.Pool{
		Address:     testPool,
		TotalAssets: wei(1_000_000),
		TotalShares: wei(1_000_000),
		TotalDebt:   wei(250_000),
		UpdatedAt:   1700000000,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutPool(ctx, pool)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Pool(ctx, testPool)
		require.NoError(t, err)
		assert.Equal(t, testPool, got.Address)
		assert.Equal(t, 0, got.TotalAssets.Cmp(wei(1_000_000)))
		assert.Equal(t, 0, got.TotalShares.Cmp(wei(1_000_000)))
		assert.Equal(t, 0, got.TotalDebt.Cmp(wei(250_000)))
		return nil
	})
}

func TestPoolNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	inTx(t, db, func(tx storage.Tx) error {
		_, err := tx.Pool(ctx, common.HexToAddress("0x9999999999999999999999999999999999999999"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

func TestWadScaleNumericsSurvive(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// 2^255-ish values must round-trip through NUMERIC(78,0) intact.
	huge, ok := new(big.Int).SetString("57896044618658097711785492504343953926634992332820282019728792003956564819967", 10)
	require.True(t, ok)

	lp := &domain.LiquidityProvider{
		ID:                domain.LPKey(testBidder, testPool),
		LP:                testBidder,
		Pool:              testPool,
		TotalDeposited:    huge,
		TotalWithdrawn:    wei(0),
		CurrentShares:     huge,
		CurrentAssetValue: new(big.Int).Set(wad.One),
		FirstDepositAt:    1700000000,
		LastActionAt:      1700000000,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutLiquidityProvider(ctx, lp)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.LiquidityProvider(ctx, lp.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.TotalDeposited.Cmp(huge))
		assert.Equal(t, 0, got.CurrentShares.Cmp(huge))
		assert.Equal(t, 0, got.CurrentAssetValue.Cmp(wad.One))
		return nil
	})
}

func TestAddSupplyTransactionReportsCreated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	supply := &domain.SupplyTransaction{
		ID:           "0xaaa-1",
		LP:           testBidder,
		Pool:         testPool,
		Type:         domain.SupplyDeposit,
		Amount:       wei(5000),
		Shares:       wei(5000),
		ExchangeRate: new(big.Int).Set(wad.One),
		Timestamp:    1700000100,
		BlockNumber:  110,
		TxHash:       common.HexToHash("0xaaa"),
	}
	inTx(t, db, func(tx storage.Tx) error {
		created, err := tx.AddSupplyTransaction(ctx, supply)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.AddSupplyTransaction(ctx, supply)
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	})
}

func TestBorrowerRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	b := &domain.Borrower{
		ID:                  domain.BorrowerKey(testBidder, testPool),
		Address:             testBidder,
		Pool:                testPool,
		TotalBorrowed:       wei(1000),
		TotalRepaid:         wei(200),
		CurrentDebt:         wei(800),
		CurrentHealthFactor: wad.MulDiv(wei(2000), wad.One, wei(800)),
		HasActiveCollateral: true,
		CollateralNFT:       testNFT,
		CollateralTokenID:   wei(42),
		CollateralValue:     wei(2000),
		FirstBorrowAt:       1700000000,
		LastActionAt:        1700000500,
		LiquidationCount:    1,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutBorrower(ctx, b)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Borrower(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, testBidder, got.Address)
		assert.Equal(t, 0, got.CurrentDebt.Cmp(wei(800)))
		assert.Equal(t, 0, got.CurrentHealthFactor.Cmp(b.CurrentHealthFactor))
		assert.True(t, got.HasActiveCollateral)
		assert.Equal(t, testNFT, got.CollateralNFT)
		assert.Equal(t, 0, got.CollateralValue.Cmp(wei(2000)))
		assert.Equal(t, uint32(1), got.LiquidationCount)
		return nil
	})
}

func TestAddBorrowAndCollateralTransactions(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	inTx(t, db, func(tx storage.Tx) error {
		created, err := tx.AddBorrowTransaction(ctx, &domain.BorrowTransaction{
			ID:           "0xbbb-0",
			Borrower:     testBidder,
			Pool:         testPool,
			Type:         domain.BorrowDraw,
			Amount:       wei(1000),
			NewTotalDebt: wei(1000),
			HealthFactor: wad.MulDiv(wei(2000), wad.One, wei(1000)),
			APRBps:       800,
			Timestamp:    1700000100,
			BlockNumber:  110,
			TxHash:       common.HexToHash("0xbbb"),
		})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.AddCollateralTransaction(ctx, &domain.CollateralTransaction{
			ID:          "0xccc-0",
			Borrower:    testBidder,
			Pool:        testPool,
			Type:        domain.CollateralDeposit,
			NFT:         testNFT,
			TokenID:     wei(42),
			ValueUSD:    wei(2000),
			Timestamp:   1700000100,
			BlockNumber: 110,
			TxHash:      common.HexToHash("0xccc"),
		})
		require.NoError(t, err)
		assert.True(t, created)
		return nil
	})
}

func TestNegativeLiquidationProfitSurvives(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// Seized collateral worth less than the repaid debt.
	inTx(t, db, func(tx storage.Tx) error {
		created, err := tx.AddLiquidation(ctx, &domain.LiquidationEvent{
			ID:              "0xddd-0",
			Borrower:        testBidder,
			Liquidator:      testSeller,
			Pool:            testPool,
			NFT:             testNFT,
			TokenID:         wei(42),
			RepayAmount:     wei(1000),
			CollateralValue: wei(700),
			Profit:          big.NewInt(-300),
			Timestamp:       1700000200,
			BlockNumber:     120,
			TxHash:          common.HexToHash("0xddd"),
		})
		require.NoError(t, err)
		assert.True(t, created)
		return nil
	})
}
