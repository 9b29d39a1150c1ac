package wad

import (
	"math/big"
	"testing"
)

func TestExchangeRate_IntegerTruncation(t *testing.T) {
	// 1,000,000 * 1e18 / 900,000 = 1.111...e18, truncated
	got := ExchangeRate(big.NewInt(1_000_000), big.NewInt(900_000))

	want, _ := new(big.Int).SetString("1111111111111111111", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("exchange rate mismatch: got %s, want %s", got, want)
	}
}

func TestExchangeRate_EmptyPool(t *testing.T) {
	got := ExchangeRate(big.NewInt(0), big.NewInt(0))
	if got.Cmp(One) != 0 {
		t.Errorf("empty pool rate: got %s, want %s", got, One)
	}
}

func TestExchangeRate_256BitMagnitude(t *testing.T) {
	// Multiplying a near-2^256 asset total by 1e18 must not overflow.
	assets := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	shares := new(big.Int).Lsh(big.NewInt(1), 200)

	got := ExchangeRate(assets, shares)
	want := new(big.Int).Mul(assets, One)
	want.Quo(want, shares)
	if got.Cmp(want) != 0 {
		t.Errorf("large magnitude rate: got %s, want %s", got, want)
	}
}

func TestUtilization(t *testing.T) {
	// 500,000 debt over 1,000,000 assets = 0.5e18
	got := Utilization(big.NewInt(500_000), big.NewInt(1_000_000))
	want, _ := new(big.Int).SetString("500000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("utilization: got %s, want %s", got, want)
	}

	if got := Utilization(big.NewInt(1), big.NewInt(0)); got.Sign() != 0 {
		t.Errorf("empty pool utilization: got %s, want 0", got)
	}
}

func TestHealthFactor_ZeroDebtSentinel(t *testing.T) {
	got := HealthFactor(big.NewInt(1000), big.NewInt(0))
	if got.Cmp(MaxHealthFactor) != 0 {
		t.Errorf("zero-debt health factor: got %s, want sentinel max", got)
	}
}

func TestHealthFactor_Formula(t *testing.T) {
	// 1500 collateral over 1000 debt = 1.5e18
	got := HealthFactor(big.NewInt(1500), big.NewInt(1000))
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("health factor: got %s, want %s", got, want)
	}
}

func TestSharesAssetsRoundTrip(t *testing.T) {
	rate, _ := new(big.Int).SetString("1111111111111111111", 10)

	shares := SharesFor(big.NewInt(1_000_000), rate)
	// 1,000,000 * 1e18 / 1.111...e18 = 900,000 (truncated)
	if shares.Cmp(big.NewInt(900_000)) != 0 {
		t.Errorf("shares: got %s, want 900000", shares)
	}

	assets := AssetsFor(shares, rate)
	if assets.Cmp(big.NewInt(999_999)) != 0 {
		t.Errorf("assets: got %s, want 999999 (truncation)", assets)
	}
}

func TestSubClamped(t *testing.T) {
	d, clamped := SubClamped(big.NewInt(5), big.NewInt(3))
	if clamped || d.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("5-3: got %s clamped=%v", d, clamped)
	}

	d, clamped = SubClamped(big.NewInt(3), big.NewInt(5))
	if !clamped || d.Sign() != 0 {
		t.Errorf("3-5: got %s clamped=%v, want 0 clamped", d, clamped)
	}

	d, clamped = SubClamped(nil, big.NewInt(1))
	if !clamped || d.Sign() != 0 {
		t.Errorf("nil-1: got %s clamped=%v, want 0 clamped", d, clamped)
	}
}
