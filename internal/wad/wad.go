// Package wad implements the 1e18 fixed-point integer arithmetic used for
// pool exchange rates, utilization and health factors. All values are
// arbitrary-precision integers; multiplication always happens before
// division so no precision is lost, and results are truncated.
package wad

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"
)

// One is the 1e18 scale factor.
var One = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// MaxHealthFactor is the sentinel for an undefined health factor
// (zero debt). It is the maximum 256-bit unsigned value.
var MaxHealthFactor = math.MaxBig256

// MulDiv returns a*b/d truncated. d must be non-zero.
func MulDiv(a, b, d *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, d)
}

// ExchangeRate returns totalAssets * 1e18 / totalShares, or 1e18 for an
// empty pool (first deposit mints shares 1:1).
func ExchangeRate(totalAssets, totalShares *big.Int) *big.Int {
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(One)
	}
	return MulDiv(totalAssets, One, totalShares)
}

// Utilization returns totalDebt * 1e18 / totalAssets, or zero for an
// empty pool.
func Utilization(totalDebt, totalAssets *big.Int) *big.Int {
	if totalAssets == nil || totalAssets.Sign() == 0 {
		return new(big.Int)
	}
	return MulDiv(totalDebt, One, totalAssets)
}

// HealthFactor returns collateralValue * 1e18 / currentDebt, or
// MaxHealthFactor when debt is zero.
func HealthFactor(collateralValue, currentDebt *big.Int) *big.Int {
	if currentDebt == nil || currentDebt.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor)
	}
	if collateralValue == nil {
		collateralValue = new(big.Int)
	}
	return MulDiv(collateralValue, One, currentDebt)
}

// SharesFor converts an asset amount to shares at the given exchange rate.
func SharesFor(amount, exchangeRate *big.Int) *big.Int {
	if exchangeRate.Sign() == 0 {
		return new(big.Int)
	}
	return MulDiv(amount, One, exchangeRate)
}

// AssetsFor converts shares to asset value at the given exchange rate.
func AssetsFor(shares, exchangeRate *big.Int) *big.Int {
	return MulDiv(shares, exchangeRate, One)
}

// SubClamped returns a-b clamped at zero. The second result reports
// whether clamping occurred (an underflow the caller should log).
func SubClamped(a, b *big.Int) (*big.Int, bool) {
	if a == nil {
		a = new(big.Int)
	}
	d := new(big.Int).Sub(a, b)
	if d.Sign() < 0 {
		return new(big.Int), true
	}
	return d, false
}

// Add returns a+b, treating nil as zero.
func Add(a, b *big.Int) *big.Int {
	if a == nil {
		a = new(big.Int)
	}
	return new(big.Int).Add(a, b)
}
