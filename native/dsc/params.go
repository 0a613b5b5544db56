package dsc

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Fixed-point conventions. Amounts carry 18 decimals, price feeds carry 8, so
// feed answers are scaled up by 1e10 before use.
const (
	precisionUint64               = 1_000_000_000_000_000_000
	additionalFeedPrecisionUint64 = 10_000_000_000
	feedDecimals                  = 8

	liquidationThresholdPct = 50
	liquidationPrecisionPct = 100
	liquidationBonusPct     = 10
)

var (
	precision               = uint256.NewInt(precisionUint64)
	additionalFeedPrecision = uint256.NewInt(additionalFeedPrecisionUint64)
	liquidationThreshold    = uint256.NewInt(liquidationThresholdPct)
	liquidationPrecision    = uint256.NewInt(liquidationPrecisionPct)
	liquidationBonus        = uint256.NewInt(liquidationBonusPct)
	minHealthFactor         = uint256.NewInt(precisionUint64)
	maxHealthFactor         = new(uint256.Int).SetAllOne()
)

// Precision returns the 1e18 fixed-point scale used for amounts and health
// factors.
func Precision() *big.Int { return precision.ToBig() }

// AdditionalFeedPrecision returns the factor applied to 8-decimal feed prices.
func AdditionalFeedPrecision() *big.Int { return additionalFeedPrecision.ToBig() }

// FeedDecimals is the number of decimals price sources are expected to report.
func FeedDecimals() uint8 { return feedDecimals }

// LiquidationThreshold returns the share of collateral value, out of
// LiquidationPrecision, that counts toward debt capacity.
func LiquidationThreshold() uint64 { return liquidationThresholdPct }

// LiquidationPrecision is the denominator for the threshold and bonus.
func LiquidationPrecision() uint64 { return liquidationPrecisionPct }

// LiquidationBonus returns the liquidator bonus out of LiquidationPrecision.
func LiquidationBonus() uint64 { return liquidationBonusPct }

// MinHealthFactor returns 1.0 in the 1e18 scale.
func MinHealthFactor() *big.Int { return minHealthFactor.ToBig() }
