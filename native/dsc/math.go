package dsc

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// toUint256 converts a caller supplied amount. Negative values are rejected as
// invalid, values that do not fit 256 bits as overflow.
func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// positiveUint256 is toUint256 that also rejects zero.
func positiveUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return toUint256(v)
}

func mulChecked(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

func addChecked(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

// mulDiv computes a*b/c rounding toward zero. The product must fit 256 bits.
func mulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmeticOverflow)
	}
	product, err := mulChecked(a, b)
	if err != nil {
		return nil, err
	}
	return product.Div(product, c), nil
}

// usdValue converts a collateral quantity into the unit of account:
// price * 1e10 * quantity / 1e18.
func usdValue(price, quantity *uint256.Int) (*uint256.Int, error) {
	scaledPrice, err := mulChecked(price, additionalFeedPrecision)
	if err != nil {
		return nil, err
	}
	return mulDiv(scaledPrice, quantity, precision)
}

// quantityFromUSD is the inverse of usdValue: value * 1e18 / (price * 1e10).
func quantityFromUSD(price, value *uint256.Int) (*uint256.Int, error) {
	scaledPrice, err := mulChecked(price, additionalFeedPrecision)
	if err != nil {
		return nil, err
	}
	return mulDiv(value, precision, scaledPrice)
}

// healthFactorOf computes (collateralValue * 50 / 100) * 1e18 / debt. The
// boolean is false when debt is zero and the ratio is undefined.
func healthFactorOf(debt, collateralValue *uint256.Int) (*uint256.Int, bool, error) {
	if debt.IsZero() {
		return new(uint256.Int).Set(maxHealthFactor), false, nil
	}
	adjusted, err := mulDiv(collateralValue, liquidationThreshold, liquidationPrecision)
	if err != nil {
		return nil, false, err
	}
	hf, err := mulDiv(adjusted, precision, debt)
	if err != nil {
		return nil, false, err
	}
	return hf, true, nil
}

// bonusFor returns quantity * 10 / 100.
func bonusFor(quantity *uint256.Int) (*uint256.Int, error) {
	return mulDiv(quantity, liquidationBonus, liquidationPrecision)
}
