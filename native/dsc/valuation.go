package dsc

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"dscengine/crypto"
)

func (e *Engine) price(asset Asset) (*uint256.Int, error) {
	source, ok := e.registry.PriceSource(asset)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAsset, string(asset))
	}
	answer, _, err := source.LatestPrice()
	if err != nil {
		return nil, fmt.Errorf("dsc engine: price for %s: %w", NormalizeAsset(string(asset)), err)
	}
	if answer == nil || answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, NormalizeAsset(string(asset)))
	}
	price, overflow := uint256.FromBig(answer)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return price, nil
}

func (e *Engine) valueOf(asset Asset, quantity *uint256.Int) (*uint256.Int, error) {
	price, err := e.price(asset)
	if err != nil {
		return nil, err
	}
	return usdValue(price, quantity)
}

func (e *Engine) quantityFor(asset Asset, value *uint256.Int) (*uint256.Int, error) {
	price, err := e.price(asset)
	if err != nil {
		return nil, err
	}
	return quantityFromUSD(price, value)
}

// positionValue sums the value of every supported asset held in pos.
func (e *Engine) positionValue(pos *Position) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, asset := range e.registry.Assets() {
		amount := pos.CollateralOf(asset)
		if amount.Sign() == 0 {
			continue
		}
		quantity, err := toUint256(amount)
		if err != nil {
			return nil, err
		}
		value, err := e.valueOf(asset, quantity)
		if err != nil {
			return nil, err
		}
		if total, err = addChecked(total, value); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (e *Engine) positionHealth(pos *Position) (*uint256.Int, bool, error) {
	debt, err := toUint256(pos.DebtMinted)
	if err != nil {
		return nil, false, err
	}
	if debt.IsZero() {
		return healthFactorOf(debt, new(uint256.Int))
	}
	value, err := e.positionValue(pos)
	if err != nil {
		return nil, false, err
	}
	return healthFactorOf(debt, value)
}

// ValueOf converts quantity of asset into the unit of account using the
// asset's latest price.
func (e *Engine) ValueOf(asset Asset, quantity *big.Int) (*big.Int, error) {
	if e == nil || e.registry == nil {
		return nil, ErrNilState
	}
	q, err := toUint256(quantity)
	if err != nil {
		return nil, err
	}
	value, err := e.valueOf(asset, q)
	if err != nil {
		return nil, err
	}
	return value.ToBig(), nil
}

// QuantityFor converts a unit-of-account value into a quantity of asset,
// rounding toward zero.
func (e *Engine) QuantityFor(asset Asset, value *big.Int) (*big.Int, error) {
	if e == nil || e.registry == nil {
		return nil, ErrNilState
	}
	v, err := toUint256(value)
	if err != nil {
		return nil, err
	}
	quantity, err := e.quantityFor(asset, v)
	if err != nil {
		return nil, err
	}
	return quantity.ToBig(), nil
}

// CollateralValue returns the unit-of-account value of all collateral held
// for user.
func (e *Engine) CollateralValue(user crypto.Address) (*big.Int, error) {
	if e == nil || e.registry == nil {
		return nil, ErrNilState
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	value, err := e.positionValue(pos)
	if err != nil {
		return nil, err
	}
	return value.ToBig(), nil
}

// CollateralBalance returns the quantity of asset held for user.
func (e *Engine) CollateralBalance(user crypto.Address, asset Asset) (*big.Int, error) {
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	return pos.CollateralOf(NormalizeAsset(string(asset))), nil
}

// Position returns a copy of the committed position for user.
func (e *Engine) Position(user crypto.Address) (*Position, error) {
	return e.loadPosition(user)
}

// AccountInformation returns user's minted debt and collateral value.
func (e *Engine) AccountInformation(user crypto.Address) (AccountInfo, error) {
	if e == nil || e.registry == nil {
		return AccountInfo{}, ErrNilState
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return AccountInfo{}, err
	}
	value, err := e.positionValue(pos)
	if err != nil {
		return AccountInfo{}, err
	}
	return AccountInfo{DebtMinted: cloneAmount(pos.DebtMinted), CollateralValue: value.ToBig()}, nil
}

// HealthFactor returns user's current health factor in the 1e18 scale. Users
// without minted debt have no defined health factor and get
// ErrUndefinedHealthFactor.
func (e *Engine) HealthFactor(user crypto.Address) (*big.Int, error) {
	if e == nil || e.registry == nil {
		return nil, ErrNilState
	}
	pos, err := e.loadPosition(user)
	if err != nil {
		return nil, err
	}
	hf, defined, err := e.positionHealth(pos)
	if err != nil {
		return nil, err
	}
	if !defined {
		return nil, fmt.Errorf("%w: account %s", ErrUndefinedHealthFactor, user)
	}
	return hf.ToBig(), nil
}

// CalculateHealthFactor applies the health factor formula to the supplied
// debt and collateral value.
func CalculateHealthFactor(debtMinted, collateralValue *big.Int) (*big.Int, error) {
	debt, err := toUint256(debtMinted)
	if err != nil {
		return nil, err
	}
	value, err := toUint256(collateralValue)
	if err != nil {
		return nil, err
	}
	hf, defined, err := healthFactorOf(debt, value)
	if err != nil {
		return nil, err
	}
	if !defined {
		return nil, ErrUndefinedHealthFactor
	}
	return hf.ToBig(), nil
}

// CollateralAssets returns the supported collateral assets in order.
func (e *Engine) CollateralAssets() []Asset {
	if e == nil {
		return nil
	}
	return e.registry.Assets()
}

// PriceSource returns the price source registered for asset.
func (e *Engine) PriceSource(asset Asset) (PriceSource, bool) {
	if e == nil {
		return nil, false
	}
	return e.registry.PriceSource(asset)
}
