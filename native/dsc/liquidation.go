package dsc

import (
	"fmt"
	"math/big"

	"dscengine/core/events"
	"dscengine/crypto"
	"dscengine/observability"
)

// Liquidate lets liquidator repay debtToCover of debtor's debt in exchange
// for the equivalent amount of asset plus a 10% bonus. Only positions below
// the minimum health factor can be liquidated and the debtor's health factor
// must strictly improve. The liquidator's own position must stay healthy.
func (e *Engine) Liquidate(liquidator crypto.Address, asset Asset, debtor crypto.Address, debtToCover *big.Int) (*LiquidationResult, error) {
	var result *LiquidationResult
	err := e.execute(opLiquidate, func(tx *txn) error {
		res, err := tx.liquidate(liquidator, asset, debtor, debtToCover)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.DSC().RecordLiquidation(string(result.Asset))
	healthAfter := "undefined"
	if result.HealthFactorAfter != nil {
		healthAfter = result.HealthFactorAfter.String()
	}
	e.logger.Info("dsc engine: position liquidated",
		"liquidator", liquidator.String(),
		"debtor", debtor.String(),
		"asset", string(result.Asset),
		"debt_covered", result.DebtCovered.String(),
		"collateral_seized", result.TotalCollateral.String(),
		"health_factor_before", result.HealthFactorBefore.String(),
		"health_factor_after", healthAfter,
	)
	return result, nil
}

func (t *txn) liquidate(liquidator crypto.Address, asset Asset, debtor crypto.Address, debtToCover *big.Int) (*LiquidationResult, error) {
	debt, err := positiveUint256(debtToCover)
	if err != nil {
		return nil, err
	}
	asset, err = t.supportedAsset(asset)
	if err != nil {
		return nil, err
	}

	before, defined, err := t.healthFactor(debtor)
	if err != nil {
		return nil, err
	}
	if !defined {
		if t.engine.strictZeroDebt {
			return nil, fmt.Errorf("%w: account %s", ErrUndefinedHealthFactor, debtor)
		}
		return nil, fmt.Errorf("%w: account %s has no debt", ErrPositionHealthy, debtor)
	}
	if !before.Lt(minHealthFactor) {
		return nil, fmt.Errorf("%w: account %s health factor %s", ErrPositionHealthy, debtor, before.Dec())
	}

	covered, err := t.engine.quantityFor(asset, debt)
	if err != nil {
		return nil, err
	}
	bonus, err := bonusFor(covered)
	if err != nil {
		return nil, err
	}
	total, err := addChecked(covered, bonus)
	if err != nil {
		return nil, err
	}

	if err := t.redeemCollateral(debtor, liquidator, asset, total.ToBig(), ErrSeizureExceedsCollateral); err != nil {
		return nil, err
	}
	if err := t.burnDebt(debtor, liquidator, debt.ToBig()); err != nil {
		return nil, err
	}

	after, defined, err := t.healthFactor(debtor)
	if err != nil {
		return nil, err
	}
	var healthAfter *big.Int
	if defined {
		if !after.Gt(before) {
			return nil, fmt.Errorf("%w: account %s health factor %s -> %s", ErrLiquidationIneffective, debtor, before.Dec(), after.Dec())
		}
		healthAfter = after.ToBig()
	} else if t.engine.strictZeroDebt {
		return nil, fmt.Errorf("%w: account %s after liquidation", ErrUndefinedHealthFactor, debtor)
	}
	if err := t.requireHealthy(liquidator); err != nil {
		return nil, err
	}

	result := &LiquidationResult{
		Asset:              asset,
		DebtCovered:        debt.ToBig(),
		CollateralSeized:   covered.ToBig(),
		Bonus:              bonus.ToBig(),
		TotalCollateral:    total.ToBig(),
		HealthFactorBefore: before.ToBig(),
		HealthFactorAfter:  healthAfter,
	}
	t.emit(events.DSCPositionLiquidated{
		Liquidator:         liquidator,
		Debtor:             debtor,
		Asset:              string(asset),
		DebtCovered:        cloneAmount(result.DebtCovered),
		CollateralSeized:   cloneAmount(result.CollateralSeized),
		Bonus:              cloneAmount(result.Bonus),
		HealthFactorBefore: cloneAmount(result.HealthFactorBefore),
		HealthFactorAfter:  cloneOptional(result.HealthFactorAfter),
	})
	return result, nil
}
