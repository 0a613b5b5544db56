package dsc

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"dscengine/core/events"
	"dscengine/crypto"
)

func (t *txn) supportedAsset(asset Asset) (Asset, error) {
	normalized := NormalizeAsset(string(asset))
	if !t.engine.registry.Supported(normalized) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAsset, string(asset))
	}
	return normalized, nil
}

func (t *txn) depositCollateral(user crypto.Address, asset Asset, amount *big.Int) error {
	qty, err := positiveUint256(amount)
	if err != nil {
		return err
	}
	asset, err = t.supportedAsset(asset)
	if err != nil {
		return err
	}
	pos, err := t.position(user)
	if err != nil {
		return err
	}
	current, err := toUint256(pos.CollateralOf(asset))
	if err != nil {
		return err
	}
	next, err := addChecked(current, qty)
	if err != nil {
		return err
	}
	pos.Collateral[asset] = next.ToBig()

	value := qty.ToBig()
	t.emit(events.DSCCollateralDeposited{Account: user, Asset: string(asset), Amount: cloneAmount(value)})

	transfers := t.engine.collateral
	t.queue("collateral transfer in",
		func() error { return transfers.TransferIn(asset, user, cloneAmount(value)) },
		func() error { return transfers.TransferOut(asset, user, cloneAmount(value)) },
	)
	return nil
}

// redeemCollateral releases collateral held for from to the recipient. The
// shortfall error is returned when from holds less than amount.
func (t *txn) redeemCollateral(from, to crypto.Address, asset Asset, amount *big.Int, shortfall error) error {
	qty, err := positiveUint256(amount)
	if err != nil {
		return err
	}
	asset, err = t.supportedAsset(asset)
	if err != nil {
		return err
	}
	pos, err := t.position(from)
	if err != nil {
		return err
	}
	value := qty.ToBig()
	balance := pos.CollateralOf(asset)
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, requested %s", shortfall, from, balance, asset, value)
	}
	remaining := new(big.Int).Sub(balance, value)
	if remaining.Sign() == 0 {
		delete(pos.Collateral, asset)
	} else {
		pos.Collateral[asset] = remaining
	}

	t.emit(events.DSCCollateralRedeemed{From: from, To: to, Asset: string(asset), Amount: cloneAmount(value)})

	transfers := t.engine.collateral
	t.queue("collateral transfer out",
		func() error { return transfers.TransferOut(asset, to, cloneAmount(value)) },
		func() error { return transfers.TransferIn(asset, to, cloneAmount(value)) },
	)
	return nil
}

func (t *txn) mintDebt(user crypto.Address, amount *big.Int) error {
	qty, err := positiveUint256(amount)
	if err != nil {
		return err
	}
	pos, err := t.position(user)
	if err != nil {
		return err
	}
	current, err := toUint256(pos.DebtMinted)
	if err != nil {
		return err
	}
	next, err := addChecked(current, qty)
	if err != nil {
		return err
	}
	pos.DebtMinted = next.ToBig()

	value := qty.ToBig()
	t.emit(events.DSCDebtMinted{Account: user, Amount: cloneAmount(value)})

	token := t.engine.debtToken
	t.queue("debt mint",
		func() error { return token.Mint(user, cloneAmount(value)) },
		func() error { return token.BurnFrom(user, cloneAmount(value)) },
	)
	return nil
}

// burnDebt retires debt recorded for onBehalfOf using tokens pulled from
// payer into the vault.
func (t *txn) burnDebt(onBehalfOf, payer crypto.Address, amount *big.Int) error {
	qty, err := positiveUint256(amount)
	if err != nil {
		return err
	}
	pos, err := t.position(onBehalfOf)
	if err != nil {
		return err
	}
	value := qty.ToBig()
	if pos.DebtMinted.Cmp(value) < 0 {
		return fmt.Errorf("%w: %s minted %s, burn requested %s", ErrInsufficientDebt, onBehalfOf, pos.DebtMinted, value)
	}
	pos.DebtMinted = new(big.Int).Sub(pos.DebtMinted, value)

	t.emit(events.DSCDebtBurned{OnBehalfOf: onBehalfOf, Payer: payer, Amount: cloneAmount(value)})

	token := t.engine.debtToken
	vault := t.engine.vault
	t.queue("debt transfer from payer",
		func() error { return token.TransferFrom(payer, vault, cloneAmount(value)) },
		func() error { return token.Refund(payer, cloneAmount(value)) },
	)
	t.queue("debt burn",
		func() error { return token.Burn(cloneAmount(value)) },
		func() error { return token.Mint(vault, cloneAmount(value)) },
	)
	return nil
}

// healthFactor evaluates the staged position of user.
func (t *txn) healthFactor(user crypto.Address) (*uint256.Int, bool, error) {
	pos, err := t.position(user)
	if err != nil {
		return nil, false, err
	}
	return t.engine.positionHealth(pos)
}

// requireHealthy fails when the staged position of user is below the minimum
// health factor. Zero-debt positions pass unless strict mode is on.
func (t *txn) requireHealthy(user crypto.Address) error {
	hf, defined, err := t.healthFactor(user)
	if err != nil {
		return err
	}
	if !defined {
		if t.engine.strictZeroDebt {
			return fmt.Errorf("%w: account %s", ErrUndefinedHealthFactor, user)
		}
		return nil
	}
	if hf.Lt(minHealthFactor) {
		return &HealthFactorError{Account: user, HealthFactor: hf.ToBig()}
	}
	return nil
}
