package bank

import (
	"fmt"
	"math/big"

	"dscengine/crypto"
	"dscengine/native/dsc"
)

var _ dsc.AssetTransfer = (*CollateralTransfer)(nil)

// CollateralTransfer moves collateral between user accounts and the engine
// custody account.
type CollateralTransfer struct {
	bank    *Bank
	custody crypto.Address
}

// NewCollateralTransfer binds bank transfers to the custody account.
func NewCollateralTransfer(bank *Bank, custody crypto.Address) *CollateralTransfer {
	return &CollateralTransfer{bank: bank, custody: custody}
}

// TransferIn pulls amount of asset from the user into custody.
func (c *CollateralTransfer) TransferIn(asset dsc.Asset, from crypto.Address, amount *big.Int) error {
	if c == nil || c.bank == nil {
		return fmt.Errorf("bank: collateral transfer not configured")
	}
	return c.bank.Transfer(string(asset), from, c.custody, amount)
}

// TransferOut releases amount of asset from custody to the recipient.
func (c *CollateralTransfer) TransferOut(asset dsc.Asset, to crypto.Address, amount *big.Int) error {
	if c == nil || c.bank == nil {
		return fmt.Errorf("bank: collateral transfer not configured")
	}
	return c.bank.Transfer(string(asset), c.custody, to, amount)
}
