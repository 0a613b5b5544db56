package events

import (
	"math/big"

	"dscengine/core/types"
	"dscengine/crypto"
)

const (
	TypeDSCCollateralDeposited = "dsc.collateral.deposited"
	TypeDSCCollateralRedeemed  = "dsc.collateral.redeemed"
	TypeDSCDebtMinted          = "dsc.debt.minted"
	TypeDSCDebtBurned          = "dsc.debt.burned"
	TypeDSCPositionLiquidated  = "dsc.position.liquidated"
)

// DSCCollateralDeposited records collateral moved into engine custody.
type DSCCollateralDeposited struct {
	Account crypto.Address
	Asset   string
	Amount  *big.Int
}

func (DSCCollateralDeposited) EventType() string { return TypeDSCCollateralDeposited }

func (e DSCCollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeDSCCollateralDeposited,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"asset":   normalizeAsset(e.Asset),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// DSCCollateralRedeemed records collateral released from an account's
// position. From and To differ during liquidation.
type DSCCollateralRedeemed struct {
	From   crypto.Address
	To     crypto.Address
	Asset  string
	Amount *big.Int
}

func (DSCCollateralRedeemed) EventType() string { return TypeDSCCollateralRedeemed }

func (e DSCCollateralRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeDSCCollateralRedeemed,
		Attributes: map[string]string{
			"from":   formatAddress(e.From),
			"to":     formatAddress(e.To),
			"asset":  normalizeAsset(e.Asset),
			"amount": formatAmount(e.Amount),
		},
	}
}

type DSCDebtMinted struct {
	Account crypto.Address
	Amount  *big.Int
}

func (DSCDebtMinted) EventType() string { return TypeDSCDebtMinted }

func (e DSCDebtMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeDSCDebtMinted,
		Attributes: map[string]string{
			"account": formatAddress(e.Account),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// DSCDebtBurned records debt retired for OnBehalfOf using tokens pulled from
// Payer.
type DSCDebtBurned struct {
	OnBehalfOf crypto.Address
	Payer      crypto.Address
	Amount     *big.Int
}

func (DSCDebtBurned) EventType() string { return TypeDSCDebtBurned }

func (e DSCDebtBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeDSCDebtBurned,
		Attributes: map[string]string{
			"onBehalfOf": formatAddress(e.OnBehalfOf),
			"payer":      formatAddress(e.Payer),
			"amount":     formatAmount(e.Amount),
		},
	}
}

// DSCPositionLiquidated summarises a completed liquidation. A nil
// HealthFactorAfter means the debt was cleared and the attribute is omitted.
type DSCPositionLiquidated struct {
	Liquidator         crypto.Address
	Debtor             crypto.Address
	Asset              string
	DebtCovered        *big.Int
	CollateralSeized   *big.Int
	Bonus              *big.Int
	HealthFactorBefore *big.Int
	HealthFactorAfter  *big.Int
}

func (DSCPositionLiquidated) EventType() string { return TypeDSCPositionLiquidated }

func (e DSCPositionLiquidated) Event() *types.Event {
	attrs := map[string]string{
		"liquidator":         formatAddress(e.Liquidator),
		"debtor":             formatAddress(e.Debtor),
		"asset":              normalizeAsset(e.Asset),
		"debtCovered":        formatAmount(e.DebtCovered),
		"collateralSeized":   formatAmount(e.CollateralSeized),
		"bonus":              formatAmount(e.Bonus),
		"healthFactorBefore": formatAmount(e.HealthFactorBefore),
	}
	if e.HealthFactorAfter != nil {
		attrs["healthFactorAfter"] = e.HealthFactorAfter.String()
	}
	return &types.Event{Type: TypeDSCPositionLiquidated, Attributes: attrs}
}
