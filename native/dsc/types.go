package dsc

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"dscengine/crypto"
)

// Asset identifies a collateral type by its upper-case symbol.
type Asset string

// NormalizeAsset trims and upper-cases a collateral symbol.
func NormalizeAsset(symbol string) Asset {
	return Asset(strings.ToUpper(strings.TrimSpace(symbol)))
}

func (a Asset) String() string { return string(a) }

// PriceSource reports the latest unit-of-account price for one collateral
// asset with FeedDecimals implicit decimals.
type PriceSource interface {
	LatestPrice() (price *big.Int, updatedAt time.Time, err error)
}

// AssetTransfer moves collateral between accounts and engine custody.
type AssetTransfer interface {
	TransferIn(asset Asset, from crypto.Address, amount *big.Int) error
	TransferOut(asset Asset, to crypto.Address, amount *big.Int) error
}

// DebtToken is the synthetic dollar. The engine holds exclusive mint
// authority and burns only from its own balance after pulling tokens in.
// BurnFrom and Refund reverse a Mint and a TransferFrom into the engine on
// the engine's authority, without consulting the holder's allowance.
type DebtToken interface {
	Mint(to crypto.Address, amount *big.Int) error
	Burn(amount *big.Int) error
	TransferFrom(from, to crypto.Address, amount *big.Int) error
	BurnFrom(holder crypto.Address, amount *big.Int) error
	Refund(holder crypto.Address, amount *big.Int) error
}

// Position is the ledger entry for one account: collateral per asset plus
// the debt it has minted.
type Position struct {
	Owner      crypto.Address
	Collateral map[Asset]*big.Int
	DebtMinted *big.Int
}

// NewPosition returns the zero position for owner.
func NewPosition(owner crypto.Address) *Position {
	return &Position{
		Owner:      owner,
		Collateral: make(map[Asset]*big.Int),
		DebtMinted: big.NewInt(0),
	}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := NewPosition(p.Owner)
	for asset, amount := range p.Collateral {
		if amount != nil {
			clone.Collateral[asset] = new(big.Int).Set(amount)
		}
	}
	if p.DebtMinted != nil {
		clone.DebtMinted.Set(p.DebtMinted)
	}
	return clone
}

// CollateralOf returns a copy of the balance held for asset.
func (p *Position) CollateralOf(asset Asset) *big.Int {
	if p == nil || p.Collateral == nil {
		return big.NewInt(0)
	}
	if amount, ok := p.Collateral[asset]; ok && amount != nil {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

// Assets lists the assets with a non-zero balance in sorted order.
func (p *Position) Assets() []Asset {
	if p == nil {
		return nil
	}
	assets := make([]Asset, 0, len(p.Collateral))
	for asset, amount := range p.Collateral {
		if amount != nil && amount.Sign() > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	return assets
}

// IsEmpty reports whether the position holds neither collateral nor debt.
func (p *Position) IsEmpty() bool {
	if p == nil {
		return true
	}
	if p.DebtMinted != nil && p.DebtMinted.Sign() != 0 {
		return false
	}
	return len(p.Assets()) == 0
}

func (p *Position) ensureDefaults() {
	if p.Collateral == nil {
		p.Collateral = make(map[Asset]*big.Int)
	}
	if p.DebtMinted == nil {
		p.DebtMinted = big.NewInt(0)
	}
}

// AccountInfo summarises an account's debt and collateral value.
type AccountInfo struct {
	DebtMinted      *big.Int `json:"debtMinted"`
	CollateralValue *big.Int `json:"collateralValue"`
}

// LiquidationResult describes a completed liquidation. TotalCollateral is
// CollateralSeized plus Bonus, all denominated in the seized asset.
// HealthFactorAfter is nil when the liquidation cleared the debtor's debt.
type LiquidationResult struct {
	Asset              Asset    `json:"asset"`
	DebtCovered        *big.Int `json:"debtCovered"`
	CollateralSeized   *big.Int `json:"collateralSeized"`
	Bonus              *big.Int `json:"bonus"`
	TotalCollateral    *big.Int `json:"totalCollateral"`
	HealthFactorBefore *big.Int `json:"healthFactorBefore"`
	HealthFactorAfter  *big.Int `json:"healthFactorAfter,omitempty"`
}
