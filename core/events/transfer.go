package events

import (
	"math/big"

	"dscengine/core/types"
	"dscengine/crypto"
)

const (
	// TypeTransfer is emitted for every bank balance movement.
	TypeTransfer = "bank.transfer"
)

// Transfer records an asset moving between two accounts.
type Transfer struct {
	Asset  string
	From   crypto.Address
	To     crypto.Address
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = formatAddress(e.From)
	attrs["to"] = formatAddress(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
