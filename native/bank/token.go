package bank

import (
	"errors"
	"fmt"
	"math/big"

	"dscengine/core/events"
	"dscengine/crypto"
	"dscengine/native/dsc"
	"dscengine/observability"
	"dscengine/storage"
)

// ErrInsufficientAllowance indicates the spender was not approved for the
// requested amount.
var ErrInsufficientAllowance = errors.New("bank: insufficient allowance")

// DefaultStableSymbol is the ticker used for the stablecoin balance.
const DefaultStableSymbol = "DSC"

var (
	allowancePrefix = []byte("bank/allowance/")
	supplyPrefix    = []byte("bank/supply/")
)

var _ dsc.DebtToken = (*StableToken)(nil)

// StableToken is the engine-owned debt token. Only the owner mints and only
// the owner's balance is burned. TransferFrom is spent by the owner and
// needs an allowance unless the tokens already sit with the owner.
type StableToken struct {
	bank   *Bank
	symbol string
	owner  crypto.Address
}

// NewStableToken creates a token recorded in bank under symbol and owned by
// owner. An empty symbol selects DefaultStableSymbol.
func NewStableToken(bank *Bank, symbol string, owner crypto.Address) (*StableToken, error) {
	if bank == nil {
		return nil, fmt.Errorf("bank: stable token requires a bank")
	}
	if symbol == "" {
		symbol = DefaultStableSymbol
	}
	normalized, err := normaliseAsset(symbol)
	if err != nil {
		return nil, err
	}
	return &StableToken{bank: bank, symbol: normalized, owner: owner}, nil
}

// Symbol returns the token ticker.
func (t *StableToken) Symbol() string { return t.symbol }

// Owner returns the mint authority.
func (t *StableToken) Owner() crypto.Address { return t.owner }

func (t *StableToken) supplyKey() []byte {
	return append(append([]byte{}, supplyPrefix...), t.symbol...)
}

func (t *StableToken) allowanceKey(holder, spender crypto.Address) []byte {
	key := append([]byte{}, allowancePrefix...)
	key = append(key, t.symbol...)
	key = append(key, '/')
	key = append(key, holder.Bytes()...)
	return append(key, spender.Bytes()...)
}

// BalanceOf returns the token balance of account.
func (t *StableToken) BalanceOf(account crypto.Address) (*big.Int, error) {
	return t.bank.Balance(t.symbol, account)
}

// TotalSupply returns the outstanding supply.
func (t *StableToken) TotalSupply() (*big.Int, error) {
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	return t.bank.load(t.supplyKey())
}

// Allowance returns how much spender may pull from holder.
func (t *StableToken) Allowance(holder, spender crypto.Address) (*big.Int, error) {
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	return t.bank.load(t.allowanceKey(holder, spender))
}

// Approve sets the amount spender may pull from holder. Zero clears it.
func (t *StableToken) Approve(holder, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	t.bank.mu.Lock()
	defer t.bank.mu.Unlock()
	return t.bank.apply(func(batch storage.Batch) error {
		key := t.allowanceKey(holder, spender)
		if amount.Sign() == 0 {
			batch.Delete(key)
			return nil
		}
		batch.Put(key, amount.Bytes())
		return nil
	})
}

// Mint credits amount to the recipient and grows the supply.
func (t *StableToken) Mint(to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.bank.mu.Lock()
	err := t.bank.apply(func(batch storage.Batch) error {
		if err := t.bank.adjust(batch, balanceKey(t.symbol, to), amount); err != nil {
			return err
		}
		return t.bank.adjust(batch, t.supplyKey(), amount)
	})
	t.bank.mu.Unlock()
	if err != nil {
		return err
	}
	t.reportSupply(amount, events.SupplyReasonMint)
	return nil
}

// Burn destroys amount held by the owner.
func (t *StableToken) Burn(amount *big.Int) error {
	return t.BurnFrom(t.owner, amount)
}

// BurnFrom destroys amount held by holder on the owner's authority. No
// allowance is consumed; the engine uses it to reverse a mint.
func (t *StableToken) BurnFrom(holder crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	negated := new(big.Int).Neg(amount)
	t.bank.mu.Lock()
	err := t.bank.apply(func(batch storage.Batch) error {
		if err := t.bank.adjust(batch, balanceKey(t.symbol, holder), negated); err != nil {
			return err
		}
		return t.bank.adjust(batch, t.supplyKey(), negated)
	})
	t.bank.mu.Unlock()
	if err != nil {
		return err
	}
	t.reportSupply(negated, events.SupplyReasonBurn)
	return nil
}

// Transfer moves tokens between holders on the holder's own authority.
func (t *StableToken) Transfer(from, to crypto.Address, amount *big.Int) error {
	return t.bank.Transfer(t.symbol, from, to, amount)
}

// TransferFrom moves tokens on the owner's authority, consuming the holder's
// allowance for the owner.
func (t *StableToken) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.bank.mu.Lock()
	err := t.bank.apply(func(batch storage.Batch) error {
		if !from.Equal(t.owner) {
			key := t.allowanceKey(from, t.owner)
			allowed, err := t.bank.load(key)
			if err != nil {
				return err
			}
			if allowed.Cmp(amount) < 0 {
				return fmt.Errorf("%w: approved %s, need %s", ErrInsufficientAllowance, allowed, amount)
			}
			if err := t.bank.adjust(batch, key, new(big.Int).Neg(amount)); err != nil {
				return err
			}
		}
		return t.bank.move(batch, t.symbol, from, to, amount)
	})
	t.bank.mu.Unlock()
	if err != nil {
		return err
	}
	t.bank.emit(events.Transfer{Asset: t.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Refund returns amount from the owner to holder and restores the allowance
// a TransferFrom into the owner consumed.
func (t *StableToken) Refund(holder crypto.Address, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	t.bank.mu.Lock()
	err := t.bank.apply(func(batch storage.Batch) error {
		if !holder.Equal(t.owner) {
			if err := t.bank.adjust(batch, t.allowanceKey(holder, t.owner), amount); err != nil {
				return err
			}
		}
		return t.bank.move(batch, t.symbol, t.owner, holder, amount)
	})
	t.bank.mu.Unlock()
	if err != nil {
		return err
	}
	t.bank.emit(events.Transfer{Asset: t.symbol, From: t.owner, To: holder, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *StableToken) reportSupply(delta *big.Int, reason string) {
	t.bank.mu.Lock()
	supply, err := t.bank.load(t.supplyKey())
	t.bank.mu.Unlock()
	if err != nil {
		return
	}
	observability.DSC().SetSupply(supply)
	t.bank.emit(events.TokenSupply{Token: t.symbol, Total: supply, Delta: new(big.Int).Set(delta), Reason: reason})
}
