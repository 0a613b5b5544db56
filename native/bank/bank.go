package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"dscengine/core/events"
	"dscengine/crypto"
	"dscengine/storage"
)

var (
	// ErrInsufficientBalance indicates the sender cannot cover the amount.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount indicates a nil, zero or negative amount.
	ErrInvalidAmount = errors.New("bank: amount must be positive")
	// ErrUnknownAsset indicates an empty asset symbol.
	ErrUnknownAsset = errors.New("bank: asset symbol required")
)

var balancePrefix = []byte("bank/balance/")

// Bank keeps per-asset account balances in a key-value store. Every
// mutation is written through a single batch so debits and credits land
// together.
type Bank struct {
	mu      sync.Mutex
	db      storage.Database
	emitter events.Emitter
}

// New returns a bank backed by db. A nil db selects an in-memory store.
func New(db storage.Database) *Bank {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &Bank{db: db, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where transfer and supply events are published.
func (b *Bank) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	b.mu.Lock()
	b.emitter = emitter
	b.mu.Unlock()
}

func (b *Bank) emit(evt events.Event) {
	b.mu.Lock()
	emitter := b.emitter
	b.mu.Unlock()
	emitter.Emit(evt)
}

func normaliseAsset(asset string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(asset))
	if symbol == "" {
		return "", ErrUnknownAsset
	}
	return symbol, nil
}

func balanceKey(asset string, account crypto.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+crypto.AddressLength)
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	return append(key, account.Bytes()...)
}

func (b *Bank) load(key []byte) (*big.Int, error) {
	raw, err := b.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Balance returns account's holding of asset.
func (b *Bank) Balance(asset string, account crypto.Address) (*big.Int, error) {
	symbol, err := normaliseAsset(asset)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(balanceKey(symbol, account))
}

// Credit adds amount of asset to account. It is used for funding accounts
// and by token minting.
func (b *Bank) Credit(asset string, account crypto.Address, amount *big.Int) error {
	symbol, err := normaliseAsset(asset)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apply(func(batch storage.Batch) error {
		return b.adjust(batch, balanceKey(symbol, account), amount)
	})
}

// Debit removes amount of asset from account.
func (b *Bank) Debit(asset string, account crypto.Address, amount *big.Int) error {
	symbol, err := normaliseAsset(asset)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apply(func(batch storage.Batch) error {
		return b.adjust(batch, balanceKey(symbol, account), new(big.Int).Neg(amount))
	})
}

// Transfer moves amount of asset from one account to another.
func (b *Bank) Transfer(asset string, from, to crypto.Address, amount *big.Int) error {
	symbol, err := normaliseAsset(asset)
	if err != nil {
		return err
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	err = b.apply(func(batch storage.Batch) error {
		return b.move(batch, symbol, from, to, amount)
	})
	b.mu.Unlock()
	if err != nil {
		return err
	}
	b.emit(events.Transfer{Asset: symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (b *Bank) apply(stage func(storage.Batch) error) error {
	batch := b.db.NewBatch()
	if err := stage(batch); err != nil {
		return err
	}
	return batch.Write()
}

// adjust stages balance += delta. Negative results are rejected.
func (b *Bank) adjust(batch storage.Batch, key []byte, delta *big.Int) error {
	current, err := b.load(key)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, new(big.Int).Neg(delta))
	}
	if next.Sign() == 0 {
		batch.Delete(key)
		return nil
	}
	batch.Put(key, next.Bytes())
	return nil
}

func (b *Bank) move(batch storage.Batch, symbol string, from, to crypto.Address, amount *big.Int) error {
	if from.Equal(to) {
		current, err := b.load(balanceKey(symbol, from))
		if err != nil {
			return err
		}
		if current.Cmp(amount) < 0 {
			return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, current, amount)
		}
		return nil
	}
	if err := b.adjust(batch, balanceKey(symbol, from), new(big.Int).Neg(amount)); err != nil {
		return err
	}
	return b.adjust(batch, balanceKey(symbol, to), amount)
}
