package dsc

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"dscengine/crypto"
	"dscengine/storage"
)

// engineState is the persistence the engine needs. GetPosition returns nil
// without error for accounts that were never written. PutPositions must apply
// all positions or none.
type engineState interface {
	GetPosition(owner crypto.Address) (*Position, error)
	PutPositions(positions ...*Position) error
}

var positionPrefix = []byte("dsc/position/")

func positionKey(owner crypto.Address) []byte {
	raw := owner.Bytes()
	buf := make([]byte, len(positionPrefix)+len(raw))
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], raw)
	return buf
}

type storedCollateral struct {
	Asset  string
	Amount *big.Int
}

type storedPosition struct {
	Owner      []byte
	Prefix     string
	Collateral []storedCollateral
	DebtMinted *big.Int
}

// Store persists positions in a key/value database using RLP encoding.
type Store struct {
	db storage.Database
}

// NewStore constructs a Store backed by db.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// GetPosition loads the position for owner.
func (s *Store) GetPosition(owner crypto.Address) (*Position, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	raw, err := s.db.Get(positionKey(owner))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load position: %w", err)
	}
	var stored storedPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	addr, err := crypto.AddressFromBytes(crypto.AddressPrefix(stored.Prefix), stored.Owner)
	if err != nil {
		return nil, fmt.Errorf("decode position owner: %w", err)
	}
	pos := NewPosition(addr)
	for _, entry := range stored.Collateral {
		if entry.Amount == nil || entry.Amount.Sign() == 0 {
			continue
		}
		pos.Collateral[Asset(entry.Asset)] = new(big.Int).Set(entry.Amount)
	}
	if stored.DebtMinted != nil {
		pos.DebtMinted.Set(stored.DebtMinted)
	}
	return pos, nil
}

// PutPositions writes every position in one batch.
func (s *Store) PutPositions(positions ...*Position) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	batch := s.db.NewBatch()
	for _, pos := range positions {
		if pos == nil {
			continue
		}
		encoded, err := rlp.EncodeToBytes(toStored(pos))
		if err != nil {
			return fmt.Errorf("encode position: %w", err)
		}
		batch.Put(positionKey(pos.Owner), encoded)
	}
	if batch.Len() == 0 {
		return nil
	}
	return batch.Write()
}

func toStored(pos *Position) storedPosition {
	stored := storedPosition{
		Owner:      append([]byte(nil), pos.Owner.Bytes()...),
		Prefix:     string(pos.Owner.Prefix()),
		DebtMinted: big.NewInt(0),
	}
	if pos.DebtMinted != nil {
		stored.DebtMinted.Set(pos.DebtMinted)
	}
	for _, asset := range pos.Assets() {
		stored.Collateral = append(stored.Collateral, storedCollateral{
			Asset:  string(asset),
			Amount: new(big.Int).Set(pos.Collateral[asset]),
		})
	}
	return stored
}
