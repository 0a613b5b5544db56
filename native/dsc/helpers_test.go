package dsc

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"dscengine/core/events"
	"dscengine/crypto"
)

const (
	assetWETH Asset = "WETH"
	assetWBTC Asset = "WBTC"
)

var errInjected = errors.New("injected failure")

func makeAddress(prefix crypto.AddressPrefix, suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(prefix, raw)
}

// units scales a whole token amount to 18 decimals.
func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Precision())
}

// feedPrice scales a whole price to the 8-decimal feed convention.
func feedPrice(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(100_000_000))
}

type fakeFeed struct {
	price *big.Int
	err   error
}

func (f *fakeFeed) LatestPrice() (*big.Int, time.Time, error) {
	if f.err != nil {
		return nil, time.Time{}, f.err
	}
	return new(big.Int).Set(f.price), time.Unix(1_700_000_000, 0), nil
}

type fakeTransfer struct {
	custody  crypto.Address
	balances map[Asset]map[string]*big.Int
	failIn   bool
	failOut  bool
	onIn     func()
	calls    []string
}

func newFakeTransfer(custody crypto.Address) *fakeTransfer {
	return &fakeTransfer{custody: custody, balances: make(map[Asset]map[string]*big.Int)}
}

func (f *fakeTransfer) fund(asset Asset, owner crypto.Address, amount *big.Int) {
	f.add(asset, owner, amount)
}

func (f *fakeTransfer) balance(asset Asset, owner crypto.Address) *big.Int {
	if v, ok := f.balances[asset][owner.Key()]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (f *fakeTransfer) add(asset Asset, owner crypto.Address, delta *big.Int) {
	if f.balances[asset] == nil {
		f.balances[asset] = make(map[string]*big.Int)
	}
	f.balances[asset][owner.Key()] = new(big.Int).Add(f.balance(asset, owner), delta)
}

func (f *fakeTransfer) move(asset Asset, from, to crypto.Address, amount *big.Int) error {
	if f.balance(asset, from).Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	f.add(asset, from, new(big.Int).Neg(amount))
	f.add(asset, to, amount)
	return nil
}

func (f *fakeTransfer) TransferIn(asset Asset, from crypto.Address, amount *big.Int) error {
	f.calls = append(f.calls, "in")
	if f.onIn != nil {
		f.onIn()
	}
	if f.failIn {
		return errInjected
	}
	return f.move(asset, from, f.custody, amount)
}

func (f *fakeTransfer) TransferOut(asset Asset, to crypto.Address, amount *big.Int) error {
	f.calls = append(f.calls, "out")
	if f.failOut {
		return errInjected
	}
	return f.move(asset, f.custody, to, amount)
}

type fakeToken struct {
	owner            crypto.Address
	balances         map[string]*big.Int
	supply           *big.Int
	failMint         bool
	failTransferFrom bool
	failBurn         bool
}

func newFakeToken(owner crypto.Address) *fakeToken {
	return &fakeToken{owner: owner, balances: make(map[string]*big.Int), supply: big.NewInt(0)}
}

func (f *fakeToken) balanceOf(owner crypto.Address) *big.Int {
	if v, ok := f.balances[owner.Key()]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (f *fakeToken) add(owner crypto.Address, delta *big.Int) {
	f.balances[owner.Key()] = new(big.Int).Add(f.balanceOf(owner), delta)
}

func (f *fakeToken) Mint(to crypto.Address, amount *big.Int) error {
	if f.failMint {
		return errInjected
	}
	f.add(to, amount)
	f.supply.Add(f.supply, amount)
	return nil
}

func (f *fakeToken) Burn(amount *big.Int) error {
	if f.failBurn {
		return errInjected
	}
	if f.balanceOf(f.owner).Cmp(amount) < 0 {
		return errors.New("burn exceeds balance")
	}
	f.add(f.owner, new(big.Int).Neg(amount))
	f.supply.Sub(f.supply, amount)
	return nil
}

func (f *fakeToken) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	if f.failTransferFrom {
		return errInjected
	}
	if f.balanceOf(from).Cmp(amount) < 0 {
		return errors.New("transfer exceeds balance")
	}
	f.add(from, new(big.Int).Neg(amount))
	f.add(to, amount)
	return nil
}

func (f *fakeToken) BurnFrom(holder crypto.Address, amount *big.Int) error {
	if f.balanceOf(holder).Cmp(amount) < 0 {
		return errors.New("burn exceeds balance")
	}
	f.add(holder, new(big.Int).Neg(amount))
	f.supply.Sub(f.supply, amount)
	return nil
}

func (f *fakeToken) Refund(holder crypto.Address, amount *big.Int) error {
	if f.balanceOf(f.owner).Cmp(amount) < 0 {
		return errors.New("refund exceeds balance")
	}
	f.add(f.owner, new(big.Int).Neg(amount))
	f.add(holder, amount)
	return nil
}

type failingState struct {
	*Store
	failPut bool
}

func (s *failingState) PutPositions(positions ...*Position) error {
	if s.failPut {
		return errInjected
	}
	return s.Store.PutPositions(positions...)
}

type harness struct {
	engine    *Engine
	vault     crypto.Address
	feeds     map[Asset]*fakeFeed
	transfers *fakeTransfer
	token     *fakeToken
	recorder  *events.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vault := makeAddress(crypto.VaultPrefix, 0xff)
	feeds := map[Asset]*fakeFeed{
		assetWETH: {price: feedPrice(2000)},
		assetWBTC: {price: feedPrice(30000)},
	}
	registry, err := NewRegistry(
		[]Asset{assetWETH, assetWBTC},
		[]PriceSource{feeds[assetWETH], feeds[assetWBTC]},
	)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	transfers := newFakeTransfer(vault)
	token := newFakeToken(vault)
	engine := NewEngine(vault, registry, transfers, token)
	recorder := &events.Recorder{}
	engine.SetEmitter(recorder)
	return &harness{
		engine:    engine,
		vault:     vault,
		feeds:     feeds,
		transfers: transfers,
		token:     token,
		recorder:  recorder,
	}
}

// depositAndMint funds user with collateral and opens a position.
func (h *harness) depositAndMint(t *testing.T, user crypto.Address, asset Asset, collateral, debt *big.Int) {
	t.Helper()
	h.transfers.fund(asset, user, collateral)
	if debt == nil || debt.Sign() == 0 {
		if err := h.engine.DepositCollateral(user, asset, collateral); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		return
	}
	if err := h.engine.DepositAndMint(user, asset, collateral, debt); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
}

func (h *harness) position(t *testing.T, user crypto.Address) *Position {
	t.Helper()
	pos, err := h.engine.Position(user)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	return pos
}

func requireAmount(t *testing.T, label string, got, want *big.Int) {
	t.Helper()
	if got == nil || got.Cmp(want) != 0 {
		t.Fatalf("%s: got %v, want %s", label, got, want)
	}
}
