package bank

import (
	"errors"
	"math/big"
	"testing"

	"dscengine/core/events"
	"dscengine/crypto"
	"dscengine/native/dsc"
	"dscengine/storage"
)

func addr(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func mustBalance(t *testing.T, b *Bank, asset string, account crypto.Address) *big.Int {
	t.Helper()
	bal, err := b.Balance(asset, account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func TestBankTransferMovesFunds(t *testing.T) {
	b := New(nil)
	alice, bob := addr(1), addr(2)
	if err := b.Credit("weth", alice, big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Transfer("WETH", alice, bob, big.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := mustBalance(t, b, "WETH", alice); got.Cmp(big.NewInt(6)) != 0 {
		t.Fatalf("alice balance %s", got)
	}
	if got := mustBalance(t, b, " weth", bob); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("bob balance %s", got)
	}
}

func TestBankTransferRejectsOverdraft(t *testing.T) {
	b := New(storage.NewMemDB())
	alice, bob := addr(1), addr(2)
	if err := b.Credit("WETH", alice, big.NewInt(3)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := b.Transfer("WETH", alice, bob, big.NewInt(4)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := mustBalance(t, b, "WETH", alice); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("failed transfer changed balance to %s", got)
	}
	if got := mustBalance(t, b, "WETH", bob); got.Sign() != 0 {
		t.Fatalf("failed transfer credited %s", got)
	}
	if err := b.Transfer("WETH", alice, bob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := b.Credit("", alice, big.NewInt(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestCollateralTransferUsesCustody(t *testing.T) {
	b := New(nil)
	user, custody := addr(1), addr(9)
	if err := b.Credit("WBTC", user, big.NewInt(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	transfers := NewCollateralTransfer(b, custody)
	if err := transfers.TransferIn(dsc.Asset("WBTC"), user, big.NewInt(5)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if got := mustBalance(t, b, "WBTC", custody); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("custody balance %s", got)
	}
	if err := transfers.TransferOut(dsc.Asset("WBTC"), user, big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := transfers.TransferOut(dsc.Asset("WBTC"), user, big.NewInt(2)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	if got := mustBalance(t, b, "WBTC", user); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("user balance %s", got)
	}
}

func TestStableTokenMintBurnAndAllowance(t *testing.T) {
	b := New(nil)
	vault, user := addr(9), addr(1)
	token, err := NewStableToken(b, "", vault)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if token.Symbol() != DefaultStableSymbol {
		t.Fatalf("unexpected symbol %s", token.Symbol())
	}
	if err := token.Mint(user, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := token.TransferFrom(user, vault, big.NewInt(40)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if err := token.Approve(user, vault, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := token.TransferFrom(user, vault, big.NewInt(40)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	left, err := token.Allowance(user, vault)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if left.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance left %s", left)
	}

	if err := token.Burn(big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := token.Burn(big.NewInt(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	supply, err := token.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("supply %s", supply)
	}

	// The owner can move its own holdings without an allowance.
	if err := token.Mint(vault, big.NewInt(5)); err != nil {
		t.Fatalf("mint to owner: %v", err)
	}
	if err := token.TransferFrom(vault, user, big.NewInt(5)); err != nil {
		t.Fatalf("owner transfer: %v", err)
	}
	bal, err := token.BalanceOf(user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(65)) != 0 {
		t.Fatalf("user balance %s", bal)
	}
}

func TestStableTokenReversalsSkipAllowance(t *testing.T) {
	b := New(nil)
	vault, user := addr(9), addr(1)
	token, err := NewStableToken(b, "", vault)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := token.Mint(user, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.BurnFrom(user, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := token.BurnFrom(user, big.NewInt(30)); err != nil {
		t.Fatalf("burn from holder: %v", err)
	}
	supply, err := token.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("supply %s", supply)
	}

	if err := token.Approve(user, vault, big.NewInt(20)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := token.TransferFrom(user, vault, big.NewInt(20)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if err := token.Refund(user, big.NewInt(20)); err != nil {
		t.Fatalf("refund: %v", err)
	}
	allowance, err := token.Allowance(user, vault)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if allowance.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance after refund %s", allowance)
	}
	bal, err := token.BalanceOf(user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("user balance %s", bal)
	}
	if err := token.Refund(user, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for empty owner, got %v", err)
	}
}

func TestBankPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := New(db).Credit("WETH", addr(1), big.NewInt(7)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	db.Close()

	reopened, err := storage.NewLevelDB(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got := mustBalance(t, New(reopened), "WETH", addr(1)); got.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("balance after reopen %s", got)
	}
}

func TestBankEmitsTransferAndSupplyEvents(t *testing.T) {
	b := New(nil)
	rec := &events.Recorder{}
	b.SetEmitter(rec)
	vault, user := addr(9), addr(1)
	token, err := NewStableToken(b, "dsc", vault)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := token.Mint(user, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Transfer(user, vault, big.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := token.Burn(big.NewInt(4)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	supply := rec.OfType(events.TypeTokenSupply)
	if len(supply) != 2 {
		t.Fatalf("expected 2 supply events, got %d", len(supply))
	}
	last := supply[1].Event()
	if last.Attribute("reason") != events.SupplyReasonBurn || last.Attribute("total") != "6" || last.Attribute("delta") != "-4" {
		t.Fatalf("unexpected burn event: %+v", last.Attributes)
	}
	transfers := rec.OfType(events.TypeTransfer)
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer event, got %d", len(transfers))
	}
	if transfers[0].Event().Attribute("asset") != "DSC" {
		t.Fatalf("unexpected transfer event: %+v", transfers[0].Event().Attributes)
	}
}
