package app

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	engineconfig "dscengine/config"
	"dscengine/core/events"
	"dscengine/crypto"
	"dscengine/native/dsc"
	"dscengine/storage"
)

func units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func testConfig(t *testing.T) *engineconfig.Config {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &engineconfig.Config{
		DataDir:             t.TempDir(),
		VaultAddress:        key.PubKey().AddressWithPrefix(crypto.VaultPrefix).String(),
		StableSymbol:        "DSC",
		OracleMaxAgeSeconds: engineconfig.DefaultOracleMaxAgeSeconds,
		Collateral: []engineconfig.Collateral{
			{Asset: "WETH", InitialPrice: "2000"},
			{Asset: "WBTC", InitialPrice: "30000"},
		},
	}
}

func testUser(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestBuildWiresEngineToBank(t *testing.T) {
	recorder := &events.Recorder{}
	components, err := Build(testConfig(t), storage.NewMemDB(), Options{Emitter: recorder})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(components.Feeds) != 2 {
		t.Fatalf("expected two manual feeds, got %d", len(components.Feeds))
	}

	user := testUser(1)
	if err := components.Bank.Credit("WETH", user, units(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := components.Engine.DepositAndMint(user, "WETH", units(10), units(100)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}

	value, err := components.Engine.CollateralValue(user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if value.Cmp(units(20000)) != 0 {
		t.Fatalf("expected collateral value 20000e18, got %s", value)
	}
	balance, err := components.Token.BalanceOf(user)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(units(100)) != 0 {
		t.Fatalf("expected 100 DSC minted to user, got %s", balance)
	}

	err = components.Engine.MintDebt(user, units(10001))
	if !errors.Is(err, dsc.ErrHealthFactorBroken) {
		t.Fatalf("expected health factor breach, got %v", err)
	}
	info, err := components.Engine.AccountInformation(user)
	if err != nil {
		t.Fatalf("account info: %v", err)
	}
	if info.DebtMinted.Cmp(units(100)) != 0 {
		t.Fatalf("expected debt to stay at 100e18, got %s", info.DebtMinted)
	}

	if got := len(recorder.OfType(events.TypeDSCDebtMinted)); got != 1 {
		t.Fatalf("expected one mint event, got %d", got)
	}
	if got := len(recorder.OfType(events.TypeTransfer)); got == 0 {
		t.Fatal("expected bank transfer events to reach the shared emitter")
	}
}

func TestBuildUsesHTTPFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"price":"2500","updatedAt":%d}`, time.Now().Unix())
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.Collateral[0] = engineconfig.Collateral{Asset: "WETH", PriceFeedURL: srv.URL}
	components, err := Build(cfg, storage.NewMemDB(), Options{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := components.Feeds["WETH"]; ok {
		t.Fatal("http priced asset must not expose a manual feed")
	}
	value, err := components.Engine.ValueOf("WETH", units(2))
	if err != nil {
		t.Fatalf("value of: %v", err)
	}
	if value.Cmp(units(5000)) != 0 {
		t.Fatalf("expected 5000e18, got %s", value)
	}
}

func TestBuildAppliesStrictZeroDebt(t *testing.T) {
	cfg := testConfig(t)
	cfg.StrictZeroDebtHealth = true
	components, err := Build(cfg, storage.NewMemDB(), Options{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !components.Engine.StrictZeroDebt() {
		t.Fatal("expected strict zero-debt mode")
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	if _, err := Build(nil, storage.NewMemDB(), Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg := testConfig(t)
	if _, err := Build(cfg, nil, Options{}); err == nil {
		t.Fatal("expected error for nil database")
	}
	cfg.VaultAddress = "not-an-address"
	if _, err := Build(cfg, storage.NewMemDB(), Options{}); err == nil {
		t.Fatal("expected error for bad vault address")
	}
}
