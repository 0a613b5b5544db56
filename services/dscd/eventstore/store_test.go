package eventstore

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dscengine/core/events"
	"dscengine/crypto"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	store := New(db, nil)
	base := time.Unix(1_700_000_000, 0)
	tick := 0
	store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	return store
}

func testAddress(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = b
	return crypto.NewAddress(crypto.AccountPrefix, raw)
}

func TestStoreIndexesPartiesAndAmounts(t *testing.T) {
	store := setupStore(t)
	alice := testAddress(1)
	bob := testAddress(2)

	store.Emit(events.DSCCollateralDeposited{Account: alice, Asset: "weth", Amount: big.NewInt(10)})
	store.Emit(events.DSCDebtBurned{OnBehalfOf: alice, Payer: bob, Amount: big.NewInt(5)})
	store.Emit(events.DSCPositionLiquidated{
		Liquidator:       bob,
		Debtor:           alice,
		Asset:            "WETH",
		DebtCovered:      big.NewInt(7),
		CollateralSeized: big.NewInt(1),
		Bonus:            big.NewInt(0),
	})

	records, err := store.List(context.Background(), Filter{Account: alice.String()})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, events.TypeDSCCollateralDeposited, records[0].Type)
	require.Equal(t, "WETH", records[0].Asset)
	require.Equal(t, "10", records[0].Amount)
	require.Empty(t, records[0].Counterparty)

	require.Equal(t, bob.String(), records[1].Counterparty)
	require.Equal(t, "7", records[2].Amount)
	require.Equal(t, "1", records[2].Decoded()["collateralSeized"])

	bobs, err := store.List(context.Background(), Filter{Account: bob.String()})
	require.NoError(t, err)
	require.Len(t, bobs, 2)
}

func TestStoreFiltersByTypeAndLimit(t *testing.T) {
	store := setupStore(t)
	alice := testAddress(1)
	for i := 1; i <= 3; i++ {
		store.Emit(events.DSCDebtMinted{Account: alice, Amount: big.NewInt(int64(i))})
	}
	store.Emit(events.DSCCollateralRedeemed{From: alice, To: alice, Asset: "WBTC", Amount: big.NewInt(1)})

	minted, err := store.List(context.Background(), Filter{Type: events.TypeDSCDebtMinted})
	require.NoError(t, err)
	require.Len(t, minted, 3)
	require.Equal(t, "1", minted[0].Amount)

	limited, err := store.List(context.Background(), Filter{Account: alice.String(), Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)

	redeemed, err := store.List(context.Background(), Filter{Type: events.TypeDSCCollateralRedeemed})
	require.NoError(t, err)
	require.Len(t, redeemed, 1)
	require.Empty(t, redeemed[0].Counterparty, "self redemption names one party")
}

func TestStoreIndexesSupplyEvents(t *testing.T) {
	store := setupStore(t)
	store.Emit(events.TokenSupply{Token: "DSC", Total: big.NewInt(100), Delta: big.NewInt(100), Reason: events.SupplyReasonMint})

	records, err := store.List(context.Background(), Filter{Type: events.TypeTokenSupply})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "DSC", records[0].Asset)
	require.Equal(t, "100", records[0].Amount)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}
