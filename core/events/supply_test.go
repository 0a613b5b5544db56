package events

import (
	"math/big"
	"testing"

	"dscengine/crypto"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{
		Token:  "dsc",
		Total:  big.NewInt(5000),
		Delta:  big.NewInt(250),
		Reason: SupplyReasonMint,
	}.Event()
	if evt == nil {
		t.Fatalf("expected event")
	}
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["token"] != "DSC" {
		t.Fatalf("unexpected token attr: %s", evt.Attributes["token"])
	}
	if evt.Attributes["total"] != "5000" || evt.Attributes["delta"] != "250" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["reason"] != SupplyReasonMint {
		t.Fatalf("unexpected reason: %s", evt.Attributes["reason"])
	}
}

func TestTransferEvent(t *testing.T) {
	from := crypto.NewAddress(crypto.AccountPrefix, append(make([]byte, 19), 1))
	to := crypto.NewAddress(crypto.VaultPrefix, append(make([]byte, 19), 2))
	evt := Transfer{Asset: " weth ", From: from, To: to, Amount: big.NewInt(3)}.Event()
	if evt.Type != TypeTransfer {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["asset"] != "WETH" || evt.Attributes["amount"] != "3" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["from"] != from.String() || evt.Attributes["to"] != to.String() {
		t.Fatalf("unexpected participants: %+v", evt.Attributes)
	}
}
