package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"dscengine/crypto"
	"dscengine/native/bank"
	"dscengine/native/dsc"
	"dscengine/native/dsc/oracle"
)

func TestToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "forbidden", err: errForbiddenAccount, status: http.StatusForbidden, kind: "forbidden"},
		{name: "unknown feed", err: errUnknownFeed, status: http.StatusNotFound, kind: "unknown_feed"},
		{name: "invalid amount", err: fmt.Errorf("wrap: %w", dsc.ErrInvalidAmount), status: http.StatusBadRequest, kind: "invalid_amount"},
		{name: "unsupported asset", err: dsc.ErrUnsupportedAsset, status: http.StatusBadRequest, kind: "unsupported_asset"},
		{name: "reentrant", err: dsc.ErrReentrantCall, status: http.StatusConflict, kind: "reentrant_call"},
		{name: "health factor", err: &dsc.HealthFactorError{Account: crypto.Address{}}, status: http.StatusUnprocessableEntity, kind: "health_factor_broken"},
		{name: "transfer wraps bank error", err: fmt.Errorf("%w: deposit: %w", dsc.ErrTransferFailed, bank.ErrInsufficientBalance), status: http.StatusUnprocessableEntity, kind: "transfer_failed"},
		{name: "ineffective", err: dsc.ErrLiquidationIneffective, status: http.StatusUnprocessableEntity, kind: "liquidation_ineffective"},
		{name: "engine invalid price", err: dsc.ErrInvalidPrice, status: http.StatusServiceUnavailable, kind: "invalid_price"},
		{name: "stale price", err: fmt.Errorf("dsc engine: price for WETH: %w", oracle.ErrStalePrice), status: http.StatusServiceUnavailable, kind: "stale_price"},
		{name: "no price", err: oracle.ErrNoPrice, status: http.StatusServiceUnavailable, kind: "price_unavailable"},
		{name: "bad operator price", err: oracle.ErrInvalidPrice, status: http.StatusBadRequest, kind: "invalid_price"},
		{name: "allowance", err: bank.ErrInsufficientAllowance, status: http.StatusUnprocessableEntity, kind: "insufficient_allowance"},
		{name: "not configured", err: dsc.ErrNilState, status: http.StatusInternalServerError, kind: "not_configured"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, kind: "error"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, kind := toStatus(tc.err)
			if status != tc.status || kind != tc.kind {
				t.Fatalf("expected (%d, %s), got (%d, %s)", tc.status, tc.kind, status, kind)
			}
		})
	}
}
