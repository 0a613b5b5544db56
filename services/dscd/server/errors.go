package server

import (
	"errors"
	"net/http"
	"strings"

	"dscengine/native/bank"
	"dscengine/native/dsc"
	"dscengine/native/dsc/oracle"
)

var (
	errForbiddenAccount = errors.New("account does not match token subject")
	errUnknownFeed      = errors.New("asset has no operator-managed price feed")
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// toStatus maps engine, bank and oracle errors onto an HTTP status and a
// stable kind label. Engine sentinels win over the causes they wrap.
func toStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, "success"
	case errors.Is(err, errForbiddenAccount):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errUnknownFeed):
		return http.StatusNotFound, "unknown_feed"
	}

	switch kind := dsc.ErrorKind(err); kind {
	case "invalid_amount", "unsupported_asset":
		return http.StatusBadRequest, kind
	case "reentrant_call":
		return http.StatusConflict, kind
	case "invalid_price":
		return http.StatusServiceUnavailable, kind
	case "transfer_failed", "position_healthy", "health_factor_broken",
		"liquidation_ineffective", "undefined_health_factor",
		"seizure_exceeds_collateral", "insufficient_collateral",
		"insufficient_debt", "arithmetic_overflow":
		return http.StatusUnprocessableEntity, kind
	case "not_configured", "configuration_mismatch":
		return http.StatusInternalServerError, kind
	}

	switch {
	case errors.Is(err, oracle.ErrStalePrice):
		return http.StatusServiceUnavailable, "stale_price"
	case errors.Is(err, oracle.ErrNoPrice):
		return http.StatusServiceUnavailable, "price_unavailable"
	case errors.Is(err, oracle.ErrInvalidPrice):
		return http.StatusBadRequest, "invalid_price"
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, bank.ErrInsufficientAllowance):
		return http.StatusUnprocessableEntity, "insufficient_allowance"
	case errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, bank.ErrUnknownAsset):
		return http.StatusBadRequest, "unknown_asset"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := toStatus(err)
	message := strings.TrimSpace(err.Error())
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "bad_request"})
}
