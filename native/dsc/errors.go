package dsc

import (
	"errors"
	"fmt"
	"math/big"

	"dscengine/crypto"
	nativecommon "dscengine/native/common"
)

var (
	ErrNilState                 = errors.New("dsc engine: state not configured")
	ErrInvalidAmount            = errors.New("dsc engine: amount must be positive")
	ErrUnsupportedAsset         = errors.New("dsc engine: collateral asset not supported")
	ErrConfigurationMismatch    = errors.New("dsc engine: collateral assets and price sources do not align")
	ErrTransferFailed           = errors.New("dsc engine: transfer failed")
	ErrPositionHealthy          = errors.New("dsc engine: health factor ok, position not liquidatable")
	ErrHealthFactorBroken       = errors.New("dsc engine: health factor below minimum")
	ErrLiquidationIneffective   = errors.New("dsc engine: liquidation did not improve health factor")
	ErrUndefinedHealthFactor    = errors.New("dsc engine: must have minted dsc")
	ErrInsufficientCollateral   = errors.New("dsc engine: insufficient collateral")
	ErrSeizureExceedsCollateral = errors.New("dsc engine: debtor collateral cannot cover seizure")
	ErrInsufficientDebt         = errors.New("dsc engine: amount exceeds minted debt")
	ErrInvalidPrice             = errors.New("dsc engine: price source returned a non-positive price")
	ErrArithmeticOverflow       = errors.New("dsc engine: arithmetic overflow")
)

// ErrReentrantCall is returned when a mutating call arrives while another one
// is still in flight.
var ErrReentrantCall = nativecommon.ErrReentrantCall

// HealthFactorError reports the account and health factor that failed the
// minimum check. It matches ErrHealthFactorBroken with errors.Is.
type HealthFactorError struct {
	Account      crypto.Address
	HealthFactor *big.Int
}

func (e *HealthFactorError) Error() string {
	hf := "0"
	if e.HealthFactor != nil {
		hf = e.HealthFactor.String()
	}
	return fmt.Sprintf("%s: account %s health factor %s", ErrHealthFactorBroken.Error(), e.Account, hf)
}

func (e *HealthFactorError) Unwrap() error { return ErrHealthFactorBroken }

// ErrorKind maps an engine error to a stable label for metrics and API
// responses. A nil error maps to "success".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrUnsupportedAsset):
		return "unsupported_asset"
	case errors.Is(err, ErrConfigurationMismatch):
		return "configuration_mismatch"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrPositionHealthy):
		return "position_healthy"
	case errors.Is(err, ErrHealthFactorBroken):
		return "health_factor_broken"
	case errors.Is(err, ErrLiquidationIneffective):
		return "liquidation_ineffective"
	case errors.Is(err, ErrUndefinedHealthFactor):
		return "undefined_health_factor"
	case errors.Is(err, ErrSeizureExceedsCollateral):
		return "seizure_exceeds_collateral"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrInsufficientDebt):
		return "insufficient_debt"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrNilState):
		return "not_configured"
	default:
		return "error"
	}
}
