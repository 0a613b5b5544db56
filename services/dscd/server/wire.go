package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"dscengine/crypto"
	"dscengine/native/dsc"
)

const requestLimit = 1 << 20 // 1 MiB

var errEmptyBody = errors.New("request body is empty")

// operationRequest is the body shared by the mutating endpoints. Amounts are
// base-10 integers in base units (1e18 per whole token).
type operationRequest struct {
	Account    string `json:"account,omitempty"`
	Asset      string `json:"asset,omitempty"`
	Amount     string `json:"amount,omitempty"`
	DebtAmount string `json:"debtAmount,omitempty"`
	Recipient  string `json:"recipient,omitempty"`
	OnBehalfOf string `json:"onBehalfOf,omitempty"`
	Debtor     string `json:"debtor,omitempty"`
	Spender    string `json:"spender,omitempty"`
}

type priceRequest struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

type operationResponse struct {
	Status  string          `json:"status"`
	Account string          `json:"account"`
	Summary *accountSummary `json:"summary,omitempty"`
}

type accountSummary struct {
	Account           string            `json:"account"`
	DebtMinted        string            `json:"debtMinted"`
	CollateralValue   string            `json:"collateralValue"`
	HealthFactor      string            `json:"healthFactor,omitempty"`
	Collateral        map[string]string `json:"collateral"`
	WalletCollateral  map[string]string `json:"walletCollateral,omitempty"`
	StableBalance     string            `json:"stableBalance,omitempty"`
	VaultAllowance    string            `json:"vaultAllowance,omitempty"`
	HealthFactorError string            `json:"healthFactorError,omitempty"`
}

type liquidationResponse struct {
	Status             string `json:"status"`
	Liquidator         string `json:"liquidator"`
	Debtor             string `json:"debtor"`
	Asset              string `json:"asset"`
	DebtCovered        string `json:"debtCovered"`
	CollateralSeized   string `json:"collateralSeized"`
	Bonus              string `json:"bonus"`
	TotalCollateral    string `json:"totalCollateral"`
	HealthFactorBefore string `json:"healthFactorBefore"`
	HealthFactorAfter  string `json:"healthFactorAfter,omitempty"`
}

type assetResponse struct {
	Asset     string     `json:"asset"`
	Price     string     `json:"price,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type paramsResponse struct {
	Precision               string `json:"precision"`
	AdditionalFeedPrecision string `json:"additionalFeedPrecision"`
	FeedDecimals            uint8  `json:"feedDecimals"`
	LiquidationThreshold    uint64 `json:"liquidationThreshold"`
	LiquidationPrecision    uint64 `json:"liquidationPrecision"`
	LiquidationBonus        uint64 `json:"liquidationBonus"`
	MinHealthFactor         string `json:"minHealthFactor"`
	StrictZeroDebt          bool   `json:"strictZeroDebt"`
	Vault                   string `json:"vault"`
	StableSymbol            string `json:"stableSymbol"`
}

type amountResponse struct {
	Value string `json:"value"`
}

func decodeJSON(r *http.Request, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, requestLimit))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s must be a base-10 integer", field)
	}
	return value, nil
}

func parseAddress(field, raw string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func parseAsset(raw string) (dsc.Asset, error) {
	asset := dsc.NormalizeAsset(raw)
	if asset == "" {
		return "", errors.New("asset is required")
	}
	return asset, nil
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
