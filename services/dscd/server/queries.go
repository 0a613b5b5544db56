package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dscengine/crypto"
	"dscengine/native/dsc"
	"dscengine/native/dsc/oracle"
	"dscengine/services/dscd/eventstore"
)

// summary gathers the position, valuation and wallet balances for account.
// Callers hold at least the read lock.
func (s *Server) summary(account crypto.Address) (*accountSummary, error) {
	pos, err := s.engine.Position(account)
	if err != nil {
		return nil, err
	}
	info, err := s.engine.AccountInformation(account)
	if err != nil {
		return nil, err
	}
	out := &accountSummary{
		Account:         account.String(),
		DebtMinted:      formatAmount(info.DebtMinted),
		CollateralValue: formatAmount(info.CollateralValue),
		Collateral:      make(map[string]string),
	}
	for _, asset := range pos.Assets() {
		out.Collateral[asset.String()] = formatAmount(pos.CollateralOf(asset))
	}
	hf, err := s.engine.HealthFactor(account)
	switch {
	case err == nil:
		out.HealthFactor = formatAmount(hf)
	case errors.Is(err, dsc.ErrUndefinedHealthFactor):
		out.HealthFactorError = dsc.ErrorKind(err)
	default:
		return nil, err
	}
	if s.bank != nil {
		out.WalletCollateral = make(map[string]string)
		for _, asset := range s.engine.CollateralAssets() {
			balance, err := s.bank.Balance(asset.String(), account)
			if err != nil {
				return nil, err
			}
			out.WalletCollateral[asset.String()] = formatAmount(balance)
		}
	}
	if s.token != nil {
		balance, err := s.token.BalanceOf(account)
		if err != nil {
			return nil, err
		}
		out.StableBalance = formatAmount(balance)
		allowance, err := s.token.Allowance(account, s.engine.Vault())
		if err != nil {
			return nil, err
		}
		out.VaultAllowance = formatAmount(allowance)
	}
	return out, nil
}

func addressParam(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		writeBadRequest(w, err)
		return crypto.Address{}, false
	}
	return addr, true
}

// Params reports the engine's protocol constants.
func (s *Server) Params(w http.ResponseWriter, _ *http.Request) {
	resp := paramsResponse{
		Precision:               dsc.Precision().String(),
		AdditionalFeedPrecision: dsc.AdditionalFeedPrecision().String(),
		FeedDecimals:            dsc.FeedDecimals(),
		LiquidationThreshold:    dsc.LiquidationThreshold(),
		LiquidationPrecision:    dsc.LiquidationPrecision(),
		LiquidationBonus:        dsc.LiquidationBonus(),
		MinHealthFactor:         dsc.MinHealthFactor().String(),
		StrictZeroDebt:          s.engine.StrictZeroDebt(),
		Vault:                   s.engine.Vault().String(),
	}
	if s.token != nil {
		resp.StableSymbol = s.token.Symbol()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Assets lists the collateral assets with their latest prices. Feed errors
// are reported per asset rather than failing the listing.
func (s *Server) Assets(w http.ResponseWriter, _ *http.Request) {
	assets := s.engine.CollateralAssets()
	out := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		out = append(out, s.describeAsset(asset))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) describeAsset(asset dsc.Asset) assetResponse {
	entry := assetResponse{Asset: asset.String()}
	source, ok := s.engine.PriceSource(asset)
	if !ok {
		entry.Error = dsc.ErrUnsupportedAsset.Error()
		return entry
	}
	price, updatedAt, err := source.LatestPrice()
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Price = oracle.FormatDecimal(price)
	if !updatedAt.IsZero() {
		ts := updatedAt.UTC()
		entry.UpdatedAt = &ts
	}
	return entry
}

func (s *Server) writeAsset(w http.ResponseWriter, asset dsc.Asset) {
	writeJSON(w, http.StatusOK, s.describeAsset(asset))
}

// Value converts an asset quantity into its unit-of-account value.
func (s *Server) Value(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(r.URL.Query().Get("asset"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	amount, err := parseAmount("amount", r.URL.Query().Get("amount"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := s.engine.ValueOf(asset, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Value: formatAmount(value)})
}

// Quantity converts a unit-of-account value into an asset quantity.
func (s *Server) Quantity(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(r.URL.Query().Get("asset"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	value, err := parseAmount("value", r.URL.Query().Get("value"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	quantity, err := s.engine.QuantityFor(asset, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Value: formatAmount(quantity)})
}

// CalculateHealthFactor evaluates the health factor formula for arbitrary
// inputs.
func (s *Server) CalculateHealthFactor(w http.ResponseWriter, r *http.Request) {
	debt, err := parseAmount("debt", r.URL.Query().Get("debt"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	collateralValue, err := parseAmount("collateralValue", r.URL.Query().Get("collateralValue"))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	hf, err := dsc.CalculateHealthFactor(debt, collateralValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Value: formatAmount(hf)})
}

// Account returns the full summary for one account.
func (s *Server) Account(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	summary, err := s.summary(addr)
	s.mu.RUnlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// AccountHealthFactor returns only the health factor. Accounts without debt
// get the undefined-health-factor error.
func (s *Server) AccountHealthFactor(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	s.mu.RLock()
	hf, err := s.engine.HealthFactor(addr)
	s.mu.RUnlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Value: formatAmount(hf)})
}

// AccountEvents lists indexed events naming the account.
func (s *Server) AccountEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(w, r)
	if !ok {
		return
	}
	s.listEvents(w, r, addr.String())
}

// Events lists indexed events, optionally filtered by type.
func (s *Server) Events(w http.ResponseWriter, r *http.Request) {
	s.listEvents(w, r, "")
}

type eventResponse struct {
	eventstore.Record
	Attributes map[string]string `json:"attributes"`
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request, account string) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []eventResponse{})
		return
	}
	filter := eventstore.Filter{Account: account, Type: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, errors.New("limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(records))
	for _, record := range records {
		out = append(out, eventResponse{Record: record, Attributes: record.Decoded()})
	}
	writeJSON(w, http.StatusOK, out)
}
