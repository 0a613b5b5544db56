package server

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"dscengine/crypto"
	"dscengine/native/dsc"
	"dscengine/observability/logging"
)

// operation is the parsed form of an operationRequest.
type operation struct {
	actor  crypto.Address
	asset  dsc.Asset
	amount *big.Int
	debt   *big.Int
}

type operationFields struct {
	asset  bool
	amount bool
	debt   bool
}

func (s *Server) parseOperation(w http.ResponseWriter, r *http.Request, want operationFields) (operationRequest, operation, bool) {
	var req operationRequest
	var op operation
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return req, op, false
	}
	actor, err := s.actor(r, req.Account)
	if err != nil {
		if errors.Is(err, errForbiddenAccount) {
			writeError(w, err)
		} else {
			writeBadRequest(w, err)
		}
		return req, op, false
	}
	op.actor = actor
	if want.asset {
		if op.asset, err = parseAsset(req.Asset); err != nil {
			writeBadRequest(w, err)
			return req, op, false
		}
	}
	if want.amount {
		if op.amount, err = parseAmount("amount", req.Amount); err != nil {
			writeBadRequest(w, err)
			return req, op, false
		}
	}
	if want.debt {
		if op.debt, err = parseAmount("debtAmount", req.DebtAmount); err != nil {
			writeBadRequest(w, err)
			return req, op, false
		}
	}
	return req, op, true
}

// mutate runs fn under the write lock and answers with the actor's updated
// summary.
func (s *Server) mutate(w http.ResponseWriter, name string, actor crypto.Address, fn func() error) {
	s.mu.Lock()
	err := fn()
	s.mu.Unlock()
	if err != nil {
		s.logger.Info("dscd: operation rejected",
			slog.String("operation", name),
			logging.MaskField("account", actor.String()),
			slog.String("error_kind", dsc.ErrorKind(err)),
			slog.Any("error", err))
		writeError(w, err)
		return
	}
	s.mu.RLock()
	summary, err := s.summary(actor)
	s.mu.RUnlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{Status: "ok", Account: actor.String(), Summary: summary})
}

// DepositCollateral moves collateral from the caller's wallet into custody.
func (s *Server) DepositCollateral(w http.ResponseWriter, r *http.Request) {
	_, op, ok := s.parseOperation(w, r, operationFields{asset: true, amount: true})
	if !ok {
		return
	}
	s.mutate(w, "deposit_collateral", op.actor, func() error {
		return s.engine.DepositCollateral(op.actor, op.asset, op.amount)
	})
}

// RedeemCollateral releases collateral to the caller or to an explicit
// recipient.
func (s *Server) RedeemCollateral(w http.ResponseWriter, r *http.Request) {
	req, op, ok := s.parseOperation(w, r, operationFields{asset: true, amount: true})
	if !ok {
		return
	}
	recipient := op.actor
	if req.Recipient != "" {
		parsed, err := parseAddress("recipient", req.Recipient)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		recipient = parsed
	}
	s.mutate(w, "redeem_collateral", op.actor, func() error {
		return s.engine.RedeemCollateralTo(op.actor, recipient, op.asset, op.amount)
	})
}

// MintDebt mints stablecoins against the caller's collateral.
func (s *Server) MintDebt(w http.ResponseWriter, r *http.Request) {
	_, op, ok := s.parseOperation(w, r, operationFields{amount: true})
	if !ok {
		return
	}
	s.mutate(w, "mint_debt", op.actor, func() error {
		return s.engine.MintDebt(op.actor, op.amount)
	})
}

// BurnDebt retires debt paid from the caller's tokens, optionally on behalf
// of another account.
func (s *Server) BurnDebt(w http.ResponseWriter, r *http.Request) {
	req, op, ok := s.parseOperation(w, r, operationFields{amount: true})
	if !ok {
		return
	}
	onBehalfOf := op.actor
	if req.OnBehalfOf != "" {
		parsed, err := parseAddress("onBehalfOf", req.OnBehalfOf)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		onBehalfOf = parsed
	}
	s.mutate(w, "burn_debt", op.actor, func() error {
		return s.engine.BurnDebt(onBehalfOf, op.amount, op.actor)
	})
}

// DepositAndMint deposits collateral and mints in one atomic step.
func (s *Server) DepositAndMint(w http.ResponseWriter, r *http.Request) {
	_, op, ok := s.parseOperation(w, r, operationFields{asset: true, amount: true, debt: true})
	if !ok {
		return
	}
	s.mutate(w, "deposit_and_mint", op.actor, func() error {
		return s.engine.DepositAndMint(op.actor, op.asset, op.amount, op.debt)
	})
}

// RedeemForBurn burns debt and redeems collateral in one atomic step.
func (s *Server) RedeemForBurn(w http.ResponseWriter, r *http.Request) {
	_, op, ok := s.parseOperation(w, r, operationFields{asset: true, amount: true, debt: true})
	if !ok {
		return
	}
	s.mutate(w, "redeem_for_burn", op.actor, func() error {
		return s.engine.RedeemForBurn(op.actor, op.asset, op.amount, op.debt)
	})
}

// Liquidate covers part of an unhealthy debtor's debt in exchange for their
// collateral plus the bonus.
func (s *Server) Liquidate(w http.ResponseWriter, r *http.Request) {
	req, op, ok := s.parseOperation(w, r, operationFields{asset: true, amount: true})
	if !ok {
		return
	}
	debtor, err := parseAddress("debtor", req.Debtor)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.mu.Lock()
	result, err := s.engine.Liquidate(op.actor, op.asset, debtor, op.amount)
	s.mu.Unlock()
	if err != nil {
		s.logger.Info("dscd: liquidation rejected",
			logging.MaskField("account", op.actor.String()),
			slog.String("error_kind", dsc.ErrorKind(err)),
			slog.Any("error", err))
		writeError(w, err)
		return
	}
	resp := liquidationResponse{
		Status:             "ok",
		Liquidator:         op.actor.String(),
		Debtor:             debtor.String(),
		Asset:              result.Asset.String(),
		DebtCovered:        formatAmount(result.DebtCovered),
		CollateralSeized:   formatAmount(result.CollateralSeized),
		Bonus:              formatAmount(result.Bonus),
		TotalCollateral:    formatAmount(result.TotalCollateral),
		HealthFactorBefore: formatAmount(result.HealthFactorBefore),
	}
	if result.HealthFactorAfter != nil {
		resp.HealthFactorAfter = result.HealthFactorAfter.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Approve lets the engine vault (or an explicit spender) pull the caller's
// stablecoins, which burns require.
func (s *Server) Approve(w http.ResponseWriter, r *http.Request) {
	req, op, ok := s.parseOperation(w, r, operationFields{amount: true})
	if !ok {
		return
	}
	spender := s.engine.Vault()
	if req.Spender != "" {
		parsed, err := parseAddress("spender", req.Spender)
		if err != nil {
			writeBadRequest(w, err)
			return
		}
		spender = parsed
	}
	s.mutate(w, "approve", op.actor, func() error {
		return s.token.Approve(op.actor, spender, op.amount)
	})
}

// SetPrice updates an operator-managed price feed.
func (s *Server) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	feed, ok := s.feeds[asset]
	if !ok {
		writeError(w, errUnknownFeed)
		return
	}
	s.mu.Lock()
	err = feed.SetDecimal(req.Price)
	s.mu.Unlock()
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("dscd: price updated", slog.String("asset", asset.String()), slog.String("price", req.Price))
	s.writeAsset(w, asset)
}

// CreditCollateral credits wallet collateral to an account. It stands in for
// the bridge that funds wallets in a full deployment.
func (s *Server) CreditCollateral(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	asset, err := parseAsset(req.Asset)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if !s.engine.Registry().Supported(asset) {
		writeError(w, dsc.ErrUnsupportedAsset)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	s.mutate(w, "credit_collateral", account, func() error {
		return s.bank.Credit(asset.String(), account, amount)
	})
}
