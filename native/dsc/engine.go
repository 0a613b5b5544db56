package dsc

import (
	"log/slog"
	"math/big"
	"time"

	"dscengine/core/events"
	"dscengine/crypto"
	nativecommon "dscengine/native/common"
	"dscengine/observability"
	"dscengine/storage"
)

const (
	opDepositCollateral = "deposit_collateral"
	opMintDebt          = "mint_debt"
	opRedeemCollateral  = "redeem_collateral"
	opBurnDebt          = "burn_debt"
	opDepositAndMint    = "deposit_and_mint"
	opRedeemForBurn     = "redeem_for_burn"
	opLiquidate         = "liquidate"
)

// Engine owns the collateral ledger and enforces the health factor on every
// mutating call. Calls are atomic: a failure leaves the ledger, the
// collaborators and the event stream as they were. An Engine is not safe for
// concurrent mutation; hosts serialise calls.
type Engine struct {
	state          engineState
	registry       *Registry
	vault          crypto.Address
	collateral     AssetTransfer
	debtToken      DebtToken
	emitter        events.Emitter
	logger         *slog.Logger
	guard          nativecommon.ReentrancyGuard
	strictZeroDebt bool
}

// NewEngine constructs an engine whose custody account is vault. Positions
// live in an in-memory store until SetState wires a persistent one.
func NewEngine(vault crypto.Address, registry *Registry, collateral AssetTransfer, debtToken DebtToken) *Engine {
	return &Engine{
		state:      NewStore(storage.NewMemDB()),
		registry:   registry,
		vault:      vault,
		collateral: collateral,
		debtToken:  debtToken,
		emitter:    events.NoopEmitter{},
		logger:     slog.Default(),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
}

// SetEmitter configures where committed events are published.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetLogger replaces the logger used for liquidations and compensation
// failures. A nil logger is ignored.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

// SetStrictZeroDebt makes every health check fail with
// ErrUndefinedHealthFactor for accounts without minted debt, instead of
// letting them pass.
func (e *Engine) SetStrictZeroDebt(strict bool) {
	if e == nil {
		return
	}
	e.strictZeroDebt = strict
}

// StrictZeroDebt reports whether strict zero-debt handling is enabled.
func (e *Engine) StrictZeroDebt() bool {
	return e != nil && e.strictZeroDebt
}

// Vault returns the custody account that holds collateral and burns debt.
func (e *Engine) Vault() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.vault
}

// Registry returns the collateral registry.
func (e *Engine) Registry() *Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// execute runs fn under the reentrancy guard and commits the staged result.
func (e *Engine) execute(op string, fn func(*txn) error) (err error) {
	start := time.Now()
	defer func() {
		observability.DSC().ObserveOperation(op, ErrorKind(err), time.Since(start))
	}()
	if e == nil || e.state == nil || e.registry == nil || e.collateral == nil || e.debtToken == nil {
		return ErrNilState
	}
	release, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer release()

	tx := e.begin()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

// DepositCollateral pulls amount of asset from user into custody and credits
// the user's position.
func (e *Engine) DepositCollateral(user crypto.Address, asset Asset, amount *big.Int) error {
	return e.execute(opDepositCollateral, func(tx *txn) error {
		return tx.depositCollateral(user, asset, amount)
	})
}

// MintDebt issues amount of the debt token to user. The resulting health
// factor must stay at or above the minimum.
func (e *Engine) MintDebt(user crypto.Address, amount *big.Int) error {
	return e.execute(opMintDebt, func(tx *txn) error {
		if err := tx.mintDebt(user, amount); err != nil {
			return err
		}
		return tx.requireHealthy(user)
	})
}

// RedeemCollateral returns amount of asset to user.
func (e *Engine) RedeemCollateral(user crypto.Address, asset Asset, amount *big.Int) error {
	return e.RedeemCollateralTo(user, user, asset, amount)
}

// RedeemCollateralTo draws down user's collateral and sends it to recipient.
// The health factor of user is checked after the draw-down.
func (e *Engine) RedeemCollateralTo(user, recipient crypto.Address, asset Asset, amount *big.Int) error {
	return e.execute(opRedeemCollateral, func(tx *txn) error {
		if err := tx.redeemCollateral(user, recipient, asset, amount, ErrInsufficientCollateral); err != nil {
			return err
		}
		return tx.requireHealthy(user)
	})
}

// BurnDebt retires amount of user's debt with tokens pulled from payer.
func (e *Engine) BurnDebt(user crypto.Address, amount *big.Int, payer crypto.Address) error {
	return e.execute(opBurnDebt, func(tx *txn) error {
		if err := tx.burnDebt(user, payer, amount); err != nil {
			return err
		}
		return tx.requireHealthy(user)
	})
}

// DepositAndMint deposits collateral and mints debt as one unit.
func (e *Engine) DepositAndMint(user crypto.Address, asset Asset, collateralAmount, debtAmount *big.Int) error {
	return e.execute(opDepositAndMint, func(tx *txn) error {
		if err := tx.depositCollateral(user, asset, collateralAmount); err != nil {
			return err
		}
		if err := tx.mintDebt(user, debtAmount); err != nil {
			return err
		}
		return tx.requireHealthy(user)
	})
}

// RedeemForBurn burns user's debt and then redeems collateral as one unit.
func (e *Engine) RedeemForBurn(user crypto.Address, asset Asset, collateralAmount, debtAmount *big.Int) error {
	return e.execute(opRedeemForBurn, func(tx *txn) error {
		if err := tx.burnDebt(user, user, debtAmount); err != nil {
			return err
		}
		if err := tx.redeemCollateral(user, user, asset, collateralAmount, ErrInsufficientCollateral); err != nil {
			return err
		}
		return tx.requireHealthy(user)
	})
}

func (e *Engine) loadPosition(owner crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pos, err := e.state.GetPosition(owner)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return NewPosition(owner), nil
	}
	pos = pos.Clone()
	pos.Owner = owner
	pos.ensureDefaults()
	return pos, nil
}
