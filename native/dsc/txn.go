package dsc

import (
	"errors"
	"fmt"
	"math/big"

	"dscengine/core/events"
	"dscengine/crypto"
)

// effect is an external call queued by an operation. Effects run only after
// every ledger change and health check has passed; undo reverses a completed
// apply when a later step fails.
type effect struct {
	name  string
	apply func() error
	undo  func() error
}

// txn stages one operation. Ledger reads go through the staged copies so
// health checks see the post-operation state, while committed state stays
// untouched until commit succeeds.
type txn struct {
	engine  *Engine
	staged  map[string]*Position
	order   []string
	effects []effect
	events  []events.Event
}

func (e *Engine) begin() *txn {
	return &txn{engine: e, staged: make(map[string]*Position)}
}

// position returns the staged copy of owner's position, loading it on first
// use.
func (t *txn) position(owner crypto.Address) (*Position, error) {
	key := owner.Key()
	if pos, ok := t.staged[key]; ok {
		return pos, nil
	}
	pos, err := t.engine.loadPosition(owner)
	if err != nil {
		return nil, err
	}
	t.staged[key] = pos
	t.order = append(t.order, key)
	return pos, nil
}

func (t *txn) queue(name string, apply, undo func() error) {
	t.effects = append(t.effects, effect{name: name, apply: apply, undo: undo})
}

func (t *txn) emit(evt events.Event) {
	t.events = append(t.events, evt)
}

// commit runs the queued effects in order, persists the staged positions and
// finally publishes events. Any failure unwinds the effects already applied.
func (t *txn) commit() error {
	applied := 0
	for _, eff := range t.effects {
		if err := eff.apply(); err != nil {
			failure := fmt.Errorf("%w: %s: %w", ErrTransferFailed, eff.name, err)
			return t.abort(applied, failure)
		}
		applied++
	}

	positions := make([]*Position, 0, len(t.order))
	for _, key := range t.order {
		positions = append(positions, t.staged[key])
	}
	if err := t.engine.state.PutPositions(positions...); err != nil {
		return t.abort(applied, fmt.Errorf("dsc engine: persist positions: %w", err))
	}

	for _, evt := range t.events {
		t.engine.emitter.Emit(evt)
	}
	return nil
}

func (t *txn) abort(applied int, cause error) error {
	var undoErrs []error
	for i := applied - 1; i >= 0; i-- {
		eff := t.effects[i]
		if eff.undo == nil {
			continue
		}
		if err := eff.undo(); err != nil {
			undoErrs = append(undoErrs, fmt.Errorf("undo %s: %w", eff.name, err))
		}
	}
	if len(undoErrs) == 0 {
		return cause
	}
	undoErr := errors.Join(undoErrs...)
	t.engine.logger.Error("dsc engine: compensation failed", "error", undoErr, "cause", cause)
	return errors.Join(cause, undoErr)
}

func cloneOptional(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
