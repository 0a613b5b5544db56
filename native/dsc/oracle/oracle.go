package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"dscengine/native/dsc"
)

var (
	// ErrNoPrice indicates a feed has not been given a price yet.
	ErrNoPrice = errors.New("oracle: no price available")
	// ErrStalePrice indicates the latest answer is older than the allowed age.
	ErrStalePrice = errors.New("oracle: price is stale")
	// ErrInvalidPrice indicates a non-positive or malformed price.
	ErrInvalidPrice = errors.New("oracle: invalid price")
)

// DefaultMaxAge is the freshness window applied when none is configured.
const DefaultMaxAge = 3 * time.Hour

var (
	_ dsc.PriceSource = (*ManualFeed)(nil)
	_ dsc.PriceSource = (*StaleGuard)(nil)
	_ dsc.PriceSource = (*HTTPFeed)(nil)
)

// ManualFeed is an in-memory price source set by an operator or a test.
type ManualFeed struct {
	mu        sync.RWMutex
	price     *big.Int
	updatedAt time.Time
	nowFn     func() time.Time
}

// NewManualFeed constructs an empty feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{nowFn: time.Now}
}

// SetClock overrides the clock used to timestamp SetPrice calls.
func (f *ManualFeed) SetClock(now func() time.Time) {
	if f == nil || now == nil {
		return
	}
	f.mu.Lock()
	f.nowFn = now
	f.mu.Unlock()
}

// SetPrice records price, expressed with dsc.FeedDecimals() decimals, as the
// latest answer.
func (f *ManualFeed) SetPrice(price *big.Int) error {
	if f == nil {
		return fmt.Errorf("manual feed not configured")
	}
	f.mu.RLock()
	now := f.nowFn
	f.mu.RUnlock()
	return f.SetPriceAt(price, now())
}

// SetPriceAt records price with an explicit update time.
func (f *ManualFeed) SetPriceAt(price *big.Int, updatedAt time.Time) error {
	if f == nil {
		return fmt.Errorf("manual feed not configured")
	}
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	f.mu.Lock()
	f.price = new(big.Int).Set(price)
	f.updatedAt = updatedAt
	f.mu.Unlock()
	return nil
}

// SetDecimal parses a decimal price such as "2000.5" and stores it scaled to
// feed units.
func (f *ManualFeed) SetDecimal(price string) error {
	scaled, err := ParseDecimal(price)
	if err != nil {
		return err
	}
	return f.SetPrice(scaled)
}

// LatestPrice returns the stored answer.
func (f *ManualFeed) LatestPrice() (*big.Int, time.Time, error) {
	if f == nil {
		return nil, time.Time{}, fmt.Errorf("manual feed not configured")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return nil, time.Time{}, ErrNoPrice
	}
	return new(big.Int).Set(f.price), f.updatedAt, nil
}

// StaleGuard wraps a price source and rejects answers older than maxAge.
type StaleGuard struct {
	source dsc.PriceSource
	maxAge time.Duration
	nowFn  func() time.Time
}

// NewStaleGuard wraps source. A non-positive maxAge selects DefaultMaxAge.
func NewStaleGuard(source dsc.PriceSource, maxAge time.Duration) *StaleGuard {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &StaleGuard{source: source, maxAge: maxAge, nowFn: time.Now}
}

// SetClock overrides the clock used for freshness checks.
func (g *StaleGuard) SetClock(now func() time.Time) {
	if g == nil || now == nil {
		return
	}
	g.nowFn = now
}

// MaxAge reports the configured freshness window.
func (g *StaleGuard) MaxAge() time.Duration {
	if g == nil {
		return 0
	}
	return g.maxAge
}

// LatestPrice returns the wrapped answer when it is fresh.
func (g *StaleGuard) LatestPrice() (*big.Int, time.Time, error) {
	if g == nil || g.source == nil {
		return nil, time.Time{}, fmt.Errorf("stale guard not configured")
	}
	price, updatedAt, err := g.source.LatestPrice()
	if err != nil {
		return nil, time.Time{}, err
	}
	if updatedAt.IsZero() {
		return nil, time.Time{}, fmt.Errorf("%w: missing update time", ErrStalePrice)
	}
	if age := g.nowFn().Sub(updatedAt); age > g.maxAge {
		return nil, updatedAt, fmt.Errorf("%w: updated %s ago, limit %s", ErrStalePrice, age.Round(time.Second), g.maxAge)
	}
	return price, updatedAt, nil
}

// ParseDecimal converts a positive decimal string into an integer with
// dsc.FeedDecimals() implied decimals. Extra precision is truncated.
func ParseDecimal(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}
	rat, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dsc.FeedDecimals())), nil)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	scaled := new(big.Int).Quo(rat.Num(), rat.Denom())
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	return scaled, nil
}

// FormatDecimal renders a feed-unit price as a decimal string.
func FormatDecimal(price *big.Int) string {
	if price == nil {
		return "0"
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(dsc.FeedDecimals())), nil)
	return new(big.Rat).SetFrac(price, scale).FloatString(int(dsc.FeedDecimals()))
}
