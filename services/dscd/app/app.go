package app

import (
	"fmt"
	"log/slog"
	"strings"

	engineconfig "dscengine/config"
	"dscengine/core/events"
	"dscengine/native/bank"
	"dscengine/native/dsc"
	"dscengine/native/dsc/oracle"
	"dscengine/storage"
)

// Components is the assembled engine together with the collaborators the
// daemon exposes directly.
type Components struct {
	Engine *dsc.Engine
	Bank   *bank.Bank
	Token  *bank.StableToken
	// Feeds holds the operator-managed feeds by asset. Assets priced over
	// HTTP have no entry.
	Feeds map[dsc.Asset]*oracle.ManualFeed
}

// Options carries the optional wiring for Build.
type Options struct {
	Emitter    events.Emitter
	Logger     *slog.Logger
	HTTPClient oracle.HTTPDoer
}

// Build assembles an engine from cfg on top of db. Bank and engine share db,
// so collateral balances, stablecoin balances and positions persist
// together.
func Build(cfg *engineconfig.Config, db storage.Database, opts Options) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine config required")
	}
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	vault, err := cfg.Vault()
	if err != nil {
		return nil, err
	}
	ledger := bank.New(db)
	ledger.SetEmitter(emitter)
	token, err := bank.NewStableToken(ledger, cfg.StableSymbol, vault)
	if err != nil {
		return nil, err
	}

	feeds := make(map[dsc.Asset]*oracle.ManualFeed)
	assets := make([]dsc.Asset, 0, len(cfg.Collateral))
	sources := make([]dsc.PriceSource, 0, len(cfg.Collateral))
	for _, entry := range cfg.Collateral {
		asset := dsc.NormalizeAsset(entry.Asset)
		var source dsc.PriceSource
		if url := strings.TrimSpace(entry.PriceFeedURL); url != "" {
			source = oracle.NewHTTPFeed(opts.HTTPClient, url, 0)
		} else {
			feed := oracle.NewManualFeed()
			if err := feed.SetDecimal(entry.InitialPrice); err != nil {
				return nil, fmt.Errorf("collateral %s: %w", asset, err)
			}
			feeds[asset] = feed
			source = feed
		}
		assets = append(assets, asset)
		sources = append(sources, oracle.NewStaleGuard(source, cfg.OracleMaxAge()))
	}
	registry, err := dsc.NewRegistry(assets, sources)
	if err != nil {
		return nil, err
	}

	engine := dsc.NewEngine(vault, registry, bank.NewCollateralTransfer(ledger, vault), token)
	engine.SetState(dsc.NewStore(db))
	engine.SetEmitter(emitter)
	engine.SetLogger(logger)
	engine.SetStrictZeroDebt(cfg.StrictZeroDebtHealth)

	logger.Info("dsc engine assembled",
		slog.String("vault", vault.String()),
		slog.String("stable_symbol", token.Symbol()),
		slog.Int("collateral_assets", registry.Len()),
		slog.Bool("strict_zero_debt", cfg.StrictZeroDebtHealth))

	return &Components{Engine: engine, Bank: ledger, Token: token, Feeds: feeds}, nil
}
