package config

import (
	"fmt"
	"math/big"
	"strings"
)

// Validate checks the configuration for values the engine cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir is required")
	}
	vault, err := c.Vault()
	if err != nil {
		return err
	}
	if vault.IsZero() {
		return fmt.Errorf("vault address must not be zero")
	}
	if len(c.Collateral) == 0 {
		return fmt.Errorf("at least one Collateral entry is required")
	}
	seen := make(map[string]struct{}, len(c.Collateral))
	for i, entry := range c.Collateral {
		asset := strings.ToUpper(strings.TrimSpace(entry.Asset))
		if asset == "" {
			return fmt.Errorf("collateral %d: Asset is required", i)
		}
		if strings.EqualFold(asset, c.StableSymbol) {
			return fmt.Errorf("collateral %s: stablecoin cannot back itself", asset)
		}
		if _, dup := seen[asset]; dup {
			return fmt.Errorf("collateral %s: listed twice", asset)
		}
		seen[asset] = struct{}{}
		if strings.TrimSpace(entry.PriceFeedURL) != "" {
			continue
		}
		price, ok := new(big.Rat).SetString(strings.TrimSpace(entry.InitialPrice))
		if !ok || price.Sign() <= 0 {
			return fmt.Errorf("collateral %s: InitialPrice %q must be a positive decimal", asset, entry.InitialPrice)
		}
	}
	return nil
}
