package config

// DefaultOracleMaxAgeSeconds is the price freshness window used when the
// file leaves it unset.
const DefaultOracleMaxAgeSeconds = 3 * 60 * 60

// Collateral configures one accepted asset. PriceFeedURL selects an HTTP
// feed; without it the asset uses an operator-set feed seeded with
// InitialPrice.
type Collateral struct {
	Asset        string `toml:"Asset"`
	PriceFeedURL string `toml:"PriceFeedURL,omitempty"`
	InitialPrice string `toml:"InitialPrice,omitempty"`
}

// Assets lists the configured collateral symbols in file order.
func (c *Config) Assets() []string {
	out := make([]string, 0, len(c.Collateral))
	for _, entry := range c.Collateral {
		out = append(out, entry.Asset)
	}
	return out
}
