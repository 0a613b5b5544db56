package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dscengine/crypto"

	"github.com/BurntSushi/toml"
)

// Config describes one engine instance: where its state lives, which account
// holds custody and which collateral assets it accepts.
type Config struct {
	DataDir              string       `toml:"DataDir"`
	VaultAddress         string       `toml:"VaultAddress"`
	StableSymbol         string       `toml:"StableSymbol"`
	StrictZeroDebtHealth bool         `toml:"StrictZeroDebtHealth"`
	OracleMaxAgeSeconds  uint64       `toml:"OracleMaxAgeSeconds"`
	Collateral           []Collateral `toml:"Collateral"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated vault address.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./dsc-data"
	}
	if strings.TrimSpace(c.StableSymbol) == "" {
		c.StableSymbol = "DSC"
	}
	if c.OracleMaxAgeSeconds == 0 {
		c.OracleMaxAgeSeconds = DefaultOracleMaxAgeSeconds
	}
	for i := range c.Collateral {
		c.Collateral[i].Asset = strings.ToUpper(strings.TrimSpace(c.Collateral[i].Asset))
	}
}

// Vault decodes the configured custody address.
func (c *Config) Vault() (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(c.VaultAddress)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("vault address: %w", err)
	}
	return addr, nil
}

// OracleMaxAge returns the freshness window applied to price feeds.
func (c *Config) OracleMaxAge() time.Duration {
	return time.Duration(c.OracleMaxAgeSeconds) * time.Second
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:             "./dsc-data",
		VaultAddress:        key.PubKey().AddressWithPrefix(crypto.VaultPrefix).String(),
		StableSymbol:        "DSC",
		OracleMaxAgeSeconds: DefaultOracleMaxAgeSeconds,
		Collateral: []Collateral{
			{Asset: "WETH", InitialPrice: "2000"},
			{Asset: "WBTC", InitialPrice: "30000"},
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
