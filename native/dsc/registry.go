package dsc

import "fmt"

// Registry maps each supported collateral asset to its price source and keeps
// the assets in configuration order. It is immutable once built.
type Registry struct {
	sources map[Asset]PriceSource
	assets  []Asset
}

// NewRegistry pairs assets with sources by index. Nothing is published unless
// every pair is valid.
func NewRegistry(assets []Asset, sources []PriceSource) (*Registry, error) {
	if len(assets) != len(sources) {
		return nil, fmt.Errorf("%w: %d assets, %d price sources", ErrConfigurationMismatch, len(assets), len(sources))
	}
	mapping := make(map[Asset]PriceSource, len(assets))
	ordered := make([]Asset, 0, len(assets))
	for i, raw := range assets {
		asset := NormalizeAsset(string(raw))
		if asset == "" {
			return nil, fmt.Errorf("%w: asset %d is empty", ErrConfigurationMismatch, i)
		}
		if sources[i] == nil {
			return nil, fmt.Errorf("%w: asset %s has no price source", ErrConfigurationMismatch, asset)
		}
		if _, exists := mapping[asset]; exists {
			return nil, fmt.Errorf("%w: asset %s listed twice", ErrConfigurationMismatch, asset)
		}
		mapping[asset] = sources[i]
		ordered = append(ordered, asset)
	}
	return &Registry{sources: mapping, assets: ordered}, nil
}

// Supported reports whether asset has a price source.
func (r *Registry) Supported(asset Asset) bool {
	_, ok := r.PriceSource(asset)
	return ok
}

// PriceSource returns the source registered for asset.
func (r *Registry) PriceSource(asset Asset) (PriceSource, bool) {
	if r == nil {
		return nil, false
	}
	source, ok := r.sources[NormalizeAsset(string(asset))]
	return source, ok
}

// Assets returns the supported assets in configuration order.
func (r *Registry) Assets() []Asset {
	if r == nil {
		return nil
	}
	return append([]Asset(nil), r.assets...)
}

// Len returns the number of supported assets.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.assets)
}
