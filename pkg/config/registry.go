package config

import (
	"evmxfer/pkg/models"
)

// Registry is the read-only set of supported networks and tokens. It is built
// once at start-up and shared freely afterwards.
type Registry struct {
	networks []models.NetworkDescriptor
	byID     map[string]int
	tokens   []models.TokenDescriptor
}

// NewRegistry converts configuration entries into descriptors. Order is kept.
func NewRegistry(networks []NetworkConfig, tokens []TokenConfig) *Registry {
	r := &Registry{byID: make(map[string]int, len(networks))}
	for _, n := range networks {
		if _, dup := r.byID[n.Key]; dup {
			continue
		}
		r.byID[n.Key] = len(r.networks)
		r.networks = append(r.networks, models.NetworkDescriptor{
			ID:          n.Key,
			ChainID:     n.ChainID,
			Name:        n.Name,
			Symbol:      n.Symbol,
			Decimals:    int32(n.NativeDecimals),
			ExplorerURL: n.ExplorerURL,
			RPCURLs:     append([]string(nil), n.RPCURLs...),
		})
	}
	for _, t := range tokens {
		r.tokens = append(r.tokens, models.TokenDescriptor{
			Address:  t.Address,
			Symbol:   t.Symbol,
			Name:     t.Name,
			Decimals: int32(t.Decimals),
			Network:  t.Network,
		})
	}
	return r
}

// RegistryFromConfig is NewRegistry over a loaded Config.
func RegistryFromConfig(cfg Config) *Registry {
	return NewRegistry(cfg.Networks, cfg.Tokens)
}

// Network looks a network up by id.
func (r *Registry) Network(id string) (models.NetworkDescriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return models.NetworkDescriptor{}, false
	}
	return r.networks[i], true
}

// NetworkByChainID finds the registered network with the given chain id.
func (r *Registry) NetworkByChainID(chainID int64) (models.NetworkDescriptor, bool) {
	for _, n := range r.networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return models.NetworkDescriptor{}, false
}

// Networks returns all networks in configuration order.
func (r *Registry) Networks() []models.NetworkDescriptor {
	return append([]models.NetworkDescriptor(nil), r.networks...)
}

// TokensFor returns the tokens registered for a network, in configuration order.
func (r *Registry) TokensFor(networkID string) []models.TokenDescriptor {
	var out []models.TokenDescriptor
	for _, t := range r.tokens {
		if t.Network == networkID {
			out = append(out, t)
		}
	}
	return out
}
