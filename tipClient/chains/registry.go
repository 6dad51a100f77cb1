package chains

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/config"
)

// Chain holds the static metadata of one supported chain
type Chain struct {
	ID           int64    `json:"chain_id"`
	Name         string   `json:"name"`
	NativeSymbol string   `json:"native_symbol"`
	USDCAddress  string   `json:"usdc_address"`
	TipContract  string   `json:"tip_contract,omitempty"`
	RPCURLs      []string `json:"-"`
	ExplorerURL  string   `json:"explorer_url,omitempty"`
	Testnet      bool     `json:"testnet"`
}

// TxURL returns the explorer link for a transaction, or "" when unknown.
func (c *Chain) TxURL(txHash string) string {
	if c == nil || c.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + txHash
}

// Registry maps chain ids to chain metadata. It is built once at startup
// and is read-only afterwards.
type Registry struct {
	mu     sync.RWMutex
	chains map[int64]*Chain
	logger zerolog.Logger
}

// NewRegistry builds a registry from chain configs
func NewRegistry(configs []config.ChainConfig, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		chains: make(map[int64]*Chain, len(configs)),
		logger: logger.With().Str("component", "chain_registry").Logger(),
	}

	for _, cfg := range configs {
		if cfg.ChainID <= 0 {
			return nil, fmt.Errorf("invalid chain id %d", cfg.ChainID)
		}
		if _, exists := r.chains[cfg.ChainID]; exists {
			return nil, fmt.Errorf("chain %d registered twice", cfg.ChainID)
		}
		for _, addr := range []string{cfg.USDCAddress, cfg.TipContract} {
			if addr != "" && !ethcommon.IsHexAddress(addr) {
				return nil, fmt.Errorf("chain %d: invalid address %q", cfg.ChainID, addr)
			}
		}

		r.chains[cfg.ChainID] = &Chain{
			ID:           cfg.ChainID,
			Name:         cfg.Name,
			NativeSymbol: cfg.NativeSymbol,
			USDCAddress:  cfg.USDCAddress,
			TipContract:  cfg.TipContract,
			RPCURLs:      append([]string(nil), cfg.RPCURLs...),
			ExplorerURL:  cfg.ExplorerURL,
			Testnet:      cfg.Testnet,
		}
	}

	r.logger.Debug().Int("chains", len(r.chains)).Msg("chain registry built")
	return r, nil
}

// ChainName returns the display name of a chain. Unknown chains render as
// "Chain <id>" so UI callers always have something to show.
func (r *Registry) ChainName(chainID int64) string {
	if chain, ok := r.Chain(chainID); ok && chain.Name != "" {
		return chain.Name
	}
	return "Chain " + strconv.FormatInt(chainID, 10)
}

// Chain returns a copy of the chain metadata
func (r *Registry) Chain(chainID int64) (*Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain, ok := r.chains[chainID]
	if !ok {
		return nil, false
	}
	cp := *chain
	cp.RPCURLs = append([]string(nil), chain.RPCURLs...)
	return &cp, true
}

// IsSupported reports whether the chain is registered
func (r *Registry) IsSupported(chainID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chains[chainID]
	return ok
}

// All returns every chain ordered by id
func (r *Registry) All() []*Chain {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*Chain, 0, len(ids))
	for _, id := range ids {
		if chain, ok := r.Chain(id); ok {
			out = append(out, chain)
		}
	}
	return out
}
