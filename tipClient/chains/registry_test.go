package chains

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megavibe/megavibe-node/tipClient/config"
)

func fixtureConfigs() []config.ChainConfig {
	return []config.ChainConfig{
		{ChainID: 5003, Name: "Mantle Sepolia", TipContract: "0x00000000000000000000000000000000000000aa", ExplorerURL: "https://explorer.sepolia.mantle.xyz", RPCURLs: []string{"http://a"}},
		{ChainID: 1, Name: "Ethereum", USDCAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(fixtureConfigs(), zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, r.IsSupported(1))
	assert.False(t, r.IsSupported(42))
	assert.Equal(t, "Ethereum", r.ChainName(1))
	assert.Equal(t, "Chain 42", r.ChainName(42))

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(5003), all[1].ID)
}

func TestNewRegistryRejectsBadInput(t *testing.T) {
	_, err := NewRegistry([]config.ChainConfig{{ChainID: 0}}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewRegistry([]config.ChainConfig{{ChainID: 1}, {ChainID: 1}}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewRegistry([]config.ChainConfig{{ChainID: 1, USDCAddress: "not-an-address"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestChainReturnsCopy(t *testing.T) {
	r, err := NewRegistry(fixtureConfigs(), zerolog.Nop())
	require.NoError(t, err)

	chain, ok := r.Chain(5003)
	require.True(t, ok)
	chain.Name = "mutated"
	chain.RPCURLs[0] = "http://mutated"

	again, _ := r.Chain(5003)
	assert.Equal(t, "Mantle Sepolia", again.Name)
	assert.Equal(t, "http://a", again.RPCURLs[0])
}

func TestTxURL(t *testing.T) {
	r, err := NewRegistry(fixtureConfigs(), zerolog.Nop())
	require.NoError(t, err)

	chain, _ := r.Chain(5003)
	assert.Equal(t, "https://explorer.sepolia.mantle.xyz/tx/0xabc", chain.TxURL("0xabc"))

	eth, _ := r.Chain(1)
	assert.Equal(t, "", eth.TxURL("0xabc"))
}
