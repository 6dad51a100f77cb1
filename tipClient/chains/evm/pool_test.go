package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/megavibe/megavibe-node/tipClient/chains"
	"github.com/megavibe/megavibe-node/tipClient/config"
)

func TestSenderPoolCachesSenders(t *testing.T) {
	registry, err := chains.NewRegistry([]config.ChainConfig{
		{ChainID: 1, Name: "Ethereum", RPCURLs: []string{"http://eth"}},
		{ChainID: 10, Name: "Optimism"},
	}, zerolog.Nop())
	require.NoError(t, err)

	pool := NewSenderPool(registry, newTestWallet(t), ReceiptPolicy{}, zerolog.Nop())
	dials := 0
	pool.dial = func(urls []string, chainID int64, logger zerolog.Logger) (*RPCClient, error) {
		dials++
		if len(urls) == 0 {
			return nil, errors.New("no RPC URLs provided")
		}
		backend := &mockEthBackend{}
		backend.On("Close").Maybe()
		return newRPCClientWithBackends(chainID, []ethBackend{backend}, logger), nil
	}

	first, err := pool.Sender(context.Background(), 1)
	require.NoError(t, err)
	second, err := pool.Sender(context.Background(), 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, dials)

	_, err = pool.Sender(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Optimism")

	_, err = pool.Sender(context.Background(), 999)
	require.Error(t, err)

	pool.Close()
	third, err := pool.Sender(context.Background(), 1)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestPooledTipExecutor(t *testing.T) {
	registry, err := chains.NewRegistry([]config.ChainConfig{
		{ChainID: 5003, Name: "Mantle Sepolia", RPCURLs: []string{"http://mantle"}},
	}, zerolog.Nop())
	require.NoError(t, err)

	pool := NewSenderPool(registry, newTestWallet(t), ReceiptPolicy{}, zerolog.Nop())
	backend := &mockEthBackend{}
	dials := 0
	pool.dial = func(urls []string, chainID int64, logger zerolog.Logger) (*RPCClient, error) {
		dials++
		return newRPCClientWithBackends(chainID, []ethBackend{backend}, logger), nil
	}

	_, err = pool.TipExecutor(5003, "not-an-address", testUSDC)
	require.Error(t, err)
	_, err = pool.TipExecutor(5003, testTipContract, "")
	require.Error(t, err)

	executor, err := pool.TipExecutor(5003, testTipContract, testUSDC)
	require.NoError(t, err)
	assert.Equal(t, 0, dials)

	backend.On("CallContract", mock.Anything, mock.Anything, (*big.Int)(nil)).Return(packAllowance(t, 10_000_000), nil)
	var sent []*types.Transaction
	expectBroadcast(backend, &sent)

	hash, err := executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(1_000_000), "", "evt-1", "spk-1")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, sent[0].Hash().Hex(), hash)
	assert.Equal(t, 1, dials)
}
