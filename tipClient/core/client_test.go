package core

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megavibe/megavibe-node/tipClient/config"
	"github.com/megavibe/megavibe-node/tipClient/constant"
	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/errors"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

const testWalletKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		LogLevel:      1,
		LogFormat:     "json",
		NodeHome:      t.TempDir(),
		TargetChainID: 5003,
		WalletKeyHex:  testWalletKey,
		Chains: []config.ChainConfig{
			{ChainID: 1, Name: "Ethereum", USDCAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
			{
				ChainID:     5003,
				Name:        "Mantle Sepolia",
				USDCAddress: "0x00000000000000000000000000000000000000bb",
				TipContract: "0x00000000000000000000000000000000000000aa",
			},
		},
		History: config.HistoryConfig{Enabled: true},
	}
}

func TestNewTipClient(t *testing.T) {
	t.Run("fails without a tip contract on the target chain", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Chains[1].TipContract = ""

		client, err := NewTipClient(context.Background(), zerolog.Nop(), cfg)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "Mantle Sepolia")
	})

	t.Run("fails with a malformed wallet key", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.WalletKeyHex = "0xnothex"

		client, err := NewTipClient(context.Background(), zerolog.Nop(), cfg)
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("opens the journal under the node home", func(t *testing.T) {
		cfg := testConfig(t)

		client, err := NewTipClient(context.Background(), zerolog.Nop(), cfg)
		require.NoError(t, err)
		require.NotNil(t, client.Journal())
		assert.FileExists(t, filepath.Join(cfg.NodeHome, constant.DatabasesSubdir, db.DefaultFileName))
		assert.Equal(t, int64(5003), client.Orchestrator().TargetChainID())

		require.NoError(t, client.Close())
		require.NoError(t, client.Close())
	})

	t.Run("journal can be disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.History.Enabled = false

		client, err := NewTipClient(context.Background(), zerolog.Nop(), cfg)
		require.NoError(t, err)
		assert.Nil(t, client.Journal())
		require.NoError(t, client.Close())
	})
}

func TestTipClientWithoutWallet(t *testing.T) {
	cfg := testConfig(t)
	cfg.WalletKeyHex = ""

	client, err := NewTipClient(context.Background(), zerolog.Nop(), cfg)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Orchestrator().Submit(context.Background(), orchestrator.TipRequest{
		SourceChainID:    5003,
		RecipientAddress: "0x2222222222222222222222222222222222222222",
		AmountUSD:        decimal.RequireFromString("1"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrWalletNotConnected))
}

func TestTipClientStartStops(t *testing.T) {
	cfg := testConfig(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.QueryServerPort = ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	ctx, cancel := context.WithCancel(context.Background())

	client, err := NewTipClient(ctx, zerolog.Nop(), cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- client.Start() }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestTipClientJournalsStatusesDuringShutdown(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	client, err := NewTipClient(ctx, zerolog.Nop(), cfg)
	require.NoError(t, err)
	require.NoError(t, client.StartBackground())

	req := orchestrator.TipRequest{
		SourceChainID:    1,
		TargetChainID:    5003,
		RecipientAddress: "0x2222222222222222222222222222222222222222",
		AmountUSD:        decimal.RequireFromString("5"),
	}
	client.recorder.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusPending, Timestamp: time.Now()})
	cancel()
	time.Sleep(50 * time.Millisecond)
	client.recorder.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusCompleted, TxHash: "0xabc", Timestamp: time.Now()})
	require.NoError(t, client.Close())

	journal, err := db.OpenFileDB(filepath.Join(cfg.NodeHome, constant.DatabasesSubdir), db.DefaultFileName, false)
	require.NoError(t, err)
	defer journal.Close()

	tip, _, err := journal.GetTip("tip_1_aaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "completed", tip.Status)
	assert.Equal(t, "0xabc", tip.TxHash)
}
