package evm

import (
	"bytes"
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testTipContract = "0x00000000000000000000000000000000000000aa"
	testUSDC        = "0x00000000000000000000000000000000000000bb"
	testSpeaker     = "0x2222222222222222222222222222222222222222"
)

func packAllowance(t *testing.T, v int64) []byte {
	t.Helper()
	out, err := erc20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(v))
	require.NoError(t, err)
	return out
}

func expectBroadcast(backend *mockEthBackend, sent *[]*types.Transaction) {
	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(1), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(60_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { *sent = append(*sent, args.Get(1).(*types.Transaction)) }).
		Return(nil)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).
		Return(&types.Receipt{Status: types.ReceiptStatusSuccessful}, nil)
}

func TestTipExecutorApprovesThenTips(t *testing.T) {
	backend := &mockEthBackend{}
	sender, _ := newTestSender(t, backend)
	executor, err := NewTipExecutor(sender, testTipContract, testUSDC, zerolog.Nop())
	require.NoError(t, err)

	usdc := ethcommon.HexToAddress(testUSDC)
	backend.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return *msg.To == usdc
	}), (*big.Int)(nil)).Return(packAllowance(t, 0), nil).Once()

	var sent []*types.Transaction
	expectBroadcast(backend, &sent)

	hash, err := executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(5_000_000), "great talk", "evt-1", "spk-1")
	require.NoError(t, err)
	require.Len(t, sent, 2)

	approve, tip := sent[0], sent[1]
	assert.Equal(t, usdc, *approve.To())
	assert.True(t, bytes.Equal(erc20ABI.Methods["approve"].ID, approve.Data()[:4]))

	assert.Equal(t, ethcommon.HexToAddress(testTipContract), *tip.To())
	assert.True(t, bytes.Equal(tipContractABI.Methods["tipSpeaker"].ID, tip.Data()[:4]))
	assert.Equal(t, tip.Hash().Hex(), hash)

	args, err := tipContractABI.Methods["tipSpeaker"].Inputs.Unpack(tip.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress(testSpeaker), args[0])
	assert.Equal(t, big.NewInt(5_000_000), args[1])
	assert.Equal(t, "great talk", args[2])
	assert.Equal(t, "evt-1", args[3])
	assert.Equal(t, "spk-1", args[4])
}

func TestTipExecutorSkipsApprovalWhenAllowed(t *testing.T) {
	backend := &mockEthBackend{}
	sender, _ := newTestSender(t, backend)
	executor, err := NewTipExecutor(sender, testTipContract, testUSDC, zerolog.Nop())
	require.NoError(t, err)

	backend.On("CallContract", mock.Anything, mock.Anything, (*big.Int)(nil)).Return(packAllowance(t, 10_000_000), nil).Once()
	var sent []*types.Transaction
	expectBroadcast(backend, &sent)

	_, err = executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(1_000_000), "", "evt", "spk")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, ethcommon.HexToAddress(testTipContract), *sent[0].To())
}

func TestTipExecutorRejectsBadInput(t *testing.T) {
	backend := &mockEthBackend{}
	sender, _ := newTestSender(t, backend)

	_, err := NewTipExecutor(sender, "", testUSDC, zerolog.Nop())
	require.Error(t, err)
	_, err = NewTipExecutor(sender, testTipContract, "usdc", zerolog.Nop())
	require.Error(t, err)

	executor, err := NewTipExecutor(sender, testTipContract, testUSDC, zerolog.Nop())
	require.NoError(t, err)
	_, err = executor.TipSpeaker(context.Background(), "not-an-address", big.NewInt(1), "", "", "")
	require.Error(t, err)
	_, err = executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(0), "", "", "")
	require.Error(t, err)
	backend.AssertNotCalled(t, "CallContract", mock.Anything, mock.Anything, mock.Anything)
}

func TestTipExecutorRevertedTip(t *testing.T) {
	backend := &mockEthBackend{}
	sender, _ := newTestSender(t, backend)
	executor, err := NewTipExecutor(sender, testTipContract, testUSDC, zerolog.Nop())
	require.NoError(t, err)

	backend.On("CallContract", mock.Anything, mock.Anything, (*big.Int)(nil)).Return(packAllowance(t, 10_000_000), nil).Once()
	backend.On("PendingNonceAt", mock.Anything, mock.Anything).Return(uint64(1), nil)
	backend.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	backend.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(60_000), nil)
	backend.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	backend.On("TransactionReceipt", mock.Anything, mock.Anything).
		Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)

	_, err = executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(1_000_000), "", "evt", "spk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
}

// tokenBackend keeps the tip contract's USDC allowance so approvals and
// tips from concurrent requests act on the same state
type tokenBackend struct {
	*mockEthBackend

	mu        sync.Mutex
	nonce     uint64
	allowance *big.Int
	receipts  map[ethcommon.Hash]uint64
}

func newTokenBackend() *tokenBackend {
	b := &tokenBackend{
		mockEthBackend: &mockEthBackend{},
		allowance:      big.NewInt(0),
		receipts:       make(map[ethcommon.Hash]uint64),
	}
	b.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	b.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(60_000), nil)
	return b
}

func (b *tokenBackend) PendingNonceAt(_ context.Context, _ ethcommon.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *tokenBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	current := new(big.Int).Set(b.allowance)
	b.mu.Unlock()

	// leave room for another request to run between check and use
	time.Sleep(5 * time.Millisecond)
	return erc20ABI.Methods["allowance"].Outputs.Pack(current)
}

func (b *tokenBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonce++

	status := types.ReceiptStatusSuccessful
	selector, input := tx.Data()[:4], tx.Data()[4:]
	switch {
	case bytes.Equal(selector, erc20ABI.Methods["approve"].ID):
		args, err := erc20ABI.Methods["approve"].Inputs.Unpack(input)
		if err != nil {
			return err
		}
		b.allowance = new(big.Int).Set(args[1].(*big.Int))
	case bytes.Equal(selector, tipContractABI.Methods["tipSpeaker"].ID):
		args, err := tipContractABI.Methods["tipSpeaker"].Inputs.Unpack(input)
		if err != nil {
			return err
		}
		amount := args[1].(*big.Int)
		if b.allowance.Cmp(amount) < 0 {
			status = types.ReceiptStatusFailed
		} else {
			b.allowance = new(big.Int).Sub(b.allowance, amount)
		}
	}
	b.receipts[tx.Hash()] = status
	return nil
}

func (b *tokenBackend) TransactionReceipt(_ context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: status, TxHash: txHash}, nil
}

func TestTipExecutorConcurrentTipsShareAllowance(t *testing.T) {
	backend := newTokenBackend()
	rc := newRPCClientWithBackends(testChainID, []ethBackend{backend}, zerolog.Nop())
	sender, err := NewTxSender(rc, newTestWallet(t), ReceiptPolicy{PollInterval: time.Millisecond, Timeout: 5 * time.Second}, zerolog.Nop())
	require.NoError(t, err)

	amounts := []int64{5_000_000, 3_000_000, 3_000_000, 1_000_000}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func(i int, amount int64) {
			defer wg.Done()
			executor, err := NewTipExecutor(sender, testTipContract, testUSDC, zerolog.Nop())
			if err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = executor.TipSpeaker(context.Background(), testSpeaker, big.NewInt(amount), "", "evt", "spk")
		}(i, amount)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "tip %d", i)
	}
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Zero(t, backend.allowance.Sign())
	for hash, status := range backend.receipts {
		assert.Equal(t, types.ReceiptStatusSuccessful, status, "tx %s", hash.Hex())
	}
}
