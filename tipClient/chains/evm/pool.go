package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/megavibe/megavibe-node/tipClient/chains"
)

// SenderPool lazily connects one TxSender per chain
type SenderPool struct {
	registry *chains.Registry
	wallet   *Wallet
	policy   ReceiptPolicy
	logger   zerolog.Logger

	mu      sync.Mutex
	senders map[int64]*TxSender
	dial    func(urls []string, chainID int64, logger zerolog.Logger) (*RPCClient, error)
}

// NewSenderPool creates a pool over the chains in registry
func NewSenderPool(registry *chains.Registry, wallet *Wallet, policy ReceiptPolicy, logger zerolog.Logger) *SenderPool {
	return &SenderPool{
		registry: registry,
		wallet:   wallet,
		policy:   policy,
		logger:   logger.With().Str("component", "evm_sender_pool").Logger(),
		senders:  make(map[int64]*TxSender),
		dial:     NewRPCClient,
	}
}

// Sender returns the sender for chainID, dialing its RPC endpoints on first use
func (p *SenderPool) Sender(_ context.Context, chainID int64) (*TxSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.senders[chainID]; ok {
		return s, nil
	}

	chain, ok := p.registry.Chain(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d is not supported", chainID)
	}
	rpc, err := p.dial(chain.RPCURLs, chainID, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", chain.Name, err)
	}
	sender, err := NewTxSender(rpc, p.wallet, p.policy, p.logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	p.senders[chainID] = sender
	return sender, nil
}

// Submit signs and sends req on chainID and waits for its receipt. When
// approval is set the allowance is topped up first and held until the
// receipt arrives.
func (p *SenderPool) Submit(ctx context.Context, chainID int64, req TxRequest, approval *Approval) (string, error) {
	sender, err := p.Sender(ctx, chainID)
	if err != nil {
		return "", err
	}
	var hash ethcommon.Hash
	if approval != nil {
		hash, err = sender.SendWithApproval(ctx, *approval, req)
	} else {
		hash, err = sender.SendAndWait(ctx, req)
	}
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// Close closes every connected RPC client
func (p *SenderPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, s := range p.senders {
		s.RPC().Close()
		delete(p.senders, id)
	}
}

// PooledTipExecutor tips through the tip contract on one chain, taking its
// sender from a pool so the chain is only dialed when the first tip runs.
type PooledTipExecutor struct {
	pool        *SenderPool
	chainID     int64
	tipContract string
	usdc        string
}

// TipExecutor returns a native executor for the tip contract on chainID
func (p *SenderPool) TipExecutor(chainID int64, tipContract, usdc string) (*PooledTipExecutor, error) {
	if !ethcommon.IsHexAddress(tipContract) {
		return nil, fmt.Errorf("invalid tip contract address: %q", tipContract)
	}
	if !ethcommon.IsHexAddress(usdc) {
		return nil, fmt.Errorf("invalid USDC address: %q", usdc)
	}
	return &PooledTipExecutor{pool: p, chainID: chainID, tipContract: tipContract, usdc: usdc}, nil
}

// TipSpeaker implements orchestrator.NativeTransferExecutor
func (e *PooledTipExecutor) TipSpeaker(ctx context.Context, recipient string, amount *big.Int, message, eventID, speakerID string) (string, error) {
	sender, err := e.pool.Sender(ctx, e.chainID)
	if err != nil {
		return "", err
	}
	executor, err := NewTipExecutor(sender, e.tipContract, e.usdc, e.pool.logger)
	if err != nil {
		return "", err
	}
	return executor.TipSpeaker(ctx, recipient, amount, message, eventID, speakerID)
}
