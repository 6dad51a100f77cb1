package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// gasBufferPercent is added on top of the node's gas estimate
const gasBufferPercent = 20

// TxRequest describes a transaction to sign and send. Zero GasLimit or nil
// GasPrice are filled from the node.
type TxRequest struct {
	To       ethcommon.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// ReceiptPolicy controls receipt waiting
type ReceiptPolicy struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// TxSender builds, signs and broadcasts transactions on one chain
type TxSender struct {
	rpc    *RPCClient
	wallet *Wallet
	policy ReceiptPolicy
	logger zerolog.Logger

	// serializes nonce assignment for this wallet on this chain
	mu sync.Mutex

	allowanceMu    sync.Mutex
	allowanceLocks map[allowanceKey]*sync.Mutex
}

// NewTxSender creates a sender for the chain served by rpc
func NewTxSender(rpc *RPCClient, wallet *Wallet, policy ReceiptPolicy, logger zerolog.Logger) (*TxSender, error) {
	if rpc == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if wallet == nil {
		return nil, fmt.Errorf("wallet is required")
	}
	if policy.PollInterval <= 0 {
		policy.PollInterval = 2 * time.Second
	}
	if policy.Timeout <= 0 {
		policy.Timeout = 2 * time.Minute
	}
	return &TxSender{
		rpc:    rpc,
		wallet: wallet,
		policy: policy,
		logger: logger.With().Str("component", "evm_tx_sender").Int64("chain_id", rpc.ChainID()).Logger(),
	}, nil
}

// RPC returns the underlying client
func (s *TxSender) RPC() *RPCClient {
	return s.rpc
}

// From returns the signing account
func (s *TxSender) From() ethcommon.Address {
	return s.wallet.Account()
}

// Send signs and broadcasts req, returning the transaction hash
func (s *TxSender) Send(ctx context.Context, req TxRequest) (ethcommon.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	nonce, err := s.rpc.GetPendingNonce(ctx, s.From())
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		gasPrice, err = s.rpc.GetGasPrice(ctx)
		if err != nil {
			return ethcommon.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		to := req.To
		estimate, err := s.rpc.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.From(),
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return ethcommon.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
		gasLimit = estimate + estimate*gasBufferPercent/100
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	})
	signed, err := s.wallet.SignTx(tx, s.rpc.ChainID())
	if err != nil {
		return ethcommon.Hash{}, err
	}

	if err := s.rpc.SendTransaction(ctx, signed); err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	s.logger.Info().
		Str("tx_hash", signed.Hash().Hex()).
		Str("to", req.To.Hex()).
		Uint64("nonce", nonce).
		Uint64("gas_limit", gasLimit).
		Msg("transaction broadcast")
	return signed.Hash(), nil
}

// WaitReceipt polls until the transaction is mined. A reverted transaction
// is returned as an error together with its receipt.
func (s *TxSender) WaitReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()

	ticker := time.NewTicker(s.policy.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.rpc.GetTransactionReceipt(ctx, txHash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("transaction %s reverted", txHash.Hex())
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			s.logger.Debug().Err(err).Str("tx_hash", txHash.Hex()).Msg("receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt of %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// SendAndWait sends req and waits for a successful receipt
func (s *TxSender) SendAndWait(ctx context.Context, req TxRequest) (ethcommon.Hash, error) {
	hash, err := s.Send(ctx, req)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if _, err := s.WaitReceipt(ctx, hash); err != nil {
		return hash, err
	}
	return hash, nil
}
