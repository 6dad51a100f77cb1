package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/megavibe/megavibe-node/tipClient/errors"
)

// Wallet signs transactions with a locally held key
type Wallet struct {
	key     *ecdsa.PrivateKey
	address ethcommon.Address
}

// NewWallet parses a hex private key, with or without 0x prefix. An empty
// key yields a wallet-not-connected error.
func NewWallet(keyHex string) (*Wallet, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if keyHex == "" {
		return nil, errors.NewWalletNotConnectedError(fmt.Errorf("no private key configured"))
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, errors.NewConfigError("", fmt.Sprintf("invalid wallet private key: %v", err))
	}
	return newWalletFromKey(key), nil
}

func newWalletFromKey(key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the checksummed sender address
func (w *Wallet) Address(_ context.Context) (string, error) {
	if w == nil || w.key == nil {
		return "", errors.ErrWalletNotConnected
	}
	return w.address.Hex(), nil
}

// Account returns the sender as a go-ethereum address
func (w *Wallet) Account() ethcommon.Address {
	return w.address
}

// SignTx signs tx for the given chain
func (w *Wallet) SignTx(tx *types.Transaction, chainID int64) (*types.Transaction, error) {
	if w == nil || w.key == nil {
		return nil, errors.ErrWalletNotConnected
	}
	signer := types.LatestSignerForChainID(big.NewInt(chainID))
	signed, err := types.SignTx(tx, signer, w.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
