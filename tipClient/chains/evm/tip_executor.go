package evm

import (
	"context"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const tipContractABIJSON = `[
	{"type":"function","name":"tipSpeaker","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"speaker","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"message","type":"string"},
		{"name":"eventId","type":"string"},
		{"name":"speakerId","type":"string"}
	 ],
	 "outputs":[]}
]`

var tipContractABI = mustParseABI(tipContractABIJSON)

// TipExecutor tips speakers through the tip contract on the target chain
type TipExecutor struct {
	sender      *TxSender
	tipContract ethcommon.Address
	usdc        ethcommon.Address
	logger      zerolog.Logger
}

// NewTipExecutor creates an executor for the tip contract
func NewTipExecutor(sender *TxSender, tipContract, usdc string, logger zerolog.Logger) (*TipExecutor, error) {
	if sender == nil {
		return nil, fmt.Errorf("tx sender is required")
	}
	if !ethcommon.IsHexAddress(tipContract) {
		return nil, fmt.Errorf("invalid tip contract address: %q", tipContract)
	}
	if !ethcommon.IsHexAddress(usdc) {
		return nil, fmt.Errorf("invalid USDC address: %q", usdc)
	}
	return &TipExecutor{
		sender:      sender,
		tipContract: ethcommon.HexToAddress(tipContract),
		usdc:        ethcommon.HexToAddress(usdc),
		logger:      logger.With().Str("component", "evm_tip_executor").Logger(),
	}, nil
}

// TipSpeaker approves the tip contract when needed, calls tipSpeaker and
// waits for the receipt.
func (e *TipExecutor) TipSpeaker(ctx context.Context, recipient string, amount *big.Int, message, eventID, speakerID string) (string, error) {
	if !ethcommon.IsHexAddress(recipient) {
		return "", fmt.Errorf("invalid recipient address: %q", recipient)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	data, err := tipContractABI.Pack("tipSpeaker", ethcommon.HexToAddress(recipient), amount, message, eventID, speakerID)
	if err != nil {
		return "", fmt.Errorf("failed to pack tipSpeaker: %w", err)
	}

	approval := Approval{Token: e.usdc, Spender: e.tipContract, Amount: amount}
	hash, err := e.sender.SendWithApproval(ctx, approval, TxRequest{To: e.tipContract, Data: data})
	if err != nil {
		return "", fmt.Errorf("tipSpeaker transaction failed: %w", err)
	}

	e.logger.Info().
		Str("tx_hash", hash.Hex()).
		Str("speaker", recipient).
		Str("event_id", eventID).
		Msg("tip sent")
	return hash.Hex(), nil
}
