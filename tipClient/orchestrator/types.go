package orchestrator

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/megavibe/megavibe-node/tipClient/chains"
)

// MaxMessageLength is the longest tip message accepted, in characters.
const MaxMessageLength = 200

// Path is the execution path chosen for a tip
type Path string

const (
	PathNative  Path = "native"
	PathBridged Path = "bridged"
)

// StatusKind enumerates the states of a tip flow
type StatusKind string

const (
	StatusPending    StatusKind = "pending"
	StatusBridging   StatusKind = "bridging"
	StatusConfirming StatusKind = "confirming"
	StatusCompleted  StatusKind = "completed"
	StatusFailed     StatusKind = "failed"
)

// IsTerminal reports whether no further status follows this one
func (k StatusKind) IsTerminal() bool {
	return k == StatusCompleted || k == StatusFailed
}

// TipRequest is immutable once submitted
type TipRequest struct {
	SourceChainID    int64           `json:"source_chain_id"`
	TargetChainID    int64           `json:"target_chain_id"` // zero means the configured target chain
	RecipientAddress string          `json:"recipient_address"`
	AmountUSD        decimal.Decimal `json:"amount_usd"`
	Message          string          `json:"message"`
	EventID          string          `json:"event_id"`
	SpeakerID        string          `json:"speaker_id"`
}

// PathFor returns the path this request takes once its target is stamped
func (r TipRequest) PathFor() Path {
	if r.SourceChainID == r.TargetChainID {
		return PathNative
	}
	return PathBridged
}

// FeeBreakdown is denominated in USD
type FeeBreakdown struct {
	Platform decimal.Decimal `json:"platform"`
	Gas      decimal.Decimal `json:"gas"`
	Bridge   decimal.Decimal `json:"bridge"`
}

// Total sums every fee component
func (f FeeBreakdown) Total() decimal.Decimal {
	return f.Platform.Add(f.Gas).Add(f.Bridge)
}

// Quote is the priced offer derived from the selected route. It lives for a
// single tip flow and is never persisted by the orchestrator.
type Quote struct {
	SourceChainID     int64         `json:"source_chain_id"`
	TargetChainID     int64         `json:"target_chain_id"`
	SourceAmount      *big.Int      `json:"source_amount"`
	TargetAmount      *big.Int      `json:"target_amount"` // net of fees
	Fees              FeeBreakdown  `json:"fees"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	RouteReference    string        `json:"route_reference"`
	Tool              string        `json:"tool,omitempty"`
}

// TransferStatus is one step of a tip flow
type TransferStatus struct {
	Kind           StatusKind `json:"status"`
	TxHash         string     `json:"tx_hash,omitempty"`
	Message        string     `json:"message"`
	RouteReference string     `json:"route_reference,omitempty"`
	Quote          *Quote     `json:"quote,omitempty"` // set on bridging only
	Err            error      `json:"-"`               // set on failed only
	Timestamp      time.Time  `json:"timestamp"`
}

// ErrorDetail returns the failure detail, or "" for non-failed statuses
func (s TransferStatus) ErrorDetail() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// TransferResult is what SendTip resolves to
type TransferResult struct {
	Success        bool   `json:"success"`
	TxHash         string `json:"tx_hash,omitempty"`
	RouteReference string `json:"route_reference,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// StatusListener receives the statuses of one request
type StatusListener func(status TransferStatus)

// Observer receives the statuses of every request. Observers must not block.
type Observer interface {
	OnStatus(requestID string, req TipRequest, status TransferStatus)
}

// RouteRequest asks the bridge for routes moving USDC to the target chain
type RouteRequest struct {
	FromChainID int64
	ToChainID   int64
	FromToken   string
	ToToken     string
	FromAddress string
	ToAddress   string
	Amount      *big.Int // USDC base units
}

// Route is a bridge proposal. Payload is provider specific and opaque here.
type Route struct {
	ID                string
	FromChainID       int64
	ToChainID         int64
	FromAmount        *big.Int
	ToAmount          *big.Int
	GasCostUSD        decimal.Decimal
	BridgeFeeUSD      decimal.Decimal
	EstimatedDuration time.Duration
	Tool              string
	Payload           json.RawMessage
}

// BridgeState mirrors the settlement states reported by bridge status APIs
type BridgeState string

const (
	BridgeStateNotFound BridgeState = "NOT_FOUND"
	BridgeStatePending  BridgeState = "PENDING"
	BridgeStateDone     BridgeState = "DONE"
	BridgeStateFailed   BridgeState = "FAILED"
	BridgeStateInvalid  BridgeState = "INVALID"
)

// BridgeStatus is one settlement observation
type BridgeStatus struct {
	State           BridgeState
	Substatus       string
	Message         string
	ReceivingTxHash string
}

// ChainRegistry maps chain ids to metadata
type ChainRegistry interface {
	ChainName(chainID int64) string
	Chain(chainID int64) (*chains.Chain, bool)
	IsSupported(chainID int64) bool
}

// QuoteProvider is the bridging backend
type QuoteProvider interface {
	GetRoutes(ctx context.Context, req RouteRequest) ([]Route, error)
	ExecuteRoute(ctx context.Context, route Route) (string, error)
	RouteStatus(ctx context.Context, route Route, txHash string) (BridgeStatus, error)
}

// NativeTransferExecutor tips on the target chain directly. Token approval
// is its own concern.
type NativeTransferExecutor interface {
	TipSpeaker(ctx context.Context, recipient string, amount *big.Int, message, eventID, speakerID string) (string, error)
}

// Wallet exposes the sender address
type Wallet interface {
	Address(ctx context.Context) (string, error)
}
