package lifi

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/megavibe/megavibe-node/tipClient/chains/evm"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
	"github.com/megavibe/megavibe-node/tipClient/units"
)

// nativeTokenAddresses never need an ERC-20 approval
var nativeTokenAddresses = map[string]bool{
	"0x0000000000000000000000000000000000000000": true,
	"0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee": true,
}

// ChainExecutor signs and submits transactions on a source chain. A non-nil
// approval must be in place before req is sent.
type ChainExecutor interface {
	Submit(ctx context.Context, chainID int64, req evm.TxRequest, approval *evm.Approval) (string, error)
}

// routeAPI is the part of Client the provider uses
type routeAPI interface {
	Routes(ctx context.Context, req RoutesRequest) (*RoutesResponse, error)
	StepTransaction(ctx context.Context, step Step) (*Step, error)
	Status(ctx context.Context, req StatusRequest) (*StatusResponse, error)
}

// Provider bridges USDC through LI.FI
type Provider struct {
	api      routeAPI
	executor ChainExecutor
	logger   zerolog.Logger
}

// NewProvider creates a provider
func NewProvider(client *Client, executor ChainExecutor, logger zerolog.Logger) *Provider {
	return newProvider(client, executor, logger)
}

func newProvider(api routeAPI, executor ChainExecutor, logger zerolog.Logger) *Provider {
	return &Provider{
		api:      api,
		executor: executor,
		logger:   logger.With().Str("component", "lifi_provider").Logger(),
	}
}

// GetRoutes asks LI.FI for routes and converts those signable from the
// source chain alone.
func (p *Provider) GetRoutes(ctx context.Context, req orchestrator.RouteRequest) ([]orchestrator.Route, error) {
	if req.FromToken == "" || req.ToToken == "" {
		return nil, fmt.Errorf("USDC is not configured for chain %d or %d", req.FromChainID, req.ToChainID)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	resp, err := p.api.Routes(ctx, RoutesRequest{
		FromChainID:      req.FromChainID,
		ToChainID:        req.ToChainID,
		FromTokenAddress: req.FromToken,
		ToTokenAddress:   req.ToToken,
		FromAmount:       req.Amount.String(),
		FromAddress:      req.FromAddress,
		ToAddress:        req.ToAddress,
		Options: RouteOptions{
			Order:            "RECOMMENDED",
			AllowSwitchChain: false,
		},
	})
	if err != nil {
		return nil, err
	}

	routes := make([]orchestrator.Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		converted, err := convertRoute(r)
		if err != nil {
			p.logger.Debug().Err(err).Str("route", r.ID).Msg("skipping route")
			continue
		}
		routes = append(routes, converted)
	}
	p.logger.Debug().
		Int64("from_chain", req.FromChainID).
		Int("returned", len(resp.Routes)).
		Int("usable", len(routes)).
		Msg("routes fetched")
	return routes, nil
}

func convertRoute(r Route) (orchestrator.Route, error) {
	if len(r.Steps) == 0 {
		return orchestrator.Route{}, fmt.Errorf("route has no steps")
	}
	for _, s := range r.Steps {
		if s.Action.FromChainID != r.FromChainID {
			return orchestrator.Route{}, fmt.Errorf("step %s signs on chain %d", s.ID, s.Action.FromChainID)
		}
	}
	fromAmount, err := units.ParseSmallestUnit(r.FromAmount)
	if err != nil {
		return orchestrator.Route{}, fmt.Errorf("fromAmount: %w", err)
	}
	toAmount, err := units.ParseSmallestUnit(r.ToAmount)
	if err != nil {
		return orchestrator.Route{}, fmt.Errorf("toAmount: %w", err)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return orchestrator.Route{}, err
	}

	gas := decimal.Zero
	fees := decimal.Zero
	var seconds float64
	for _, s := range r.Steps {
		for _, c := range s.Estimate.GasCosts {
			gas = gas.Add(parseUSD(c.AmountUSD))
		}
		for _, c := range s.Estimate.FeeCosts {
			fees = fees.Add(parseUSD(c.AmountUSD))
		}
		seconds += s.Estimate.ExecutionDuration
	}
	if r.GasCostUSD != "" {
		gas = parseUSD(r.GasCostUSD)
	}

	return orchestrator.Route{
		ID:                r.ID,
		FromChainID:       r.FromChainID,
		ToChainID:         r.ToChainID,
		FromAmount:        fromAmount,
		ToAmount:          toAmount,
		GasCostUSD:        gas,
		BridgeFeeUSD:      fees,
		EstimatedDuration: time.Duration(seconds * float64(time.Second)),
		Tool:              r.Steps[0].Tool,
		Payload:           payload,
	}, nil
}

func parseUSD(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ExecuteRoute signs every step of the route in order and returns the hash
// of the last source-chain transaction.
func (p *Provider) ExecuteRoute(ctx context.Context, route orchestrator.Route) (string, error) {
	var r Route
	if err := json.Unmarshal(route.Payload, &r); err != nil {
		return "", fmt.Errorf("route %s has no usable payload: %w", route.ID, err)
	}

	var lastHash string
	for i, step := range r.Steps {
		populated, err := p.api.StepTransaction(ctx, step)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", i+1, err)
		}

		approval, err := approvalFor(populated)
		if err != nil {
			return "", fmt.Errorf("step %d approval: %w", i+1, err)
		}

		txReq, err := toTxRequest(populated.TransactionRequest)
		if err != nil {
			return "", fmt.Errorf("step %d: %w", i+1, err)
		}
		hash, err := p.executor.Submit(ctx, populated.Action.FromChainID, txReq, approval)
		if err != nil {
			return "", fmt.Errorf("step %d transaction: %w", i+1, err)
		}

		p.logger.Info().
			Str("route", route.ID).
			Str("tool", populated.Tool).
			Str("tx_hash", hash).
			Int("step", i+1).
			Msg("route step submitted")
		lastHash = hash
	}
	return lastHash, nil
}

// approvalFor returns the allowance a step needs, or nil for native tokens
// and steps without an approval address.
func approvalFor(step *Step) (*evm.Approval, error) {
	spender := step.Estimate.ApprovalAddress
	token := step.Action.FromToken.Address
	if spender == "" || nativeTokenAddresses[strings.ToLower(token)] {
		return nil, nil
	}
	if !ethcommon.IsHexAddress(token) || !ethcommon.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid approval token %q or spender %q", token, spender)
	}
	amount, err := units.ParseSmallestUnit(step.Action.FromAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid step amount: %w", err)
	}
	return &evm.Approval{
		Token:   ethcommon.HexToAddress(token),
		Spender: ethcommon.HexToAddress(spender),
		Amount:  amount,
	}, nil
}

func toTxRequest(tr *TransactionRequest) (evm.TxRequest, error) {
	if tr == nil {
		return evm.TxRequest{}, fmt.Errorf("missing transaction request")
	}
	if !ethcommon.IsHexAddress(tr.To) {
		return evm.TxRequest{}, fmt.Errorf("invalid transaction target %q", tr.To)
	}
	data, err := hexutil.Decode(tr.Data)
	if err != nil {
		return evm.TxRequest{}, fmt.Errorf("invalid transaction data: %w", err)
	}

	req := evm.TxRequest{To: ethcommon.HexToAddress(tr.To), Data: data}
	if req.Value, err = decodeQuantity(tr.Value); err != nil {
		return evm.TxRequest{}, fmt.Errorf("invalid value: %w", err)
	}
	if req.GasPrice, err = decodeQuantity(tr.GasPrice); err != nil {
		return evm.TxRequest{}, fmt.Errorf("invalid gas price: %w", err)
	}
	gasLimit, err := decodeQuantity(tr.GasLimit)
	if err != nil {
		return evm.TxRequest{}, fmt.Errorf("invalid gas limit: %w", err)
	}
	if gasLimit != nil {
		req.GasLimit = gasLimit.Uint64()
	}
	return req, nil
}

// decodeQuantity accepts hex or decimal quantities. Empty yields nil.
func decodeQuantity(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("bad hex quantity %q", s)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad quantity %q", s)
	}
	return v, nil
}

// RouteStatus maps LI.FI transfer status to a bridge state
func (p *Provider) RouteStatus(ctx context.Context, route orchestrator.Route, txHash string) (orchestrator.BridgeStatus, error) {
	resp, err := p.api.Status(ctx, StatusRequest{
		TxHash:    txHash,
		Bridge:    route.Tool,
		FromChain: route.FromChainID,
		ToChain:   route.ToChainID,
	})
	if err != nil {
		return orchestrator.BridgeStatus{}, err
	}

	status := orchestrator.BridgeStatus{
		Substatus: resp.Substatus,
		Message:   resp.SubstatusMessage,
	}
	switch strings.ToUpper(resp.Status) {
	case "DONE":
		status.State = orchestrator.BridgeStateDone
		// a partial or refunded completion did not deliver the tip
		if resp.Substatus == "PARTIAL" || resp.Substatus == "REFUNDED" {
			status.State = orchestrator.BridgeStateFailed
		}
	case "FAILED":
		status.State = orchestrator.BridgeStateFailed
	case "INVALID":
		status.State = orchestrator.BridgeStateInvalid
	case "PENDING":
		status.State = orchestrator.BridgeStatePending
	default:
		status.State = orchestrator.BridgeStateNotFound
	}
	if resp.Receiving != nil {
		status.ReceivingTxHash = resp.Receiving.TxHash
	}
	return status, nil
}
