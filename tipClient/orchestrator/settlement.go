package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/megavibe/megavibe-node/tipClient/errors"
)

// awaitSettlement polls the bridge until the transfer lands on the target
// chain, fails, or the polling attempts run out.
func (o *Orchestrator) awaitSettlement(ctx context.Context, f *flow, route Route, txHash string) *TransferResult {
	policy := o.cfg.Settlement
	sourceName := o.registry.ChainName(route.FromChainID)
	targetName := o.registry.ChainName(o.cfg.TargetChainID)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// attempt 1 waits InitialDelay, later attempts back off
		if err := sleepCtx(ctx, policy.Delay(attempt+1)); err != nil {
			break
		}

		status, err := o.quotes.RouteStatus(ctx, route, txHash)
		if err != nil {
			f.logger.Warn().Err(err).Int("attempt", attempt).Msg("bridge status check failed")
			continue
		}

		switch status.State {
		case BridgeStateDone:
			message := fmt.Sprintf("Tip delivered on %s", targetName)
			if status.ReceivingTxHash != "" {
				message = fmt.Sprintf("%s in %s", message, status.ReceivingTxHash)
			}
			f.emit(TransferStatus{
				Kind:           StatusCompleted,
				TxHash:         txHash,
				RouteReference: route.ID,
				Message:        message,
			})
			return &TransferResult{Success: true, TxHash: txHash, RouteReference: route.ID}

		case BridgeStateFailed, BridgeStateInvalid:
			reason := status.Substatus
			if status.Message != "" {
				reason = status.Message
			}
			tipErr := errors.NewExecutionError(sourceName, fmt.Sprintf("bridge reported %s", status.State), fmt.Errorf("%s", reason)).
				WithContext("tx_hash", txHash)
			return f.fail(tipErr, route.ID)

		default:
			message := "Bridge transfer in progress"
			if status.Substatus != "" {
				message = fmt.Sprintf("%s (%s)", message, status.Substatus)
			}
			f.emit(TransferStatus{
				Kind:           StatusConfirming,
				TxHash:         txHash,
				RouteReference: route.ID,
				Message:        message,
			})
		}
	}

	tipErr := errors.NewConfirmationTimeoutError(sourceName,
		fmt.Sprintf("bridge settlement not confirmed after %d checks, source transaction %s", policy.MaxAttempts, txHash)).
		WithContext("tx_hash", txHash)
	return f.fail(tipErr, route.ID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
