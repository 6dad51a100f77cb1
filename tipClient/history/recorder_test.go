package history

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
)

func newTestRecorder(t *testing.T) (*Recorder, *db.DB) {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	rec := NewRecorder(database, zerolog.Nop())
	rec.Start()
	return rec, database
}

func bridgedRequest() orchestrator.TipRequest {
	return orchestrator.TipRequest{
		SourceChainID:    1,
		TargetChainID:    5003,
		RecipientAddress: "0x2222222222222222222222222222222222222222",
		AmountUSD:        decimal.RequireFromString("5"),
		Message:          "great talk",
		EventID:          "evt-1",
		SpeakerID:        "spk-1",
	}
}

func TestRecorderJournalsFlow(t *testing.T) {
	rec, database := newTestRecorder(t)
	req := bridgedRequest()
	now := time.Now()

	rec.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusPending, Message: "finding route", Timestamp: now})
	rec.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusBridging, RouteReference: "route-1", Timestamp: now})
	rec.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusConfirming, TxHash: "0xabc", RouteReference: "route-1", Timestamp: now})
	rec.OnStatus("tip_1_aaaaaaaa", req, orchestrator.TransferStatus{Kind: orchestrator.StatusCompleted, TxHash: "0xabc", RouteReference: "route-1", Timestamp: now})
	rec.Stop()

	tip, history, err := database.GetTip("tip_1_aaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "completed", tip.Status)
	assert.Equal(t, "bridged", tip.Path)
	assert.Equal(t, "5", tip.AmountUSD)
	assert.Equal(t, "0xabc", tip.TxHash)
	assert.Equal(t, "route-1", tip.RouteReference)
	assert.Equal(t, "evt-1", tip.EventID)
	require.Len(t, history, 4)
	assert.Equal(t, "finding route", history[0].Message)
}

func TestRecorderJournalsFailure(t *testing.T) {
	rec, database := newTestRecorder(t)
	req := bridgedRequest()

	rec.OnStatus("tip_2_bbbbbbbb", req, orchestrator.TransferStatus{Kind: orchestrator.StatusPending})
	rec.OnStatus("tip_2_bbbbbbbb", req, orchestrator.TransferStatus{
		Kind:    orchestrator.StatusFailed,
		Message: "no route found",
		Err:     errors.New("[NO_ROUTE_FOUND] no route found"),
	})
	rec.Stop()

	tip, _, err := database.GetTip("tip_2_bbbbbbbb")
	require.NoError(t, err)
	assert.Equal(t, "failed", tip.Status)
	assert.Contains(t, tip.ErrorMsg, "NO_ROUTE_FOUND")
	assert.NotNil(t, tip.CompletedAt)
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	rec, _ := newTestRecorder(t)
	rec.Stop()
	rec.Stop()

	// statuses after stop are ignored rather than panicking
	rec.OnStatus("tip_3_cccccccc", bridgedRequest(), orchestrator.TransferStatus{Kind: orchestrator.StatusPending})

	unstarted := NewRecorder(nil, zerolog.Nop())
	unstarted.Stop()
}

func TestRecorderJournalsLateStatusesBeforeStop(t *testing.T) {
	rec, database := newTestRecorder(t)
	req := bridgedRequest()

	// a tip that is still settling keeps reporting after a pause
	rec.OnStatus("tip_4_dddddddd", req, orchestrator.TransferStatus{Kind: orchestrator.StatusPending})
	time.Sleep(50 * time.Millisecond)
	rec.OnStatus("tip_4_dddddddd", req, orchestrator.TransferStatus{Kind: orchestrator.StatusConfirming, TxHash: "0xdef"})
	rec.OnStatus("tip_4_dddddddd", req, orchestrator.TransferStatus{Kind: orchestrator.StatusCompleted, TxHash: "0xdef"})
	rec.Stop()

	tip, history, err := database.GetTip("tip_4_dddddddd")
	require.NoError(t, err)
	assert.Equal(t, "completed", tip.Status)
	assert.Len(t, history, 3)
}
