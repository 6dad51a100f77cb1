package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/megavibe/megavibe-node/tipClient/store"
)

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// QuoteRequest is the body of POST /api/v1/quotes
type QuoteRequest struct {
	SourceChainID int64           `json:"source_chain_id"`
	AmountUSD     decimal.Decimal `json:"amount_usd"`
}

// SubmitResponse is returned by POST /api/v1/tips
type SubmitResponse struct {
	RequestID string `json:"request_id"`
}

// TipView is the public shape of a journaled tip
type TipView struct {
	RequestID      string          `json:"request_id"`
	SourceChainID  int64           `json:"source_chain_id"`
	TargetChainID  int64           `json:"target_chain_id"`
	Path           string          `json:"path"`
	Recipient      string          `json:"recipient_address"`
	AmountUSD      string          `json:"amount_usd"`
	Message        string          `json:"message,omitempty"`
	EventID        string          `json:"event_id,omitempty"`
	SpeakerID      string          `json:"speaker_id,omitempty"`
	Status         string          `json:"status"`
	TxHash         string          `json:"tx_hash,omitempty"`
	RouteReference string          `json:"route_reference,omitempty"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	History        []TipStatusView `json:"history,omitempty"`
}

// TipStatusView is one entry of a tip's status history
type TipStatusView struct {
	Status         string    `json:"status"`
	TxHash         string    `json:"tx_hash,omitempty"`
	RouteReference string    `json:"route_reference,omitempty"`
	Message        string    `json:"message,omitempty"`
	EmittedAt      time.Time `json:"emitted_at"`
}

func newTipView(tip *store.Tip, history []store.TipStatus) TipView {
	view := TipView{
		RequestID:      tip.RequestID,
		SourceChainID:  tip.SourceChainID,
		TargetChainID:  tip.TargetChainID,
		Path:           tip.Path,
		Recipient:      tip.Recipient,
		AmountUSD:      tip.AmountUSD,
		Message:        tip.Message,
		EventID:        tip.EventID,
		SpeakerID:      tip.SpeakerID,
		Status:         tip.Status,
		TxHash:         tip.TxHash,
		RouteReference: tip.RouteReference,
		Error:          tip.ErrorMsg,
		CreatedAt:      tip.CreatedAt,
		CompletedAt:    tip.CompletedAt,
	}
	for _, h := range history {
		view.History = append(view.History, TipStatusView{
			Status:         h.Status,
			TxHash:         h.TxHash,
			RouteReference: h.RouteReference,
			Message:        h.Message,
			EmittedAt:      h.EmittedAt,
		})
	}
	return view
}
