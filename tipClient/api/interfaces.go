package api

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/megavibe/megavibe-node/tipClient/chains"
	"github.com/megavibe/megavibe-node/tipClient/db"
	"github.com/megavibe/megavibe-node/tipClient/orchestrator"
	"github.com/megavibe/megavibe-node/tipClient/store"
)

// TipService starts and prices tips
type TipService interface {
	Submit(ctx context.Context, req orchestrator.TipRequest) (string, error)
	Quote(ctx context.Context, sourceChainID int64, amountUSD decimal.Decimal) (*orchestrator.Quote, error)
	TargetChainID() int64
}

// ChainLister returns the supported chains
type ChainLister interface {
	All() []*chains.Chain
}

// TipJournal reads the local tip history
type TipJournal interface {
	GetTip(requestID string) (*store.Tip, []store.TipStatus, error)
	ListTips(filter db.TipFilter) ([]store.Tip, error)
}
