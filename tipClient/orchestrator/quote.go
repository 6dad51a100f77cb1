package orchestrator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/megavibe/megavibe-node/tipClient/errors"
	"github.com/megavibe/megavibe-node/tipClient/units"
)

// selectRoute returns the first route that does not deliver more than it
// takes. Providers return routes best first.
func selectRoute(routes []Route) (Route, bool) {
	for _, r := range routes {
		if r.FromAmount == nil || r.ToAmount == nil {
			continue
		}
		if r.ToAmount.Sign() < 0 || r.ToAmount.Cmp(r.FromAmount) > 0 {
			continue
		}
		return r, true
	}
	return Route{}, false
}

func (o *Orchestrator) buildQuote(route Route, amountUSD decimal.Decimal, amount *big.Int) *Quote {
	source := route.FromAmount
	if source == nil {
		source = amount
	}
	return &Quote{
		SourceChainID: route.FromChainID,
		TargetChainID: route.ToChainID,
		SourceAmount:  new(big.Int).Set(source),
		TargetAmount:  new(big.Int).Set(route.ToAmount),
		Fees: FeeBreakdown{
			Platform: o.platformFee(amountUSD),
			Gas:      route.GasCostUSD,
			Bridge:   route.BridgeFeeUSD,
		},
		EstimatedDuration: route.EstimatedDuration,
		RouteReference:    route.ID,
		Tool:              route.Tool,
	}
}

func (o *Orchestrator) platformFee(amountUSD decimal.Decimal) decimal.Decimal {
	return amountUSD.Mul(decimal.NewFromInt(o.cfg.PlatformFeeBps)).Div(decimal.NewFromInt(10_000)).Round(6)
}

// Quote previews the route a bridged tip would take without executing it
func (o *Orchestrator) Quote(ctx context.Context, sourceChainID int64, amountUSD decimal.Decimal) (*Quote, error) {
	if !amountUSD.IsPositive() {
		return nil, errors.NewInvalidAmountError(fmt.Sprintf("tip amount must be greater than zero, got %s", amountUSD.String()))
	}
	amount, err := units.ToSmallestUnit(amountUSD)
	if err != nil || amount.Sign() <= 0 {
		return nil, errors.NewInvalidAmountError("tip amount is below the smallest USDC unit")
	}
	if !o.registry.IsSupported(sourceChainID) {
		return nil, errors.NewValidationError("", fmt.Sprintf("source chain %d is not supported", sourceChainID))
	}
	if sourceChainID == o.cfg.TargetChainID {
		return nil, errors.NewValidationError(o.registry.ChainName(sourceChainID), "same-chain tips are sent directly and need no quote")
	}
	if o.wallet == nil {
		return nil, errors.NewWalletNotConnectedError(nil)
	}
	sender, err := o.wallet.Address(ctx)
	if err != nil || sender == "" {
		return nil, errors.NewWalletNotConnectedError(err)
	}

	sourceName := o.registry.ChainName(sourceChainID)
	routes, err := o.quotes.GetRoutes(ctx, o.routeRequest(sourceChainID, sender, amount))
	if err != nil {
		return nil, errors.NewExecutionError(sourceName, "route search failed", err)
	}
	route, ok := selectRoute(routes)
	if !ok {
		return nil, errors.NewNoRouteFoundError(sourceName)
	}
	return o.buildQuote(route, amountUSD, amount), nil
}
