// Package units converts between user-facing USD amounts and the 6-decimal
// smallest unit USDC contracts and bridges operate on.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the token precision of USDC on every supported chain.
const USDCDecimals int32 = 6

// ToSmallestUnit converts a USD amount to USDC base units: round(amount * 10^6).
func ToSmallestUnit(amountUSD decimal.Decimal) (*big.Int, error) {
	if amountUSD.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative: %s", amountUSD.String())
	}
	return amountUSD.Shift(USDCDecimals).Round(0).BigInt(), nil
}

// FromSmallestUnit converts USDC base units back to a USD amount. Display only.
func FromSmallestUnit(amount *big.Int) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -USDCDecimals)
}

// FormatUSDC renders base units as a two-decimal USD string, e.g. "25.00".
func FormatUSDC(amount *big.Int) string {
	return FromSmallestUnit(amount).StringFixed(2)
}

// ParseUSD parses a user-entered amount such as "10", "10.5" or "$10.50".
func ParseUSD(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ParseSmallestUnit parses a base-10 integer string as returned by bridge APIs.
func ParseSmallestUnit(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	return v, nil
}
