// Package amount converts between human-decimal token amounts and the
// fixed-point integers used on chain. All on-chain quantities are
// arbitrary-precision integers; floating point never touches an amount that
// could reach a transaction.
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// ToFixedPoint parses a human-decimal string into a fixed-point integer
// scaled by 10^decimals. Empty, non-numeric, zero, and negative inputs are
// rejected with domain.ErrInvalidAmount, as are inputs with more fractional
// digits than the token supports (truncation would silently change the
// transfer amount).
func ToFixedPoint(human string, decimals int) (*big.Int, error) {
	s := strings.TrimSpace(human)
	if s == "" {
		return nil, fmt.Errorf("amount: %w: empty", domain.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("amount: %w: %q is not numeric", domain.ErrInvalidAmount, human)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount: %w: %q must be positive", domain.ErrInvalidAmount, human)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount: %w: %q has more than %d decimal places", domain.ErrInvalidAmount, human, decimals)
	}
	return scaled.BigInt(), nil
}

// ToHuman formats a fixed-point integer as a human-decimal string. The
// conversion is lossless for the given decimals; trailing fractional zeros
// are trimmed to the canonical form.
func ToHuman(fixed *big.Int, decimals int) string {
	if fixed == nil {
		return "0"
	}
	return decimal.NewFromBigInt(fixed, -int32(decimals)).String()
}

// Sufficient reports whether have covers need.
func Sufficient(have, need *big.Int) bool {
	if have == nil {
		have = new(big.Int)
	}
	if need == nil {
		need = new(big.Int)
	}
	return have.Cmp(need) >= 0
}

// Shortfall returns need - have, floored at zero.
func Shortfall(have, need *big.Int) *big.Int {
	if Sufficient(have, need) {
		return new(big.Int)
	}
	if have == nil {
		have = new(big.Int)
	}
	return new(big.Int).Sub(need, have)
}
