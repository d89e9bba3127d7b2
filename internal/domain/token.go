package domain

import "math/big"

// TokenFamily identifies which collateral family a token belongs to. A
// futarchy proposal carries two families: the "currency" collateral (a
// stablecoin such as sDAI) and the "company" collateral (the governance or
// equity-like token the proposal is about).
type TokenFamily string

const (
	FamilyCurrency TokenFamily = "currency"
	FamilyCompany  TokenFamily = "company"
)

// Valid reports whether f is one of the two known families.
func (f TokenFamily) Valid() bool {
	return f == FamilyCurrency || f == FamilyCompany
}

// Side identifies one half of a conditional position pair.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Action is the trade direction of a swap request. Buy spends currency-side
// conditional tokens for company-side ones; sell is the inverse.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// TokenDescriptor describes one ERC-20 token. Descriptors are loaded once at
// configuration time and never mutated afterwards.
type TokenDescriptor struct {
	Address  string
	Symbol   string
	Name     string
	Decimals int
}

// MaxUint256 is the largest value representable in a uint256, used as the
// "unlimited" ERC-20 allowance.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
