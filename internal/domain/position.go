package domain

import (
	"math/big"
	"time"
)

// PositionPair holds the YES and NO conditional token balances derived from
// one base token under one proposal. The two sides are independently held
// balances and are not required to be equal at any instant; only the paired
// minimum min(yes, no) is eligible for merge back into the base token.
type PositionPair struct {
	YesAddress string
	NoAddress  string
	YesAmount  *big.Int
	NoAmount   *big.Int
}

// NetPosition returns yes - no as a signed quantity.
func (p PositionPair) NetPosition() *big.Int {
	return new(big.Int).Sub(nz(p.YesAmount), nz(p.NoAmount))
}

// SurplusSide returns the side with the larger balance. Ties report YES.
func (p PositionPair) SurplusSide() Side {
	if p.NetPosition().Sign() < 0 {
		return SideNo
	}
	return SideYes
}

// AvailableForRedeem returns the paired minimum, the only quantity that can
// be merged back into the base token.
func (p PositionPair) AvailableForRedeem() *big.Int {
	yes, no := nz(p.YesAmount), nz(p.NoAmount)
	if yes.Cmp(no) <= 0 {
		return new(big.Int).Set(yes)
	}
	return new(big.Int).Set(no)
}

// Amount returns the balance held on the given side.
func (p PositionPair) Amount(side Side) *big.Int {
	if side == SideNo {
		return new(big.Int).Set(nz(p.NoAmount))
	}
	return new(big.Int).Set(nz(p.YesAmount))
}

// FamilyBalance is the wallet balance of one base token plus its conditional
// position pair.
type FamilyBalance struct {
	Wallet    *big.Int
	Positions PositionPair
}

// AvailableForSwap returns the full (unpaired) balance on the given side,
// all of which is usable for trading.
func (b FamilyBalance) AvailableForSwap(side Side) *big.Int {
	return b.Positions.Amount(side)
}

// BalanceSnapshot is the last-known set of balances for one owner across both
// token families. Snapshots are immutable once published: the balance store
// builds a fresh snapshot on every refresh and replaces the previous one
// wholesale, so readers never observe a half-updated state.
type BalanceSnapshot struct {
	Owner    string
	TakenAt  time.Time
	Currency FamilyBalance
	Company  FamilyBalance
}

// Family returns the balance bundle for the given family.
func (s *BalanceSnapshot) Family(f TokenFamily) FamilyBalance {
	if f == FamilyCompany {
		return s.Company
	}
	return s.Currency
}

// EmptySnapshot returns a snapshot with all balances zero, used at session
// start before the first refresh completes.
func EmptySnapshot(owner string) *BalanceSnapshot {
	zero := func() FamilyBalance {
		return FamilyBalance{
			Wallet: new(big.Int),
			Positions: PositionPair{
				YesAmount: new(big.Int),
				NoAmount:  new(big.Int),
			},
		}
	}
	return &BalanceSnapshot{Owner: owner, Currency: zero(), Company: zero()}
}

func nz(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
