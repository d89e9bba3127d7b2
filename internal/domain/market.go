package domain

import "fmt"

// FamilyTokens bundles the on-chain addresses for one token family of a
// proposal: the base collateral token, its YES/NO conditional tokens, and the
// AMM pool the conditional tokens trade in.
type FamilyTokens struct {
	Base     TokenDescriptor
	YesToken TokenDescriptor
	NoToken  TokenDescriptor
	Pool     string
}

// MarketConfig is the per-proposal address book. It is loaded once per
// session (from TOML or the market store) and treated as immutable; missing
// addresses fail validation at construction rather than falling back to a
// hardcoded deployment deep inside an operation.
type MarketConfig struct {
	ID          string
	Question    string
	Proposal    string // futarchy proposal (conditional market) address
	Router      string // futarchy router handling split/merge/redeem
	SwapSpender string // spender contract for the external swap router
	Currency    FamilyTokens
	Company     FamilyTokens
}

// Family returns the token bundle for the given family.
func (m MarketConfig) Family(f TokenFamily) FamilyTokens {
	if f == FamilyCompany {
		return m.Company
	}
	return m.Currency
}

// ConditionalToken resolves the conditional token descriptor for a family and
// side.
func (m MarketConfig) ConditionalToken(f TokenFamily, s Side) TokenDescriptor {
	fam := m.Family(f)
	if s == SideNo {
		return fam.NoToken
	}
	return fam.YesToken
}

// Validate checks that every address an orchestrated operation depends on is
// present. Pool addresses may be empty (balance reads degrade to zero for
// missing slots), but proposal, router, and token addresses are mandatory.
func (m MarketConfig) Validate() error {
	if m.Proposal == "" {
		return fmt.Errorf("market %q: %w: proposal address", m.ID, ErrConfigMissing)
	}
	if m.Router == "" {
		return fmt.Errorf("market %q: %w: router address", m.ID, ErrConfigMissing)
	}
	for _, fam := range []struct {
		name   TokenFamily
		tokens FamilyTokens
	}{
		{FamilyCurrency, m.Currency},
		{FamilyCompany, m.Company},
	} {
		if fam.tokens.Base.Address == "" {
			return fmt.Errorf("market %q: %w: %s base token address", m.ID, ErrConfigMissing, fam.name)
		}
		if fam.tokens.Base.Decimals <= 0 || fam.tokens.Base.Decimals > 36 {
			return fmt.Errorf("market %q: %s base token decimals %d out of range", m.ID, fam.name, fam.tokens.Base.Decimals)
		}
		if fam.tokens.YesToken.Address == "" || fam.tokens.NoToken.Address == "" {
			return fmt.Errorf("market %q: %w: %s conditional token addresses", m.ID, ErrConfigMissing, fam.name)
		}
	}
	return nil
}
