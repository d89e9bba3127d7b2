package handler

import (
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/alanyoungcy/futarchybot/internal/amount"
	"github.com/alanyoungcy/futarchybot/internal/balance"
	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// BalanceHandler serves the balance snapshot endpoints.
type BalanceHandler struct {
	balances *balance.Store
	market   domain.MarketConfig
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler.
func NewBalanceHandler(balances *balance.Store, market domain.MarketConfig, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		market:   market,
		logger:   logHandler(logger, "balance"),
	}
}

type familyView struct {
	Wallet             string `json:"wallet"`
	WalletRaw          string `json:"walletRaw"`
	Yes                string `json:"yes"`
	YesRaw             string `json:"yesRaw"`
	No                 string `json:"no"`
	NoRaw              string `json:"noRaw"`
	NetPosition        string `json:"netPosition"`
	SurplusSide        string `json:"surplusSide"`
	AvailableForRedeem string `json:"availableForRedeem"`
}

type snapshotView struct {
	Owner    string     `json:"owner"`
	TakenAt  time.Time  `json:"takenAt"`
	Currency familyView `json:"currency"`
	Company  familyView `json:"company"`
}

// GetBalances returns the last-known snapshot without touching the chain.
// GET /api/balances
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(h.balances.Snapshot()))
}

// RefreshBalances forces an immediate chain read and returns the fresh
// snapshot.
// POST /api/balances/refresh
func (h *BalanceHandler) RefreshBalances(w http.ResponseWriter, r *http.Request) {
	snap, err := h.balances.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("manual refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "balance refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, h.view(snap))
}

func (h *BalanceHandler) view(snap *domain.BalanceSnapshot) snapshotView {
	return snapshotView{
		Owner:    snap.Owner,
		TakenAt:  snap.TakenAt,
		Currency: h.familyView(snap.Currency, h.market.Currency),
		Company:  h.familyView(snap.Company, h.market.Company),
	}
}

func (h *BalanceHandler) familyView(b domain.FamilyBalance, tokens domain.FamilyTokens) familyView {
	dec := tokens.Base.Decimals
	net := b.Positions.NetPosition()
	redeemable := b.Positions.AvailableForRedeem()
	return familyView{
		Wallet:             amount.ToHuman(b.Wallet, dec),
		WalletRaw:          raw(b.Wallet),
		Yes:                amount.ToHuman(b.Positions.YesAmount, dec),
		YesRaw:             raw(b.Positions.YesAmount),
		No:                 amount.ToHuman(b.Positions.NoAmount, dec),
		NoRaw:              raw(b.Positions.NoAmount),
		NetPosition:        amount.ToHuman(net, dec),
		SurplusSide:        string(b.Positions.SurplusSide()),
		AvailableForRedeem: amount.ToHuman(redeemable, dec),
	}
}

func raw(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
