package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// MarketHandler serves market configuration endpoints. The active market is
// the one the daemon operates on; the store (when configured) holds the full
// catalog.
type MarketHandler struct {
	active domain.MarketConfig
	store  domain.MarketStore // optional
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler. store may be nil.
func NewMarketHandler(active domain.MarketConfig, store domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		active: active,
		store:  store,
		logger: logHandler(logger, "market"),
	}
}

type tokenView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type familyTokensView struct {
	Base tokenView `json:"base"`
	Yes  tokenView `json:"yes"`
	No   tokenView `json:"no"`
	Pool string    `json:"pool,omitempty"`
}

type marketView struct {
	ID          string           `json:"id"`
	Question    string           `json:"question,omitempty"`
	Proposal    string           `json:"proposal"`
	Router      string           `json:"router"`
	SwapSpender string           `json:"swapSpender,omitempty"`
	Currency    familyTokensView `json:"currency"`
	Company     familyTokensView `json:"company"`
}

// GetActive returns the market the daemon is operating on.
// GET /api/market
func (h *MarketHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewMarket(h.active))
}

// ListMarkets returns every stored market configuration.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []marketView{viewMarket(h.active)})
		return
	}
	markets, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Warn("market list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "market list failed")
		return
	}
	views := make([]marketView, 0, len(markets))
	for _, m := range markets {
		views = append(views, viewMarket(m))
	}
	writeJSON(w, http.StatusOK, views)
}

// GetMarket returns one stored market configuration by ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if h.store == nil {
		if id == h.active.ID {
			writeJSON(w, http.StatusOK, viewMarket(h.active))
			return
		}
		writeError(w, http.StatusNotFound, "market not found")
		return
	}
	m, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Warn("market get failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "market get failed")
		return
	}
	writeJSON(w, http.StatusOK, viewMarket(m))
}

func viewMarket(m domain.MarketConfig) marketView {
	return marketView{
		ID:          m.ID,
		Question:    m.Question,
		Proposal:    m.Proposal,
		Router:      m.Router,
		SwapSpender: m.SwapSpender,
		Currency:    viewFamily(m.Currency),
		Company:     viewFamily(m.Company),
	}
}

func viewFamily(f domain.FamilyTokens) familyTokensView {
	return familyTokensView{
		Base: viewToken(f.Base),
		Yes:  viewToken(f.YesToken),
		No:   viewToken(f.NoToken),
		Pool: f.Pool,
	}
}

func viewToken(t domain.TokenDescriptor) tokenView {
	return tokenView{Address: t.Address, Symbol: t.Symbol, Decimals: t.Decimals}
}
