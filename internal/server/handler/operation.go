package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/futarchybot/internal/amount"
	"github.com/alanyoungcy/futarchybot/internal/collateral"
	"github.com/alanyoungcy/futarchybot/internal/domain"
	"github.com/alanyoungcy/futarchybot/internal/swap"
)

// OperationHandler serves the split/merge/redeem/swap endpoints and the
// operation journal.
type OperationHandler struct {
	orch    *collateral.Orchestrator
	swaps   *swap.Coordinator
	market  domain.MarketConfig
	journal domain.OperationStore // optional
	logger  *slog.Logger
}

// NewOperationHandler creates an OperationHandler. swaps and journal may be
// nil when the corresponding components are not configured.
func NewOperationHandler(
	orch *collateral.Orchestrator,
	swaps *swap.Coordinator,
	market domain.MarketConfig,
	journal domain.OperationStore,
	logger *slog.Logger,
) *OperationHandler {
	return &OperationHandler{
		orch:    orch,
		swaps:   swaps,
		market:  market,
		journal: journal,
		logger:  logHandler(logger, "operation"),
	}
}

// collateralRequest is the JSON body for split and merge. Amount is a
// human-decimal string in the family's base token.
type collateralRequest struct {
	Family string `json:"family"`
	Amount string `json:"amount"`
}

// Split locks base collateral and mints the YES/NO pair.
// POST /api/split
func (h *OperationHandler) Split(w http.ResponseWriter, r *http.Request) {
	h.runCollateral(w, r, h.orch.Split)
}

// Merge burns a YES/NO pair back into base collateral.
// POST /api/merge
func (h *OperationHandler) Merge(w http.ResponseWriter, r *http.Request) {
	h.runCollateral(w, r, h.orch.Merge)
}

func (h *OperationHandler) runCollateral(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, family domain.TokenFamily, amt *big.Int) domain.OperationResult,
) {
	var req collateralRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	family := domain.TokenFamily(req.Family)
	if !family.Valid() {
		writeResult(w, domain.Fail(domain.ErrKindInvalidAmount, "unknown token family %q", req.Family))
		return
	}
	amt, err := amount.ToFixedPoint(req.Amount, h.market.Family(family).Base.Decimals)
	if err != nil {
		writeResult(w, domain.Fail(domain.ErrKindInvalidAmount, "%v", err))
		return
	}

	writeResult(w, op(r.Context(), family, amt))
}

type redeemRequest struct {
	Family string `json:"family"`
}

// Redeem pays out the winning side of a resolved proposal.
// POST /api/redeem
func (h *OperationHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeResult(w, h.orch.Redeem(r.Context(), domain.TokenFamily(req.Family)))
}

type swapRequest struct {
	Family string `json:"family"`
	Side   string `json:"side"`
	Action string `json:"action"`
	Amount string `json:"amount"`
}

// Swap executes a smart swap between conditional tokens.
// POST /api/swap
func (h *OperationHandler) Swap(w http.ResponseWriter, r *http.Request) {
	if h.swaps == nil {
		writeError(w, http.StatusNotImplemented, "swap router not configured")
		return
	}

	var req swapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeResult(w, h.swaps.SmartSwap(r.Context(), domain.SwapRequest{
		Family: domain.TokenFamily(req.Family),
		Side:   domain.Side(req.Side),
		Action: domain.Action(req.Action),
		Amount: req.Amount,
	}))
}

type operationView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Family    string    `json:"family,omitempty"`
	Side      string    `json:"side,omitempty"`
	Owner     string    `json:"owner"`
	Amount    string    `json:"amount,omitempty"`
	Success   bool      `json:"success"`
	TxHash    string    `json:"txHash,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListOperations returns recent journal entries, newest first.
// GET /api/operations?limit=50
func (h *OperationHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSON(w, http.StatusOK, []operationView{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	recs, err := h.journal.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Warn("journal query failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "journal query failed")
		return
	}

	views := make([]operationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, operationView{
			ID:        rec.ID,
			Kind:      string(rec.Kind),
			Family:    string(rec.Family),
			Side:      string(rec.Side),
			Owner:     rec.Owner,
			Amount:    rec.Amount,
			Success:   rec.Success,
			TxHash:    rec.TxHash,
			ErrorKind: string(rec.ErrorKind),
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
