// Package account serves the caller's own account: profile, balance,
// deposits and ledger history.
package account

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/models"
	"github.com/verimarket/backend/internal/response"
)

type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type Ledger interface {
	Deposit(ctx context.Context, accountID uuid.UUID, amountCents int64) (*models.LedgerEntry, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
}

type DepositRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type DepositResponse struct {
	Entry        *models.LedgerEntry `json:"entry"`
	BalanceCents int64               `json:"balance_cents"`
}

type Handler struct {
	accounts AccountReader
	ledger   Ledger
	log      *slog.Logger
}

func NewHandler(accounts AccountReader, ledger Ledger, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{accounts: accounts, ledger: ledger, log: log}
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	acc, err := h.accounts.GetAccount(r.Context(), p.AccountID)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, acc)
}

// POST /api/v1/account/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body", nil)
		return
	}
	entry, err := h.ledger.Deposit(r.Context(), p.AccountID, req.AmountCents)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.Created(w, DepositResponse{Entry: entry, BalanceCents: entry.BalanceAfterCents})
}

// GET /api/v1/account/ledger?limit=50
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromCtx(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "unauthenticated", nil)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	entries, err := h.ledger.History(r.Context(), p.AccountID, limit)
	if err != nil {
		response.FromError(w, h.log, err)
		return
	}
	response.JSON(w, entries)
}
