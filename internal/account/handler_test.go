package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimarket/backend/internal/account"
	"github.com/verimarket/backend/internal/ledger"
	"github.com/verimarket/backend/internal/memstore"
	"github.com/verimarket/backend/internal/middleware"
	"github.com/verimarket/backend/internal/models"
)

// accountReader adapts the memstore accounts to the handler's lookup.
type accountReader struct{ s *memstore.AccountStore }

func (r accountReader) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.s.GetByID(ctx, id)
}

func setup(t *testing.T) (*account.Handler, uuid.UUID) {
	t.Helper()
	mem := memstore.New()
	acc := &models.Account{Email: "p@example.com", DisplayName: "P", Role: models.RoleProvider}
	require.NoError(t, mem.Accounts().Create(context.Background(), acc))
	h := account.NewHandler(accountReader{mem.Accounts()}, ledger.NewService(mem, mem.Ledger(), nil), nil)
	return h, acc.ID
}

func request(method, target string, body []byte, as uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{AccountID: as, Role: models.RoleProvider}))
}

func TestDepositThenMeAndLedger(t *testing.T) {
	h, id := setup(t)

	for _, amount := range []int64{100000, 2500} {
		body, _ := json.Marshal(account.DepositRequest{AmountCents: amount})
		w := httptest.NewRecorder()
		h.Deposit(w, request(http.MethodPost, "/api/v1/account/deposit", body, id))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := httptest.NewRecorder()
	h.GetMe(w, request(http.MethodGet, "/api/v1/account/me", nil, id))
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&me))
	assert.Equal(t, float64(102500), me.Data["balance_cents"])
	assert.NotContains(t, me.Data, "password_hash")

	w = httptest.NewRecorder()
	h.ListLedger(w, request(http.MethodGet, "/api/v1/account/ledger?limit=1", nil, id))
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Data []models.LedgerEntry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hist))
	require.Len(t, hist.Data, 1)
	assert.Equal(t, int64(2500), hist.Data[0].AmountCents)
	assert.Equal(t, int64(102500), hist.Data[0].BalanceAfterCents)
}

func TestDeposit_Rejections(t *testing.T) {
	h, id := setup(t)

	w := httptest.NewRecorder()
	h.Deposit(w, request(http.MethodPost, "/", []byte(`{"amount_cents":0}`), id))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Deposit(w, request(http.MethodPost, "/", []byte(`not json`), id))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.Deposit(w, request(http.MethodPost, "/", []byte(`{"amount_cents":10}`), uuid.New()))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListLedger_BadLimit(t *testing.T) {
	h, id := setup(t)
	w := httptest.NewRecorder()
	h.ListLedger(w, request(http.MethodGet, "/?limit=-3", nil, id))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetMe_Unauthenticated(t *testing.T) {
	h, _ := setup(t)
	w := httptest.NewRecorder()
	h.GetMe(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
