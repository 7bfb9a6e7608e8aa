package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/models"
	"fintrack/internal/repository"
	"fintrack/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler *Handler
	store   *repository.MemoryStore
	ledger  *service.TransactionService
	fraud   *service.FraudService
	router  *mux.Router
}

// newTestEnv wires the handler against in-memory services, auth middleware
// left out.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := repository.NewMemoryStore()
	fraud := service.NewFraudService(log, nil, nil, time.Second)
	// Pin the time-of-day check off so assertions hold at any wall-clock
	// hour.
	fraud.AddRule(service.RuleUnusualTime, decimal.Zero, false)
	ledger := service.NewTransactionService(log, fraud, nil)
	auth := service.NewAuthService(store, log, &config.Config{JWTSecret: "test-secret"})
	h := NewHandler(ledger, fraud, auth, store, log)

	r := mux.NewRouter()
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id}/balance", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/history", h.GetHistory).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id}/volume", h.GetDailyVolume).Methods(http.MethodGet)
	r.HandleFunc("/transactions/deposit", h.Deposit).Methods(http.MethodPost)
	r.HandleFunc("/transactions/withdraw", h.Withdraw).Methods(http.MethodPost)
	r.HandleFunc("/transactions/transfer", h.Transfer).Methods(http.MethodPost)
	r.HandleFunc("/transactions/batch", h.SubmitBatch).Methods(http.MethodPost)
	r.HandleFunc("/transactions/pending", h.GetPending).Methods(http.MethodGet)
	r.HandleFunc("/transactions/suspicious", h.GetSuspicious).Methods(http.MethodGet)
	r.HandleFunc("/fraud/report", h.GetFraudReport).Methods(http.MethodGet)
	r.HandleFunc("/fraud/rules", h.GetFraudRules).Methods(http.MethodGet)
	r.HandleFunc("/fraud/rules", h.AddFraudRule).Methods(http.MethodPost)
	r.HandleFunc("/fraud/transactions/{id}/legitimate", h.MarkLegitimate).Methods(http.MethodPost)
	r.HandleFunc("/fraud/profiles/{id}", h.GetProfile).Methods(http.MethodGet)

	return &testEnv{handler: h, store: store, ledger: ledger, fraud: fraud, router: r}
}

func (e *testEnv) addAccount(t *testing.T, balance int64) *models.Account {
	t.Helper()
	account := models.NewAccount(0, 1, models.AccountChecking, decimal.NewFromInt(balance))
	require.NoError(t, e.store.SaveAccount(account))
	return account
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestDepositEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 100)

	rec := env.do(t, http.MethodPost, "/transactions/deposit", map[string]interface{}{
		"account_id": account.ID,
		"amount":     "50",
		"location":   "New York",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "50", resp.Amount)
	assert.True(t, account.Balance().Equal(decimal.NewFromInt(150)))
}

func TestDepositUnknownAccount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/transactions/deposit", map[string]interface{}{
		"account_id": 42,
		"amount":     "50",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 100)

	rec := env.do(t, http.MethodPost, "/transactions/withdraw", map[string]interface{}{
		"account_id": account.ID,
		"amount":     "500",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, account.Balance().Equal(decimal.NewFromInt(100)))
}

func TestTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	from := env.addAccount(t, 500)
	to := env.addAccount(t, 0)

	rec := env.do(t, http.MethodPost, "/transactions/transfer", map[string]interface{}{
		"from_account_id": from.ID,
		"to_account_id":   to.ID,
		"amount":          "200",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, from.Balance().Equal(decimal.NewFromInt(300)))
	assert.True(t, to.Balance().Equal(decimal.NewFromInt(200)))
}

func TestBalanceAndHistoryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 100)

	_, err := env.ledger.ProcessDeposit(account, decimal.NewFromInt(25), "", "New York")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/accounts/%d/balance", account.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, "125", balance["balance"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/accounts/%d/history", account.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 1)

	rec = env.do(t, http.MethodGet, "/accounts/999/balance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBatchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	a := env.addAccount(t, 100)
	b := env.addAccount(t, 10)

	rec := env.do(t, http.MethodPost, "/transactions/batch", []map[string]interface{}{
		{"type": "deposit", "account_id": a.ID, "amount": "50"},
		{"type": "withdrawal", "account_id": b.ID, "amount": "500"},
		{"type": "deposit", "account_id": 999, "amount": "10"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var results []struct {
		Index  int    `json:"index"`
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "completed", results[0].Status)
	assert.Equal(t, "failed", results[1].Status)
	assert.NotEmpty(t, results[1].Error)
	assert.Equal(t, "failed", results[2].Status)

	assert.True(t, a.Balance().Equal(decimal.NewFromInt(150)))
	assert.True(t, b.Balance().Equal(decimal.NewFromInt(10)))
}

func TestSuspiciousAndReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 100000)

	tx, err := env.ledger.ProcessDeposit(account, decimal.NewFromInt(9000), "", "New York")
	require.NoError(t, err)
	require.True(t, tx.IsSuspicious())

	rec := env.do(t, http.MethodGet, "/transactions/suspicious", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var suspicious []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &suspicious))
	assert.Len(t, suspicious, 1)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/fraud/transactions/%d/legitimate", tx.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, tx.IsSuspicious())
	assert.Empty(t, env.fraud.FlaggedTransactions())
}

func TestFraudReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 100000)

	_, err := env.ledger.ProcessDeposit(account, decimal.NewFromInt(9000), "", "New York")
	require.NoError(t, err)
	_, err = env.ledger.ProcessDeposit(account, decimal.NewFromInt(10), "", "New York")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/fraud/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Report struct {
			TotalFlagged int `json:"total_flagged"`
		} `json:"report"`
		FraudRate float64 `json:"fraud_rate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Report.TotalFlagged)
	assert.InDelta(t, 50.0, resp.FraudRate, 0.001)
}

func TestFraudRulesEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/fraud/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []service.FraudRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	assert.Len(t, rules, 4)

	rec = env.do(t, http.MethodPost, "/fraud/rules", map[string]interface{}{
		"name": "Velocity", "threshold": "3", "enabled": true,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, env.fraud.Rules(), 5)

	rec = env.do(t, http.MethodPost, "/fraud/rules", map[string]interface{}{"threshold": "3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["token"])

	rec = env.do(t, http.MethodPost, "/login", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.addAccount(t, 1000)

	_, err := env.ledger.ProcessDeposit(account, decimal.NewFromInt(100), "", "New York")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/fraud/profiles/%d", account.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile service.AccountProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, account.ID, profile.AccountID)
	assert.Equal(t, 1, profile.TransactionCount)

	rec = env.do(t, http.MethodGet, "/fraud/profiles/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
