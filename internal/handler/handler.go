package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/repository"
	"fintrack/internal/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Handler exposes the ledger, fraud and auth services over HTTP.
type Handler struct {
	ledger *service.TransactionService
	fraud  *service.FraudService
	auth   *service.AuthService
	store  repository.Store
	log    *logrus.Logger
}

// NewHandler initializes the HTTP handler set.
func NewHandler(ledger *service.TransactionService, fraud *service.FraudService, auth *service.AuthService, store repository.Store, log *logrus.Logger) *Handler {
	return &Handler{ledger: ledger, fraud: fraud, auth: auth, store: store, log: log}
}

type errorResponse struct {
	Error string `json:"error"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	ToAccountID int64  `json:"to_account_id,omitempty"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Suspicious  bool   `json:"suspicious"`
	CreatedAt   string `json:"created_at"`
}

func newTransactionResponse(tx *models.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		AccountID:   tx.AccountID,
		ToAccountID: tx.ToAccountID,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Status:      string(tx.Status()),
		Description: tx.Description,
		Location:    tx.Location,
		Suspicious:  tx.IsSuspicious(),
		CreatedAt:   tx.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func newTransactionResponses(txs []*models.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = newTransactionResponse(tx)
	}
	return out
}

func (h *Handler) sendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Errorf("failed to encode response: %v", err)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidAccount):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate):
		status = http.StatusConflict
	}
	h.sendJSON(w, status, errorResponse{Error: err.Error()})
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.auth.Register(req.Name, req.Email, req.Password)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.sendJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateAccount opens an account for the authenticated user.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userIDStr := middleware.UserIDFromContext(r.Context())
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		h.sendJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid user ID"})
		return
	}

	var req struct {
		Type           string          `json:"type"`
		InitialBalance decimal.Decimal `json:"initial_balance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	account := models.NewAccount(0, userID, models.AccountTypeFromString(req.Type), req.InitialBalance)
	if err := h.store.SaveAccount(account); err != nil {
		h.sendError(w, err)
		return
	}

	h.log.Infof("Account %d created for user %d (%s)", account.ID, userID, account.Type)
	h.sendJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      account.ID,
		"user_id": account.UserID,
		"type":    string(account.Type),
		"balance": account.Balance().String(),
	})
}

func (h *Handler) accountFromVars(r *http.Request) (*models.Account, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return nil, models.ErrInvalidAccount
	}
	return h.store.FindAccountByID(id)
}

// GetBalance returns the account's current balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountFromVars(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"balance": account.Balance().String()})
}

// GetHistory returns the orchestrator's view of an account's transactions.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountFromVars(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, newTransactionResponses(h.ledger.TransactionHistory(account.ID)))
}

// GetDailyVolume returns today's completed volume for an account.
func (h *Handler) GetDailyVolume(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountFromVars(r)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"daily_volume": h.ledger.DailyVolume(account.ID).String()})
}

type transactionRequest struct {
	AccountID     int64           `json:"account_id"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Location      string          `json:"location"`
}

// Deposit credits an account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	account, err := h.store.FindAccountByID(req.AccountID)
	if err != nil {
		h.sendError(w, err)
		return
	}

	tx, err := h.ledger.ProcessDeposit(account, req.Amount, req.Description, req.Location)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

// Withdraw debits an account.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	account, err := h.store.FindAccountByID(req.AccountID)
	if err != nil {
		h.sendError(w, err)
		return
	}

	tx, err := h.ledger.ProcessWithdrawal(account, req.Amount, req.Description, req.Location)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

// Transfer moves funds between two accounts.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	from, err := h.store.FindAccountByID(req.FromAccountID)
	if err != nil {
		h.sendError(w, err)
		return
	}
	to, err := h.store.FindAccountByID(req.ToAccountID)
	if err != nil {
		h.sendError(w, err)
		return
	}

	tx, err := h.ledger.ProcessTransfer(from, to, req.Amount, req.Description)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, newTransactionResponse(tx))
}

type batchItem struct {
	Type        string          `json:"type"`
	AccountID   int64           `json:"account_id"`
	ToAccountID int64           `json:"to_account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
}

type batchResult struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SubmitBatch dispatches a heterogeneous list of requests concurrently and
// replies once every member has finished. Members are independent: one
// failure neither cancels nor rolls back the others.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var items []batchItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	requests := make([]service.TransactionRequest, len(items))
	results := make([]batchResult, len(items))
	for i, item := range items {
		results[i].Index = i
		account, err := h.store.FindAccountByID(item.AccountID)
		if err != nil {
			results[i] = batchResult{Index: i, Status: "failed", Error: err.Error()}
			continue
		}
		req := service.TransactionRequest{
			Account:     account,
			Amount:      item.Amount,
			Type:        models.TransactionType(item.Type),
			Description: item.Description,
			Location:    item.Location,
		}
		if req.Type == models.TypeTransferOut {
			to, err := h.store.FindAccountByID(item.ToAccountID)
			if err != nil {
				results[i] = batchResult{Index: i, Status: "failed", Error: err.Error()}
				continue
			}
			req.ToAccount = to
		}
		requests[i] = req
	}

	// Only dispatch the members whose accounts resolved.
	var runnable []service.TransactionRequest
	var indexes []int
	for i := range requests {
		if results[i].Status == "failed" {
			continue
		}
		runnable = append(runnable, requests[i])
		indexes = append(indexes, i)
	}

	errs := h.ledger.ProcessBatch(runnable)
	for j, err := range errs {
		i := indexes[j]
		if err != nil {
			results[i] = batchResult{Index: i, Status: "failed", Error: err.Error()}
		} else {
			results[i] = batchResult{Index: i, Status: "completed"}
		}
	}

	h.sendJSON(w, http.StatusOK, results)
}

// GetPending returns the in-flight transaction snapshot.
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, newTransactionResponses(h.ledger.PendingTransactions()))
}

// GetSuspicious returns completed transactions currently flagged.
func (h *Handler) GetSuspicious(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, newTransactionResponses(h.ledger.SuspiciousTransactions()))
}

// GetFraudReport returns aggregate surveillance counters and the fraud rate.
func (h *Handler) GetFraudReport(w http.ResponseWriter, r *http.Request) {
	report := h.fraud.Report()
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"report":     report,
		"fraud_rate": h.fraud.FraudRate(h.ledger.CompletedCount()),
	})
}

// GetFraudRules lists the rule set.
func (h *Handler) GetFraudRules(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, h.fraud.Rules())
}

// AddFraudRule appends a rule.
func (h *Handler) AddFraudRule(w http.ResponseWriter, r *http.Request) {
	var req service.FraudRule
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	h.fraud.AddRule(req.Name, req.Threshold, req.Enabled)
	h.sendJSON(w, http.StatusCreated, req)
}

// UpdateFraudRule changes a rule's threshold.
func (h *Handler) UpdateFraudRule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var req struct {
		Threshold decimal.Decimal `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if !h.fraud.UpdateRule(name, req.Threshold) {
		h.sendJSON(w, http.StatusNotFound, errorResponse{Error: "rule not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFraudRule deletes a rule.
func (h *Handler) RemoveFraudRule(w http.ResponseWriter, r *http.Request) {
	h.fraud.RemoveRule(mux.Vars(r)["name"])
	w.WriteHeader(http.StatusNoContent)
}

// MarkLegitimate clears a flagged transaction after manual review.
func (h *Handler) MarkLegitimate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}
	h.fraud.MarkLegitimate(id)
	w.WriteHeader(http.StatusNoContent)
}

// MarkFraud acknowledges a confirmed fraud.
func (h *Handler) MarkFraud(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid transaction id"})
		return
	}
	h.fraud.MarkFraud(id)
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile returns the behavioral profile for an account.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.sendJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid account id"})
		return
	}
	profile := h.fraud.Profile(id)
	if profile == nil {
		h.sendJSON(w, http.StatusNotFound, errorResponse{Error: "no profile for account"})
		return
	}
	h.sendJSON(w, http.StatusOK, profile)
}
