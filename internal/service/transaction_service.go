package service

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/metrics"
	"fintrack/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Analyzer receives completed transactions for fraud evaluation.
type Analyzer interface {
	AnalyzeTransaction(tx *models.Transaction) bool
}

// TransactionRequest describes one operation for batch submission.
type TransactionRequest struct {
	Account     *models.Account
	ToAccount   *models.Account // transfers only
	Amount      decimal.Decimal
	Type        models.TransactionType
	Description string
	Location    string
}

// TransactionService sequences ledger operations: it assigns transaction
// ids, drives the account mutation, and reconciles the record's terminal
// status. The pending and completed collections share one service mutex so
// a record is never visible in both at once. The service mutex is never
// held across an account operation, which keeps the lock hierarchy flat.
type TransactionService struct {
	log       *logrus.Logger
	analyzer  Analyzer           // optional, may be nil
	collector *metrics.Collector // optional, may be nil

	mu        sync.Mutex
	pending   []*models.Transaction
	completed []*models.Transaction

	idMu   sync.Mutex
	nextID int64
}

// NewTransactionService initializes the orchestrator. analyzer and collector
// may be nil.
func NewTransactionService(log *logrus.Logger, analyzer Analyzer, collector *metrics.Collector) *TransactionService {
	return &TransactionService{
		log:       log,
		analyzer:  analyzer,
		collector: collector,
		nextID:    1,
	}
}

// NextTransactionID hands out strictly increasing ids.
func (s *TransactionService) NextTransactionID() int64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// ProcessDeposit credits an account and records the outcome. The returned
// record is COMPLETED on success and FAILED otherwise; the error carries the
// business condition.
func (s *TransactionService) ProcessDeposit(account *models.Account, amount decimal.Decimal, description, location string) (*models.Transaction, error) {
	if account == nil {
		return nil, fmt.Errorf("%w: nil account for deposit", models.ErrInvalidAccount)
	}

	tx := models.NewTransaction(s.NextTransactionID(), account.ID, amount, models.TypeDeposit, models.CategoryOther, description)
	tx.Location = location
	s.addPending(tx)

	start := time.Now()
	err := account.Deposit(amount, description)
	s.finalize(tx, start, err)
	if err != nil {
		return tx, err
	}

	s.log.Infof("deposit of %s completed on account %d (tx %d)", amount, account.ID, tx.ID)
	s.publishBalance(account)
	s.handOff(tx)
	return tx, nil
}

// ProcessWithdrawal debits an account and records the outcome.
func (s *TransactionService) ProcessWithdrawal(account *models.Account, amount decimal.Decimal, description, location string) (*models.Transaction, error) {
	if account == nil {
		return nil, fmt.Errorf("%w: nil account for withdrawal", models.ErrInvalidAccount)
	}

	tx := models.NewTransaction(s.NextTransactionID(), account.ID, amount, models.TypeWithdrawal, models.CategoryOther, description)
	tx.Location = location
	s.addPending(tx)

	start := time.Now()
	err := account.Withdraw(amount, description)
	s.finalize(tx, start, err)
	if err != nil {
		return tx, err
	}

	s.log.Infof("withdrawal of %s completed on account %d (tx %d)", amount, account.ID, tx.ID)
	s.publishBalance(account)
	s.handOff(tx)
	return tx, nil
}

// ProcessTransfer moves funds between two accounts and records the outcome
// against the source account, carrying the counterparty id.
func (s *TransactionService) ProcessTransfer(from, to *models.Account, amount decimal.Decimal, description string) (*models.Transaction, error) {
	if from == nil || to == nil {
		return nil, fmt.Errorf("%w: nil account for transfer", models.ErrInvalidAccount)
	}

	tx := models.NewTransaction(s.NextTransactionID(), from.ID, amount, models.TypeTransferOut, models.CategoryOther, description)
	tx.ToAccountID = to.ID
	s.addPending(tx)

	start := time.Now()
	err := from.TransferTo(to, amount, description)
	s.finalize(tx, start, err)
	if err != nil {
		return tx, err
	}

	s.log.Infof("transfer of %s completed from account %d to account %d (tx %d)", amount, from.ID, to.ID, tx.ID)
	s.publishBalance(from)
	s.publishBalance(to)
	s.handOff(tx)
	return tx, nil
}

// ProcessBatch dispatches every request as an independent goroutine and
// waits for all of them. Each request is individually atomic at the account
// level; the batch gives no cross-request isolation and no ordering between
// members. The returned slice lines up with the input by index.
func (s *TransactionService) ProcessBatch(requests []TransactionRequest) []error {
	errs := make([]error, len(requests))
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(i int, req TransactionRequest) {
			defer wg.Done()
			switch req.Type {
			case models.TypeDeposit:
				_, errs[i] = s.ProcessDeposit(req.Account, req.Amount, req.Description, req.Location)
			case models.TypeWithdrawal:
				_, errs[i] = s.ProcessWithdrawal(req.Account, req.Amount, req.Description, req.Location)
			case models.TypeTransferOut:
				_, errs[i] = s.ProcessTransfer(req.Account, req.ToAccount, req.Amount, req.Description)
			default:
				errs[i] = fmt.Errorf("unsupported transaction type: %s", req.Type)
			}
		}(i, req)
	}

	wg.Wait()
	s.log.Infof("batch of %d requests processed", len(requests))
	return errs
}

// TransactionHistory returns completed records where the account is source
// or counterparty, in insertion order.
func (s *TransactionService) TransactionHistory(accountID int64) []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Transaction
	for _, tx := range s.completed {
		if tx.AccountID == accountID || tx.ToAccountID == accountID {
			result = append(result, tx)
		}
	}
	return result
}

// PendingTransactions returns a snapshot of the in-flight records.
func (s *TransactionService) PendingTransactions() []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Transaction, len(s.pending))
	copy(out, s.pending)
	return out
}

// SuspiciousTransactions returns the completed records currently flagged.
func (s *TransactionService) SuspiciousTransactions() []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.Transaction
	for _, tx := range s.completed {
		if tx.IsSuspicious() {
			result = append(result, tx)
		}
	}
	return result
}

// DailyVolume sums the completed amounts recorded against an account today.
func (s *TransactionService) DailyVolume(accountID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	volume := decimal.Zero
	today := time.Now()
	for _, tx := range s.completed {
		if tx.AccountID != accountID {
			continue
		}
		y1, m1, d1 := tx.CreatedAt.Date()
		y2, m2, d2 := today.Date()
		if y1 == y2 && m1 == m2 && d1 == d2 {
			volume = volume.Add(tx.Amount)
		}
	}
	return volume
}

// CompletedCount reports how many transactions have completed, the
// denominator for fraud-rate reporting.
func (s *TransactionService) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}

func (s *TransactionService) addPending(tx *models.Transaction) {
	s.mu.Lock()
	s.pending = append(s.pending, tx)
	s.mu.Unlock()
}

// finalize reconciles the record with the outcome of the account operation:
// success moves it from pending to completed in one critical section,
// failure marks it FAILED and drops it from pending.
func (s *TransactionService) finalize(tx *models.Transaction, start time.Time, err error) {
	s.mu.Lock()
	for i, p := range s.pending {
		if p == tx {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	if err == nil {
		tx.SetStatus(models.StatusCompleted)
		s.completed = append(s.completed, tx)
	} else {
		tx.SetStatus(models.StatusFailed)
	}
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.RecordTransaction(time.Since(start), err == nil)
	}
	if err != nil {
		s.log.Warnf("transaction %d failed: %v", tx.ID, err)
	}
}

// handOff forwards a completed record to the fraud analyzer. Called without
// the service lock so the analyzer may take its own.
func (s *TransactionService) handOff(tx *models.Transaction) {
	if s.analyzer != nil {
		s.analyzer.AnalyzeTransaction(tx)
	}
}

func (s *TransactionService) publishBalance(account *models.Account) {
	if s.collector == nil {
		return
	}
	balance, _ := account.Balance().Float64()
	s.collector.SetAccountBalance(strconv.FormatInt(account.ID, 10), balance)
}
