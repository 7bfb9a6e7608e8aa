package repository

import (
	"fmt"
	"sync"

	"fintrack/internal/models"
)

// MemoryStore is the default Store: plain maps behind a RWMutex plus
// monotonic id counters. It doubles as the account registry — every lookup
// of the same id returns the same *models.Account, which is what keeps the
// per-account lock meaningful across callers.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[int64]*models.User
	usersByEmail map[string]int64
	accounts     map[int64]*models.Account
	userAccounts map[int64][]int64
	transactions map[int64][]*models.Transaction
	budgets      map[int64]*models.Budget
	userBudgets  map[int64][]int64

	nextUserID    int64
	nextAccountID int64
	nextBudgetID  int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]*models.User),
		usersByEmail:  make(map[string]int64),
		accounts:      make(map[int64]*models.Account),
		userAccounts:  make(map[int64][]int64),
		transactions:  make(map[int64][]*models.Transaction),
		budgets:       make(map[int64]*models.Budget),
		userBudgets:   make(map[int64][]int64),
		nextUserID:    1,
		nextAccountID: 1,
		nextBudgetID:  1,
	}
}

// SaveUser stores a user, assigning the next user id when none is set.
func (s *MemoryStore) SaveUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return fmt.Errorf("%w: user %s", ErrDuplicate, user.Email)
	}
	if user.ID == 0 {
		user.ID = s.nextUserID
		s.nextUserID++
	}
	s.users[user.ID] = user
	s.usersByEmail[user.Email] = user.ID
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *MemoryStore) FindUserByEmail(email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.usersByEmail[email]
	if !exists {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return s.users[id], nil
}

// FindUserByID retrieves a user by id.
func (s *MemoryStore) FindUserByID(id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return user, nil
}

// SaveAccount registers an account, assigning the next account id when none
// is set.
func (s *MemoryStore) SaveAccount(account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == 0 {
		account.ID = s.nextAccountID
		s.nextAccountID++
	} else if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %d", ErrDuplicate, account.ID)
	} else if account.ID >= s.nextAccountID {
		s.nextAccountID = account.ID + 1
	}
	s.accounts[account.ID] = account
	s.userAccounts[account.UserID] = append(s.userAccounts[account.UserID], account.ID)
	return nil
}

// FindAccountByID retrieves an account by id.
func (s *MemoryStore) FindAccountByID(id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	return account, nil
}

// AccountsForUser lists the accounts owned by a user in creation order.
func (s *MemoryStore) AccountsForUser(userID int64) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userAccounts[userID]
	result := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		if account, exists := s.accounts[id]; exists {
			result = append(result, account)
		}
	}
	return result, nil
}

// SaveTransaction appends a transaction to its source account's stored log.
func (s *MemoryStore) SaveTransaction(tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.AccountID] = append(s.transactions[tx.AccountID], tx)
	return nil
}

// TransactionsForAccount lists stored transactions for an account in
// insertion order.
func (s *MemoryStore) TransactionsForAccount(accountID int64) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions[accountID]
	result := make([]*models.Transaction, len(txs))
	copy(result, txs)
	return result, nil
}

// SaveBudget stores a budget, assigning the next budget id when none is set.
func (s *MemoryStore) SaveBudget(budget *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if budget.ID == 0 {
		budget.ID = s.nextBudgetID
		s.nextBudgetID++
	} else if _, exists := s.budgets[budget.ID]; exists {
		return fmt.Errorf("%w: budget %d", ErrDuplicate, budget.ID)
	}
	s.budgets[budget.ID] = budget
	s.userBudgets[budget.UserID] = append(s.userBudgets[budget.UserID], budget.ID)
	return nil
}

// BudgetsForUser lists a user's budgets in creation order.
func (s *MemoryStore) BudgetsForUser(userID int64) ([]*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userBudgets[userID]
	result := make([]*models.Budget, 0, len(ids))
	for _, id := range ids {
		if budget, exists := s.budgets[id]; exists {
			result = append(result, budget)
		}
	}
	return result, nil
}
