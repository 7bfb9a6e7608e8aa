package repository

import (
	"errors"

	"fintrack/internal/models"
)

// Store persists users, accounts, transactions and budgets. Implementations
// assign monotonically increasing identifiers when saving entities without
// one. The ledger core runs fully in memory; a Store is only consulted to
// look up accounts and to durably record what the core already decided.
type Store interface {
	// User operations
	SaveUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id int64) (*models.User, error)

	// Account operations
	SaveAccount(account *models.Account) error
	FindAccountByID(id int64) (*models.Account, error)
	AccountsForUser(userID int64) ([]*models.Account, error)

	// Transaction operations
	SaveTransaction(tx *models.Transaction) error
	TransactionsForAccount(accountID int64) ([]*models.Transaction, error)

	// Budget operations
	SaveBudget(budget *models.Budget) error
	BudgetsForUser(userID int64) ([]*models.Budget, error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
