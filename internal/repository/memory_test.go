package repository

import (
	"testing"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUserAssignsIDsAndRejectsDuplicateEmail(t *testing.T) {
	store := NewMemoryStore()

	alice := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, store.SaveUser(alice))
	assert.Equal(t, int64(1), alice.ID)

	bob := &models.User{Name: "Bob", Email: "bob@example.com"}
	require.NoError(t, store.SaveUser(bob))
	assert.Equal(t, int64(2), bob.ID)

	again := &models.User{Name: "Alice II", Email: "alice@example.com"}
	assert.ErrorIs(t, store.SaveUser(again), ErrDuplicate)
}

func TestFindUser(t *testing.T) {
	store := NewMemoryStore()
	alice := &models.User{Name: "Alice", Email: "alice@example.com"}
	require.NoError(t, store.SaveUser(alice))

	byEmail, err := store.FindUserByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Same(t, alice, byEmail)

	byID, err := store.FindUserByID(alice.ID)
	require.NoError(t, err)
	assert.Same(t, alice, byID)

	_, err = store.FindUserByEmail("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindUserByID(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountLookupReturnsSameInstance(t *testing.T) {
	store := NewMemoryStore()
	account := models.NewAccount(0, 1, models.AccountChecking, decimal.NewFromInt(100))
	require.NoError(t, store.SaveAccount(account))
	require.NotZero(t, account.ID)

	first, err := store.FindAccountByID(account.ID)
	require.NoError(t, err)
	second, err := store.FindAccountByID(account.ID)
	require.NoError(t, err)

	// Both loads alias the registered account, so its lock is shared.
	assert.Same(t, first, second)
	assert.Same(t, account, first)
}

func TestSaveAccountWithExplicitID(t *testing.T) {
	store := NewMemoryStore()

	account := models.NewAccount(10, 1, models.AccountSavings, decimal.Zero)
	require.NoError(t, store.SaveAccount(account))
	assert.ErrorIs(t, store.SaveAccount(models.NewAccount(10, 2, models.AccountChecking, decimal.Zero)), ErrDuplicate)

	// The counter moves past explicit ids.
	next := models.NewAccount(0, 1, models.AccountChecking, decimal.Zero)
	require.NoError(t, store.SaveAccount(next))
	assert.Equal(t, int64(11), next.ID)
}

func TestAccountsForUser(t *testing.T) {
	store := NewMemoryStore()
	a := models.NewAccount(0, 1, models.AccountChecking, decimal.Zero)
	b := models.NewAccount(0, 1, models.AccountSavings, decimal.Zero)
	c := models.NewAccount(0, 2, models.AccountChecking, decimal.Zero)
	require.NoError(t, store.SaveAccount(a))
	require.NoError(t, store.SaveAccount(b))
	require.NoError(t, store.SaveAccount(c))

	mine, err := store.AccountsForUser(1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Same(t, a, mine[0])
	assert.Same(t, b, mine[1])

	none, err := store.AccountsForUser(3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionsForAccount(t *testing.T) {
	store := NewMemoryStore()
	first := models.NewTransaction(1, 5, decimal.NewFromInt(10), models.TypeDeposit, models.CategoryOther, "")
	second := models.NewTransaction(2, 5, decimal.NewFromInt(20), models.TypeWithdrawal, models.CategoryOther, "")
	require.NoError(t, store.SaveTransaction(first))
	require.NoError(t, store.SaveTransaction(second))

	txs, err := store.TransactionsForAccount(5)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Same(t, first, txs[0])
	assert.Same(t, second, txs[1])

	empty, err := store.TransactionsForAccount(6)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveBudget(t *testing.T) {
	store := NewMemoryStore()
	budget := &models.Budget{UserID: 1, Category: "groceries", MonthlyLimit: decimal.NewFromInt(400)}
	require.NoError(t, store.SaveBudget(budget))
	assert.Equal(t, int64(1), budget.ID)

	budgets, err := store.BudgetsForUser(1)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Same(t, budget, budgets[0])
}
