package models

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account. Credit accounts may carry a negative
// balance; every other type is overdraft-protected.
type AccountType string

const (
	AccountSavings    AccountType = "savings"
	AccountChecking   AccountType = "checking"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
)

// AccountTypeFromString maps a stored type name back to an AccountType,
// falling back to checking for unknown values.
func AccountTypeFromString(s string) AccountType {
	switch AccountType(s) {
	case AccountSavings, AccountChecking, AccountCredit, AccountInvestment:
		return AccountType(s)
	}
	return AccountChecking
}

// Account is the unit of balance ownership and lock granularity. The balance
// and the account's own transaction log are read and written only while the
// account mutex is held, so every observation of an account is a consistent
// snapshot.
//
// Invariant for any operation spanning two accounts: both mutexes are
// acquired in ascending account-ID order, whichever account initiates the
// call. This total order is the sole deadlock-avoidance mechanism and must
// be applied by every two-account code path.
type Account struct {
	ID     int64
	UserID int64
	Type   AccountType

	mu      sync.Mutex
	balance decimal.Decimal
	history []*Transaction
}

// NewAccount creates an account with an initial balance.
func NewAccount(id, userID int64, accType AccountType, initial decimal.Decimal) *Account {
	return &Account{
		ID:      id,
		UserID:  userID,
		Type:    accType,
		balance: initial,
	}
}

// Balance returns the current balance under the account lock.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// History returns a copy of the account's transaction log in append order.
func (a *Account) History() []*Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Transaction, len(a.history))
	copy(out, a.history)
	return out
}

// Deposit credits the account and appends a completed deposit record. The
// balance change and the log append are atomic with respect to any other
// operation on this account.
func (a *Account) Deposit(amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidAmount)
	}
	if description == "" {
		description = "Deposit"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.balance = a.balance.Add(amount)
	tx := NewTransaction(int64(len(a.history)+1), a.ID, amount, TypeDeposit, CategoryOther, description)
	tx.SetStatus(StatusCompleted)
	a.history = append(a.history, tx)
	return nil
}

// Withdraw debits the account and appends a completed withdrawal record.
// Non-credit accounts cannot be debited beyond their balance.
func (a *Account) Withdraw(amount decimal.Decimal, description string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidAmount)
	}
	if description == "" {
		description = "Withdrawal"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.Type != AccountCredit && a.balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s below withdrawal %s", ErrInsufficientFunds, a.balance, amount)
	}

	a.balance = a.balance.Sub(amount)
	tx := NewTransaction(int64(len(a.history)+1), a.ID, amount, TypeWithdrawal, CategoryOther, description)
	tx.SetStatus(StatusCompleted)
	a.history = append(a.history, tx)
	return nil
}

// TransferTo moves amount from this account to another. Both account locks
// are taken in ascending ID order and the funds check runs against the
// balance observed under the locks, never a cached value. Each side's log
// receives a record carrying the counterparty ID.
func (a *Account) TransferTo(to *Account, amount decimal.Decimal, description string) error {
	if to == nil || to.ID == a.ID {
		return fmt.Errorf("%w: invalid destination account", ErrInvalidAccount)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}
	if description == "" {
		description = "Transfer"
	}

	first, second := a, to
	if to.ID < a.ID {
		first, second = to, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if a.Type != AccountCredit && a.balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s below transfer %s", ErrInsufficientFunds, a.balance, amount)
	}

	a.balance = a.balance.Sub(amount)
	to.balance = to.balance.Add(amount)

	out := NewTransaction(int64(len(a.history)+1), a.ID, amount, TypeTransferOut, CategoryOther,
		fmt.Sprintf("%s to account %d", description, to.ID))
	out.ToAccountID = to.ID
	out.SetStatus(StatusCompleted)
	a.history = append(a.history, out)

	in := NewTransaction(int64(len(to.history)+1), to.ID, amount, TypeTransferIn, CategoryOther,
		fmt.Sprintf("%s from account %d", description, a.ID))
	in.ToAccountID = a.ID
	in.SetStatus(StatusCompleted)
	to.history = append(to.history, in)

	return nil
}

// HasInsufficientFunds reports whether a debit of amount would be rejected.
// The answer is advisory: mutating operations re-check under their own locks.
func (a *Account) HasInsufficientFunds(amount decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Type != AccountCredit && a.balance.LessThan(amount)
}

// MonthlyAverage returns the mean amount across the account's log, zero for
// an empty log.
func (a *Account) MonthlyAverage() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.history) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, tx := range a.history {
		total = total.Add(tx.Amount)
	}
	return total.Div(decimal.NewFromInt(int64(len(a.history))))
}
