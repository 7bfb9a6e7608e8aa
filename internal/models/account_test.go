package models

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	account := NewAccount(1, 1, AccountChecking, dec(100))

	err := account.Deposit(decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = account.Deposit(dec(-5), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	assert.True(t, account.Balance().Equal(dec(100)))
	assert.Empty(t, account.History())
}

func TestWithdrawInsufficientFundsLeavesBalanceUnchanged(t *testing.T) {
	account := NewAccount(1, 1, AccountChecking, dec(100))

	err := account.Withdraw(dec(150), "")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assert.True(t, account.Balance().Equal(dec(100)))
	assert.Empty(t, account.History())
}

func TestCreditAccountMayGoNegative(t *testing.T) {
	account := NewAccount(1, 1, AccountCredit, dec(100))

	require.NoError(t, account.Withdraw(dec(150), "card payment"))
	assert.True(t, account.Balance().Equal(dec(-50)))
}

func TestDepositAppendsCompletedRecord(t *testing.T) {
	account := NewAccount(3, 1, AccountSavings, decimal.Zero)

	require.NoError(t, account.Deposit(dec(40), "salary"))

	history := account.History()
	require.Len(t, history, 1)
	assert.Equal(t, TypeDeposit, history[0].Type)
	assert.Equal(t, StatusCompleted, history[0].Status())
	assert.True(t, history[0].Amount.Equal(dec(40)))
}

func TestConcurrentDepositsAndWithdrawalsDoNotLoseUpdates(t *testing.T) {
	account := NewAccount(1, 1, AccountChecking, dec(10000))

	const workers = 20
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				assert.NoError(t, account.Deposit(dec(3), ""))
				assert.NoError(t, account.Withdraw(dec(1), ""))
			}
		}()
	}
	wg.Wait()

	// initial + workers*perWorker*(3-1)
	want := dec(10000 + workers*perWorker*2)
	assert.True(t, account.Balance().Equal(want), "got %s want %s", account.Balance(), want)
	assert.Len(t, account.History(), workers*perWorker*2)
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	from := NewAccount(1, 1, AccountChecking, dec(500))
	to := NewAccount(2, 2, AccountChecking, dec(100))

	require.NoError(t, from.TransferTo(to, dec(200), "rent"))

	assert.True(t, from.Balance().Equal(dec(300)))
	assert.True(t, to.Balance().Equal(dec(300)))

	fromHist := from.History()
	require.Len(t, fromHist, 1)
	assert.Equal(t, TypeTransferOut, fromHist[0].Type)
	assert.Equal(t, int64(2), fromHist[0].ToAccountID)
	assert.Contains(t, fromHist[0].Description, "to account 2")

	toHist := to.History()
	require.Len(t, toHist, 1)
	assert.Equal(t, TypeTransferIn, toHist[0].Type)
	assert.Equal(t, int64(1), toHist[0].ToAccountID)
	assert.Contains(t, toHist[0].Description, "from account 1")
}

func TestTransferRejectsInvalidDestination(t *testing.T) {
	account := NewAccount(1, 1, AccountChecking, dec(500))

	assert.ErrorIs(t, account.TransferTo(nil, dec(10), ""), ErrInvalidAccount)
	assert.ErrorIs(t, account.TransferTo(account, dec(10), ""), ErrInvalidAccount)
	assert.True(t, account.Balance().Equal(dec(500)))
}

func TestTransferChecksFundsUnderTheLocks(t *testing.T) {
	from := NewAccount(1, 1, AccountChecking, dec(100))
	to := NewAccount(2, 2, AccountChecking, dec(0))

	err := from.TransferTo(to, dec(150), "")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.True(t, from.Balance().Equal(dec(100)))
	assert.True(t, to.Balance().Equal(dec(0)))
}

func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	a := NewAccount(1, 1, AccountChecking, dec(10000))
	b := NewAccount(2, 2, AccountChecking, dec(10000))

	const iterations = 300
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = a.TransferTo(b, dec(1), "")
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_ = b.TransferTo(a, dec(1), "")
			}
		}()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposing transfers did not finish: likely deadlock")
	}

	// Equal traffic in both directions: the pair's total is preserved.
	total := a.Balance().Add(b.Balance())
	assert.True(t, total.Equal(dec(20000)), "total drifted to %s", total)
}

func TestConcurrentTransfersPreserveTotal(t *testing.T) {
	accounts := []*Account{
		NewAccount(1, 1, AccountChecking, dec(1000)),
		NewAccount(2, 1, AccountChecking, dec(1000)),
		NewAccount(3, 1, AccountChecking, dec(1000)),
		NewAccount(4, 1, AccountChecking, dec(1000)),
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				from := accounts[(seed+j)%len(accounts)]
				to := accounts[(seed+j+1)%len(accounts)]
				_ = from.TransferTo(to, dec(5), "")
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance())
	}
	assert.True(t, total.Equal(dec(4000)), "total drifted to %s", total)
}

func TestMonthlyAverage(t *testing.T) {
	account := NewAccount(1, 1, AccountChecking, decimal.Zero)
	assert.True(t, account.MonthlyAverage().Equal(decimal.Zero))

	require.NoError(t, account.Deposit(dec(100), ""))
	require.NoError(t, account.Deposit(dec(300), ""))
	assert.True(t, account.MonthlyAverage().Equal(dec(200)))
}
