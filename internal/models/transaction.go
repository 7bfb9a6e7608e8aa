package models

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType encodes the direction of a transaction. Amounts are always
// positive; the type carries the sign.
type TransactionType string

const (
	TypeDeposit     TransactionType = "deposit"
	TypeWithdrawal  TransactionType = "withdrawal"
	TypeTransferOut TransactionType = "transfer_out"
	TypeTransferIn  TransactionType = "transfer_in"
	TypePayment     TransactionType = "payment"
	TypeRefund      TransactionType = "refund"
)

// TransactionStatus follows pending -> completed | failed. Terminal states
// are final.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// CategoryOther is the default free-form classification.
const CategoryOther = "other"

// Transaction is a record of one financial event. The immutable fields are
// set before the record is shared; status and the suspicious flag stay
// mutable afterwards and are guarded by the record's own mutex because the
// transaction service, the fraud service and its background sweep all hold
// references to the same record.
type Transaction struct {
	ID          int64
	AccountID   int64
	ToAccountID int64 // counterparty, set only for transfers
	Amount      decimal.Decimal
	Type        TransactionType
	Category    string
	Description string
	CreatedAt   time.Time
	Location    string
	IPAddress   string

	mu         sync.Mutex
	status     TransactionStatus
	suspicious bool
}

// NewTransaction creates a PENDING record with the current timestamp. An
// empty category defaults to "other".
func NewTransaction(id, accountID int64, amount decimal.Decimal, txType TransactionType, category, description string) *Transaction {
	if category == "" {
		category = CategoryOther
	}
	return &Transaction{
		ID:          id,
		AccountID:   accountID,
		Amount:      amount,
		Type:        txType,
		Category:    category,
		Description: description,
		CreatedAt:   time.Now(),
		status:      StatusPending,
	}
}

// Status returns the current status.
func (t *Transaction) Status() TransactionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetStatus applies a status transition. Transitions are monotonic: once a
// record is completed, failed or cancelled the call is a no-op.
func (t *Transaction) SetStatus(status TransactionStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return
	}
	t.status = status
}

// IsSuspicious reports whether the fraud service has flagged the record.
func (t *Transaction) IsSuspicious() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspicious
}

// MarkSuspicious raises the suspicious flag. The flag is sticky: only an
// explicit manual review clears it again.
func (t *Transaction) MarkSuspicious() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspicious = true
}

// ClearSuspicious resets the flag. Reserved for manual review.
func (t *Transaction) ClearSuspicious() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspicious = false
}
