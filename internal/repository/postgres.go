package repository

import (
	"database/sql"
	"fmt"
	"sync"

	"fintrack/internal/models"

	"github.com/shopspring/decimal"
)

// PostgresStore persists entities in a fintrack schema. Loaded accounts are
// kept in an identity map so that every caller sees the same *models.Account
// instance per id; without that the per-account mutex would guard nothing.
type PostgresStore struct {
	db *sql.DB

	mu     sync.Mutex
	loaded map[int64]*models.Account
}

// NewPostgresStore initializes a Postgres-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		loaded: make(map[int64]*models.Account),
	}
}

// SaveUser creates a new user row and fills in the assigned id.
func (s *PostgresStore) SaveUser(user *models.User) error {
	query := `
		INSERT INTO fintrack.users (name, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := s.db.QueryRow(query, user.Name, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email.
func (s *PostgresStore) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM fintrack.users
		WHERE email = $1`
	err := s.db.QueryRow(query, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id.
func (s *PostgresStore) FindUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM fintrack.users
		WHERE id = $1`
	err := s.db.QueryRow(query, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// SaveAccount creates an account row, fills in the assigned id and registers
// the instance in the identity map.
func (s *PostgresStore) SaveAccount(account *models.Account) error {
	query := `
		INSERT INTO fintrack.accounts (user_id, type, balance, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id`
	err := s.db.QueryRow(query, account.UserID, string(account.Type), account.Balance().String()).
		Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	s.mu.Lock()
	s.loaded[account.ID] = account
	s.mu.Unlock()
	return nil
}

// FindAccountByID returns the in-memory instance for an account, loading it
// from the database on first access.
func (s *PostgresStore) FindAccountByID(id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account, ok := s.loaded[id]; ok {
		return account, nil
	}

	var (
		userID  int64
		accType string
		balance string
	)
	query := `SELECT user_id, type, balance FROM fintrack.accounts WHERE id = $1`
	err := s.db.QueryRow(query, id).Scan(&userID, &accType, &balance)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance for account %d: %w", id, err)
	}
	account := models.NewAccount(id, userID, models.AccountTypeFromString(accType), amount)
	s.loaded[id] = account
	return account, nil
}

// AccountsForUser loads all account ids for a user and resolves them through
// the identity map.
func (s *PostgresStore) AccountsForUser(userID int64) ([]*models.Account, error) {
	rows, err := s.db.Query(`SELECT id FROM fintrack.accounts WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	result := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		account, err := s.FindAccountByID(id)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, nil
}

// SaveTransaction persists a completed or failed transaction record.
func (s *PostgresStore) SaveTransaction(tx *models.Transaction) error {
	query := `
		INSERT INTO fintrack.transactions
			(id, account_id, to_account_id, amount, type, category, status, description, location, ip_address, suspicious, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.db.Exec(query,
		tx.ID, tx.AccountID, tx.ToAccountID, tx.Amount.String(), string(tx.Type), tx.Category,
		string(tx.Status()), tx.Description, tx.Location, tx.IPAddress, tx.IsSuspicious(), tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// TransactionsForAccount lists stored transactions for an account in
// insertion order.
func (s *PostgresStore) TransactionsForAccount(accountID int64) ([]*models.Transaction, error) {
	query := `
		SELECT id, account_id, to_account_id, amount, type, category, status, description, location, ip_address, suspicious, created_at
		FROM fintrack.transactions
		WHERE account_id = $1 OR to_account_id = $1
		ORDER BY created_at, id`
	rows, err := s.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var (
			id, srcID, toID     int64
			amount              string
			txType, category    string
			status, description string
			location, ipAddress string
			suspicious          bool
			createdAt           sql.NullTime
		)
		if err := rows.Scan(&id, &srcID, &toID, &amount, &txType, &category, &status,
			&description, &location, &ipAddress, &suspicious, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount for transaction %d: %w", id, err)
		}
		tx := models.NewTransaction(id, srcID, value, models.TransactionType(txType), category, description)
		tx.ToAccountID = toID
		tx.Location = location
		tx.IPAddress = ipAddress
		if createdAt.Valid {
			tx.CreatedAt = createdAt.Time
		}
		tx.SetStatus(models.TransactionStatus(status))
		if suspicious {
			tx.MarkSuspicious()
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return result, nil
}

// SaveBudget creates a budget row and fills in the assigned id.
func (s *PostgresStore) SaveBudget(budget *models.Budget) error {
	query := `
		INSERT INTO fintrack.budgets
			(user_id, category, monthly_limit, current_spent, start_date, end_date, alert_enabled, alert_threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := s.db.QueryRow(query,
		budget.UserID, budget.Category, budget.MonthlyLimit.String(), budget.CurrentSpent.String(),
		budget.StartDate, budget.EndDate, budget.AlertEnabled, budget.AlertThreshold).
		Scan(&budget.ID)
	if err != nil {
		return fmt.Errorf("failed to create budget: %w", err)
	}
	return nil
}

// BudgetsForUser lists a user's budgets.
func (s *PostgresStore) BudgetsForUser(userID int64) ([]*models.Budget, error) {
	query := `
		SELECT id, user_id, category, monthly_limit, current_spent, start_date, end_date, alert_enabled, alert_threshold
		FROM fintrack.budgets
		WHERE user_id = $1
		ORDER BY id`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var result []*models.Budget
	for rows.Next() {
		budget := &models.Budget{}
		var limit, spent string
		if err := rows.Scan(&budget.ID, &budget.UserID, &budget.Category, &limit, &spent,
			&budget.StartDate, &budget.EndDate, &budget.AlertEnabled, &budget.AlertThreshold); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		if budget.MonthlyLimit, err = decimal.NewFromString(limit); err != nil {
			return nil, fmt.Errorf("failed to parse budget limit: %w", err)
		}
		if budget.CurrentSpent, err = decimal.NewFromString(spent); err != nil {
			return nil, fmt.Errorf("failed to parse budget spent: %w", err)
		}
		result = append(result, budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budgets: %w", err)
	}
	return result, nil
}
