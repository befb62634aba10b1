package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

const accountColumns = `acc_no, holder_name, branch, start_date, balance, transactions,
		created_by, created_date, modified_by, modified_date, version`

// PostgresStore persists accounts in PostgreSQL. Each account is one row and
// its history a jsonb column on that row, so a single statement commits the
// balance and the new event together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		account      ledger.Account
		startDate    sql.NullTime
		balance      sql.NullInt64
		blob         []byte
		createdBy    sql.NullString
		createdDate  sql.NullTime
		modifiedBy   sql.NullString
		modifiedDate sql.NullTime
	)
	err := row.Scan(
		&account.Number, &account.HolderName, &account.Branch, &startDate, &balance, &blob,
		&createdBy, &createdDate, &modifiedBy, &modifiedDate, &account.Version,
	)
	if err != nil {
		return ledger.Account{}, err
	}
	txs, err := decodeTransactions(blob)
	if err != nil {
		return ledger.Account{}, err
	}
	account.Transactions = txs
	// A NULL balance is read as zero.
	account.Balance = balance.Int64
	account.StartDate = startDate.Time
	account.CreatedBy = createdBy.String
	account.CreatedDate = createdDate.Time
	account.ModifiedBy = modifiedBy.String
	account.ModifiedDate = modifiedDate.Time
	return account, nil
}

func (r *PostgresStore) FindByNumber(ctx context.Context, number int64) (ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE acc_no = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Account{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *PostgresStore) Save(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	blob, err := encodeTransactions(account.Transactions)
	if err != nil {
		return ledger.Account{}, err
	}
	if account.Version == 0 {
		return r.insert(ctx, account, blob)
	}
	return r.update(ctx, account, blob)
}

func (r *PostgresStore) insert(ctx context.Context, account ledger.Account, blob []byte) (ledger.Account, error) {
	query := `
		INSERT INTO accounts (acc_no, holder_name, branch, start_date, balance, transactions,
			created_by, created_date, modified_by, modified_date, version)
		SELECT $1::bigint, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10, 1
		WHERE NOT EXISTS (SELECT 1 FROM retired_account_numbers WHERE acc_no = $1)
	`
	result, err := r.db.ExecContext(ctx, query,
		account.Number, account.HolderName, account.Branch, account.StartDate, account.Balance, string(blob),
		nullString(account.CreatedBy), nullTime(account.CreatedDate),
		nullString(account.ModifiedBy), nullTime(account.ModifiedDate),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ledger.Account{}, ledger.ErrDuplicateNumber
		}
		return ledger.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to check rows affected: %w", err)
	}
	// Zero rows means the number belonged to a deleted account.
	if rows == 0 {
		return ledger.Account{}, ledger.ErrDuplicateNumber
	}
	saved := account.Clone()
	saved.Version = 1
	return saved, nil
}

// update only matches the row at the version the snapshot was read at. Zero
// rows affected means someone else saved first, or the account is gone.
func (r *PostgresStore) update(ctx context.Context, account ledger.Account, blob []byte) (ledger.Account, error) {
	query := `
		UPDATE accounts
		SET holder_name = $2, branch = $3, balance = $4, transactions = $5,
			modified_by = $6, modified_date = $7, version = version + 1
		WHERE acc_no = $1 AND version = $8
	`
	result, err := r.db.ExecContext(ctx, query,
		account.Number, account.HolderName, account.Branch, account.Balance, string(blob),
		nullString(account.ModifiedBy), nullTime(account.ModifiedDate), account.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation {
			return ledger.Account{}, fmt.Errorf("balance constraint rejected update: %w", err)
		}
		return ledger.Account{}, fmt.Errorf("failed to update account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ledger.Account{}, ledger.ErrVersionConflict
	}
	saved := account.Clone()
	saved.Version = account.Version + 1
	return saved, nil
}

// DeleteByNumber removes the row and retires its number in one statement.
func (r *PostgresStore) DeleteByNumber(ctx context.Context, number int64) error {
	query := `
		WITH deleted AS (DELETE FROM accounts WHERE acc_no = $1 RETURNING acc_no)
		INSERT INTO retired_account_numbers (acc_no) SELECT acc_no FROM deleted
	`
	result, err := r.db.ExecContext(ctx, query, number)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *PostgresStore) ListAll(ctx context.Context) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Exists reports whether the number is in use or retired.
func (r *PostgresStore) Exists(ctx context.Context, number int64) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE acc_no = $1)
			OR EXISTS (SELECT 1 FROM retired_account_numbers WHERE acc_no = $1)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

func (r *PostgresStore) NextAccountNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('account_number_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read account number sequence: %w", err)
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t, Valid: true}
}
