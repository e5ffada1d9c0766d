package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/campos-joao/cassino/pkg/ledger"
)

const (
	pgUniqueViolationCode = "23505"
	errorOperationStore   = "store"
	errorSubjectAccount   = "account"
	errorSubjectBalance   = "balance"
	errorSubjectTxRecord  = "transaction"
	errorSubjectDeposit   = "deposit"
	errorSubjectSession   = "game_session"
	errorSubjectTxScope   = "tx"
	errorCodeBegin        = "begin"
	errorCodeCommit       = "commit"
	errorCodeCreate       = "create"
	errorCodeGet          = "get"
	errorCodeList         = "list"
	errorCodeInsert       = "insert"
	errorCodeCredit       = "credit"
	errorCodeDebit        = "debit"
	errorCodeUpdate       = "update"
	errorCodeScan         = "scan"

	sqlInsertAccount = `
		insert into users(id, email, password, name, role, balance, status, created_at, updated_at)
		values (gen_random_uuid(), $1, $2, $3, $4, $5::numeric, $6, $7, $8)
		returning id::text, email, password, name, role, balance::text, status, created_at, updated_at
	`

	sqlSelectAccount = `
		select id::text, email, password, name, role, balance::text, status, created_at, updated_at
		from users
	`

	sqlListAccounts = sqlSelectAccount + `
		order by created_at desc
		limit $1
	`

	sqlUpdateAccountStatus = `
		update users set status = $2, updated_at = now() where id = $1
	`

	sqlUpdateAccountRole = `
		update users set role = $2, updated_at = now() where id = $1
	`

	sqlAddToBalance = `
		update users
		set balance = balance + $2::numeric, updated_at = now()
		where id = $1
	`

	sqlSubtractFromBalance = `
		update users
		set balance = balance - $2::numeric, updated_at = now()
		where id = $1 and balance >= $2::numeric
	`

	sqlAccountExists = `
		select count(*) from users where id = $1
	`

	sqlInsertTransaction = `
		insert into transactions(id, user_id, type, amount, description, status, reference_id, created_at)
		values (gen_random_uuid(), $1, $2, $3::numeric, $4, $5, $6, $7)
		returning id::text
	`

	sqlInsertDeposit = `
		insert into deposits(id, user_id, amount, payment_method, payment_reference, status, created_at, processed_at)
		values (gen_random_uuid(), $1, $2::numeric, $3, $4, $5, $6, $7)
		returning id::text
	`

	sqlInsertGameSession = `
		insert into game_sessions(id, user_id, game_type, bet_amount, win_amount, result, created_at)
		values (gen_random_uuid(), $1, $2, $3::numeric, $4::numeric, nullif($5,'')::jsonb, $6)
		returning id::text
	`

	sqlListTransactions = `
		select id::text, user_id::text, type, amount::text, coalesce(description,''), status, coalesce(reference_id,''), created_at
		from transactions
		where user_id = $1
		order by created_at desc
		limit $2
	`
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pool abstracts pgxpool.Pool so the store can also run over a single
// connection in tests.
type pool interface {
	querier
	BeginTx(ctx context.Context, options pgx.TxOptions) (pgx.Tx, error)
}

// Store implements ledger.Store over a pgx connection pool (autocommit).
type Store struct {
	pool pool
	querier
}

// TxStore implements ledger.Store bound to an active transaction.
type TxStore struct {
	Store
}

// New returns a Store backed by a pgx pool.
func New(connectionPool pool) *Store {
	return &Store{pool: connectionPool, querier: connectionPool}
}

// WithTx runs fn inside one database transaction with rollback on error.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTxScope, errorCodeBegin, err)
	}
	transactionStore := &TxStore{Store: Store{querier: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTxScope, errorCodeCommit, err)
	}
	return nil
}

// WithTx on a TxStore reuses the open transaction; the database still rolls
// back everything as one unit through the outer scope.
func (transactionStore *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return fn(ctx, transactionStore)
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	row := store.querier.QueryRow(ctx, sqlInsertAccount,
		strings.ToLower(strings.TrimSpace(account.Email)),
		account.PasswordHash,
		account.Name,
		string(account.Role),
		account.Balance.StringFixed(2),
		string(account.Status),
		account.CreatedAt,
		account.UpdatedAt,
	)
	created, err := scanAccount(row)
	if isUniqueViolation(err) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, ledger.ErrEmailTaken)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return created, nil
}

func (store *Store) GetAccount(ctx context.Context, accountID string) (ledger.Account, error) {
	row := store.querier.QueryRow(ctx, sqlSelectAccount+" where id = $1", accountID)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return account, nil
}

func (store *Store) GetAccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	row := store.querier.QueryRow(ctx, sqlSelectAccount+" where email = $1", strings.ToLower(strings.TrimSpace(email)))
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return account, nil
}

func (store *Store) ListAccounts(ctx context.Context, limit int) ([]ledger.Account, error) {
	rows, err := store.querier.Query(ctx, sqlListAccounts, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	defer rows.Close()
	var accounts []ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectAccount, errorCodeScan, err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	return accounts, nil
}

func (store *Store) UpdateAccountStatus(ctx context.Context, accountID string, status ledger.AccountStatus) error {
	tag, err := store.querier.Exec(ctx, sqlUpdateAccountStatus, accountID, string(status))
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) UpdateAccountRole(ctx context.Context, accountID string, role ledger.AccountRole) error {
	tag, err := store.querier.Exec(ctx, sqlUpdateAccountRole, accountID, string(role))
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) AddToBalance(ctx context.Context, accountID string, amount ledger.Amount) error {
	tag, err := store.querier.Exec(ctx, sqlAddToBalance, accountID, amount.String())
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeCredit, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeCredit, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) SubtractFromBalance(ctx context.Context, accountID string, amount ledger.Amount) error {
	tag, err := store.querier.Exec(ctx, sqlSubtractFromBalance, accountID, amount.String())
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeDebit, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var count int64
	if err := store.querier.QueryRow(ctx, sqlAccountExists, accountID).Scan(&count); err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeDebit, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeDebit, ledger.ErrAccountNotFound)
	}
	return wrapStoreError(errorSubjectBalance, errorCodeDebit, ledger.ErrInsufficientFunds)
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	err := store.querier.QueryRow(ctx, sqlInsertTransaction,
		transaction.AccountID,
		string(transaction.Kind),
		transaction.Amount.StringFixed(2),
		transaction.Description,
		string(transaction.Status),
		transaction.ReferenceID,
		transaction.CreatedAt,
	).Scan(&transaction.TransactionID)
	if err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTxRecord, errorCodeInsert, err)
	}
	return transaction, nil
}

func (store *Store) InsertDeposit(ctx context.Context, deposit ledger.Deposit) (ledger.Deposit, error) {
	err := store.querier.QueryRow(ctx, sqlInsertDeposit,
		deposit.AccountID,
		deposit.Amount.StringFixed(2),
		deposit.PaymentMethod,
		deposit.PaymentReference,
		string(deposit.Status),
		deposit.CreatedAt,
		deposit.ProcessedAt,
	).Scan(&deposit.DepositID)
	if err != nil {
		return ledger.Deposit{}, wrapStoreError(errorSubjectDeposit, errorCodeInsert, err)
	}
	return deposit, nil
}

func (store *Store) InsertGameRound(ctx context.Context, round ledger.GameRound) (ledger.GameRound, error) {
	err := store.querier.QueryRow(ctx, sqlInsertGameSession,
		round.AccountID,
		round.GameType,
		round.BetAmount.StringFixed(2),
		round.WinAmount.StringFixed(2),
		string(round.Result),
		round.CreatedAt,
	).Scan(&round.RoundID)
	if err != nil {
		return ledger.GameRound{}, wrapStoreError(errorSubjectSession, errorCodeInsert, err)
	}
	return round, nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	rows, err := store.querier.Query(ctx, sqlListTransactions, accountID, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTxRecord, errorCodeList, err)
	}
	defer rows.Close()
	var transactions []ledger.Transaction
	for rows.Next() {
		var (
			transaction ledger.Transaction
			kind        string
			amountText  string
			status      string
		)
		if err := rows.Scan(&transaction.TransactionID, &transaction.AccountID, &kind, &amountText, &transaction.Description, &status, &transaction.ReferenceID, &transaction.CreatedAt); err != nil {
			return nil, wrapStoreError(errorSubjectTxRecord, errorCodeScan, err)
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTxRecord, errorCodeScan, err)
		}
		transaction.Kind = ledger.TransactionKind(kind)
		transaction.Amount = amount
		transaction.Status = ledger.TransactionStatus(status)
		transactions = append(transactions, transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTxRecord, errorCodeList, err)
	}
	return transactions, nil
}

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var (
		account     ledger.Account
		role        string
		balanceText string
		status      string
	)
	err := row.Scan(&account.AccountID, &account.Email, &account.PasswordHash, &account.Name, &role, &balanceText, &status, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return ledger.Account{}, err
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("balance column: %w", err)
	}
	account.Role = ledger.AccountRole(role)
	account.Balance = balance
	account.Status = ledger.AccountStatus(status)
	return account, nil
}

func wrapStoreError(subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	if !isDomainError(err) {
		err = fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isDomainError(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound) ||
		errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, ledger.ErrEmailTaken)
}

func isUniqueViolation(err error) bool {
	var pgError *pgconn.PgError
	return errors.As(err, &pgError) && pgError.Code == pgUniqueViolationCode
}
