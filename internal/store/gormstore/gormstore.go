package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campos-joao/cassino/pkg/ledger"
)

const (
	pgUniqueViolationCode     = "23505"
	sqliteConstraintMessage   = "UNIQUE constraint failed"
	errorOperationStore       = "store"
	errorSubjectAccount       = "account"
	errorSubjectBalance       = "balance"
	errorSubjectTransaction   = "transaction"
	errorSubjectDeposit       = "deposit"
	errorSubjectGameSession   = "game_session"
	errorCodeCreate           = "create"
	errorCodeGet              = "get"
	errorCodeList             = "list"
	errorCodeInsert           = "insert"
	errorCodeUpdateStatus     = "update_status"
	errorCodeUpdateRole       = "update_role"
	errorCodeCredit           = "credit"
	errorCodeDebit            = "debit"
	errorCodeExistenceCheck   = "existence_check"
	errorCodeDuplicateAccount = "duplicate"
)

// Store implements ledger.Store using GORM. It works against both the
// Postgres driver and the pure-Go sqlite driver.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the schema for every model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Transaction{}, &Deposit{}, &GameSession{})
}

// WithTx executes fn within one database transaction; fn's error rolls back
// every write made through the transactional store.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore ledger.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateAccount(ctx context.Context, account ledger.Account) (ledger.Account, error) {
	row := User{
		ID:           account.AccountID,
		Email:        account.Email,
		PasswordHash: account.PasswordHash,
		Name:         account.Name,
		Role:         string(account.Role),
		Balance:      account.Balance,
		Status:       string(account.Status),
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isUniqueViolation(err) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeDuplicateAccount, ledger.ErrEmailTaken)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return toDomainAccount(row), nil
}

func (store *Store) GetAccount(ctx context.Context, accountID string) (ledger.Account, error) {
	var row User
	err := store.db.WithContext(ctx).First(&row, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return toDomainAccount(row), nil
}

func (store *Store) GetAccountByEmail(ctx context.Context, email string) (ledger.Account, error) {
	var row User
	err := store.db.WithContext(ctx).First(&row, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, ledger.ErrAccountNotFound)
	}
	if err != nil {
		return ledger.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return toDomainAccount(row), nil
}

func (store *Store) ListAccounts(ctx context.Context, limit int) ([]ledger.Account, error) {
	var rows []User
	err := store.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectAccount, errorCodeList, err)
	}
	accounts := make([]ledger.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, toDomainAccount(row))
	}
	return accounts, nil
}

func (store *Store) UpdateAccountStatus(ctx context.Context, accountID string, status ledger.AccountStatus) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdateStatus, ledger.ErrAccountNotFound)
	}
	return nil
}

func (store *Store) UpdateAccountRole(ctx context.Context, accountID string, role ledger.AccountRole) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"role":       string(role),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdateRole, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdateRole, ledger.ErrAccountNotFound)
	}
	return nil
}

// AddToBalance increments the balance with a server-evaluated expression.
func (store *Store) AddToBalance(ctx context.Context, accountID string, amount ledger.Amount) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount.Decimal()),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeCredit, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBalance, errorCodeCredit, ledger.ErrAccountNotFound)
	}
	return nil
}

// SubtractFromBalance decrements the balance guarded by `balance >= amount`
// in the same statement, so two concurrent debits can never both pass the
// check against the same funds.
func (store *Store) SubtractFromBalance(ctx context.Context, accountID string, amount ledger.Amount) error {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ? AND balance >= ?", accountID, amount.Decimal()).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount.Decimal()),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeDebit, result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := store.db.WithContext(ctx).Model(&User{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
			return wrapStoreError(errorSubjectBalance, errorCodeExistenceCheck, err)
		}
		if count == 0 {
			return wrapStoreError(errorSubjectBalance, errorCodeDebit, ledger.ErrAccountNotFound)
		}
		return wrapStoreError(errorSubjectBalance, errorCodeDebit, ledger.ErrInsufficientFunds)
	}
	return nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, error) {
	row := Transaction{
		ID:          transaction.TransactionID,
		UserID:      transaction.AccountID,
		Kind:        string(transaction.Kind),
		Amount:      transaction.Amount,
		Description: transaction.Description,
		Status:      string(transaction.Status),
		ReferenceID: transaction.ReferenceID,
		CreatedAt:   transaction.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return toDomainTransaction(row), nil
}

func (store *Store) InsertDeposit(ctx context.Context, deposit ledger.Deposit) (ledger.Deposit, error) {
	row := Deposit{
		ID:               deposit.DepositID,
		UserID:           deposit.AccountID,
		Amount:           deposit.Amount,
		PaymentMethod:    deposit.PaymentMethod,
		PaymentReference: deposit.PaymentReference,
		Status:           string(deposit.Status),
		CreatedAt:        deposit.CreatedAt,
		ProcessedAt:      deposit.ProcessedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.Deposit{}, wrapStoreError(errorSubjectDeposit, errorCodeInsert, err)
	}
	return toDomainDeposit(row), nil
}

func (store *Store) InsertGameRound(ctx context.Context, round ledger.GameRound) (ledger.GameRound, error) {
	row := GameSession{
		ID:        round.RoundID,
		UserID:    round.AccountID,
		GameType:  round.GameType,
		BetAmount: round.BetAmount,
		WinAmount: round.WinAmount,
		Result:    datatypesJSON(round.Result),
		CreatedAt: round.CreatedAt,
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.GameRound{}, wrapStoreError(errorSubjectGameSession, errorCodeInsert, err)
	}
	return toDomainGameRound(row), nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID string, limit int) ([]ledger.Transaction, error) {
	var rows []Transaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", accountID).
		Order("created_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, toDomainTransaction(row))
	}
	return transactions, nil
}

func toDomainAccount(row User) ledger.Account {
	return ledger.Account{
		AccountID:    row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Name:         row.Name,
		Role:         ledger.AccountRole(row.Role),
		Balance:      row.Balance,
		Status:       ledger.AccountStatus(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toDomainTransaction(row Transaction) ledger.Transaction {
	return ledger.Transaction{
		TransactionID: row.ID,
		AccountID:     row.UserID,
		Kind:          ledger.TransactionKind(row.Kind),
		Amount:        row.Amount,
		Description:   row.Description,
		Status:        ledger.TransactionStatus(row.Status),
		ReferenceID:   row.ReferenceID,
		CreatedAt:     row.CreatedAt,
	}
}

func toDomainDeposit(row Deposit) ledger.Deposit {
	return ledger.Deposit{
		DepositID:        row.ID,
		AccountID:        row.UserID,
		Amount:           row.Amount,
		PaymentMethod:    row.PaymentMethod,
		PaymentReference: row.PaymentReference,
		Status:           ledger.TransactionStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		ProcessedAt:      row.ProcessedAt,
	}
}

func toDomainGameRound(row GameSession) ledger.GameRound {
	return ledger.GameRound{
		RoundID:   row.ID,
		AccountID: row.UserID,
		GameType:  row.GameType,
		BetAmount: row.BetAmount,
		WinAmount: row.WinAmount,
		Result:    json.RawMessage(row.Result),
		CreatedAt: row.CreatedAt,
	}
}

func datatypesJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
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
	if err == nil {
		return false
	}
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) && pgError.Code == pgUniqueViolationCode {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), sqliteConstraintMessage)
}
