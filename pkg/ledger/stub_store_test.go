package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stubStore is an in-memory Store with error injection. WithTx snapshots the
// state and restores it on error, mirroring a real rollback.
type stubStore struct {
	accounts     map[string]Account
	transactions []Transaction
	deposits     []Deposit
	rounds       []GameRound

	getAccountError        error
	listAccountsError      error
	addBalanceError        error
	subtractBalanceError   error
	insertTransactionError error
	insertDepositError     error
	insertRoundError       error
	listTransactionsError  error
	updateStatusError      error
	updateRoleError        error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{accounts: map[string]Account{}}
}

func (store *stubStore) seedAccount(test *testing.T, balance string) string {
	test.Helper()
	accountID := uuid.NewString()
	store.accounts[accountID] = Account{
		AccountID: accountID,
		Email:     fmt.Sprintf("%s@example.test", accountID[:8]),
		Name:      "stub",
		Role:      RolePlayer,
		Balance:   decimal.RequireFromString(balance),
		Status:    AccountActive,
	}
	return accountID
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	snapshot := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(snapshot)
		return err
	}
	return nil
}

func (store *stubStore) CreateAccount(ctx context.Context, account Account) (Account, error) {
	for _, existing := range store.accounts {
		if existing.Email == account.Email {
			return Account{}, ErrEmailTaken
		}
	}
	if account.AccountID == "" {
		account.AccountID = uuid.NewString()
	}
	store.accounts[account.AccountID] = account
	return account, nil
}

func (store *stubStore) GetAccount(ctx context.Context, accountID string) (Account, error) {
	if store.getAccountError != nil {
		return Account{}, store.getAccountError
	}
	account, ok := store.accounts[accountID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (store *stubStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	for _, account := range store.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (store *stubStore) ListAccounts(ctx context.Context, limit int) ([]Account, error) {
	if store.listAccountsError != nil {
		return nil, store.listAccountsError
	}
	listed := make([]Account, 0, len(store.accounts))
	for _, account := range store.accounts {
		listed = append(listed, account)
	}
	if len(listed) > limit {
		listed = listed[:limit]
	}
	return listed, nil
}

func (store *stubStore) UpdateAccountStatus(ctx context.Context, accountID string, status AccountStatus) error {
	if store.updateStatusError != nil {
		return store.updateStatusError
	}
	account, ok := store.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Status = status
	store.accounts[accountID] = account
	return nil
}

func (store *stubStore) UpdateAccountRole(ctx context.Context, accountID string, role AccountRole) error {
	if store.updateRoleError != nil {
		return store.updateRoleError
	}
	account, ok := store.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Role = role
	store.accounts[accountID] = account
	return nil
}

func (store *stubStore) AddToBalance(ctx context.Context, accountID string, amount Amount) error {
	if store.addBalanceError != nil {
		return store.addBalanceError
	}
	account, ok := store.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Balance = account.Balance.Add(amount.Decimal())
	store.accounts[accountID] = account
	return nil
}

func (store *stubStore) SubtractFromBalance(ctx context.Context, accountID string, amount Amount) error {
	if store.subtractBalanceError != nil {
		return store.subtractBalanceError
	}
	account, ok := store.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Balance.LessThan(amount.Decimal()) {
		return ErrInsufficientFunds
	}
	account.Balance = account.Balance.Sub(amount.Decimal())
	store.accounts[accountID] = account
	return nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) (Transaction, error) {
	if store.insertTransactionError != nil {
		return Transaction{}, store.insertTransactionError
	}
	transaction.TransactionID = uuid.NewString()
	store.transactions = append(store.transactions, transaction)
	return transaction, nil
}

func (store *stubStore) InsertDeposit(ctx context.Context, deposit Deposit) (Deposit, error) {
	if store.insertDepositError != nil {
		return Deposit{}, store.insertDepositError
	}
	deposit.DepositID = uuid.NewString()
	store.deposits = append(store.deposits, deposit)
	return deposit, nil
}

func (store *stubStore) InsertGameRound(ctx context.Context, round GameRound) (GameRound, error) {
	if store.insertRoundError != nil {
		return GameRound{}, store.insertRoundError
	}
	round.RoundID = uuid.NewString()
	store.rounds = append(store.rounds, round)
	return round, nil
}

func (store *stubStore) ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if store.listTransactionsError != nil {
		return nil, store.listTransactionsError
	}
	listed := make([]Transaction, 0, len(store.transactions))
	for index := len(store.transactions) - 1; index >= 0; index-- {
		if store.transactions[index].AccountID != accountID {
			continue
		}
		listed = append(listed, store.transactions[index])
		if len(listed) == limit {
			break
		}
	}
	return listed, nil
}

func (store *stubStore) snapshot() *stubStore {
	accounts := make(map[string]Account, len(store.accounts))
	for key, value := range store.accounts {
		accounts[key] = value
	}
	return &stubStore{
		accounts:     accounts,
		transactions: append([]Transaction(nil), store.transactions...),
		deposits:     append([]Deposit(nil), store.deposits...),
		rounds:       append([]GameRound(nil), store.rounds...),
	}
}

func (store *stubStore) restore(snapshot *stubStore) {
	store.accounts = snapshot.accounts
	store.transactions = snapshot.transactions
	store.deposits = snapshot.deposits
	store.rounds = snapshot.rounds
}

func (store *stubStore) balanceOf(test *testing.T, accountID string) decimal.Decimal {
	test.Helper()
	account, ok := store.accounts[accountID]
	if !ok {
		test.Fatalf("account %s missing from stub store", accountID)
	}
	return account.Balance
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() time.Time { return time.Unix(1700000000, 0) }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustAmount(test *testing.T, raw string) Amount {
	test.Helper()
	amount, err := ParseAmount(raw)
	if err != nil {
		test.Fatalf("parse amount %q: %v", raw, err)
	}
	return amount
}
