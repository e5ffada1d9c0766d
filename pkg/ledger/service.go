package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Service contains the domain logic over a Store. It holds no state between
// calls; concurrent instances coordinate only through the store's transaction
// isolation.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Credit increases the account balance and appends a completed transaction as
// one atomic unit. A reference id is generated when none is supplied.
func (service *Service) Credit(ctx context.Context, accountID string, amount Amount, kind TransactionKind, description string, referenceID string) (Transaction, error) {
	var recorded Transaction
	operationError := func() error {
		if err := kind.Validate(); err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			var err error
			recorded, err = service.creditInTx(ctx, transactionStore, accountID, amount, kind, description, referenceID)
			return err
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   operationCredit,
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount.String(),
		ReferenceID: recorded.ReferenceID,
		Error:       operationError,
	})
	return recorded, operationError
}

// Debit decreases the account balance and appends a completed transaction as
// one atomic unit. The balance guard is evaluated by the store together with
// the decrement, so concurrent debits can never drive the balance negative.
func (service *Service) Debit(ctx context.Context, accountID string, amount Amount, kind TransactionKind, description string, referenceID string) (Transaction, error) {
	var recorded Transaction
	operationError := func() error {
		if err := kind.Validate(); err != nil {
			return err
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			var err error
			recorded, err = service.debitInTx(ctx, transactionStore, accountID, amount, kind, description, referenceID)
			return err
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   operationDebit,
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount.String(),
		ReferenceID: recorded.ReferenceID,
		Error:       operationError,
	})
	return recorded, operationError
}

// ProcessDeposit validates the business policy bounds, then inserts the
// deposit row, credits the balance, and appends the ledger transaction on one
// store transaction. Any failure rolls back all three writes.
func (service *Service) ProcessDeposit(ctx context.Context, accountID string, amount Amount, paymentMethod string, paymentReference string) (Deposit, error) {
	var persisted Deposit
	operationError := func() error {
		if err := validateDepositBounds(amount); err != nil {
			return err
		}
		method := strings.TrimSpace(paymentMethod)
		if method == "" {
			return fmt.Errorf("%w: payment method is required", ErrInvalidPaymentMethod)
		}
		reference := strings.TrimSpace(paymentReference)
		if reference == "" {
			reference = GenerateReferenceID()
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			now := service.nowFn().UTC()
			deposit := Deposit{
				AccountID:        accountID,
				Amount:           amount.Decimal(),
				PaymentMethod:    method,
				PaymentReference: reference,
				Status:           StatusCompleted,
				CreatedAt:        now,
				ProcessedAt:      &now,
			}
			inserted, err := transactionStore.InsertDeposit(ctx, deposit)
			if err != nil {
				return err
			}
			description := fmt.Sprintf("Deposit via %s", method)
			if _, err := service.creditInTx(ctx, transactionStore, accountID, amount, KindDeposit, description, reference); err != nil {
				return err
			}
			persisted = inserted
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:   operationDeposit,
		AccountID:   accountID,
		Kind:        KindDeposit,
		Amount:      amount.String(),
		ReferenceID: persisted.PaymentReference,
		Error:       operationError,
	})
	return persisted, operationError
}

// Withdraw debits the balance with kind withdrawal.
func (service *Service) Withdraw(ctx context.Context, accountID string, amount Amount, description string) (Transaction, error) {
	if strings.TrimSpace(description) == "" {
		description = "Withdrawal"
	}
	return service.Debit(ctx, accountID, amount, KindWithdrawal, description, "")
}

// GetBalance reads the current stored balance.
func (service *Service) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return account.Balance, nil
}

// GetHistory returns the account's transactions, most recent first.
func (service *Service) GetHistory(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return service.store.ListTransactions(ctx, accountID, limit)
}

// creditInTx applies the balance increment and ledger insert on an already
// open transaction. ProcessDeposit and RecordGameRound share it so their
// extra writes stay inside the same atomic unit.
func (service *Service) creditInTx(ctx context.Context, transactionStore Store, accountID string, amount Amount, kind TransactionKind, description string, referenceID string) (Transaction, error) {
	if strings.TrimSpace(referenceID) == "" {
		referenceID = GenerateReferenceID()
	}
	if err := transactionStore.AddToBalance(ctx, accountID, amount); err != nil {
		return Transaction{}, err
	}
	return transactionStore.InsertTransaction(ctx, Transaction{
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount.Decimal(),
		Description: description,
		Status:      StatusCompleted,
		ReferenceID: referenceID,
		CreatedAt:   service.nowFn().UTC(),
	})
}

func (service *Service) debitInTx(ctx context.Context, transactionStore Store, accountID string, amount Amount, kind TransactionKind, description string, referenceID string) (Transaction, error) {
	if strings.TrimSpace(referenceID) == "" {
		referenceID = GenerateReferenceID()
	}
	if err := transactionStore.SubtractFromBalance(ctx, accountID, amount); err != nil {
		return Transaction{}, err
	}
	return transactionStore.InsertTransaction(ctx, Transaction{
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount.Decimal(),
		Description: description,
		Status:      StatusCompleted,
		ReferenceID: referenceID,
		CreatedAt:   service.nowFn().UTC(),
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func validateDepositBounds(amount Amount) error {
	minimum := decimal.RequireFromString(minDepositAmount)
	maximum := decimal.RequireFromString(maxDepositAmount)
	if amount.Decimal().LessThan(minimum) {
		return fmt.Errorf("%w: below minimum deposit of %s", ErrInvalidAmount, minDepositAmount)
	}
	if amount.Decimal().GreaterThan(maximum) {
		return fmt.Errorf("%w: above maximum deposit of %s", ErrInvalidAmount, maxDepositAmount)
	}
	return nil
}
