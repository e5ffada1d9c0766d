package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is a strictly positive fixed-point money value with at most two
// fractional digits.
type Amount struct {
	value decimal.Decimal
}

// TransactionKind enumerates the ledger entry kinds.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
	KindBet        TransactionKind = "bet"
	KindWin        TransactionKind = "win"
	KindBonus      TransactionKind = "bonus"
)

// TransactionStatus defines the transaction lifecycle. Rows written by the
// service land directly on completed or are never written at all; the
// remaining values exist for the audit trail.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// AccountStatus defines the account lifecycle.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountBanned    AccountStatus = "banned"
)

// AccountRole separates players from operators.
type AccountRole string

const (
	RolePlayer AccountRole = "player"
	RoleAdmin  AccountRole = "admin"
)

// Account is the stored identity row. Balance is a denormalized projection of
// the completed transactions and is mutated only through the Service.
type Account struct {
	AccountID    string
	Email        string
	PasswordHash string
	Name         string
	Role         AccountRole
	Balance      decimal.Decimal
	Status       AccountStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is one immutable line in the ledger. The amount is positive;
// direction is implied by the kind.
type Transaction struct {
	TransactionID string
	AccountID     string
	Kind          TransactionKind
	Amount        decimal.Decimal
	Description   string
	Status        TransactionStatus
	ReferenceID   string
	CreatedAt     time.Time
}

// Deposit carries the payment-method metadata for an inbound transaction. It
// keeps its own status independent of the ledger row.
type Deposit struct {
	DepositID        string
	AccountID        string
	Amount           decimal.Decimal
	PaymentMethod    string
	PaymentReference string
	Status           TransactionStatus
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// GameRound records one played round together with its result payload.
type GameRound struct {
	RoundID   string
	AccountID string
	GameType  string
	BetAmount decimal.Decimal
	WinAmount decimal.Decimal
	Result    json.RawMessage
	CreatedAt time.Time
}

// NewAmount validates a money value: strictly positive, at most two decimal
// places.
func NewAmount(raw decimal.Decimal) (Amount, error) {
	if raw.Sign() <= 0 {
		return Amount{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if raw.Exponent() < -2 {
		return Amount{}, fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}
	return Amount{value: raw}, nil
}

// ParseAmount validates a decimal string such as "50.00".
func ParseAmount(raw string) (Amount, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return NewAmount(parsed)
}

// Decimal returns the underlying fixed-point value.
func (amount Amount) Decimal() decimal.Decimal {
	return amount.value
}

// String renders the value with two fractional digits.
func (amount Amount) String() string {
	return amount.value.StringFixed(2)
}

// Validate rejects kinds outside the enumerated set.
func (kind TransactionKind) Validate() error {
	switch kind {
	case KindDeposit, KindWithdrawal, KindBet, KindWin, KindBonus:
		return nil
	}
	return fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidArgument, string(kind))
}

// Credits reports whether the kind increases the balance.
func (kind TransactionKind) Credits() bool {
	switch kind {
	case KindDeposit, KindWin, KindBonus:
		return true
	}
	return false
}

// Validate rejects statuses outside the enumerated set.
func (status AccountStatus) Validate() error {
	switch status {
	case AccountActive, AccountSuspended, AccountBanned:
		return nil
	}
	return fmt.Errorf("%w: unknown account status %q", ErrInvalidArgument, string(status))
}

// Validate rejects roles outside the enumerated set.
func (role AccountRole) Validate() error {
	switch role {
	case RolePlayer, RoleAdmin:
		return nil
	}
	return fmt.Errorf("%w: unknown account role %q", ErrInvalidArgument, string(role))
}

// Store is the persistence contract used by Service. Implementations must
// evaluate balance mutations and their guards server-side as one statement,
// and WithTx must roll back every write when fn returns an error.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateAccount(ctx context.Context, account Account) (Account, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	ListAccounts(ctx context.Context, limit int) ([]Account, error)
	UpdateAccountStatus(ctx context.Context, accountID string, status AccountStatus) error
	UpdateAccountRole(ctx context.Context, accountID string, role AccountRole) error
	AddToBalance(ctx context.Context, accountID string, amount Amount) error
	SubtractFromBalance(ctx context.Context, accountID string, amount Amount) error
	InsertTransaction(ctx context.Context, transaction Transaction) (Transaction, error)
	InsertDeposit(ctx context.Context, deposit Deposit) (Deposit, error)
	InsertGameRound(ctx context.Context, round GameRound) (GameRound, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]Transaction, error)
}
