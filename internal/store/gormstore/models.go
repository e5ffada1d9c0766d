package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents the users table. Balance is mutated only through the
// conditional updates in Store, never by assigning the field.
type User struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	Email        string          `gorm:"size:255;not null;uniqueIndex:uniq_users_email"`
	PasswordHash string          `gorm:"column:password;size:255;not null"`
	Name         string          `gorm:"size:255;not null"`
	Role         string          `gorm:"size:20;not null;default:player"`
	Balance      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Status       string          `gorm:"size:20;not null;default:active;index:idx_users_status"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table. Rows are append-only.
type Transaction struct {
	ID          string          `gorm:"type:uuid;primaryKey"`
	UserID      string          `gorm:"type:uuid;not null;index:idx_transactions_user_created,priority:1"`
	Kind        string          `gorm:"column:type;size:20;not null;index:idx_transactions_type"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Description string          `gorm:"type:text"`
	Status      string          `gorm:"size:20;not null;default:completed"`
	ReferenceID string          `gorm:"size:255;index:idx_transactions_reference"`
	CreatedAt   time.Time       `gorm:"not null;index:idx_transactions_user_created,priority:2"`
}

func (Transaction) TableName() string { return "transactions" }

func (transaction *Transaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.ID == "" {
		transaction.ID = uuid.NewString()
	}
	return nil
}

// Deposit mirrors the deposits table.
type Deposit struct {
	ID               string          `gorm:"type:uuid;primaryKey"`
	UserID           string          `gorm:"type:uuid;not null;index:idx_deposits_user"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	PaymentMethod    string          `gorm:"size:50;not null"`
	PaymentReference string          `gorm:"size:255"`
	Status           string          `gorm:"size:20;not null;default:pending"`
	CreatedAt        time.Time       `gorm:"not null"`
	ProcessedAt      *time.Time      `gorm:""`
}

func (Deposit) TableName() string { return "deposits" }

func (deposit *Deposit) BeforeCreate(tx *gorm.DB) error {
	if deposit.ID == "" {
		deposit.ID = uuid.NewString()
	}
	return nil
}

// GameSession mirrors the game_sessions table; the round result is stored as
// a JSON document.
type GameSession struct {
	ID        string          `gorm:"type:uuid;primaryKey"`
	UserID    string          `gorm:"type:uuid;not null;index:idx_game_sessions_user"`
	GameType  string          `gorm:"size:50;not null"`
	BetAmount decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	WinAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Result    datatypes.JSON  `gorm:""`
	CreatedAt time.Time       `gorm:"not null"`
}

func (GameSession) TableName() string { return "game_sessions" }

func (session *GameSession) BeforeCreate(tx *gorm.DB) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return nil
}
