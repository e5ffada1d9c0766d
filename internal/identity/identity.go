// Package identity is the user directory: registration, login, and token
// validation. The ledger treats it as an external collaborator; it shares
// only the account store.
package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/campos-joao/cassino/pkg/ledger"
)

const (
	bcryptCost    = 12
	tokenLifetime = 7 * 24 * time.Hour

	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service authenticates accounts against the shared store and mints session
// tokens. Password hashing and JWT signing are delegated to bcrypt and
// golang-jwt.
type Service struct {
	store      ledger.Store
	signingKey []byte
	nowFn      func() time.Time
}

// NewService wires the user directory.
func NewService(store ledger.Store, signingKey []byte, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidConfig)
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidConfig)
	}
	return &Service{store: store, signingKey: signingKey, nowFn: now}, nil
}

// Register creates a new player account with a zero balance and returns it
// together with a session token.
func (service *Service) Register(ctx context.Context, email string, password string, name string) (ledger.Account, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return ledger.Account{}, "", ErrInvalidEmail
	}
	if err := ValidatePassword(password); err != nil {
		return ledger.Account{}, "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ledger.Account{}, "", fmt.Errorf("%w: name is required", ledger.ErrInvalidArgument)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return ledger.Account{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := service.nowFn().UTC()
	account, err := service.store.CreateAccount(ctx, ledger.Account{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         ledger.RolePlayer,
		Balance:      decimal.Zero,
		Status:       ledger.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return ledger.Account{}, "", err
	}
	token, err := service.issueToken(account)
	if err != nil {
		return ledger.Account{}, "", err
	}
	return account, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
// Wrong email and wrong password are indistinguishable to the caller.
func (service *Service) Login(ctx context.Context, email string, password string) (ledger.Account, string, error) {
	account, err := service.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if isNotFound(err) {
			return ledger.Account{}, "", ErrInvalidCredentials
		}
		return ledger.Account{}, "", err
	}
	if account.Status != ledger.AccountActive {
		return ledger.Account{}, "", ErrAccountDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return ledger.Account{}, "", ErrInvalidCredentials
	}
	token, err := service.issueToken(account)
	if err != nil {
		return ledger.Account{}, "", err
	}
	return account, token, nil
}

// Authenticate resolves a session token to its live account, rejecting
// non-active accounts.
func (service *Service) Authenticate(ctx context.Context, token string) (ledger.Account, error) {
	accountID, err := service.verifyToken(token)
	if err != nil {
		return ledger.Account{}, err
	}
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return ledger.Account{}, ErrInvalidToken
		}
		return ledger.Account{}, err
	}
	if account.Status != ledger.AccountActive {
		return ledger.Account{}, ErrAccountDisabled
	}
	return account, nil
}

// ValidatePassword applies the password policy: minimum length, at least one
// lowercase letter, one uppercase letter, and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: at least %d characters", ErrWeakPassword, minPasswordLength)
	}
	var hasLower, hasUpper, hasDigit bool
	for _, character := range password {
		switch {
		case character >= 'a' && character <= 'z':
			hasLower = true
		case character >= 'A' && character <= 'Z':
			hasUpper = true
		case character >= '0' && character <= '9':
			hasDigit = true
		}
	}
	if !hasLower {
		return fmt.Errorf("%w: missing lowercase letter", ErrWeakPassword)
	}
	if !hasUpper {
		return fmt.Errorf("%w: missing uppercase letter", ErrWeakPassword)
	}
	if !hasDigit {
		return fmt.Errorf("%w: missing digit", ErrWeakPassword)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ledger.ErrAccountNotFound)
}
