package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewAmountValidation(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "positive two decimals", raw: "10.50"},
		{name: "whole number", raw: "100"},
		{name: "zero", raw: "0", wantErr: true},
		{name: "negative", raw: "-1.00", wantErr: true},
		{name: "three decimals", raw: "1.005", wantErr: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			_, err := NewAmount(decimal.RequireFromString(testCase.raw))
			if testCase.wantErr && !errors.Is(err, ErrInvalidAmount) {
				test.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
			if !testCase.wantErr && err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseAmountRejectsGarbage(test *testing.T) {
	test.Parallel()
	if _, err := ParseAmount("ten dollars"); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAmountStringRendersTwoDecimals(test *testing.T) {
	test.Parallel()
	amount := mustAmount(test, "7.5")
	if amount.String() != "7.50" {
		test.Fatalf("expected 7.50, got %s", amount.String())
	}
}

func TestTransactionKindValidate(test *testing.T) {
	test.Parallel()
	for _, kind := range []TransactionKind{KindDeposit, KindWithdrawal, KindBet, KindWin, KindBonus} {
		if err := kind.Validate(); err != nil {
			test.Fatalf("kind %s rejected: %v", kind, err)
		}
	}
	if err := TransactionKind("refund").Validate(); !errors.Is(err, ErrInvalidArgument) {
		test.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTransactionKindDirection(test *testing.T) {
	test.Parallel()
	credits := map[TransactionKind]bool{
		KindDeposit:    true,
		KindWin:        true,
		KindBonus:      true,
		KindWithdrawal: false,
		KindBet:        false,
	}
	for kind, want := range credits {
		if kind.Credits() != want {
			test.Fatalf("kind %s: expected credits=%v", kind, want)
		}
	}
}

func TestOperationErrorSegments(test *testing.T) {
	test.Parallel()
	wrapped := WrapError("store", "balance", "update", ErrAccountNotFound)
	var operationError OperationError
	if !errors.As(wrapped, &operationError) {
		test.Fatalf("expected OperationError, got %T", wrapped)
	}
	if operationError.Operation() != "store" || operationError.Subject() != "balance" || operationError.Code() != "update" {
		test.Fatalf("unexpected segments: %v", operationError)
	}
	if !errors.Is(wrapped, ErrAccountNotFound) {
		test.Fatalf("wrap broke errors.Is")
	}
	if WrapError("store", "balance", "update", nil) != nil {
		test.Fatalf("wrapping nil should return nil")
	}
}

func TestGenerateReferenceIDFormat(test *testing.T) {
	test.Parallel()
	reference := GenerateReferenceID()
	if !strings.HasPrefix(reference, "REF_") {
		test.Fatalf("unexpected reference format: %s", reference)
	}
	if reference == GenerateReferenceID() {
		test.Fatalf("consecutive references collided")
	}
}
