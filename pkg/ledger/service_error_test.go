package ledger

import (
	"context"
	"errors"
	"testing"
)

const errorMismatchMessage = "expected %v, got %v"

var errStoreFailure = errors.New("store error")

func TestCreditReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
	}{
		{
			name: "balance update error",
			configure: func(store *stubStore) {
				store.addBalanceError = errStoreFailure
			},
		},
		{
			name: "transaction insert error",
			configure: func(store *stubStore) {
				store.insertTransactionError = errStoreFailure
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			accountID := store.seedAccount(test, "100.00")
			testCase.configure(store)
			service := mustNewService(test, store)

			_, err := service.Credit(context.Background(), accountID, mustAmount(test, "10.00"), KindBonus, "", "")
			if !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
		})
	}
}

func TestDebitReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
	}{
		{
			name: "balance update error",
			configure: func(store *stubStore) {
				store.subtractBalanceError = errStoreFailure
			},
		},
		{
			name: "transaction insert error",
			configure: func(store *stubStore) {
				store.insertTransactionError = errStoreFailure
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			accountID := store.seedAccount(test, "100.00")
			testCase.configure(store)
			service := mustNewService(test, store)

			_, err := service.Debit(context.Background(), accountID, mustAmount(test, "10.00"), KindBet, "", "")
			if !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
		})
	}
}

func TestProcessDepositReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
	}{
		{
			name: "deposit insert error",
			configure: func(store *stubStore) {
				store.insertDepositError = errStoreFailure
			},
		},
		{
			name: "balance update error",
			configure: func(store *stubStore) {
				store.addBalanceError = errStoreFailure
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newStubStore(test)
			accountID := store.seedAccount(test, "0.00")
			testCase.configure(store)
			service := mustNewService(test, store)

			_, err := service.ProcessDeposit(context.Background(), accountID, mustAmount(test, "50.00"), "pix", "")
			if !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
			if len(store.deposits) != 0 {
				test.Fatalf("expected deposit rollback, got %d rows", len(store.deposits))
			}
		})
	}
}

func TestGetHistoryReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := store.seedAccount(test, "0.00")
	store.listTransactionsError = errStoreFailure
	service := mustNewService(test, store)

	_, err := service.GetHistory(context.Background(), accountID, 10)
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
}

func TestListAccountsReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.listAccountsError = errStoreFailure
	service := mustNewService(test, store)

	_, err := service.ListAccounts(context.Background(), 10)
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
}
