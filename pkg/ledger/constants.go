package ledger

const (
	operationCredit    = "credit"
	operationDebit     = "debit"
	operationDeposit   = "process_deposit"
	operationWithdraw  = "withdraw"
	operationGameRound = "game_round"
	operationSetStatus = "set_account_status"
	operationSetRole   = "set_account_role"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Deposit policy bounds, inclusive.
	minDepositAmount = "10.00"
	maxDepositAmount = "10000.00"

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	defaultListLimit    = 100
)
