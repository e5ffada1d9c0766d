package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RecordGameRound settles one played round: the bet debit, the win credit
// when the round paid out, and the round record itself, all on one store
// transaction. An insufficient balance leaves nothing written. A zero win
// amount records a lost round with no credit entry.
func (service *Service) RecordGameRound(ctx context.Context, accountID string, gameType string, betAmount Amount, winAmount decimal.Decimal, result json.RawMessage) (GameRound, error) {
	var persisted GameRound
	operationError := func() error {
		gameType = strings.TrimSpace(gameType)
		if gameType == "" {
			return fmt.Errorf("%w: game type is required", ErrInvalidArgument)
		}
		if winAmount.Sign() < 0 {
			return fmt.Errorf("%w: win amount cannot be negative", ErrInvalidAmount)
		}
		if len(result) > 0 && !json.Valid(result) {
			return fmt.Errorf("%w: result payload is not valid json", ErrInvalidArgument)
		}
		reference := GenerateReferenceID()
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			betDescription := fmt.Sprintf("Bet on %s", gameType)
			if _, err := service.debitInTx(ctx, transactionStore, accountID, betAmount, KindBet, betDescription, reference); err != nil {
				return err
			}
			round := GameRound{
				AccountID: accountID,
				GameType:  gameType,
				BetAmount: betAmount.Decimal(),
				WinAmount: winAmount,
				Result:    result,
				CreatedAt: service.nowFn().UTC(),
			}
			if winAmount.Sign() > 0 {
				win, err := NewAmount(winAmount)
				if err != nil {
					return err
				}
				winDescription := fmt.Sprintf("Win on %s", gameType)
				if _, err := service.creditInTx(ctx, transactionStore, accountID, win, KindWin, winDescription, reference); err != nil {
					return err
				}
			}
			inserted, err := transactionStore.InsertGameRound(ctx, round)
			if err != nil {
				return err
			}
			persisted = inserted
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationGameRound,
		AccountID: accountID,
		Kind:      KindBet,
		Amount:    betAmount.String(),
		Error:     operationError,
	})
	return persisted, operationError
}
