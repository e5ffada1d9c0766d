package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campos-joao/cassino/internal/identity"
	"github.com/campos-joao/cassino/pkg/ledger"
)

const sessionCookieLifetime = 7 * 24 * time.Hour

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type depositRequest struct {
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	ReferenceID   string `json:"reference_id"`
}

type gameRoundRequest struct {
	GameType  string          `json:"game_type"`
	BetAmount string          `json:"bet_amount"`
	WinAmount string          `json:"win_amount"`
	Result    json.RawMessage `json:"result"`
}

type updateUserRequest struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Role   string `json:"role"`
}

type accountPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Balance   string `json:"balance"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type transactionPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type depositPayload struct {
	ID               string `json:"id"`
	Amount           string `json:"amount"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference,omitempty"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

type gameRoundPayload struct {
	ID        string          `json:"id"`
	GameType  string          `json:"game_type"`
	BetAmount string          `json:"bet_amount"`
	WinAmount string          `json:"win_amount"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func (server *Server) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("expected JSON body"))
		return
	}
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	account, token, err := server.identity.Register(requestCtx, request.Email, request.Password, request.Name)
	if err != nil {
		server.respondError(ctx, "register", err)
		return
	}
	server.setSessionCookie(ctx, token)
	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "account created",
		"user":    toAccountPayload(account),
		"token":   token,
	})
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("expected JSON body"))
		return
	}
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	account, token, err := server.identity.Login(requestCtx, request.Email, request.Password)
	if err != nil {
		server.respondError(ctx, "login", err)
		return
	}
	server.setSessionCookie(ctx, token)
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "login successful",
		"user":    toAccountPayload(account),
		"token":   token,
	})
}

func (server *Server) handleLogout(ctx *gin.Context) {
	ctx.SetCookie(server.cfg.CookieName, "", -1, "/", "", false, true)
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
}

func (server *Server) handleProfile(ctx *gin.Context) {
	account, _ := currentAccount(ctx)
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	history, err := server.ledger.GetHistory(requestCtx, account.AccountID, profileHistoryLimit)
	if err != nil {
		server.respondError(ctx, "profile", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"user":         toAccountPayload(account),
		"transactions": toTransactionPayloads(history),
	})
}

func (server *Server) handleDeposit(ctx *gin.Context) {
	account, _ := currentAccount(ctx)
	var request depositRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("expected JSON body"))
		return
	}
	amount, err := ledger.ParseAmount(request.Amount)
	if err != nil {
		server.respondError(ctx, "deposit", err)
		return
	}
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	deposit, err := server.ledger.ProcessDeposit(requestCtx, account.AccountID, amount, request.PaymentMethod, request.ReferenceID)
	if err != nil {
		server.respondError(ctx, "deposit", err)
		return
	}
	balance, err := server.ledger.GetBalance(requestCtx, account.AccountID)
	if err != nil {
		server.respondError(ctx, "deposit", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "deposit completed",
		"deposit": toDepositPayload(deposit),
		"balance": balance.StringFixed(2),
	})
}

func (server *Server) handleDepositHistory(ctx *gin.Context) {
	account, _ := currentAccount(ctx)
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	history, err := server.ledger.GetHistory(requestCtx, account.AccountID, historyLimit(ctx))
	if err != nil {
		server.respondError(ctx, "deposit_history", err)
		return
	}
	deposits := make([]ledger.Transaction, 0, len(history))
	for _, transaction := range history {
		if transaction.Kind == ledger.KindDeposit {
			deposits = append(deposits, transaction)
		}
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":  true,
		"deposits": toTransactionPayloads(deposits),
	})
}

func (server *Server) handleTransactions(ctx *gin.Context) {
	account, _ := currentAccount(ctx)
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	history, err := server.ledger.GetHistory(requestCtx, account.AccountID, historyLimit(ctx))
	if err != nil {
		server.respondError(ctx, "transactions", err)
		return
	}
	balance, err := server.ledger.GetBalance(requestCtx, account.AccountID)
	if err != nil {
		server.respondError(ctx, "transactions", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"balance":      balance.StringFixed(2),
		"transactions": toTransactionPayloads(history),
	})
}

func (server *Server) handleGameRound(ctx *gin.Context) {
	account, _ := currentAccount(ctx)
	var request gameRoundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("expected JSON body"))
		return
	}
	betAmount, err := ledger.ParseAmount(request.BetAmount)
	if err != nil {
		server.respondError(ctx, "game_round", err)
		return
	}
	winAmount := decimal.Zero
	if request.WinAmount != "" {
		winAmount, err = decimal.NewFromString(request.WinAmount)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorEnvelope("invalid win amount"))
			return
		}
	}
	result := request.Result
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	round, err := server.ledger.RecordGameRound(requestCtx, account.AccountID, request.GameType, betAmount, winAmount, result)
	if err != nil {
		server.respondError(ctx, "game_round", err)
		return
	}
	balance, err := server.ledger.GetBalance(requestCtx, account.AccountID)
	if err != nil {
		server.respondError(ctx, "game_round", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   toGameRoundPayload(round),
		"balance": balance.StringFixed(2),
	})
}

func (server *Server) handleListUsers(ctx *gin.Context) {
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	accounts, err := server.ledger.ListAccounts(requestCtx, historyLimit(ctx))
	if err != nil {
		server.respondError(ctx, "list_users", err)
		return
	}
	payloads := make([]accountPayload, 0, len(accounts))
	for _, account := range accounts {
		payloads = append(payloads, toAccountPayload(account))
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "users": payloads})
}

func (server *Server) handleUpdateUser(ctx *gin.Context) {
	var request updateUserRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("expected JSON body"))
		return
	}
	if request.UserID == "" {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("user_id is required"))
		return
	}
	if request.Status == "" && request.Role == "" {
		ctx.JSON(http.StatusBadRequest, errorEnvelope("status or role is required"))
		return
	}
	requestCtx, cancel := server.storeContext(ctx)
	defer cancel()
	if request.Status != "" {
		if err := server.ledger.SetAccountStatus(requestCtx, request.UserID, ledger.AccountStatus(request.Status)); err != nil {
			server.respondError(ctx, "update_user", err)
			return
		}
	}
	if request.Role != "" {
		if err := server.ledger.SetAccountRole(requestCtx, request.UserID, ledger.AccountRole(request.Role)); err != nil {
			server.respondError(ctx, "update_user", err)
			return
		}
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "user updated"})
}

func (server *Server) setSessionCookie(ctx *gin.Context, token string) {
	ctx.SetCookie(server.cfg.CookieName, token, int(sessionCookieLifetime/time.Second), "/", "", false, true)
}

func (server *Server) respondError(ctx *gin.Context, operation string, err error) {
	status, message := statusForError(err)
	if status >= http.StatusInternalServerError {
		server.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	}
	ctx.JSON(status, errorEnvelope(message))
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid or expired session"
	case errors.Is(err, identity.ErrAccountDisabled):
		return http.StatusForbidden, "account is not active"
	case errors.Is(err, identity.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid email address"
	case errors.Is(err, identity.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ledger.ErrEmailTaken):
		return http.StatusBadRequest, "email already registered"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient balance"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid amount"
	case errors.Is(err, ledger.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, "payment method is required"
	case errors.Is(err, ledger.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func errorEnvelope(message string) gin.H {
	return gin.H{"success": false, "message": message}
}

func historyLimit(ctx *gin.Context) int {
	raw := ctx.Query("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func toAccountPayload(account ledger.Account) accountPayload {
	return accountPayload{
		ID:        account.AccountID,
		Email:     account.Email,
		Name:      account.Name,
		Role:      string(account.Role),
		Balance:   account.Balance.StringFixed(2),
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTransactionPayloads(transactions []ledger.Transaction) []transactionPayload {
	payloads := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		payloads = append(payloads, transactionPayload{
			ID:          transaction.TransactionID,
			Type:        string(transaction.Kind),
			Amount:      transaction.Amount.StringFixed(2),
			Description: transaction.Description,
			Status:      string(transaction.Status),
			ReferenceID: transaction.ReferenceID,
			CreatedAt:   transaction.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return payloads
}

func toDepositPayload(deposit ledger.Deposit) depositPayload {
	return depositPayload{
		ID:               deposit.DepositID,
		Amount:           deposit.Amount.StringFixed(2),
		PaymentMethod:    deposit.PaymentMethod,
		PaymentReference: deposit.PaymentReference,
		Status:           string(deposit.Status),
		CreatedAt:        deposit.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toGameRoundPayload(round ledger.GameRound) gameRoundPayload {
	return gameRoundPayload{
		ID:        round.RoundID,
		GameType:  round.GameType,
		BetAmount: round.BetAmount.StringFixed(2),
		WinAmount: round.WinAmount.StringFixed(2),
		Result:    round.Result,
		CreatedAt: round.CreatedAt.UTC().Format(time.RFC3339),
	}
}
