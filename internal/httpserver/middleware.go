package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campos-joao/cassino/pkg/ledger"
)

const accountContextKey = "authenticated_account"

func (server *Server) requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		server.logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
}

// authRequired resolves the session token from the auth cookie or the
// Authorization header and stashes the live account on the request.
func (server *Server) authRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := server.sessionToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorEnvelope("authentication required"))
			return
		}
		requestCtx, cancel := server.storeContext(ctx)
		defer cancel()
		account, err := server.identity.Authenticate(requestCtx, token)
		if err != nil {
			status, message := statusForError(err)
			ctx.AbortWithStatusJSON(status, errorEnvelope(message))
			return
		}
		ctx.Set(accountContextKey, account)
		ctx.Next()
	}
}

func (server *Server) adminRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		account, ok := currentAccount(ctx)
		if !ok || account.Role != ledger.RoleAdmin {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorEnvelope("admin access required"))
			return
		}
		ctx.Next()
	}
}

func (server *Server) sessionToken(ctx *gin.Context) string {
	if cookie, err := ctx.Cookie(server.cfg.CookieName); err == nil && cookie != "" {
		return cookie
	}
	header := ctx.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func currentAccount(ctx *gin.Context) (ledger.Account, bool) {
	value, exists := ctx.Get(accountContextKey)
	if !exists {
		return ledger.Account{}, false
	}
	account, ok := value.(ledger.Account)
	return account, ok
}
