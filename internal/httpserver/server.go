// Package httpserver is the HTTP façade over the ledger and the user
// directory. It owns session cookies, request-scoped timeouts, and the
// mapping from domain errors to status codes.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campos-joao/cassino/internal/identity"
	"github.com/campos-joao/cassino/pkg/ledger"
)

// Server binds the router to its collaborators.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	ledger   *ledger.Service
	identity *identity.Service
	router   *gin.Engine
}

// New validates the configuration and assembles the router.
func New(cfg Config, ledgerService *ledger.Service, identityService *identity.Service, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ledgerService == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if identityService == nil {
		return nil, fmt.Errorf("identity service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &Server{
		cfg:      cfg,
		logger:   logger,
		ledger:   ledgerService,
		identity: identityService,
	}
	server.router = server.setupRouter()
	return server, nil
}

// Router exposes the handler tree for tests and embedding.
func (server *Server) Router() http.Handler {
	return server.router
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("storefront api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(server.requestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", server.handleRegister)
	auth.POST("/login", server.handleLogin)
	auth.POST("/logout", server.handleLogout)

	user := api.Group("/user")
	user.Use(server.authRequired())
	user.GET("/profile", server.handleProfile)
	user.POST("/deposit", server.handleDeposit)
	user.GET("/deposit", server.handleDepositHistory)
	user.GET("/transactions", server.handleTransactions)
	user.POST("/game", server.handleGameRound)

	admin := api.Group("/admin")
	admin.Use(server.authRequired(), server.adminRequired())
	admin.GET("/users", server.handleListUsers)
	admin.PUT("/users", server.handleUpdateUser)

	return router
}

// storeContext bounds one handler's store work.
func (server *Server) storeContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), server.cfg.StoreTimeout)
}
