package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/campos-joao/cassino/internal/httpserver"
	"github.com/campos-joao/cassino/internal/identity"
	"github.com/campos-joao/cassino/internal/store/gormstore"
	"github.com/campos-joao/cassino/internal/store/pgstore"
	"github.com/campos-joao/cassino/pkg/ledger"
)

const (
	flagDatabaseURL    = "database-url"
	flagListenAddr     = "listen-addr"
	flagJWTSecret      = "jwt-secret"
	flagAllowedOrigins = "allowed-origins"
	flagStoreTimeout   = "store-timeout"
	flagStoreBackend   = "store-backend"

	configKeyDatabaseURL    = "database_url"
	configKeyListenAddr     = "http_listen_addr"
	configKeyJWTSecret      = "jwt_secret"
	configKeyAllowedOrigins = "allowed_origins"
	configKeyStoreTimeout   = "store_timeout"
	configKeyStoreBackend   = "store_backend"

	defaultDatabaseURL  = "sqlite:///tmp/cassino.db"
	defaultListenAddr   = ":8080"
	defaultStoreBackend = "gorm"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	JWTSecret      string
	AllowedOrigins string
	StoreTimeout   time.Duration
	StoreBackend   string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cassinod: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "cassinod",
		Short:         "Casino storefront ledger API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "sqlite:// path or postgres:// connection string")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagJWTSecret, "", "session token signing key")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated CORS origins")
	cmd.Flags().Duration(flagStoreTimeout, 0, "per-request store timeout")
	cmd.Flags().String(flagStoreBackend, defaultStoreBackend, "store backend for postgres URLs: gorm or pgx")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	bindings := map[string]struct {
		env  string
		flag string
	}{
		configKeyDatabaseURL:    {env: "DATABASE_URL", flag: flagDatabaseURL},
		configKeyListenAddr:     {env: "HTTP_LISTEN_ADDR", flag: flagListenAddr},
		configKeyJWTSecret:      {env: "JWT_SECRET", flag: flagJWTSecret},
		configKeyAllowedOrigins: {env: "ALLOWED_ORIGINS", flag: flagAllowedOrigins},
		configKeyStoreTimeout:   {env: "STORE_TIMEOUT", flag: flagStoreTimeout},
		configKeyStoreBackend:   {env: "STORE_BACKEND", flag: flagStoreBackend},
	}
	for key, binding := range bindings {
		if err := viper.BindEnv(key, binding.env); err != nil {
			return err
		}
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(binding.flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.JWTSecret = viper.GetString(configKeyJWTSecret)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.StoreTimeout = viper.GetDuration(configKeyStoreTimeout)
	cfg.StoreBackend = viper.GetString(configKeyStoreBackend)

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = defaultStoreBackend
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.StoreBackend != "gorm" && cfg.StoreBackend != "pgx" {
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() { _ = cleanup() }()

	ledgerService, err := ledger.NewService(store, time.Now,
		ledger.WithOperationLogger(httpserver.NewZapOperationLogger(logger)))
	if err != nil {
		return fmt.Errorf("ledger service init: %w", err)
	}
	identityService, err := identity.NewService(store, []byte(cfg.JWTSecret), time.Now)
	if err != nil {
		return fmt.Errorf("identity service init: %w", err)
	}

	server, err := httpserver.New(httpserver.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.JWTSecret,
		StoreTimeout:      cfg.StoreTimeout,
	}, ledgerService, identityService, logger)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}

	return server.Run(ctx)
}

// openStore picks the persistence adapter from the URL scheme and the
// configured backend. The pgx backend expects the schema to exist already;
// the gorm paths migrate on boot.
func openStore(ctx context.Context, cfg *runtimeConfig) (ledger.Store, func() error, error) {
	isPostgres := strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://")

	if isPostgres && cfg.StoreBackend == "pgx" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		cleanup := func() error { pool.Close(); return nil }
		return pgstore.New(pool), cleanup, nil
	}

	var db *gorm.DB
	var err error
	if isPostgres {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	} else {
		sqlitePath, pathErr := resolveSQLitePath(cfg.DatabaseURL)
		if pathErr != nil {
			return nil, nil, pathErr
		}
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if err := gormstore.AutoMigrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("auto migrate: %w", err)
	}
	return gormstore.New(db.WithContext(ctx)), sqlDB.Close, nil
}

func resolveSQLitePath(raw string) (string, error) {
	path := raw
	if strings.HasPrefix(raw, "sqlite://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path = parsed.Path
		if path == "" {
			path = parsed.Host
		}
	}
	if path == "" || path == "/" {
		path = "cassino.db"
	}
	if path == ":memory:" {
		return path, nil
	}
	if !strings.HasPrefix(path, "/") {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
