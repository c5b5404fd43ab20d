package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nexus-chat/internal/identity"
	"nexus-chat/internal/service"
	"nexus-chat/pkg/cache"
	"nexus-chat/pkg/config"
	"nexus-chat/pkg/health"
	"nexus-chat/pkg/jwt"
	"nexus-chat/pkg/logger"
	"nexus-chat/pkg/observability"
	"nexus-chat/pkg/secrets"
	"nexus-chat/shared/redis"
)

// Container holds all the dependencies of the functions host
type Container struct {
	Config        *config.Config
	Logger        *logger.Logger
	Secrets       secrets.Manager
	DB            *gorm.DB
	Redis         *redis.RedisClient
	Identity      *identity.Client
	AdminIdentity *identity.Client
	JWTService    *jwt.Service
	Metrics       *observability.Metrics
	Health        *health.Checker
	PasswordReset *service.PasswordResetService

	closers []func() error
}

// New wires the container from configuration. Secrets come from Vault when
// it is enabled and from the environment otherwise. Background work stops
// when ctx is done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}

	sm, err := secrets.NewVaultManager(ctx, secrets.VaultConfig{
		Enabled:     cfg.Vault.Enabled,
		Address:     cfg.Vault.Address,
		Token:       cfg.Vault.Token,
		Namespace:   cfg.Vault.Namespace,
		SecretsPath: cfg.Vault.SecretsPath,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	c.Secrets = sm

	anonKey := sm.GetSecretWithDefault(ctx, secrets.KeyAnonKey, cfg.Platform.AnonKey)
	serviceRoleKey := sm.GetSecretWithDefault(ctx, secrets.KeyServiceRoleKey, cfg.Platform.ServiceRoleKey)
	jwtSecret := sm.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.Platform.JWTSecret)

	httpClient := &http.Client{Timeout: cfg.Platform.RequestTimeout}
	c.Identity = identity.New(cfg.Platform.URL, anonKey, httpClient, log)
	c.AdminIdentity = identity.New(cfg.Platform.URL, serviceRoleKey, httpClient, log)
	c.JWTService = jwt.NewService(jwtSecret, 0)

	c.Metrics, err = observability.SetupMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterAPICheck("identity", cfg.Platform.URL+"/auth/v1/health", map[string]string{"apikey": anonKey}, httpClient)

	var limiter service.AttemptLimiter
	if cfg.Redis.Enabled {
		c.Redis = redis.NewRedisClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: sm.GetSecretWithDefault(ctx, secrets.KeyRedisPassword, cfg.Redis.Password),
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, c.Redis.Close)
		c.Health.RegisterPingCheck("redis", false, c.Redis.Ping)
		limiter = service.NewRedisAttemptLimiter(c.Redis, cfg.Reset.LockoutWindow)
	} else {
		limiter = service.NewMemoryAttemptLimiter(cache.New(ctx, cfg.Reset.LockoutWindow, time.Minute, 10000), cfg.Reset.LockoutWindow)
	}

	var creds service.CredentialStore
	switch cfg.Reset.CredentialBackend {
	case config.CredentialBackendPostgres:
		if c.DB, err = openDB(cfg, sm.GetSecretWithDefault(ctx, secrets.KeyDBPassword, cfg.Database.Password)); err != nil {
			c.Close()
			return nil, err
		}
		sqlDB, _ := c.DB.DB()
		c.closers = append(c.closers, sqlDB.Close)
		c.Health.RegisterPingCheck("database", true, sqlDB.PingContext)
		creds = service.NewPostgresCredentials(c.DB)
	case config.CredentialBackendAdminAPI, "":
		creds = service.NewAdminAPICredentials(c.Identity, c.AdminIdentity)
	default:
		c.Close()
		return nil, fmt.Errorf("unknown credential backend %q", cfg.Reset.CredentialBackend)
	}

	var users service.UserResolver = service.NewIdentityResolver(c.Identity)
	if c.JWTService.Enabled() {
		users = service.NewJWTResolver(c.JWTService)
	}

	c.PasswordReset = service.NewPasswordResetService(users, creds, limiter, c.Metrics, service.ResetOptions{
		MinPasswordLength: cfg.Reset.MinPasswordLength,
		MaxFailedAttempts: cfg.Reset.MaxFailedAttempts,
	}, log.With("component", "password-reset"))

	return c, nil
}

func openDB(cfg *config.Config, password string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, password, cfg.Database.Name, cfg.Database.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Database.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
