package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Credential backends for the password-reset function.
const (
	CredentialBackendAdminAPI = "admin-api"
	CredentialBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (functions host)
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Platform holds the hosted backend the client and functions talk to
	Platform struct {
		URL            string
		AnonKey        string
		ServiceRoleKey string
		JWTSecret      string
		RequestTimeout time.Duration
		Endpoints      Endpoints
	}

	// Database configuration, used by the postgres credential backend
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
	}

	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
		File   string
	}

	// Reset configures the password-reset-self function
	Reset struct {
		MinPasswordLength int
		MaxFailedAttempts int
		LockoutWindow     time.Duration
		CredentialBackend string
	}

	Realtime struct {
		Enabled           bool
		HeartbeatInterval time.Duration
		ReconnectMax      time.Duration
	}

	// Client holds terminal client tuning
	Client struct {
		NearBottomThreshold int
		SummaryWorkers      int
	}

	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
	}
}

// Endpoints are the per-operation URLs of the platform functions. Any left
// empty are derived from the platform URL.
type Endpoints struct {
	MyCharacters          string
	PublicCharacters      string
	CreateCharacter       string
	DeleteEntity          string
	CharacterByID         string
	UserConversations     string
	BotAndLastMessage     string
	NewChat               string
	AIChat                string
	Paginator             string
	DeleteMessages        string
	RegenerateLast        string
	SignedUploadURL       string
	EntityDeletionDetails string
	PasswordReset         string
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

	cfg.Platform.URL = strings.TrimRight(getEnvString("PLATFORM_URL", "http://localhost:54321"), "/")
	cfg.Platform.AnonKey = getEnvString("PLATFORM_ANON_KEY", "")
	cfg.Platform.ServiceRoleKey = getEnvString("PLATFORM_SERVICE_ROLE_KEY", "")
	cfg.Platform.JWTSecret = getEnvString("PLATFORM_JWT_SECRET", "")
	cfg.Platform.RequestTimeout = getEnvDuration("PLATFORM_REQUEST_TIMEOUT", 60*time.Second)
	cfg.Platform.Endpoints = Endpoints{
		MyCharacters:          os.Getenv("ENDPOINT_MY_CHARACTERS"),
		PublicCharacters:      os.Getenv("ENDPOINT_PUBLIC_CHARACTERS"),
		CreateCharacter:       os.Getenv("ENDPOINT_CREATE_CHARACTER"),
		DeleteEntity:          os.Getenv("ENDPOINT_DELETE_ENTITY"),
		CharacterByID:         os.Getenv("ENDPOINT_CHARACTER_BY_ID"),
		UserConversations:     os.Getenv("ENDPOINT_USER_CONVERSATIONS"),
		BotAndLastMessage:     os.Getenv("ENDPOINT_BOT_AND_LAST_MESSAGE"),
		NewChat:               os.Getenv("ENDPOINT_NEW_CHAT"),
		AIChat:                os.Getenv("ENDPOINT_AI_CHAT"),
		Paginator:             os.Getenv("ENDPOINT_PAGINATOR"),
		DeleteMessages:        os.Getenv("ENDPOINT_DELETE_MESSAGES"),
		RegenerateLast:        os.Getenv("ENDPOINT_REGENERATE_LAST"),
		SignedUploadURL:       os.Getenv("ENDPOINT_SIGNED_UPLOAD_URL"),
		EntityDeletionDetails: os.Getenv("ENDPOINT_ENTITY_DELETION_DETAILS"),
		PasswordReset:         os.Getenv("ENDPOINT_PASSWORD_RESET"),
	}.WithDefaults(cfg.Platform.URL)

	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "postgres")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")
	cfg.Logging.File = getEnvString("NEXUS_LOG_FILE", defaultLogFile())

	cfg.Reset.MinPasswordLength = getEnvInt("RESET_MIN_PASSWORD_LENGTH", 8)
	cfg.Reset.MaxFailedAttempts = getEnvInt("RESET_MAX_FAILED_ATTEMPTS", 5)
	cfg.Reset.LockoutWindow = getEnvDuration("RESET_LOCKOUT_WINDOW", 15*time.Minute)
	cfg.Reset.CredentialBackend = getEnvString("RESET_CREDENTIAL_BACKEND", CredentialBackendAdminAPI)

	cfg.Realtime.Enabled = getEnvBool("REALTIME_ENABLED", true)
	cfg.Realtime.HeartbeatInterval = getEnvDuration("REALTIME_HEARTBEAT", 25*time.Second)
	cfg.Realtime.ReconnectMax = getEnvDuration("REALTIME_RECONNECT_MAX", 30*time.Second)

	cfg.Client.NearBottomThreshold = getEnvInt("NEXUS_NEAR_BOTTOM_LINES", 3)
	cfg.Client.SummaryWorkers = getEnvInt("NEXUS_SUMMARY_WORKERS", 4)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "nexus")

	return cfg
}

// WithDefaults fills empty endpoints with <base>/functions/v1/<name>.
func (e Endpoints) WithDefaults(base string) Endpoints {
	fn := func(current, name string) string {
		if current != "" {
			return current
		}
		return base + "/functions/v1/" + name
	}
	e.MyCharacters = fn(e.MyCharacters, "get-my-characters")
	e.PublicCharacters = fn(e.PublicCharacters, "get-public-characters")
	e.CreateCharacter = fn(e.CreateCharacter, "create-character")
	e.DeleteEntity = fn(e.DeleteEntity, "delete-entity")
	e.CharacterByID = fn(e.CharacterByID, "get-character-by-id")
	e.UserConversations = fn(e.UserConversations, "get-user-conversations")
	e.BotAndLastMessage = fn(e.BotAndLastMessage, "get-bot-and-last-message")
	e.NewChat = fn(e.NewChat, "new-chat")
	e.AIChat = fn(e.AIChat, "ai-chat")
	e.Paginator = fn(e.Paginator, "paginator")
	e.DeleteMessages = fn(e.DeleteMessages, "delete-messages")
	e.RegenerateLast = fn(e.RegenerateLast, "regenerate-last")
	e.SignedUploadURL = fn(e.SignedUploadURL, "get-signed-upload-url")
	e.EntityDeletionDetails = fn(e.EntityDeletionDetails, "get-entity-deletion-details")
	e.PasswordReset = fn(e.PasswordReset, "password-reset-self")
	return e
}

func defaultLogFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "nexus.log"
	}
	return dir + string(os.PathSeparator) + "nexus" + string(os.PathSeparator) + "nexus.log"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
