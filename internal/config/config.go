package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	Env                string
	DatabaseURL        string
	GoogleClientID     string
	GoogleClientSecret string
	VaultMasterKey     string
	JWTSecret          string
	WebhookURL         string
	SyncWindowDays     int
	LoopGuardWindow    int // seconds
	MaxRetries         int
	RetryBackoff       int // seconds, initial; doubles per attempt
	IncrementalSpec    string
	ChannelRenewalSpec string
	ShutdownTimeout    int // seconds
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	vaultMasterKey := os.Getenv("VAULT_MASTER_KEY")
	if vaultMasterKey == "" {
		return nil, fmt.Errorf("VAULT_MASTER_KEY is required")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	googleClientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if googleClientID == "" || googleClientSecret == "" {
		fmt.Println("Warning: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set, calendar API will not work")
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		fmt.Println("Warning: WEBHOOK_URL not set, push channels cannot be registered")
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		DatabaseURL:        dbURL,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: googleClientSecret,
		VaultMasterKey:     vaultMasterKey,
		JWTSecret:          jwtSecret,
		WebhookURL:         webhookURL,
		SyncWindowDays:     getEnvInt("SYNC_WINDOW_DAYS", 30),
		LoopGuardWindow:    getEnvInt("LOOP_GUARD_WINDOW_SECONDS", 5),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
		RetryBackoff:       getEnvInt("RETRY_BACKOFF_SECONDS", 1),
		IncrementalSpec:    getEnv("INCREMENTAL_SYNC_SCHEDULE", "*/5 * * * *"),
		ChannelRenewalSpec: getEnv("CHANNEL_RENEWAL_SCHEDULE", "0 * * * *"),
		ShutdownTimeout:    getEnvInt("SHUTDOWN_TIMEOUT", 30),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Printf("Warning: invalid %s value %q, using default %d\n", key, v, fallback)
		return fallback
	}
	return n
}
