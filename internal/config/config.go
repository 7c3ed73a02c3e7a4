package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds infrastructure-level configuration for the wallet daemon.
type Config struct {
	// Database. Empty DSN selects the in-memory store (development only).
	PostgresDSN string

	// Remote signer backend: "", "aws-kms" or "vault".
	// Empty means all signing is done locally from the key ring.
	SignerBackend string
	AWSKMSKeyID   string
	AWSKMSRegion  string
	VaultAddress  string
	VaultToken    string
	VaultSignKey  string

	// Consent gating
	ApprovalTimeout time.Duration

	// Inactivity auto-lock
	LockTimeout      time.Duration
	LockPollInterval time.Duration

	// Trusted-UI token signing secret
	UITokenSecret string

	// External message rate limiting (per origin)
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	// Popup webhook URL used to surface consent prompts. Empty disables
	// the webhook; prompts are then only logged.
	PopupWebhookURL string

	// Server
	Port int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		SignerBackend:    getEnv("SIGNER_BACKEND", ""),
		AWSKMSKeyID:      getEnv("AWS_KMS_KEY_ID", ""),
		AWSKMSRegion:     getEnv("AWS_KMS_REGION", ""),
		VaultAddress:     getEnv("VAULT_ADDR", ""),
		VaultToken:       getEnv("VAULT_TOKEN", ""),
		VaultSignKey:     getEnv("VAULT_SIGN_KEY", ""),
		ApprovalTimeout:  getEnvDuration("APPROVAL_TIMEOUT", 3*time.Minute),
		LockTimeout:      getEnvDuration("LOCK_TIMEOUT", 10*time.Minute),
		LockPollInterval: getEnvDuration("LOCK_POLL_INTERVAL", 5*time.Second),
		UITokenSecret:    getEnv("UI_TOKEN_SECRET", ""),
		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getEnvInt("RATE_LIMIT_RPS", 10),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 20),
		PopupWebhookURL:  getEnv("POPUP_WEBHOOK_URL", ""),
		Port:             getEnvInt("PORT", 8547),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.SignerBackend {
	case "", "local":
	case "aws-kms":
		if c.AWSKMSKeyID == "" || c.AWSKMSRegion == "" {
			return fmt.Errorf("AWS_KMS_KEY_ID and AWS_KMS_REGION are required when SIGNER_BACKEND is 'aws-kms'")
		}
	case "vault":
		if c.VaultAddress == "" || c.VaultToken == "" || c.VaultSignKey == "" {
			return fmt.Errorf("VAULT_ADDR, VAULT_TOKEN and VAULT_SIGN_KEY are required when SIGNER_BACKEND is 'vault'")
		}
	default:
		return fmt.Errorf("SIGNER_BACKEND must be '', 'local', 'aws-kms' or 'vault', got: %s", c.SignerBackend)
	}

	if c.UITokenSecret == "" {
		return fmt.Errorf("UI_TOKEN_SECRET is required")
	}

	if c.ApprovalTimeout <= 0 {
		return fmt.Errorf("APPROVAL_TIMEOUT must be positive")
	}

	if c.LockTimeout <= 0 || c.LockPollInterval <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT and LOCK_POLL_INTERVAL must be positive")
	}

	if c.LockPollInterval > c.LockTimeout {
		return fmt.Errorf("LOCK_POLL_INTERVAL must not exceed LOCK_TIMEOUT")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
