package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	StoreBackend   string // "dynamo" | "memory"
	RequestTimeout time.Duration

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenTTL   time.Duration

	RecoverySecret      string
	RecoveryMaxAge      time.Duration
	RecoveryExposeToken bool
	RecoveryURLBase     string
	RecoveryTopicARN    string
	SNSRegion           string

	TOTPIssuer string

	WebAuthnRPID         string
	WebAuthnRPName       string
	WebAuthnOrigins      []string
	WebAuthnChallengeTTL time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users      string
	Sessions   string
	Challenges string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	env := getEnv("APP_ENV", "development")
	return &Config{
		AppPort:        getEnv("APP_PORT", "8000"),
		AppEnv:         env,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StoreBackend:   getEnv("STORE_BACKEND", "dynamo"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:      getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:   getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Challenges: getEnv("DYNAMO_TABLE_CHALLENGES", "auth_challenges"),
		},
		JWTPrivateKeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:     getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:            getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RecoverySecret:       getEnv("RECOVERY_SECRET", ""),
		RecoveryMaxAge:       getEnvDuration("RECOVERY_MAX_AGE", time.Hour),
		RecoveryExposeToken:  getEnvBool("RECOVERY_EXPOSE_TOKEN", env == "development"),
		RecoveryURLBase:      getEnv("RECOVERY_URL_BASE", "http://localhost:3000/account-recovery/confirm"),
		RecoveryTopicARN:     getEnv("RECOVERY_TOPIC_ARN", ""),
		SNSRegion:            getEnv("SNS_REGION", "us-east-1"),
		TOTPIssuer:           getEnv("TOTP_ISSUER", "Giterdone"),
		WebAuthnRPID:         getEnv("WEBAUTHN_RP_ID", "localhost"),
		WebAuthnRPName:       getEnv("WEBAUTHN_RP_NAME", "Giterdone"),
		WebAuthnOrigins:      splitList(getEnv("WEBAUTHN_ORIGINS", "http://localhost:3000")),
		WebAuthnChallengeTTL: getEnvDuration("WEBAUTHN_CHALLENGE_TTL", 5*time.Minute),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

// Validate rejects configurations that would run insecurely outside development.
func (c *Config) Validate() error {
	if c.StoreBackend != "dynamo" && c.StoreBackend != "memory" {
		return errors.New("STORE_BACKEND must be dynamo or memory")
	}
	if c.RecoverySecret == "" {
		if c.AppEnv != "development" {
			return errors.New("RECOVERY_SECRET is required")
		}
		c.RecoverySecret = "development-only-recovery-secret"
	}
	if len(c.WebAuthnOrigins) == 0 {
		return errors.New("WEBAUTHN_ORIGINS must list at least one origin")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15m") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
