package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	PORT        string
	APP_ENV     string
	LOG_LEVEL   string
	CORS_ORIGIN string
	DB_URL      string
	REDIS_URL   string

	IDENTITY_URL            string
	IDENTITY_ADMIN_TOKEN    string
	IDENTITY_JWT_SECRET     string
	IDENTITY_WEBHOOK_SECRET string

	STRIPE_SECRET_KEY     string
	STRIPE_WEBHOOK_SECRET string
	ACTIVATION_BASE_URL   string
	PLANS_FILE            string

	SIGNUP_DEFAULT_ROLE    string
	ENFORCE_LOGIN_BLOCK    bool
	SESSION_CHECK_INTERVAL time.Duration

	BILLING_RATE_PER_SECOND float64
	BILLING_RATE_BURST      int
)

var (
	ErrIdentityURLMissing   = errors.New("missing IDENTITY_URL (or NETLIFY_IDENTITY_URL/GOTRUE_ENDPOINT) environment variable")
	ErrAdminTokenMissing    = errors.New("missing identity admin token: set one of IDENTITY_ADMIN_TOKEN, NETLIFY_IDENTITY_ADMIN_TOKEN, GOTRUE_ADMIN_API_TOKEN, GOTRUE_ADMIN_KEY")
	ErrActivationURLMissing = errors.New("missing ACTIVATION_BASE_URL (or SITE_URL/URL) for post-payment redirects")
)

var adminTokenKeys = []string{
	"IDENTITY_ADMIN_TOKEN",
	"NETLIFY_IDENTITY_ADMIN_TOKEN",
	"GOTRUE_ADMIN_API_TOKEN",
	"GOTRUE_ADMIN_KEY",
}

// LoadEnv fills the package values. Nothing here is fatal: request-time
// settings are checked by the request that needs them.
func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	APP_ENV = getEnv("APP_ENV", "dev")
	LOG_LEVEL = getEnv("LOG_LEVEL", "info")
	CORS_ORIGIN = getEnv("CORS_ORIGIN", "*")
	DB_URL = getEnv("DB_URL", "")
	REDIS_URL = getEnv("REDIS_URL", "")

	IDENTITY_URL = strings.TrimRight(firstEnv("IDENTITY_URL", "NETLIFY_IDENTITY_URL", "GOTRUE_ENDPOINT"), "/")
	IDENTITY_ADMIN_TOKEN = firstEnv(adminTokenKeys...)
	IDENTITY_JWT_SECRET = getEnv("IDENTITY_JWT_SECRET", "")
	IDENTITY_WEBHOOK_SECRET = getEnv("IDENTITY_WEBHOOK_SECRET", "")

	STRIPE_SECRET_KEY = getEnv("STRIPE_SECRET_KEY", "")
	STRIPE_WEBHOOK_SECRET = getEnv("STRIPE_WEBHOOK_SECRET", "")
	ACTIVATION_BASE_URL = strings.TrimRight(firstEnv("ACTIVATION_BASE_URL", "SITE_URL", "URL"), "/")
	PLANS_FILE = getEnv("PLANS_FILE", "")

	SIGNUP_DEFAULT_ROLE = getEnv("SIGNUP_DEFAULT_ROLE", "member")
	ENFORCE_LOGIN_BLOCK = getBool("ENFORCE_LOGIN_BLOCK", false)
	SESSION_CHECK_INTERVAL = getDuration("SESSION_CHECK_INTERVAL", 30*time.Second)

	BILLING_RATE_PER_SECOND = getFloat("BILLING_RATE_PER_SECOND", 2)
	BILLING_RATE_BURST = getInt("BILLING_RATE_BURST", 5)
}

// IdentityAdmin returns the admin API endpoint and token.
func IdentityAdmin() (string, string, error) {
	if IDENTITY_URL == "" {
		return "", "", ErrIdentityURLMissing
	}
	if IDENTITY_ADMIN_TOKEN == "" {
		return "", "", ErrAdminTokenMissing
	}
	return IDENTITY_URL, IDENTITY_ADMIN_TOKEN, nil
}

func ActivationBaseURL() (string, error) {
	if ACTIVATION_BASE_URL == "" {
		return "", ErrActivationURLMissing
	}
	return ACTIVATION_BASE_URL, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
