package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Marketplace
	MarketplaceBaseURL    string
	MarketplaceAPIBaseURL string

	// Caller identity used on every booking form
	CallerName  string
	CallerEmail string
	CallerPhone string

	// Browser
	BrowserHeadless      bool
	BrowserExecPath      string
	BrowserUserAgent     string
	NavigationTimeout    time.Duration
	APITimeout           time.Duration
	NavigationsPerSecond float64
	SearchMaxResults     int
	DryRun               bool

	// HTTP API
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Run lock
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	RunLockTTL    time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ScreenshotBucket    string

	// Run summary e-mail
	NotifyProvider string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MarketplaceBaseURL:    strings.TrimRight(getEnv("MARKETPLACE_BASE_URL", ""), "/"),
		MarketplaceAPIBaseURL: strings.TrimRight(getEnv("MARKETPLACE_API_BASE_URL", ""), "/"),

		CallerName:  strings.TrimSpace(getEnv("CALLER_NAME", "")),
		CallerEmail: strings.TrimSpace(getEnv("CALLER_EMAIL", "")),
		CallerPhone: strings.TrimSpace(getEnv("CALLER_PHONE", "")),

		BrowserHeadless:      getEnvAsBool("BROWSER_HEADLESS", true),
		BrowserExecPath:      getEnv("BROWSER_EXEC_PATH", ""),
		BrowserUserAgent:     getEnv("BROWSER_USER_AGENT", ""),
		NavigationTimeout:    getEnvAsDuration("NAVIGATION_TIMEOUT", 30*time.Second),
		APITimeout:           getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		NavigationsPerSecond: getEnvAsFloat("NAVIGATIONS_PER_SECOND", 0.5),
		SearchMaxResults:     getEnvAsInt("SEARCH_MAX_RESULTS", 25),
		DryRun:               getEnvAsBool("DRY_RUN", false),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 3),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		RunLockTTL:    getEnvAsDuration("RUN_LOCK_TTL", 30*time.Minute),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ScreenshotBucket:    getEnv("SCREENSHOT_BUCKET", ""),

		NotifyProvider: strings.ToLower(strings.TrimSpace(getEnv("NOTIFY_PROVIDER", "auto"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Expert Call Booker"),
	}
}

// HasCallerIdentity reports whether the caller name and e-mail are set.
func (c *Config) HasCallerIdentity() bool {
	return c.CallerName != "" && c.CallerEmail != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
