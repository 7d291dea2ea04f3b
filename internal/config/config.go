package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	LogLevel         string
	AuthCookieSecure bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration

	WorkOS    WorkOSConfig
	Inference InferenceConfig
}

// WorkOSConfig configures the identity provider integration.
type WorkOSConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	JWKSURL      string
	JWKSCacheTTL time.Duration
	FetchTimeout time.Duration
}

// InferenceConfig configures the crop inference microservice client.
type InferenceConfig struct {
	BaseURL     string
	AnalyzePath string
	Timeout     time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:          getenv("APP_SERVICE", "agrigate"),
		AppVersion:       getenv("APP_VERSION", "0.1.0"),
		Environment:      environment,
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		AuthCookieSecure: authCookieSecure,

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "agrigate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvDuration("DATABASE_CONN_MAX_LIFETIME", time.Hour),

		WorkOS: WorkOSConfig{
			ClientID:     strings.TrimSpace(getenv("WORKOS_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("WORKOS_CLIENT_SECRET", "")),
			RedirectURI:  strings.TrimSpace(getenv("WORKOS_REDIRECT_URI", "")),
			BaseURL:      strings.TrimRight(getenv("WORKOS_BASE_URL", "https://api.workos.com"), "/"),
			JWKSURL:      getenv("WORKOS_JWKS_URL", "https://api.workos.com/.well-known/jwks.json"),
			JWKSCacheTTL: getenvDuration("WORKOS_JWKS_CACHE_TTL", 15*time.Minute),
			FetchTimeout: getenvDuration("WORKOS_FETCH_TIMEOUT", 5*time.Second),
		},
		Inference: InferenceConfig{
			BaseURL:     strings.TrimRight(getenv("AI_SERVICE_URL", "http://localhost:1337"), "/"),
			AnalyzePath: getenv("AI_SERVICE_ANALYZE_PATH", "/analyze-csv"),
			Timeout:     getenvDuration("AI_SERVICE_TIMEOUT", 30*time.Second),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
