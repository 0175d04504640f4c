package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// ExecuteAPIKey authenticates the schedule-execution trigger endpoint
	// (X-API-Key header). Host cron passes it; requests from loopback are
	// allowed without it so a local crontab entry stays simple.
	ExecuteAPIKey string

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// SimpleMDMAPIKey is the SimpleMDM account API key, sent as the Basic-Auth
	// username with an empty password. Required for anything that talks to the MDM.
	SimpleMDMAPIKey string
	// SimpleMDMBaseURL overrides the SimpleMDM API base (default https://a.simplemdm.com/api/v1).
	SimpleMDMBaseURL string
	// SimpleMDMTimeoutSeconds is the HTTP client timeout for MDM calls (default 30).
	SimpleMDMTimeoutSeconds int

	// ExecutionWindowMinutes is the due-set lookback window (default 15).
	// Schedules whose start time scrolled past the window are considered
	// missed and need manual intervention, not silent catch-up.
	ExecutionWindowMinutes int

	// AllowedQuickProfiles is the allow-list of profile ids permitted for
	// quick (temporary) assignments. Set via ALLOWED_QUICK_PROFILES
	// (comma-separated ids). Empty means quick assignments are disabled.
	AllowedQuickProfiles []int

	// PollEnabled starts the in-process poll loop that fires the executor
	// every PollIntervalMinutes. Leave false when an external cron hits the
	// trigger endpoint instead; running both risks overlapping invocations.
	PollEnabled         bool
	PollIntervalMinutes int

	// NotifyWebhookURL receives a best-effort POST per install/remove event.
	NotifyWebhookURL string
	// HeartbeatURL receives one best-effort telemetry ping per executor run.
	HeartbeatURL string

	// RedisAddr enables the device-list cache when set (host:port).
	RedisAddr string
	// DeviceCacheTTLSeconds is the device-list cache lifetime (default 60).
	DeviceCacheTTLSeconds int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string
}

func Load() Config {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	return Config{
		Port:          getEnv("PORT", "8080"),
		ExecuteAPIKey: getEnv("EXECUTE_API_KEY", ""),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "profiledb"),
		DBUser: getEnv("DB_USER", "profileuser"),
		DBPass: getEnv("DB_PASS", "profilepass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		Env:            getEnv("ENV", "dev"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		SimpleMDMAPIKey:         getEnv("SIMPLEMDM_API_KEY", ""),
		SimpleMDMBaseURL:        getEnv("SIMPLEMDM_BASE_URL", "https://a.simplemdm.com/api/v1"),
		SimpleMDMTimeoutSeconds: getEnvInt("SIMPLEMDM_TIMEOUT_SECONDS", 30),

		ExecutionWindowMinutes: getEnvInt("EXECUTION_WINDOW_MINUTES", 15),
		AllowedQuickProfiles:   parseIntList(getEnv("ALLOWED_QUICK_PROFILES", "")),

		PollEnabled:         getEnv("POLL_ENABLED", "") == "true",
		PollIntervalMinutes: getEnvInt("POLL_INTERVAL_MINUTES", 5),

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		HeartbeatURL:     getEnv("HEARTBEAT_URL", ""),

		RedisAddr:             getEnv("REDIS_ADDR", ""),
		DeviceCacheTTLSeconds: getEnvInt("DEVICE_CACHE_TTL_SECONDS", 60),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),

		CORSAllowedOrigins: parseList(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// parseList splits a comma-separated list and trims spaces. Empty strings are omitted.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// parseIntList parses a comma-separated list of positive integers. Invalid entries are skipped.
func parseIntList(s string) []int {
	var out []int
	for _, p := range parseList(s) {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
