package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultHorizonURL = "https://horizon-testnet.stellar.org"

// testnetPassphrase is the Stellar test network passphrase used when none is configured.
const testnetPassphrase = "Test SDF Network ; September 2015"

// Config holds application configuration (env + Viper).
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	JWTSecret    string
	JWTExpiresIn time.Duration

	LedgerGatewayURL  string // Soroban RPC relay that signs and submits contract invocations
	HorizonURL        string
	ContractID        string
	NetworkPassphrase string
	LedgerTimeout     time.Duration

	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string

	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	ReconcileSchedule   string // six-field cron spec (seconds first)
	ReconcileStaleAfter time.Duration
	IdempotencyTTL      time.Duration
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "4000"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}

	return &Config{
		Env:                 env,
		Port:                port,
		LogLevel:            withDefault(viper.GetString("LOG_LEVEL"), "info"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		JWTSecret:           viper.GetString("JWT_SECRET"),
		JWTExpiresIn:        durationOr(viper.GetString("JWT_EXPIRES_IN"), 7*24*time.Hour),
		LedgerGatewayURL:    viper.GetString("LEDGER_GATEWAY_URL"),
		HorizonURL:          withDefault(viper.GetString("HORIZON_URL"), defaultHorizonURL),
		ContractID:          viper.GetString("CONTRACT_ID"),
		NetworkPassphrase:   withDefault(viper.GetString("STELLAR_NETWORK_PASSPHRASE"), testnetPassphrase),
		LedgerTimeout:       durationOr(viper.GetString("LEDGER_TIMEOUT"), 30*time.Second),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		SendGridAPIKey:      viper.GetString("SENDGRID_API_KEY"),
		MailFrom:            withDefault(viper.GetString("MAIL_FROM"), "noreply@capitalraiz.org"),
		MailFromName:        withDefault(viper.GetString("MAIL_FROM_NAME"), "Capital Raiz"),
		ReconcileSchedule:   withDefault(viper.GetString("RECONCILE_SCHEDULE"), "0 */15 * * * *"),
		ReconcileStaleAfter: durationOr(viper.GetString("RECONCILE_STALE_AFTER"), 10*time.Minute),
		IdempotencyTTL:      durationOr(viper.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func withDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// durationOr parses Go durations ("30s", "168h") and the "7d" day shorthand used by the old JWT_EXPIRES_IN.
func durationOr(s string, def time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if strings.HasSuffix(s, "d") {
		if d, err := time.ParseDuration(strings.TrimSuffix(s, "d") + "h"); err == nil {
			return d * 24
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
