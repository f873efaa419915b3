package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	Sankhya  SankhyaConfig
	WhatsApp WhatsAppConfig
	Ledger   LedgerConfig
	Runner   RunnerConfig
}

// SankhyaConfig carries the ERP gateway credentials (OAuth 2.0 client
// credentials plus the account-scoped X-Token).
type SankhyaConfig struct {
	BaseURL      string
	XToken       string
	ClientID     string
	ClientSecret string
}

type WhatsAppConfig struct {
	Provider string
	APIURL   string
	APIKey   string
	Instance string
}

const (
	LedgerDriverFile   = "file"
	LedgerDriverSQLite = "sqlite"
)

const (
	WhatsAppProviderEvolution = "evolution"
	WhatsAppProviderNoop      = "noop"
)

type LedgerConfig struct {
	Driver        string
	Path          string
	RetentionDays int
}

type RunnerConfig struct {
	RunInterval       time.Duration
	LookbackDays      int
	LookaheadDays     int
	InterMessageDelay time.Duration
	InterInvoiceDelay time.Duration
	MaxSendAttempts   int
	DryRun            bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "cobranca"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Sankhya: SankhyaConfig{
			BaseURL:      getenv("SANKHYA_BASE_URL", "https://api.sankhya.com.br"),
			XToken:       strings.TrimSpace(getenv("SANKHYA_X_TOKEN", "")),
			ClientID:     strings.TrimSpace(getenv("SANKHYA_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("SANKHYA_CLIENT_SECRET", "")),
		},
		WhatsApp: WhatsAppConfig{
			Provider: normalizeProvider(getenv("WHATSAPP_PROVIDER", "evolution")),
			APIURL:   strings.TrimRight(getenv("WHATSAPP_API_URL", ""), "/"),
			APIKey:   strings.TrimSpace(getenv("WHATSAPP_API_KEY", "")),
			Instance: getenv("WHATSAPP_INSTANCE", ""),
		},
		Ledger: LedgerConfig{
			Driver:        normalizeLedgerDriver(getenv("LEDGER_DRIVER", LedgerDriverFile)),
			Path:          getenv("LEDGER_PATH", "envios-realizados.json"),
			RetentionDays: getenvInt("LEDGER_RETENTION_DAYS", 60),
		},
		Runner: RunnerConfig{
			RunInterval:       getenvDuration("RUN_INTERVAL", 0),
			LookbackDays:      getenvInt("RUN_LOOKBACK_DAYS", 10),
			LookaheadDays:     getenvInt("RUN_LOOKAHEAD_DAYS", 7),
			InterMessageDelay: getenvDuration("INTER_MESSAGE_DELAY", 2*time.Second),
			InterInvoiceDelay: getenvDuration("INTER_INVOICE_DELAY", 3*time.Second),
			MaxSendAttempts:   getenvInt("MAX_SEND_ATTEMPTS", 3),
			DryRun:            getenvBool("DRY_RUN", false),
		},
	}

	return cfg
}

func normalizeProvider(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case WhatsAppProviderEvolution, WhatsAppProviderNoop:
		return value
	default:
		return WhatsAppProviderEvolution
	}
}

func normalizeLedgerDriver(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case LedgerDriverSQLite:
		return LedgerDriverSQLite
	default:
		return LedgerDriverFile
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

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCadenceHolder),
)
