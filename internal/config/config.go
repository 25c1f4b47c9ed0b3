// Package config loads runtime settings from .env and the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/markjakearzadon/paygate-gobackend/internal/apperr"
	"github.com/markjakearzadon/paygate-gobackend/internal/gateway"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	StoreDriver string

	Gateway        string
	GatewayTimeout time.Duration
	DueMinutes     int
	PublicBaseURL  string

	DokuBaseURL         string
	DokuClientID        string
	DokuSecretKey       string
	DokuSignatureDigest bool
	DokuVABank          string

	XenditBaseURL      string
	XenditSecretKey    string
	XenditWebhookToken string

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsappFrom string
	TwilioTemplateSID  string

	RabbitURL      string
	RabbitExchange string

	JWTSecret   string
	CORSOrigins []string

	CheckoutRateRPS   float64
	CheckoutRateBurst int
	ReplayCacheSize   int

	LogLevel  string
	LogPretty bool
}

// Load reads .env when present, then the environment. A missing .env is not an error.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn().Err(err).Msg("no .env loaded, using process environment")
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGOURI", ""),
		MongoDB:     getEnv("MONGO_DB", "paygate"),
		StoreDriver: getEnv("STORE_DRIVER", StoreMongo),

		Gateway:        getEnv("PAYMENT_GATEWAY", gateway.NameDokuCheckout),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 15*time.Second),
		DueMinutes:     getInt("PAYMENT_DUE_MINUTES", 60),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		DokuBaseURL:         getEnv("DOKU_BASE_URL", "https://api-sandbox.doku.com"),
		DokuClientID:        getEnv("DOKU_CLIENT_ID", ""),
		DokuSecretKey:       getEnv("DOKU_SECRET_KEY", ""),
		DokuSignatureDigest: getBool("DOKU_SIGNATURE_DIGEST", true),
		DokuVABank:          getEnv("DOKU_VA_BANK", ""),

		XenditBaseURL:      getEnv("XENDIT_BASE_URL", gateway.DefaultXenditBaseURL),
		XenditSecretKey:    getEnv("XENDIT_SECRET_KEY", ""),
		XenditWebhookToken: getEnv("XENDIT_WEBHOOK_TOKEN", ""),

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsappFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		TwilioTemplateSID:  getEnv("TWILIO_TEMPLATE_SID", ""),

		RabbitURL:      getEnv("RABBITMQ_URL", ""),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "payments"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		CheckoutRateRPS:   getFloat("CHECKOUT_RATE_RPS", 5),
		CheckoutRateBurst: getInt("CHECKOUT_RATE_BURST", 10),
		ReplayCacheSize:   getInt("WEBHOOK_REPLAY_CACHE", 1024),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false),
	}
}

// Validate reports settings the selected gateway and store cannot run without.
func (c Config) Validate() error {
	var missing []string
	switch c.Gateway {
	case gateway.NameDokuCheckout, gateway.NameDokuVirtualAccount:
		if c.DokuClientID == "" {
			missing = append(missing, "DOKU_CLIENT_ID")
		}
		if c.DokuSecretKey == "" {
			missing = append(missing, "DOKU_SECRET_KEY")
		}
	case gateway.NameXenditInvoice:
		if c.XenditSecretKey == "" {
			missing = append(missing, "XENDIT_SECRET_KEY")
		}
		if c.XenditWebhookToken == "" {
			missing = append(missing, "XENDIT_WEBHOOK_TOKEN")
		}
	default:
		return apperr.New(apperr.KindValidation, "PAYMENT_GATEWAY %q is not one of %s, %s, %s",
			c.Gateway, gateway.NameDokuCheckout, gateway.NameDokuVirtualAccount, gateway.NameXenditInvoice)
	}

	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGOURI")
		}
	case StoreMemory:
	default:
		return apperr.New(apperr.KindValidation, "STORE_DRIVER %q is not one of %s, %s", c.StoreDriver, StoreMongo, StoreMemory)
	}

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindValidation, "missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TwilioEnabled is true when all WhatsApp settings are present.
func (c Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsappFrom != "" && c.TwilioTemplateSID != ""
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(getEnv(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getFloat(k string, def float64) float64 {
	v, err := strconv.ParseFloat(getEnv(k, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func getBool(k string, def bool) bool {
	v, err := strconv.ParseBool(getEnv(k, ""))
	if err != nil {
		return def
	}
	return v
}

// getDuration accepts Go durations ("15s") or a bare number of seconds.
func getDuration(k string, def time.Duration) time.Duration {
	raw := getEnv(k, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Warn().Str("key", k).Str("value", raw).Msg("invalid duration, using default")
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
