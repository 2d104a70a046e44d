package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type settings struct {
	Addr string

	DBDriver string
	DBDSN    string
	DBDebug  bool
	AppKey   string

	HighLevelBaseURL string
	AMQPURL          string
	AMQPExchange     string
	SentryDSN        string
	SentryEnv        string
	SessionCacheTTL  time.Duration
}

func loadSettings() settings {
	return settings{
		Addr:             envOr("PROVISIONING_ADDR", ":8080"),
		DBDriver:         strings.ToLower(envOr("PROVISIONING_DB_DRIVER", "")),
		DBDSN:            os.Getenv("PROVISIONING_DB_DSN"),
		DBDebug:          envBool("PROVISIONING_DB_DEBUG"),
		AppKey:           os.Getenv("PROVISIONING_APP_KEY"),
		HighLevelBaseURL: os.Getenv("HIGHLEVEL_BASE_URL"),
		AMQPURL:          os.Getenv("PROVISIONING_AMQP_URL"),
		AMQPExchange:     os.Getenv("PROVISIONING_AMQP_EXCHANGE"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryEnv:        envOr("SENTRY_ENVIRONMENT", "development"),
		SessionCacheTTL:  envDuration("PROVISIONING_SESSION_CACHE_TTL", time.Minute),
	}
}

// rawServiceConfig maps PROVISIONING_* variables onto the core.Config key
// layout consumed by the cfgx loader. Unset variables are left out so the
// defaults layer applies.
func rawServiceConfig() map[string]any {
	raw := map[string]any{}
	webhook := map[string]any{}
	setString(webhook, "client_id", "HIGHLEVEL_CLIENT_ID")
	setString(webhook, "public_key", "HIGHLEVEL_WEBHOOK_PUBLIC_KEY")
	setString(webhook, "app_id_separator", "PROVISIONING_APP_ID_SEPARATOR")
	setString(webhook, "signature_header", "PROVISIONING_SIGNATURE_HEADER")
	setString(webhook, "location_precedence", "PROVISIONING_LOCATION_PRECEDENCE")
	if len(webhook) > 0 {
		raw["webhook"] = webhook
	}
	if value, ok := os.LookupEnv("PROVISIONING_BULK_CONCURRENCY"); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			raw["bulk"] = map[string]any{"concurrency": parsed}
		}
	}
	if _, ok := os.LookupEnv("PROVISIONING_SERIALIZE_TENANTS"); ok {
		raw["serialize_tenants"] = envBool("PROVISIONING_SERIALIZE_TENANTS")
	}
	setString(raw, "service_name", "PROVISIONING_SERVICE_NAME")
	return raw
}

func setString(target map[string]any, key string, env string) {
	if value := strings.TrimSpace(os.Getenv(env)); value != "" {
		// PEM keys are commonly passed with escaped newlines
		target[key] = strings.ReplaceAll(value, `\n`, "\n")
	}
}

func envOr(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
