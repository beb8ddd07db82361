package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	ServiceName      string
	OTELEndpoint     string
	TelemetryEnabled bool
	MetricsExporter  string
	Port             string
	GinMode          string
	Debug            bool

	// Vendor tokenization API
	MercadoPagoURL  string
	TokenizeTimeout time.Duration

	// Values used for the sample payment payload attached to every token
	SampleTransactionAmount float64
	SamplePayerEmail        string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		ServiceName:             getEnv("SERVICE_NAME", "tokenizer-service"),
		OTELEndpoint:            getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:        getEnvAsBool("TELEMETRY_ENABLED", true),
		MetricsExporter:         getEnv("METRICS_EXPORTER", "otlp"),
		Port:                    getEnv("PORT", "8081"),
		GinMode:                 getEnv("GIN_MODE", "release"),
		Debug:                   getEnvAsBool("DEBUG", false),
		MercadoPagoURL:          getEnv("MERCADOPAGO_API_URL", "https://api.mercadopago.com"),
		TokenizeTimeout:         getEnvAsDuration("TOKENIZE_TIMEOUT", 30*time.Second),
		SampleTransactionAmount: getEnvAsFloat("SAMPLE_TRANSACTION_AMOUNT", 100.00),
		SamplePayerEmail:        getEnv("SAMPLE_PAYER_EMAIL", "test@test.com"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
