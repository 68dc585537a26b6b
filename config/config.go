package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	Environment      string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string
	RedisURL         string

	GatewayProvider     string // "midtrans" or "stripe"
	MidtransBaseURL     string
	MidtransServerKey   string
	StripeSecretKey     string
	PaymentRedirectBase string // frontend URL the gateway redirects back to

	KafkaBrokers      string
	PaymentEventTopic string

	ProofBucket string // S3 bucket for proof artifacts; empty stores proofs inline
	JWTSecret   string

	PollInterval    time.Duration // online status-check cadence
	CountdownBudget time.Duration // redirect flow expiry budget
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8089"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Jakarta"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),

		GatewayProvider:     getEnv("GATEWAY_PROVIDER", "midtrans"),
		MidtransBaseURL:     getEnv("MIDTRANS_BASE_URL", "https://api.sandbox.midtrans.com"),
		MidtransServerKey:   os.Getenv("MIDTRANS_SERVER_KEY"),
		StripeSecretKey:     os.Getenv("STRIPE_API_KEY"),
		PaymentRedirectBase: getEnv("PAYMENT_REDIRECT_BASE", "http://localhost:3000/tenant/payments"),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		PaymentEventTopic: getEnv("PAYMENT_EVENT_TOPIC", "payment-events"),

		ProofBucket: os.Getenv("PROOF_BUCKET"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		PollInterval:    getEnvSeconds("POLL_INTERVAL_SECONDS", 5),
		CountdownBudget: getEnvSeconds("COUNTDOWN_BUDGET_SECONDS", 300),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}
	if cfg.GatewayProvider == "midtrans" && cfg.MidtransServerKey == "" {
		return nil, fmt.Errorf("MIDTRANS_SERVER_KEY not set")
	}
	if cfg.GatewayProvider == "stripe" && cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_API_KEY not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET not set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(fallback) * time.Second
}
