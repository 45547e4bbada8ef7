package config

import (
	"log"
	"os"
	"strings"
	"time"
)

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Host          string
	Port          string
	Password      string
	BrandCacheTTL time.Duration
}

type Kafka struct {
	Broker string
	Topic  string
}

type Gateway struct {
	BaseURL  string
	Timeout  time.Duration
	Currency string
}

// Config holds service configuration. Everything comes from the environment.
type Config struct {
	Port            string
	GRPCPort        string
	ShutdownTimeout time.Duration
	// PublicBaseURL is where the gateway reaches the webhook endpoint.
	PublicBaseURL string
	// StorefrontURL is where buyers land after paying.
	StorefrontURL  string
	AuthJWTSecret  string
	JaegerEndpoint string

	Database Database
	Redis    Redis
	Kafka    Kafka
	Gateway  Gateway
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", "50051"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		PublicBaseURL:   strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StorefrontURL:   strings.TrimSuffix(getEnv("STOREFRONT_URL", "http://localhost:5173"), "/"),
		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", "your-secret-key-change-in-production"),
		JaegerEndpoint:  getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "storefrontdb"),
		},
		Redis: Redis{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnv("REDIS_PORT", "6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			BrandCacheTTL: getDuration("BRAND_CACHE_TTL", time.Minute),
		},
		Kafka: Kafka{
			Broker: getEnv("KAFKA_BROKER", "localhost:9092"),
			Topic:  getEnv("KAFKA_TOPIC", "storefront_events"),
		},
		Gateway: Gateway{
			BaseURL:  strings.TrimSuffix(getEnv("GATEWAY_BASE_URL", "https://api.mercadopago.com"), "/"),
			Timeout:  getDuration("GATEWAY_TIMEOUT", 10*time.Second),
			Currency: getEnv("GATEWAY_CURRENCY", "ARS"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		log.Printf("WARN: invalid %s=%q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
