// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/events"
)

type GatewayConfig struct {
	HTTPPort           string
	KafkaBrokers       string
	CheckoutTopic      string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string
	Backends           BackendURLs
}

// BackendURLs are the services the gateway proxies to. Empty means the
// matching routes answer 503.
type BackendURLs struct {
	CartCRUD       string
	ProductRead    string
	ProductWrite   string
	OrderRead      string
	Wallet         string
	TaxCalculation string
	InventoryRead  string
	InventoryWrite string
	CartSnapshot   string
	Auth           string
	IntentParser   string
}

type CartServiceConfig struct {
	HTTPPort        string
	StoreDriver     string
	Postgres        PostgresConfig
	SQLitePath      string
	MongoURI        string
	MongoDBName     string
	IdleCartTTL     time.Duration
	RedisAddr       string
	RedisPassword   string
	EnableKafka     bool
	KafkaBrokers    string
	KafkaGroupID    string
	CheckoutTopic   string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return "host=" + p.Host +
		" port=" + p.Port +
		" user=" + p.User +
		" password=" + p.Password +
		" dbname=" + p.DBName +
		" sslmode=" + p.SSLMode
}

func LoadGateway() *GatewayConfig {
	return &GatewayConfig{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", "localhost:29092"),
		CheckoutTopic:      getEnv("CHECKOUT_EVENTS_TOPIC", events.DefaultTopic),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Backends: BackendURLs{
			CartCRUD:       trimURL(os.Getenv("CART_CRUD_SERVICE_URL")),
			ProductRead:    trimURL(os.Getenv("PRODUCT_READ_SERVICE_URL")),
			ProductWrite:   trimURL(os.Getenv("PRODUCT_WRITE_SERVICE_URL")),
			OrderRead:      trimURL(os.Getenv("ORDER_READ_SERVICE_URL")),
			Wallet:         trimURL(os.Getenv("WALLET_SERVICE_URL")),
			TaxCalculation: trimURL(os.Getenv("TAX_CALCULATION_SERVICE_URL")),
			InventoryRead:  trimURL(os.Getenv("INVENTORY_READ_SERVICE_URL")),
			InventoryWrite: trimURL(os.Getenv("INVENTORY_WRITE_SERVICE_URL")),
			CartSnapshot:   trimURL(os.Getenv("CART_SNAPSHOT_SERVICE_URL")),
			Auth:           trimURL(os.Getenv("AUTH_SERVICE_URL")),
			IntentParser:   trimURL(os.Getenv("INTENT_PARSER_SERVICE_URL")),
		},
	}
}

func LoadCartService() *CartServiceConfig {
	return &CartServiceConfig{
		HTTPPort:    getEnv("HTTP_PORT", "3000"),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		Postgres: PostgresConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "cartdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		SQLitePath:      getEnv("SQLITE_PATH", "./data/cart.db"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "cartdb"),
		IdleCartTTL:     getDuration("CART_IDLE_TTL", 90*24*time.Hour),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		EnableKafka:     getBool("ENABLE_KAFKA", false),
		KafkaBrokers:    getEnv("KAFKA_BROKERS", "localhost:29092"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "cart-crud-group"),
		CheckoutTopic:   getEnv("CHECKOUT_EVENTS_TOPIC", events.DefaultTopic),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func trimURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}
