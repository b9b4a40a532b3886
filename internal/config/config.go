package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var AppEnv Config

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	TransitionPolicyAdjacent = "adjacent"
	TransitionPolicyForward  = "forward"
)

type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	StoreDriver    string
	UseTransaction bool
	JWTSecret      string
	LogLevel       string
	RequestTimeout time.Duration

	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	TaxRate               decimal.Decimal
	DeliveryLeadTime      time.Duration
	StaffTransition       string

	KafkaBrokers   []string
	OrdersTopic    string
	MetricsEnabled bool
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() Config {
	return Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "cookiebarrel"),
		StoreDriver:    strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreMongo)),
		UseTransaction: getBoolEnv("MONGO_TRANSACTIONS", false),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT_SECONDS", 5, time.Second),

		FreeDeliveryThreshold: getDecimalEnv("FREE_DELIVERY_THRESHOLD", "50.00"),
		DeliveryFee:           getDecimalEnv("DELIVERY_FEE", "5.00"),
		TaxRate:               getDecimalEnv("TAX_RATE", "0.10"),
		DeliveryLeadTime:      getDurationEnv("DELIVERY_LEAD_TIME_MINUTES", 30, time.Minute),
		StaffTransition:       strings.ToLower(getEnvOrDefault("STAFF_TRANSITION_POLICY", TransitionPolicyAdjacent)),

		KafkaBrokers:   getListEnv("KAFKA_BROKERS"),
		OrdersTopic:    getEnvOrDefault("KAFKA_ORDERS_TOPIC", "orders.events"),
		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORE_DRIVER=mongo"))
		}
	case StoreMemory:
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be mongo or memory"))
	}
	switch c.StaffTransition {
	case TransitionPolicyAdjacent, TransitionPolicyForward:
	default:
		errs = append(errs, errors.New("STAFF_TRANSITION_POLICY must be adjacent or forward"))
	}
	if c.TaxRate.IsNegative() || c.DeliveryFee.IsNegative() || c.FreeDeliveryThreshold.IsNegative() {
		errs = append(errs, errors.New("pricing values must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDecimalEnv(key, defaultValue string) decimal.Decimal {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := decimal.NewFromString(value); err == nil {
			return parsed
		}
		log.Printf("config: %s=%q is not a decimal, using %s", key, value, defaultValue)
	}
	return decimal.RequireFromString(defaultValue)
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
