package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Store backends selectable through STORE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string

	StoreBackend             string
	PostgresDSN              string
	FirestoreProjectID       string
	FirestoreCredentialsFile string

	JWTSecret   string
	CORSOrigins []string

	KafkaBrokers    []string
	WorkerInterval  time.Duration
	OutboxBatchSize int

	EnableTallyConsumer bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "voting-ledger"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	backend := strings.TrimSpace(strings.ToLower(os.Getenv("STORE_BACKEND")))
	if backend == "" {
		backend = BackendMemory
	}

	brokers := envList("KAFKA_BROKERS")
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,

		StoreBackend:             backend,
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		FirestoreProjectID:       os.Getenv("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: os.Getenv("FIRESTORE_CREDENTIALS_FILE"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: envList("CORS_ORIGINS"),

		KafkaBrokers:    brokers,
		WorkerInterval:  envDuration("WORKER_INTERVAL", 5*time.Second),
		OutboxBatchSize: envInt("OUTBOX_BATCH_SIZE", 100),

		EnableTallyConsumer: envBool("ENABLE_TALLY_CONSUMER", true),
	}, nil
}

func envList(name string) []string {
	var items []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
