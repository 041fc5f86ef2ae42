package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	FileStore FileStoreConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Gateway   GatewayConfig
	Notify    NotifyConfig
	Seed      SeedConfig
	Worker    WorkerConfig
	Observ    ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
	// PublicBaseURL is this deployment's externally reachable address,
	// used to build checkout redirect and webhook URLs.
	PublicBaseURL string
}

type DatabaseConfig struct {
	// URL selects the relational backend when set; empty means the
	// file-backed store is used.
	URL string
}

type FileStoreConfig struct {
	Dir             string
	SnapshotEnabled bool
	SnapshotRemote  string
	SnapshotBranch  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	// Brokers empty disables event publishing.
	Brokers     []string
	TopicOrders string
}

type GatewayConfig struct {
	BaseURL          string
	PhoneCountryCode string
	PhoneLocalLen    int
}

type NotifyConfig struct {
	// Endpoint of the messaging API used for order notifications; empty
	// disables delivery.
	Endpoint string
}

// SeedConfig provides initial site settings for a fresh deployment. Ignored
// once a settings record exists; afterwards the admin settings API is the
// source of truth.
type SeedConfig struct {
	WhatsAppNumber     string
	ContactEmail       string
	GatewayAccessToken string
	GatewayPublicKey   string
}

type WorkerConfig struct {
	QueueSize int
	Workers   int
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	phoneLocalLen, _ := strconv.Atoi(getEnv("GATEWAY_PHONE_LOCAL_LEN", "11"))
	queueSize, _ := strconv.Atoi(getEnv("WORKER_QUEUE_SIZE", "256"))
	workers, _ := strconv.Atoi(getEnv("WORKER_COUNT", "2"))

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:          getEnv("PORT", "8080"),
			Env:           getEnv("ENV", "development"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		FileStore: FileStoreConfig{
			Dir:             getEnv("DATA_DIR", "./data"),
			SnapshotEnabled: getEnv("SNAPSHOT_ENABLED", "false") == "true",
			SnapshotRemote:  os.Getenv("SNAPSHOT_REMOTE"),
			SnapshotBranch:  getEnv("SNAPSHOT_BRANCH", "main"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:     brokers,
			TopicOrders: getEnv("KAFKA_TOPIC_ORDER_EVENTS", "order-events"),
		},
		Gateway: GatewayConfig{
			BaseURL:          getEnv("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
			PhoneCountryCode: getEnv("GATEWAY_PHONE_COUNTRY_CODE", "55"),
			PhoneLocalLen:    phoneLocalLen,
		},
		Notify: NotifyConfig{
			Endpoint: os.Getenv("NOTIFY_ENDPOINT"),
		},
		Seed: SeedConfig{
			WhatsAppNumber:     os.Getenv("SEED_WHATSAPP_NUMBER"),
			ContactEmail:       os.Getenv("SEED_CONTACT_EMAIL"),
			GatewayAccessToken: os.Getenv("SEED_GATEWAY_ACCESS_TOKEN"),
			GatewayPublicKey:   os.Getenv("SEED_GATEWAY_PUBLIC_KEY"),
		},
		Worker: WorkerConfig{
			QueueSize: queueSize,
			Workers:   workers,
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s", cfg.Server.Env, cfg.Server.Port)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
