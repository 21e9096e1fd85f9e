package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	StoreBackend           string
	DataDir                string
	MongoURI               string
	MongoDB                string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ProductCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	LogLevel               string
	LogFormat              string
	BillPrefix             string
	TotalTolerance         float64
	StoreTimezone          string
	EnvFileLoaded          bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first without overriding variables already set.
func Load() Config {
	envLoaded := godotenv.Load() == nil

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DataDir:                strings.TrimSpace(os.Getenv("DATA_DIR")),
		MongoURI:               strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDB:                getEnv("MONGO_DB", "gstpos"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0, 0),
		ProductCacheTTLSeconds: getInt("PRODUCT_CACHE_TTL_SECONDS", 30, 1),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		BillPrefix:             getEnv("BILL_PREFIX", "INV"),
		TotalTolerance:         getFloat("TOTAL_TOLERANCE", 0.01),
		StoreTimezone:          strings.TrimSpace(os.Getenv("STORE_TIMEZONE")),
		EnvFileLoaded:          envLoaded,
	}
	cfg.StoreBackend = resolveBackend(strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND"))), cfg)

	return cfg
}

// resolveBackend honours an explicit STORE_BACKEND and otherwise picks the
// first backend whose connection setting is present.
func resolveBackend(explicit string, cfg Config) string {
	switch explicit {
	case BackendMemory, BackendFile, BackendMongo, BackendPostgres:
		return explicit
	}
	switch {
	case cfg.DataDir != "":
		return BackendFile
	case cfg.MongoURI != "":
		return BackendMongo
	case cfg.DatabaseURL != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	parsed, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || parsed < min {
		return fallback
	}
	return parsed
}

func getFloat(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
