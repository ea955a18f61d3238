package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"

	AssetsLocal = "local"
	AssetsS3    = "s3"

	defaultJWTSecret     = "your-secret-key-change-in-production"
	defaultMaxUploadSize = 10 << 20
	defaultSessionTTL    = 7 * 24 * time.Hour
)

type Config struct {
	Port        string
	Environment string

	StoreDriver   string
	DatabasePath  string
	MongoURI      string
	MongoDatabase string

	JWTSecret  string
	SessionTTL time.Duration

	CORSOrigins   string
	MaxUploadSize int64

	AssetDriver     string
	FileStoragePath string
	AssetBaseURL    string
	AWSBucket       string
	AWSRegion       string

	StaticDir string

	// EnforceMessageMembership restricts message send and list to chat
	// members.
	EnforceMessageMembership bool
}

// Load reads configuration from the environment. An env file named by
// GAPCHAT_ENV_FILE, or ./.env when present, is applied first; variables
// already set in the environment take precedence over it.
func Load() *Config {
	if path := os.Getenv("GAPCHAT_ENV_FILE"); path != "" {
		_ = godotenv.Load(path)
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	return &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		StoreDriver:              strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DatabasePath:             getEnv("DATABASE_PATH", "./data/gapchat.db"),
		MongoURI:                 getEnv("MONGO_URI", ""),
		MongoDatabase:            getEnv("MONGO_DATABASE", "gapchat"),
		JWTSecret:                getEnv("JWT_SECRET", defaultJWTSecret),
		SessionTTL:               parseDuration(getEnv("SESSION_TTL", ""), defaultSessionTTL),
		CORSOrigins:              getEnv("CORS_ORIGINS", "*"),
		MaxUploadSize:            parseInt64(getEnv("MAX_UPLOAD_SIZE", ""), defaultMaxUploadSize),
		AssetDriver:              strings.ToLower(getEnv("ASSET_DRIVER", AssetsLocal)),
		FileStoragePath:          getEnv("FILE_STORAGE_PATH", "./data/uploads"),
		AssetBaseURL:             strings.TrimSuffix(getEnv("ASSET_BASE_URL", "/api/files"), "/"),
		AWSBucket:                getEnv("AWS_BUCKET", ""),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		StaticDir:                getEnv("STATIC_DIR", ""),
		EnforceMessageMembership: parseBool(getEnv("ENFORCE_MESSAGE_MEMBERSHIP", ""), false),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreSQLite:
		if c.DatabasePath == "" {
			errs = append(errs, errors.New("DATABASE_PATH is required for the sqlite store"))
		}
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.AssetDriver {
	case AssetsLocal:
	case AssetsS3:
		if c.AWSBucket == "" {
			errs = append(errs, errors.New("AWS_BUCKET is required for the s3 asset driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_DRIVER %q", c.AssetDriver))
	}

	if !c.IsDevelopment() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set outside development"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func parseInt64(s string, fallback int64) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
