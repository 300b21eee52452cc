package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Env      string
	HTTPPort string

	DBType string // sqlite or postgres
	DBDSN  string

	RedisAddr     string // empty disables the content cache
	RedisPassword string

	JWTSecret string

	// Compression selects the snapshot blob codec: nop, gzip, lz4, brotli.
	Compression string

	RetentionEnabled  bool
	RetentionSchedule string
	RetentionWindow   time.Duration
}

// LoadConfig reads the configuration from the environment, loading a local
// .env file first when one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cnf := &Config{
		Env:               getEnv("ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "4030"),
		DBType:            getEnv("DB_TYPE", "sqlite"),
		DBDSN:             getEnv("DB_DSN", ".db/content.db"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		Compression:       getEnv("COMPRESSION", "nop"),
		RetentionEnabled:  getBoolEnv("RETENTION_ENABLED", false),
		RetentionSchedule: getEnv("RETENTION_SCHEDULE", "@hourly"),
		RetentionWindow:   getDurationEnv("RETENTION_WINDOW", 10*time.Minute),
	}

	return cnf
}

// GetDb opens the configured database. Error translation is enabled so
// unique violations surface as gorm.ErrDuplicatedKey on every driver.
func GetDb(cnf *Config) *gorm.DB {
	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var db *gorm.DB
	var err error

	switch cnf.DBType {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cnf.DBDSN), gormConfig)
	case "sqlite":
		if dir := filepath.Dir(cnf.DBDSN); dir != "." {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				logrus.Fatalf("error creating database directory: %v", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cnf.DBDSN+"?_busy_timeout=10000"), gormConfig)
	default:
		logrus.Fatalf("unknown DB_TYPE: %s", cnf.DBType)
	}

	if err != nil {
		logrus.Fatalf("error connecting to database: %v", err)
	}

	return db
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logrus.Warnf("invalid value for %s: %s", key, value)
		return fallback
	}
	return parsed
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logrus.Warnf("invalid value for %s: %s", key, value)
		return fallback
	}
	return parsed
}
