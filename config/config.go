package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency int
	VendorStagger  time.Duration
	RateLimitMs    int
	PageRetries    int
	MaxPages       int

	NavTimeout    time.Duration
	ReadyTimeout  time.Duration
	CaptchaSettle time.Duration

	ChromeBin     string
	Headless      bool
	VendorsFile   string
	OCRServiceURL string

	RedisAddr         string
	RedisDB           int
	RedisStream       string
	RedisStreamMaxLen int

	MemcacheAddr string
	BlockTime    time.Duration

	CSVOutputPath string
	Environment   string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "catalog"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "catalog"),
		PostgresDB:       getEnv("POSTGRES_DB", "catalog"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 2),
		VendorStagger:  getEnvDuration("VENDOR_STAGGER_MS", time.Millisecond, 500*time.Millisecond),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		PageRetries:    getEnvInt("PAGE_RETRIES", 2),
		MaxPages:       getEnvInt("MAX_PAGES", 500),

		NavTimeout:    getEnvDuration("NAV_TIMEOUT_SECONDS", time.Second, 60*time.Second),
		ReadyTimeout:  getEnvDuration("READY_TIMEOUT_SECONDS", time.Second, 15*time.Second),
		CaptchaSettle: getEnvDuration("CAPTCHA_SETTLE_MS", time.Millisecond, 3*time.Second),

		ChromeBin:     getEnv("CHROME_BIN", ""),
		Headless:      getEnvBool("HEADLESS", true),
		VendorsFile:   getEnv("VENDORS_FILE", "./vendors.yaml"),
		OCRServiceURL: getEnv("OCR_SERVICE_URL", "http://localhost:5000"),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		RedisStream:       getEnv("REDIS_STREAM", "catalog:ingest:reports"),
		RedisStreamMaxLen: getEnvInt("REDIS_STREAM_MAX_LEN", 1000),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),
		BlockTime:    getEnvDuration("BLOCK_TIME_SECONDS", time.Second, 30*time.Minute),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),
		Environment:   getEnv("ENVIRONMENT", "development"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// PageInterval is the minimum delay between two page loads of one vendor.
func (c *Config) PageInterval() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config error: MAX_CONCURRENCY must be at least 1")
	}
	if c.PageRetries < 0 {
		return fmt.Errorf("config error: PAGE_RETRIES must be non-negative")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("config error: MAX_PAGES must be at least 1")
	}
	if c.RateLimitMs < 0 {
		return fmt.Errorf("config error: RATE_LIMIT_MS must be non-negative")
	}
	if c.NavTimeout <= 0 || c.ReadyTimeout <= 0 {
		return fmt.Errorf("config error: navigation and ready timeouts must be positive")
	}
	if strings.TrimSpace(c.VendorsFile) == "" {
		return fmt.Errorf("config error: VENDORS_FILE is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return time.Duration(n) * unit
		}
	}
	return fallback
}
