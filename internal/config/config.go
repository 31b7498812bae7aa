package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Shopify Admin API
	ShopDomain           string
	ShopifyAccessToken   string
	ShopifyAPIVersion    string
	ShopifyWebhookSecret string

	// ProHandel POS API
	ProHandelAuthURL   string
	ProHandelAPIURL    string
	ProHandelAPIKey    string
	ProHandelAPISecret string

	// Sync tuning
	PollInterval     time.Duration
	VoucherLookback  time.Duration
	HTTPTimeout      time.Duration
	CustomerPageSize int

	// Admin
	AdminToken string

	// Server
	Port        string
	CORSOrigins string
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "syncbridge_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ShopDomain:           getEnv("SHOP_DOMAIN", "mercurios-test.myshopify.com"),
		ShopifyAccessToken:   getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2024-10"),
		ShopifyWebhookSecret: getEnv("SHOPIFY_WEBHOOK_SECRET", ""),

		ProHandelAuthURL:   getEnv("PROHANDEL_AUTH_URL", "https://auth.prohandel.cloud/api/v4"),
		ProHandelAPIURL:    getEnv("PROHANDEL_API_URL", "https://linde.prohandel.de/api/v2"),
		ProHandelAPIKey:    getEnv("PROHANDEL_API_KEY", ""),
		ProHandelAPISecret: getEnv("PROHANDEL_API_SECRET", ""),

		PollInterval:     parseDuration(getEnv("POLL_INTERVAL", "15m"), 15*time.Minute),
		VoucherLookback:  parseDuration(getEnv("VOUCHER_LOOKBACK", "2h"), 2*time.Hour),
		HTTPTimeout:      parseDuration(getEnv("HTTP_TIMEOUT", "10s"), 10*time.Second),
		CustomerPageSize: parseInt(getEnv("CUSTOMER_PAGE_SIZE", "250"), 250),

		AdminToken: getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
