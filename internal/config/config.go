package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 確保数の読み方
const (
	ReservationModeCounter = "counter"
	ReservationModeScan    = "scan"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DBDriver    string // postgres / sqlite
	DatabaseURL string // 指定があればPOSTGRES_*より優先。sqliteならファイル名

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	GoEnv    string // dev/prod
	LogLevel string

	RedisAddr       string        // 空ならキャッシュなし
	ProductCacheTTL time.Duration // 商品詳細キャッシュ

	ReservationMode   string        // counter / scan
	CartTTL           time.Duration // 0なら放置カートを解放しない
	CartSweepInterval time.Duration

	ShutdownTimeout time.Duration
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// PostgresのDSN（DATABASE_URLがあればそれ）
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := durationDefault("PRODUCT_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cartTTL, err := durationDefault("CART_TTL", 0)
	if err != nil {
		return Config{}, err
	}
	sweep, err := durationDefault("CART_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	shutdown, err := durationDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DBDriver:    strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "officeshop"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		ProductCacheTTL: cacheTTL,

		ReservationMode:   strings.ToLower(getenv("RESERVATION_MODE", ReservationModeCounter)),
		CartTTL:           cartTTL,
		CartSweepInterval: sweep,

		ShutdownTimeout: shutdown,
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be postgres or sqlite: %q", cfg.DBDriver)
	}
	if cfg.DBDriver == "sqlite" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required for sqlite")
	}
	switch cfg.ReservationMode {
	case ReservationModeCounter, ReservationModeScan:
	default:
		return Config{}, fmt.Errorf("RESERVATION_MODE must be counter or scan: %q", cfg.ReservationMode)
	}
	if cfg.CartTTL < 0 {
		return Config{}, fmt.Errorf("CART_TTL must be >= 0")
	}
	if cfg.CartSweepInterval <= 0 {
		return Config{}, fmt.Errorf("CART_SWEEP_INTERVAL must be > 0")
	}

	return cfg, nil
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
