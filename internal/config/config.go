package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret    string        // JWT署名シークレット
	JWTAccessTTL time.Duration // アクセストークンの有効期限（24h）

	// カート予約
	ReservationTTL    time.Duration // expiryDuration省略時
	ReservationMaxTTL time.Duration
	SweepInterval     time.Duration // 0なら定期掃除しない（読んだ時だけ）
	SweepBatch        int

	// 会話履歴（Redis）
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ChatSessionTTL   time.Duration
	ChatHistoryLimit int
	ChatMaxSessions  int

	// 予約イベント。空ならログに出すだけ
	KafkaBrokers        []string
	KafkaTopic          string
	EventPublishTimeout time.Duration

	ShutdownTimeout time.Duration
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// .envがあれば読み込む（無くてもよい）
func LoadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Loadは環境変数
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "dev"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "bookstore"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "cart.reservations"),
	}

	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.JWTAccessTTL, err = durationDefault("JWT_ACCESS_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReservationTTL, err = durationDefault("CART_RESERVATION_TTL", 48*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReservationMaxTTL, err = durationDefault("CART_RESERVATION_MAX_TTL", 7*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationDefault("CART_SWEEP_INTERVAL", 0); err != nil {
		return Config{}, err
	}
	if cfg.SweepBatch, err = atoiDefault("CART_SWEEP_BATCH", 100); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = atoiDefault("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.ChatSessionTTL, err = durationDefault("CHAT_SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ChatHistoryLimit, err = atoiDefault("CHAT_HISTORY_LIMIT", 20); err != nil {
		return Config{}, err
	}
	if cfg.ChatMaxSessions, err = atoiDefault("CHAT_MAX_SESSIONS", 100); err != nil {
		return Config{}, err
	}
	if cfg.EventPublishTimeout, err = durationDefault("EVENT_PUBLISH_TIMEOUT", 2*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = durationDefault("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTAccessTTL <= 0 {
		return Config{}, fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}
	if cfg.ReservationTTL <= 0 {
		return Config{}, fmt.Errorf("CART_RESERVATION_TTL must be positive")
	}
	if cfg.ReservationMaxTTL < cfg.ReservationTTL {
		return Config{}, fmt.Errorf("CART_RESERVATION_MAX_TTL must be >= CART_RESERVATION_TTL")
	}
	if cfg.SweepInterval < 0 {
		return Config{}, fmt.Errorf("CART_SWEEP_INTERVAL must be >= 0")
	}
	if cfg.SweepBatch < 1 {
		return Config{}, fmt.Errorf("CART_SWEEP_BATCH must be >= 1")
	}
	if cfg.ChatHistoryLimit < 1 || cfg.ChatMaxSessions < 1 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_LIMIT and CHAT_MAX_SESSIONS must be >= 1")
	}

	return cfg, nil
}

// DSNを組み立てる
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
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

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
