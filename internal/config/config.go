package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// カートの保存先
const (
	CartStorePostgres = "postgres"
	CartStoreMongo    = "mongo"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string        // JWT署名シークレット
	TokenTTL  time.Duration // アクセストークンの有効期限

	GoEnv string // dev/prod

	CartStore   string // postgres/mongo
	MongoURI    string
	MongoDBName string

	RedisAddr     string // 空ならRedisを使わない（ロックはプロセス内、キャッシュなし）
	RedisPassword string

	SMTPHost string // 空ならメールはログに出すだけ
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	AppBaseURL string // メール内リンクの先頭
	UploadDir  string // 商品画像の保存先

	ProductsPerPage int
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	smtpPort, err := atoiDefault("SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	perPage, err := atoiDefault("PRODUCTS_PER_PAGE", 2)
	if err != nil {
		return Config{}, err
	}
	ttl, err := time.ParseDuration(getenv("TOKEN_TTL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_TTL must be duration: %w", err)
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  ttl,

		GoEnv: getenv("GO_ENV", "dev"),

		CartStore:   getenv("CART_STORE", CartStorePostgres),
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDBName: getenv("MONGO_DB_NAME", "shop"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: smtpPort,
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: getenv("SMTP_FROM", "shop@example.com"),

		AppBaseURL: getenv("APP_BASE_URL", "http://localhost:8080"),
		UploadDir:  getenv("UPLOAD_DIR", "images"),

		ProductsPerPage: perPage,
	}

	//必須チェック
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.CartStore {
	case CartStorePostgres:
	case CartStoreMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when CART_STORE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("CART_STORE must be postgres or mongo")
	}
	if cfg.ProductsPerPage < 1 {
		return Config{}, fmt.Errorf("PRODUCTS_PER_PAGE must be >= 1")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
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
