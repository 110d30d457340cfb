package config

import (
	"os"
	"strconv"
	"time"
)

// 默认值：本地起服务够用，生产用环境变量覆盖
const (
	DefaultPort           = 3080
	DefaultChatModel      = "gpt-4o-mini"
	DefaultMongoURI       = "mongodb://localhost:27017"
	DefaultMongoDatabase  = "wxrelay"
	DefaultRedisAddr      = "127.0.0.1:6379"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultJwtTTL         = 2 * time.Hour
	DefaultQrTicketExpire = 10 * 60 // 登录二维码有效期（秒）
)

type AppConfig struct {
	Port int

	// 公众号
	WxAppID       string
	WxAppSecret   string
	WxVerifyToken string // 服务器配置里的 Token，签名校验用

	// 下游聊天服务
	ChatBaseURL string
	ChatModel   string

	// 存储
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// 站点登录态
	JwtSecret []byte
	JwtTTL    time.Duration

	HTTPTimeout time.Duration
}

// Load 从环境变量装配配置。缺省值能跑通本地联调，线上必须显式给全。
func Load() *AppConfig {
	return &AppConfig{
		Port: envInt("PORT", DefaultPort),

		WxAppID:       os.Getenv("WX_APP_ID"),
		WxAppSecret:   os.Getenv("WX_APP_SECRET"),
		WxVerifyToken: envOr("WX_VERIFY_TOKEN", "librechat"),

		ChatBaseURL: envOr("CHAT_BASE_URL", "http://localhost:3080"),
		ChatModel:   envOr("CHAT_MODEL", DefaultChatModel),

		MongoURI:      envOr("MONGO_URI", DefaultMongoURI),
		MongoDatabase: envOr("MONGO_DATABASE", DefaultMongoDatabase),
		RedisAddr:     envOr("REDIS_ADDR", DefaultRedisAddr),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		JwtSecret: []byte(envOr("JWT_SECRET", "dev-secret-do-not-use")),
		JwtTTL:    DefaultJwtTTL,

		HTTPTimeout: DefaultHTTPTimeout,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
