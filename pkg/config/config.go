package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"clientbridge/pkg/database"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	UseLocalDB      bool
	LocalDBPath     string
	PostgresDSN     string
	PostgresRLS     bool // 直连时按调用者 JWT 声明启用行级安全
	SupabaseURL     string
	SupabaseAnonKey string

	// JWT配置（与平台签发 access token 的密钥一致）
	JWTSecret string

	// 文件存储配置
	StorageDriver   string // "supabase", "s3", "local"
	StorageBucket   string
	StorageLocalDir string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicURL     string

	// 实时通知（为空时使用进程内 hub）
	RedisURL string

	// 邮件配置（为空时不发送邀请邮件）
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// 基础URL，用于构建邀请链接和本地文件URL
	BaseURL string

	// CORS配置
	AllowedOrigins []string

	// 每个IP每分钟允许的认证请求数
	AuthRateLimit int

	// 调试配置
	Debug bool
}

// LoadConfig 加载配置
func LoadConfig() *Config {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 按环境加载 .env 文件；已存在的环境变量优先
	switch env {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	config := &Config{
		Environment:     getEnvWithDefault("ENVIRONMENT", "development"),
		Port:            getEnvWithDefault("PORT", "3000"),
		UseLocalDB:      getEnvBool("USE_LOCAL_DB", false),
		PostgresRLS:     getEnvBool("POSTGRES_RLS", false),
		LocalDBPath:     getEnvWithDefault("LOCAL_DB_PATH", "clientbridge.db"),
		StorageDriver:   getEnvWithDefault("STORAGE_DRIVER", "supabase"),
		StorageBucket:   getEnvWithDefault("STORAGE_BUCKET", "project-files"),
		StorageLocalDir: getEnvWithDefault("STORAGE_LOCAL_DIR", "uploads"),
		S3Region:        getEnvWithDefault("S3_REGION", "us-east-1"),
		SMTPPort:        getEnvInt("SMTP_PORT", 587),
		AuthRateLimit:   getEnvInt("AUTH_RATE_LIMIT", 30),
		Debug:           getEnvBool("DEBUG", false),
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	config.PostgresDSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	config.SupabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("SUPABASE_URL")), "/")
	config.SupabaseAnonKey = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))

	config.JWTSecret = strings.TrimSpace(os.Getenv("SUPABASE_JWT_SECRET"))
	if config.JWTSecret == "" {
		config.JWTSecret = getEnvWithDefault("JWT_SECRET", defaultJWTSecret)
	}

	config.S3Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	config.S3AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	config.S3SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	config.S3PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("S3_PUBLIC_URL")), "/")

	config.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	config.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	config.SMTPUsername = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	config.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	config.MailFrom = getEnvWithDefault("MAIL_FROM", "ClientBridge <no-reply@clientbridge.app>")

	config.BaseURL = strings.TrimRight(getEnvWithDefault("APP_BASE_URL", "http://localhost:"+config.Port), "/")

	// CORS配置
	allowedOrigins := getEnvWithDefault("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		config.AllowedOrigins = []string{"*"}
	} else {
		for _, origin := range strings.Split(allowedOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, origin)
			}
		}
	}

	if config.UseLocalDB && os.Getenv("STORAGE_DRIVER") == "" {
		config.StorageDriver = "local"
	}

	// 生产环境关闭调试
	if config.Environment == "production" {
		config.Debug = false
	}

	return config
}

// Cached config (initialized once per process)
var (
	cachedConfig *Config
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
func GetCached() *Config {
	configOnce.Do(func() {
		cachedConfig = LoadConfig()
	})
	return cachedConfig
}

// MissingSupabaseVars lists which of the two platform settings are absent
func (c *Config) MissingSupabaseVars() []string {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	return missing
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("SUPABASE_JWT_SECRET must be set in production")
		}
	}

	// 远程模式必须同时配置平台 URL 和匿名 key
	if !c.UseLocalDB {
		if missing := c.MissingSupabaseVars(); len(missing) > 0 {
			return fmt.Errorf("missing Supabase configuration: %s", strings.Join(missing, ", "))
		}
		u, err := url.Parse(c.SupabaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("SUPABASE_URL must be an absolute http(s) URL, got %q", c.SupabaseURL)
		}
	}

	switch c.StorageDriver {
	case "supabase":
		if c.UseLocalDB {
			return fmt.Errorf("STORAGE_DRIVER=supabase requires the Supabase backend")
		}
	case "s3":
		if c.StorageBucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for the s3 storage driver")
		}
	case "local":
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	return nil
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// MailEnabled reports whether invite e-mails can be sent
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// 辅助函数

// getEnvWithDefault 获取环境变量，如果不存在则使用默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt 获取整数类型的环境变量
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// loadEnvFile 加载 .env 文件；文件不存在时静默返回
func loadEnvFile(filename string) {
	if _, err := os.Stat(filename); err != nil {
		return
	}
	// godotenv.Load 不会覆盖已存在的环境变量
	_ = godotenv.Load(filename)
}

// DatabaseConfig 转换为数据库层配置
func (c *Config) DatabaseConfig() database.DatabaseConfig {
	return database.DatabaseConfig{
		UseLocalDB:      c.UseLocalDB,
		LocalDBPath:     c.LocalDBPath,
		PostgresDSN:     c.PostgresDSN,
		PostgresRLS:     c.PostgresRLS,
		SupabaseURL:     c.SupabaseURL,
		SupabaseAnonKey: c.SupabaseAnonKey,
		JWTSecret:       c.JWTSecret,
		Debug:           c.Debug,
	}
}
