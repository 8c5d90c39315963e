package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// JWTConfig 包含签名密钥位置与令牌有效期。
type JWTConfig struct {
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	PublicKeyPath   string        `mapstructure:"public_key_path"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// UploadConfig 包含文件上传的存储目录与限制。
type UploadConfig struct {
	Dir          string `mapstructure:"dir"`
	SiteURL      string `mapstructure:"site_url"`
	MaxFileSize  int64  `mapstructure:"max_file_size"`
	AllowedTypes string `mapstructure:"allowed_types"`
	ClamdAddr    string `mapstructure:"clamd_addr"`
}

// AuthConfig 包含登录保护相关的阈值。
type AuthConfig struct {
	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
	CookieDomain          string        `mapstructure:"cookie_domain"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr 返回 host:port 形式的 Redis 地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "fieldcv")
	v.SetDefault("database.user", "fieldcv")
	v.SetDefault("database.password", "fieldcv")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("jwt.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("jwt.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("upload.dir", "./uploads")
	v.SetDefault("upload.site_url", "http://localhost:8080")
	v.SetDefault("upload.max_file_size", int64(5*1024*1024))
	v.SetDefault("upload.allowed_types", "image/jpeg,image/png,image/gif,application/pdf,text/plain")
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                       "API_PORT",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"jwt.private_key_path":           "JWT_PRIVATE_KEY_PATH",
		"jwt.public_key_path":            "JWT_PUBLIC_KEY_PATH",
		"jwt.access_token_ttl":           "JWT_ACCESS_TOKEN_TTL",
		"jwt.refresh_token_ttl":          "JWT_REFRESH_TOKEN_TTL",
		"upload.dir":                     "UPLOAD_DIR",
		"upload.site_url":                "SITE_URL",
		"upload.max_file_size":           "MAX_FILE_SIZE",
		"upload.allowed_types":           "ALLOWED_FILE_TYPES",
		"upload.clamd_addr":              "CLAMD_ADDR",
		"auth.login_rate_limit_per_hour": "LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":            "LOGIN_LOCK_TTL",
		"auth.cookie_domain":             "COOKIE_DOMAIN",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.JWT.PrivateKeyPath == "" {
		return errors.New("jwt private key path is required")
	}
	if cfg.JWT.PublicKeyPath == "" {
		return errors.New("jwt public key path is required")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		return errors.New("jwt access token ttl must be positive")
	}
	if cfg.JWT.RefreshTokenTTL <= 0 {
		return errors.New("jwt refresh token ttl must be positive")
	}
	if cfg.Upload.Dir == "" {
		return errors.New("upload dir is required")
	}
	if cfg.Upload.SiteURL == "" {
		return errors.New("upload site url is required")
	}
	if cfg.Upload.MaxFileSize <= 0 {
		return errors.New("upload max file size must be positive")
	}
	if cfg.Upload.AllowedTypes == "" {
		return errors.New("upload allowed types is required")
	}
	return nil
}
