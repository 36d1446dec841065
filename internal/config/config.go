// Package config loads the blog configuration from an optional YAML file and BLOG_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "BLOG"
	defaultFile    = "blog"
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendS3      = "s3"
	BackendRedis   = "redis"
	minSecretChars = 32
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Site   SiteConfig   `mapstructure:"site"`
	Paths  PathsConfig  `mapstructure:"paths"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Admin  AdminConfig  `mapstructure:"admin"`
	Auth   AuthConfig   `mapstructure:"auth"`
	Github GithubConfig `mapstructure:"github"`
	S3     S3Config     `mapstructure:"s3"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Watch           bool          `mapstructure:"watch"`
	WatchDebounce   time.Duration `mapstructure:"watch_debounce"`
}

type SiteConfig struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	BaseURL     string `mapstructure:"base_url"`
}

type PathsConfig struct {
	Posts    string `mapstructure:"posts"`
	Uploads  string `mapstructure:"uploads"`
	Database string `mapstructure:"database"`
}

type CacheConfig struct {
	// Backend is one of memory, file, s3 or redis
	Backend         string        `mapstructure:"backend"`
	Dir             string        `mapstructure:"dir"`
	TTL             time.Duration `mapstructure:"ttl"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

type AdminConfig struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	PasswordHash  string `mapstructure:"password_hash"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type GithubConfig struct {
	Owner         string `mapstructure:"owner"`
	Repo          string `mapstructure:"repo"`
	Branch        string `mapstructure:"branch"`
	Token         string `mapstructure:"token"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Expiry   time.Duration `mapstructure:"expiry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults registers every key so that each one can also be set from the environment
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.watch", true)
	v.SetDefault("server.watch_debounce", 100*time.Millisecond)

	v.SetDefault("site.title", "My Blog")
	v.SetDefault("site.description", "")
	v.SetDefault("site.base_url", "")

	v.SetDefault("paths.posts", "posts")
	v.SetDefault("paths.uploads", "uploads")
	v.SetDefault("paths.database", "inkblog.db")

	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("cache.dir", ".cache")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.janitor_interval", time.Minute)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.max_upload_size", int64(10<<20))

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.branch", "")
	v.SetDefault("github.token", "")
	v.SetDefault("github.webhook_secret", "")

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "pages/")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "inkblog:page:")
	v.SetDefault("redis.expiry", time.Duration(0))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads file when given, otherwise ./blog.yaml if it exists, then applies the environment.
// A missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultFile)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file backend"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3.bucket is required for the s3 backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}

	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if c.Paths.Posts == "" {
		errs = append(errs, errors.New("paths.posts is required"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minSecretChars {
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretChars))
	}
	if c.Github.WebhookSecret != "" && !c.GithubEnabled() {
		errs = append(errs, errors.New("github.webhook_secret is set but github.owner or github.repo is missing"))
	}

	return errors.Join(errs...)
}

// AdminEnabled reports whether admin credentials and a token secret were configured
func (c *Config) AdminEnabled() bool {
	hasPassword := c.Admin.Password != "" || c.Admin.PasswordHash != ""
	return c.Admin.Username != "" && hasPassword && c.Auth.JWTSecret != ""
}

func (c *Config) GithubEnabled() bool {
	return c.Github.Owner != "" && c.Github.Repo != ""
}
