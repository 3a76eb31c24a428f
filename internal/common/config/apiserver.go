package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type (
	APIServerConfig struct {
		Port        int               `yaml:"port"`
		Database    DatabaseConfig    `yaml:"database"`
		Logger      LoggerConfig      `yaml:"logger"`
		JWT         JWTConfig         `yaml:"jwt"`
		Session     SessionConfig     `yaml:"session"`
		SuperAdmin  SuperAdminConfig  `yaml:"super_admin"`
		I18n        I18nConfig        `yaml:"i18n"`
		Storage     StorageConfig     `yaml:"storage"`
		Environment EnvironmentConfig `yaml:"environment"`
		Metrics     MetricsConfig     `yaml:"metrics"`
		Tracing     TracingConfig     `yaml:"tracing"`
		CORS        CORSConfig        `yaml:"cors"`
	}

	// I18nConfig represents the internationalization configuration
	I18nConfig struct {
		Path string `yaml:"path"` // Path to i18n translation files
	}

	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	JWTConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// SessionConfig controls how refresh tokens are tracked
	SessionConfig struct {
		Type       string        `yaml:"type"` // memory or redis
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		Redis      RedisConfig   `yaml:"redis"`
	}

	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// StorageConfig configures where uploaded avatars live
	StorageConfig struct {
		Type    string          `yaml:"type"` // disk or s3
		MaxSize int64           `yaml:"max_size"`
		Disk    DiskStorage     `yaml:"disk"`
		S3      S3StorageConfig `yaml:"s3"`
		Cache   CacheConfig     `yaml:"cache"`
	}

	DiskStorage struct {
		Path string `yaml:"path"`
	}

	// CacheConfig keeps recently served avatars in memory and, when
	// Redis.Addr is set, in Redis
	CacheConfig struct {
		Enabled  bool          `yaml:"enabled"`
		MaxBytes int64         `yaml:"max_bytes"`
		TTL      time.Duration `yaml:"ttl"`
		RedisTTL time.Duration `yaml:"redis_ttl"`
		Redis    RedisConfig   `yaml:"redis"`
	}

	S3StorageConfig struct {
		Bucket          string `yaml:"bucket"`
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
		ForcePathStyle  bool   `yaml:"force_path_style"`
	}

	// EnvironmentConfig configures per-workspace external database profiles
	EnvironmentConfig struct {
		Secret           string        `yaml:"secret"` // age identity or passphrase used to seal stored passwords
		ScryptWorkFactor int           `yaml:"scrypt_work_factor"`
		TestTimeout      time.Duration `yaml:"test_timeout"`
		RetestInterval   time.Duration `yaml:"retest_interval"` // 0 disables background re-testing
		RetestWorkers    int           `yaml:"retest_workers"`
	}

	MetricsConfig struct {
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	TracingConfig struct {
		Enabled     bool              `yaml:"enabled"`
		ServiceName string            `yaml:"service_name"`
		Endpoint    string            `yaml:"endpoint"`
		Protocol    string            `yaml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate"`
		Environment string            `yaml:"environment"`
		Headers     map[string]string `yaml:"headers"`
	}

	CORSConfig struct {
		AllowOrigins []string `yaml:"allow_origins"`
	}
)

func (c *APIServerConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 5235
	}
	if c.JWT.Duration <= 0 {
		c.JWT.Duration = 15 * time.Minute
	}
	if c.Session.Type == "" {
		c.Session.Type = "memory"
	}
	if c.Session.RefreshTTL <= 0 {
		c.Session.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Session.Redis.Prefix == "" {
		c.Session.Redis.Prefix = "wshub:refresh:"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "disk"
	}
	if c.Storage.Disk.Path == "" {
		c.Storage.Disk.Path = "./data/avatars"
	}
	if c.Storage.Cache.MaxBytes <= 0 {
		c.Storage.Cache.MaxBytes = 32 << 20
	}
	if c.Storage.Cache.TTL <= 0 {
		c.Storage.Cache.TTL = 10 * time.Minute
	}
	if c.Storage.Cache.RedisTTL <= 0 {
		c.Storage.Cache.RedisTTL = time.Hour
	}
	if c.Storage.MaxSize <= 0 {
		c.Storage.MaxSize = 2 << 20
	}
	if c.Environment.TestTimeout <= 0 {
		c.Environment.TestTimeout = 5 * time.Second
	}
	if c.Environment.RetestWorkers <= 0 {
		c.Environment.RetestWorkers = 4
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "wshub"
	}
	if c.I18n.Path == "" {
		c.I18n.Path = "configs/i18n"
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN()
	case "mysql":
		return c.getMySQLDSN()
	case "sqlite":
		if c.DBName == ":memory:" {
			return c.DBName
		}
		if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
			panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
		}
		return c.DBName
	default:
		return ""
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
