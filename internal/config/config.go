package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "site.cfg.json"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address         string
	StaticDir       string
	MainRoute       string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CMSConfig holds content store settings.
type CMSConfig struct {
	BaseURL    string
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	Timeout    time.Duration
}

// RedisConfig holds shared cache connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// CacheConfig holds CMS response cache settings.
type CacheConfig struct {
	Type   string // "memory", "redis" or "none"
	TTL    time.Duration
	SizeMB int
	Redis  RedisConfig
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings.
type SQLiteConfig struct {
	Path         string
	DumpInterval time.Duration
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the security-request store.
type StorageConfig struct {
	Type     string // "memory", "sqlite", "postgres" or "cms"
	Memory   MemoryConfig
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// MailConfig holds transactional mail settings.
type MailConfig struct {
	Provider   string // "http" or "log"
	APIURL     string
	APIKey     string
	From       string
	BusinessTo string
	QueueSize  int
}

// CameraConfig holds experience camera settings.
type CameraConfig struct {
	Duration        time.Duration
	FrameInterval   time.Duration
	Policy          string
	DefaultPosition [3]float64
	DefaultTarget   [3]float64
}

// AssetsConfig holds 3D model loading settings.
type AssetsConfig struct {
	BaseURL        string
	Root           string
	MaxBytes       int64
	Concurrency    int
	PreloadOnStart bool
}

// ScenesConfig selects where scene definitions come from.
type ScenesConfig struct {
	Source string // "cms" or "file"
	Dir    string
	Watch  bool
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// MonitorConfig holds status sampling settings.
type MonitorConfig struct {
	Interval   time.Duration
	StatusFile string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Environment
// variables prefixed SITE_ override file values (SITE_CMS_TOKEN sets
// cms.token).
func Load(configDir string) error {
	setDefaults()

	viper.SetEnvPrefix("SITE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.staticDir", "./static")
	viper.SetDefault("server.mainRoute", "/experience")
	viper.SetDefault("server.allowedOrigins", []string{})
	viper.SetDefault("server.readTimeout", "15s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")

	viper.SetDefault("cms.baseUrl", "")
	viper.SetDefault("cms.projectId", "")
	viper.SetDefault("cms.dataset", "production")
	viper.SetDefault("cms.apiVersion", "2024-01-01")
	viper.SetDefault("cms.token", "")
	viper.SetDefault("cms.timeout", "10s")

	viper.SetDefault("cache.type", "memory")
	viper.SetDefault("cache.ttl", "5m")
	viper.SetDefault("cache.sizeMB", 128)
	viper.SetDefault("cache.redis.addr", "localhost:6379")
	viper.SetDefault("cache.redis.password", "")
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.prefix", "site:cms:")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./requests")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "site")

	viper.SetDefault("mail.provider", "log")
	viper.SetDefault("mail.apiUrl", "")
	viper.SetDefault("mail.apiKey", "")
	viper.SetDefault("mail.from", "no-reply@ironwatch.example")
	viper.SetDefault("mail.businessTo", "requests@ironwatch.example")
	viper.SetDefault("mail.queueSize", 100)

	viper.SetDefault("camera.duration", "2000ms")
	viper.SetDefault("camera.frameInterval", "16ms")
	viper.SetDefault("camera.policy", "supersede")
	viper.SetDefault("camera.defaultPosition.x", 0)
	viper.SetDefault("camera.defaultPosition.y", 400)
	viper.SetDefault("camera.defaultPosition.z", 600)
	viper.SetDefault("camera.defaultTarget.x", 0)
	viper.SetDefault("camera.defaultTarget.y", 0)
	viper.SetDefault("camera.defaultTarget.z", 0)

	viper.SetDefault("assets.baseUrl", "")
	viper.SetDefault("assets.root", "./static")
	viper.SetDefault("assets.maxBytes", 64<<20)
	viper.SetDefault("assets.concurrency", 4)
	viper.SetDefault("assets.preloadOnStart", false)

	viper.SetDefault("scenes.source", "cms")
	viper.SetDefault("scenes.dir", "./scenes")
	viper.SetDefault("scenes.watch", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "site-metrics")
	viper.SetDefault("influx.bucket", "site")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "ironwatch-site")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "1m")
	viper.SetDefault("monitor.statusFile", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Address:         viper.GetString("server.address"),
		StaticDir:       viper.GetString("server.staticDir"),
		MainRoute:       viper.GetString("server.mainRoute"),
		AllowedOrigins:  viper.GetStringSlice("server.allowedOrigins"),
		ReadTimeout:     viper.GetDuration("server.readTimeout"),
		WriteTimeout:    viper.GetDuration("server.writeTimeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
	}
}

func GetCMSConfig() CMSConfig {
	return CMSConfig{
		BaseURL:    viper.GetString("cms.baseUrl"),
		ProjectID:  viper.GetString("cms.projectId"),
		Dataset:    viper.GetString("cms.dataset"),
		APIVersion: viper.GetString("cms.apiVersion"),
		Token:      viper.GetString("cms.token"),
		Timeout:    viper.GetDuration("cms.timeout"),
	}
}

func GetCacheConfig() CacheConfig {
	return CacheConfig{
		Type:   viper.GetString("cache.type"),
		TTL:    viper.GetDuration("cache.ttl"),
		SizeMB: viper.GetInt("cache.sizeMB"),
		Redis: RedisConfig{
			Addr:     viper.GetString("cache.redis.addr"),
			Password: viper.GetString("cache.redis.password"),
			DB:       viper.GetInt("cache.redis.db"),
			Prefix:   viper.GetString("cache.redis.prefix"),
		},
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

func GetMailConfig() MailConfig {
	return MailConfig{
		Provider:   viper.GetString("mail.provider"),
		APIURL:     viper.GetString("mail.apiUrl"),
		APIKey:     viper.GetString("mail.apiKey"),
		From:       viper.GetString("mail.from"),
		BusinessTo: viper.GetString("mail.businessTo"),
		QueueSize:  viper.GetInt("mail.queueSize"),
	}
}

func GetCameraConfig() CameraConfig {
	return CameraConfig{
		Duration:      viper.GetDuration("camera.duration"),
		FrameInterval: viper.GetDuration("camera.frameInterval"),
		Policy:        viper.GetString("camera.policy"),
		DefaultPosition: [3]float64{
			viper.GetFloat64("camera.defaultPosition.x"),
			viper.GetFloat64("camera.defaultPosition.y"),
			viper.GetFloat64("camera.defaultPosition.z"),
		},
		DefaultTarget: [3]float64{
			viper.GetFloat64("camera.defaultTarget.x"),
			viper.GetFloat64("camera.defaultTarget.y"),
			viper.GetFloat64("camera.defaultTarget.z"),
		},
	}
}

func GetAssetsConfig() AssetsConfig {
	return AssetsConfig{
		BaseURL:        viper.GetString("assets.baseUrl"),
		Root:           viper.GetString("assets.root"),
		MaxBytes:       viper.GetInt64("assets.maxBytes"),
		Concurrency:    viper.GetInt("assets.concurrency"),
		PreloadOnStart: viper.GetBool("assets.preloadOnStart"),
	}
}

func GetScenesConfig() ScenesConfig {
	return ScenesConfig{
		Source: viper.GetString("scenes.source"),
		Dir:    viper.GetString("scenes.dir"),
		Watch:  viper.GetBool("scenes.watch"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
