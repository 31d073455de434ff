package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Бэкенды кэша
const (
	CacheBackendRedis  = "redis"
	CacheBackendMySQL  = "mysql"
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	MySQL       MySQLConfig
	Cache       CacheConfig
	Provider    ProviderConfig
	Scheduler   SchedulerConfig
	WebSocket   WebSocketConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	RateLimitRPS float64
	RateBurst    int
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MQTTConfig конфигурация MQTT
type MQTTConfig struct {
	Enabled      bool
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	TopicPrefix  string
	QoS          byte
	Retained     bool
}

// MySQLConfig конфигурация MySQL
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// CacheConfig конфигурация постоянного кэша рабочего набора
type CacheConfig struct {
	Backend   string
	Dir       string
	KeyPrefix string
}

// ProviderConfig конфигурация источника ROMMA
type ProviderConfig struct {
	Name         string
	Country      string
	BaseURL      string
	Key          string
	Zipped       bool
	FetchTimeout time.Duration
	MinInterval  time.Duration
}

// SchedulerConfig периодичность фоновых задач
type SchedulerConfig struct {
	ReadingsInterval time.Duration
	StationsInterval time.Duration
	PersistInterval  time.Duration
}

// WebSocketConfig конфигурация live-ленты
type WebSocketConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8090"),
			Port:         getEnv("SERVER_PORT", "8090"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RateLimitRPS: getFloat("RATE_LIMIT_RPS", 100),
			RateBurst:    getInt("RATE_LIMIT_BURST", 200),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		MQTT: MQTTConfig{
			Enabled:      getBool("MQTT_ENABLED", false),
			URL:          getEnv("MQTT_URL", "tcp://localhost:1883"),
			ClientID:     getEnv("MQTT_CLIENT_ID", "balises-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", true),
			TopicPrefix:  getEnv("MQTT_TOPIC_PREFIX", "balises"),
			QoS:          byte(getInt("MQTT_QOS", 1)),
			Retained:     getBool("MQTT_RETAINED", true),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 2),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 10),
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendFile)),
			Dir:       getEnv("CACHE_DIR", "./data/cache"),
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", ""),
		},
		Provider: ProviderConfig{
			Name:         getEnv("PROVIDER_NAME", "romma"),
			Country:      strings.ToUpper(getEnv("PROVIDER_COUNTRY", "FR")),
			BaseURL:      getEnv("ROMMA_BASE_URL", "http://www.romma.fr"),
			Key:          getEnv("ROMMA_KEY", ""),
			Zipped:       getBool("ROMMA_ZIPPED", true),
			FetchTimeout: getDuration("FETCH_TIMEOUT", 10*time.Second),
			MinInterval:  getDuration("FETCH_MIN_INTERVAL", time.Second),
		},
		Scheduler: SchedulerConfig{
			ReadingsInterval: getDuration("READINGS_INTERVAL", 5*time.Minute),
			StationsInterval: getDuration("STATIONS_INTERVAL", 6*time.Hour),
			PersistInterval:  getDuration("PERSIST_INTERVAL", 15*time.Minute),
		},
		WebSocket: WebSocketConfig{
			PingInterval: getDuration("WEBSOCKET_PING_INTERVAL", 30*time.Second),
			PongTimeout:  getDuration("WEBSOCKET_PONG_TIMEOUT", 60*time.Second),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
		},
	}

	// Валидация
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for redis cache backend")
		}
	case CacheBackendMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("MYSQL_DSN is required for mysql cache backend")
		}
	case CacheBackendFile:
		if c.Cache.Dir == "" {
			return fmt.Errorf("CACHE_DIR is required for file cache backend")
		}
	case CacheBackendMemory:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}

	if c.MQTT.Enabled && c.MQTT.URL == "" {
		return fmt.Errorf("MQTT_URL is required when MQTT is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2")
	}

	if c.Provider.Name == "" {
		return fmt.Errorf("PROVIDER_NAME is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("ROMMA_BASE_URL is required")
	}
	if c.Provider.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	// Проверка расписания
	if c.Scheduler.ReadingsInterval <= 0 {
		return fmt.Errorf("READINGS_INTERVAL must be positive")
	}
	if c.Scheduler.StationsInterval <= 0 {
		return fmt.Errorf("STATIONS_INTERVAL must be positive")
	}
	if c.Scheduler.PersistInterval <= 0 {
		return fmt.Errorf("PERSIST_INTERVAL must be positive")
	}

	if c.Server.RateLimitRPS <= 0 || c.Server.RateBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// CacheKey ключ кэша для вида данных источника, например "romma.readings"
func (c *Config) CacheKey(kind string) string {
	return c.Cache.KeyPrefix + c.Provider.Name + "." + kind
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
