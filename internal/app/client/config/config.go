package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

const (
	defaultServerAddress = "localhost:8080"
	defaultEnv           = EnvLocal
	defaultConfigDir     = ".possync"
	defaultEventsAddr    = "127.0.0.1:9464"
)

type Config struct {
	Env           string
	ServerAddress string
	EnableTLS     bool
	ConfigDir     string
	TokenPath     string
	DataPath      string
	KVPath        string
	LogFile       string
	RedisAddr     string
	EventsAddr    string

	Sync Sync
}

// Sync - параметры движка синхронизации
type Sync struct {
	Interval       time.Duration
	Parallel       bool
	MaxParallel    int
	CacheTTL       time.Duration
	FocusDebounce  time.Duration
	ReconnectDelay time.Duration
	RequestTimeout time.Duration
	// ConnectivityInterval - период опроса /health монитором сети
	ConnectivityInterval time.Duration
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("EVENTS_ADDR", defaultEventsAddr)
	v.SetDefault("SYNC_INTERVAL_SECONDS", 60)
	v.SetDefault("SYNC_PARALLEL", false)
	v.SetDefault("SYNC_MAX_PARALLEL", 4)
	v.SetDefault("CACHE_TTL_SECONDS", 30)
	v.SetDefault("FOCUS_DEBOUNCE_SECONDS", 30)
	v.SetDefault("RECONNECT_DELAY_SECONDS", 2)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("CONNECTIVITY_CHECK_SECONDS", 10)

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = "."
		}
		configDir = filepath.Join(homeDir, configDir)
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания директории конфигурации: %w", err)
	}

	inDir := func(key, name string) string {
		if p := v.GetString(key); p != "" {
			return p
		}
		return filepath.Join(configDir, name)
	}

	cfg := &Config{
		Env:           v.GetString("APP_ENV"),
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		EnableTLS:     v.GetBool("ENABLE_TLS"),
		ConfigDir:     configDir,
		TokenPath:     inDir("TOKEN_PATH", "token"),
		DataPath:      inDir("DATA_PATH", "local.db"),
		KVPath:        inDir("KV_PATH", "kv.json"),
		LogFile:       v.GetString("LOG_FILE"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		EventsAddr:    v.GetString("EVENTS_ADDR"),
		Sync: Sync{
			Interval:       seconds(v, "SYNC_INTERVAL_SECONDS"),
			Parallel:       v.GetBool("SYNC_PARALLEL"),
			MaxParallel:    v.GetInt("SYNC_MAX_PARALLEL"),
			CacheTTL:       seconds(v, "CACHE_TTL_SECONDS"),
			FocusDebounce:  seconds(v, "FOCUS_DEBOUNCE_SECONDS"),
			ReconnectDelay: seconds(v, "RECONNECT_DELAY_SECONDS"),
			RequestTimeout: seconds(v, "REQUEST_TIMEOUT_SECONDS"),

			ConnectivityInterval: seconds(v, "CONNECTIVITY_CHECK_SECONDS"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync_interval_seconds должен быть больше нуля")
	}
	if c.Sync.MaxParallel <= 0 {
		return fmt.Errorf("sync_max_parallel должен быть больше нуля")
	}
	if c.Sync.ConnectivityInterval <= 0 {
		return fmt.Errorf("connectivity_check_seconds должен быть больше нуля")
	}
	return nil
}

// BaseURL - адрес сервера с протоколом
func (c *Config) BaseURL() string {
	if c.EnableTLS {
		return "https://" + c.ServerAddress
	}
	return "http://" + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == EnvProd
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == EnvDev
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == EnvLocal || c.Env == ""
}
