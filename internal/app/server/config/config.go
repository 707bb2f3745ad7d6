package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPath  = "../../.env"
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

type Config struct {
	Env    string
	DB     db
	Server server
}

type db struct {
	DatabaseURI string
	Migrations  string
}

type server struct {
	RunAddress      string
	SessionTTL      time.Duration
	MaxBatch        int
	MaxChanges      int
	CommitWindow    time.Duration
	ShutdownTimeout time.Duration
}

// MustLoad загружает конфигурацию сервера
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

func Load() (*Config, error) {
	for _, p := range []string{".env", envPath} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				return nil, fmt.Errorf("load %s: %w", p, err)
			}
			break
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", EnvLocal)
	v.SetDefault("RUN_ADDRESS", ":8080")
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("SESSION_TTL_HOURS", 24*30)
	v.SetDefault("SYNC_MAX_BATCH", 500)
	v.SetDefault("SYNC_MAX_CHANGES", 10000)
	v.SetDefault("SYNC_COMMIT_WINDOW_SECONDS", 30)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		DB: db{
			DatabaseURI: v.GetString("DATABASE_URI"),
			Migrations:  v.GetString("MIGRATIONS_PATH"),
		},
		Server: server{
			RunAddress:      v.GetString("RUN_ADDRESS"),
			SessionTTL:      time.Duration(v.GetInt("SESSION_TTL_HOURS")) * time.Hour,
			MaxBatch:        v.GetInt("SYNC_MAX_BATCH"),
			MaxChanges:      v.GetInt("SYNC_MAX_CHANGES"),
			CommitWindow:    time.Duration(v.GetInt("SYNC_COMMIT_WINDOW_SECONDS")) * time.Second,
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
	}

	if cfg.DB.DatabaseURI == "" {
		return nil, fmt.Errorf("DATABASE_URI не задан")
	}
	if cfg.Server.MaxBatch <= 0 || cfg.Server.MaxChanges <= 0 {
		return nil, fmt.Errorf("лимиты синхронизации должны быть больше нуля")
	}
	// страница изменений из одного пакета не сдвинула бы курсор
	if cfg.Server.MaxChanges <= cfg.Server.MaxBatch {
		return nil, fmt.Errorf("SYNC_MAX_CHANGES (%d) должен быть больше SYNC_MAX_BATCH (%d)",
			cfg.Server.MaxChanges, cfg.Server.MaxBatch)
	}
	if cfg.Server.CommitWindow <= 0 {
		return nil, fmt.Errorf("SYNC_COMMIT_WINDOW_SECONDS должен быть больше нуля")
	}
	return cfg, nil
}
