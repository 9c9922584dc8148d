package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath        string
	SessionPath   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	LogLevel      slog.Level
}

// LoadConfig reads settings from the environment, after loading a .env file
// from the working directory if there is one.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		DBPath:        getEnv("DB_PATH", "./bekasberkah.db"),
		SessionPath:   getEnv("SESSION_PATH", "./.bekasberkah-session.json"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisChannel:  getEnv("REDIS_CHANNEL", "bekasberkah:changes"),
		LogLevel:      slog.LevelInfo,
	}

	if raw := getEnv("REDIS_DB", ""); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			slog.Warn("Invalid REDIS_DB. Falling back to 0.", "REDIS_DB", raw)
		} else {
			cfg.RedisDB = db
		}
	}

	if lvl := getEnv("LOG_LEVEL", ""); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(lvl))); err != nil {
			slog.Warn("Invalid LOG_LEVEL. Falling back to INFO.", "LOG_LEVEL", lvl)
			cfg.LogLevel = slog.LevelInfo
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
