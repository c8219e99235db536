// Package config содержит логику чтения конфигурации сервиса LodgeEase.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultTimezone     = "Asia/Manila"
	defaultSyncInterval = 5 * time.Second
)

// Config содержит параметры конфигурации сервиса LodgeEase.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	RoomServiceAddress string        `env:"ROOM_SERVICE_ADDRESS"`
	OperatorSecret     string        `env:"OPERATOR_SECRET"`
	Timezone           string        `env:"TIMEZONE"`
	SyncInterval       time.Duration `env:"SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RoomServiceAddress, "r", "", "room booking service address")
	flag.StringVar(&cfg.OperatorSecret, "s", "", "operator token signing secret")
	flag.StringVar(&cfg.Timezone, "tz", defaultTimezone, "timezone for daily and monthly windows")
	flag.DurationVar(&cfg.SyncInterval, "i", defaultSyncInterval, "linked record sync retry interval")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.RoomServiceAddress != "" {
		cfg.RoomServiceAddress = envCfg.RoomServiceAddress
	}
	if envCfg.OperatorSecret != "" {
		cfg.OperatorSecret = envCfg.OperatorSecret
	}
	if envCfg.Timezone != "" {
		cfg.Timezone = envCfg.Timezone
	}
	if envCfg.SyncInterval > 0 {
		cfg.SyncInterval = envCfg.SyncInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location возвращает часовой пояс, в котором считаются дневные и месячные окна.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
