// Package config содержит логику чтения конфигурации сервиса проката.
package config

import (
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress       = "localhost:8080"
	defaultReportTimezone   = "UTC"
	defaultLogLevel         = "info"
	defaultReservationGrace = 48 * time.Hour
	defaultSweepSchedule    = "0 */30 * * * *"
	defaultPollInterval     = 5 * time.Second
	defaultPhoneRegion      = "VN"
	defaultDatabaseMaxConns = 10
)

// Config содержит параметры конфигурации сервиса проката.
type Config struct {
	RunAddress               string        `env:"RUN_ADDRESS"`
	DatabaseURI              string        `env:"DATABASE_URI"`
	DatabaseMaxConns         int           `env:"DATABASE_MAX_CONNS"`
	PaymentGatewayAddress    string        `env:"PAYMENT_GATEWAY_ADDRESS"`
	AuthSecret               string        `env:"AUTH_SECRET"`
	ReportTimezone           string        `env:"REPORT_TIMEZONE"`
	LogLevel                 string        `env:"LOG_LEVEL"`
	ReservationGrace         time.Duration `env:"RESERVATION_GRACE"`
	ReservationSweepSchedule string        `env:"RESERVATION_SWEEP_SCHEDULE"`
	PaymentPollInterval      time.Duration `env:"PAYMENT_POLL_INTERVAL"`
	PhoneRegion              string        `env:"PHONE_REGION"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	envCfg := Config{}
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.IntVar(&cfg.DatabaseMaxConns, "dbconns", defaultDatabaseMaxConns, "database pool size")
	flag.StringVar(&cfg.PaymentGatewayAddress, "p", "", "payment gateway address")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing session tokens")
	flag.StringVar(&cfg.ReportTimezone, "tz", defaultReportTimezone, "IANA time zone for reports")
	flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")
	flag.DurationVar(&cfg.ReservationGrace, "g", defaultReservationGrace, "how long a reservation may stay unpicked after its planned pickup")
	flag.StringVar(&cfg.ReservationSweepSchedule, "cron", defaultSweepSchedule, "cron schedule (with seconds) for the stale reservation sweep")
	flag.DurationVar(&cfg.PaymentPollInterval, "poll", defaultPollInterval, "payment gateway poll interval")
	flag.StringVar(&cfg.PhoneRegion, "region", defaultPhoneRegion, "ISO country code for customer phones without an international prefix")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.DatabaseMaxConns > 0 {
		cfg.DatabaseMaxConns = envCfg.DatabaseMaxConns
	}
	if envCfg.PaymentGatewayAddress != "" {
		cfg.PaymentGatewayAddress = envCfg.PaymentGatewayAddress
	}
	if envCfg.AuthSecret != "" {
		cfg.AuthSecret = envCfg.AuthSecret
	}
	if envCfg.ReportTimezone != "" {
		cfg.ReportTimezone = envCfg.ReportTimezone
	}
	if envCfg.LogLevel != "" {
		cfg.LogLevel = envCfg.LogLevel
	}
	if envCfg.ReservationGrace != 0 {
		cfg.ReservationGrace = envCfg.ReservationGrace
	}
	if envCfg.ReservationSweepSchedule != "" {
		cfg.ReservationSweepSchedule = envCfg.ReservationSweepSchedule
	}
	if envCfg.PaymentPollInterval != 0 {
		cfg.PaymentPollInterval = envCfg.PaymentPollInterval
	}
	if envCfg.PhoneRegion != "" {
		cfg.PhoneRegion = envCfg.PhoneRegion
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if cfg.PaymentPollInterval <= 0 {
		return nil, fmt.Errorf("payment poll interval must be positive, got %s", cfg.PaymentPollInterval)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location возвращает часовой пояс отчётов.
func (c *Config) Location() (*time.Location, error) {
	if c.ReportTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("load report timezone %q: %w", c.ReportTimezone, err)
	}
	return loc, nil
}
