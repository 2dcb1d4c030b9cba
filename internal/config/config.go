package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Release     string
	Location    *time.Location

	OutboxInterval time.Duration
	OutboxBatch    int
	RiskThreshold  int
	ResolveWindow  time.Duration
}

func Load() (*Config, error) {
	tz := getenv("TZ", "Europe/Moscow")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}

	outboxInterval, err := time.ParseDuration(getenv("OUTBOX_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("OUTBOX_INTERVAL: %w", err)
	}
	resolveWindow, err := time.ParseDuration(getenv("RESOLVE_WINDOW", "168h"))
	if err != nil {
		return nil, fmt.Errorf("RESOLVE_WINDOW: %w", err)
	}
	outboxBatch, err := getint("OUTBOX_BATCH", 50)
	if err != nil {
		return nil, err
	}
	threshold, err := getint("RISK_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}
	if threshold < 1 {
		return nil, fmt.Errorf("RISK_THRESHOLD must be positive, got %d", threshold)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("required env DATABASE_URL is empty")
	}

	return &Config{
		DatabaseURL:    dsn,
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Env:            getenv("ENV", "dev"),
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		Release:        getenv("RELEASE", "dev"),
		Location:       loc,
		OutboxInterval: outboxInterval,
		OutboxBatch:    outboxBatch,
		RiskThreshold:  threshold,
		ResolveWindow:  resolveWindow,
	}, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
