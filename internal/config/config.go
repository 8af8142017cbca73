package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN                string
	Environment          string
	Timezone             string
	SweepIntervalMinutes int
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables win in deployments.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:       os.Getenv("DB_DSN"),
		Environment: os.Getenv("ENV"),
		Timezone:    os.Getenv("TIMEZONE"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	cfg.SweepIntervalMinutes = 10
	if raw := os.Getenv("SWEEP_INTERVAL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL_MINUTES %q", raw)
		}
		cfg.SweepIntervalMinutes = minutes
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	return cfg, nil
}

// Location resolves the configured time zone all slot grids are built in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SweepInterval returns the sweeper cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}
