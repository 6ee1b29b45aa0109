// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"os"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	Environment      string
	DatabaseURL      string
	ListenAddr       string
	EInvoiceProvider string
	BankingProvider  string
	MaxBodyBytes     int64
}

const defaultMaxBodyBytes = 1 << 20

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:      os.Getenv("APP_ENV"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		EInvoiceProvider: os.Getenv("EINVOICE_PROVIDER"),
		BankingProvider:  os.Getenv("BANKING_PROVIDER"),
		MaxBodyBytes:     defaultMaxBodyBytes,
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.EInvoiceProvider == "" {
		cfg.EInvoiceProvider = "sandbox"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is complete for its environment.
// Development and testing may run on the sandbox e-invoice provider;
// production must name a real one.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	if c.Environment == "production" || c.Environment == "staging" {
		if c.EInvoiceProvider == "sandbox" {
			return errors.New("EINVOICE_PROVIDER must name a real provider in " + c.Environment)
		}
		if c.BankingProvider == "" {
			return errors.New("missing required environment variables for " + c.Environment + ": BANKING_PROVIDER")
		}
	}

	return nil
}

// IsProduction reports whether the service runs in a production-like
// environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}
