// Package config содержит логику чтения конфигурации магазина мебели.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress       = "localhost:8080"
	defaultOrderEventsTopic = "guest-orders"
	defaultDeliveryLeadDays = 7
)

// Config содержит параметры конфигурации магазина.
type Config struct {
	RunAddress            string `env:"RUN_ADDRESS"`
	DatabaseURI           string `env:"DATABASE_URI"`
	CatalogServiceAddress string `env:"CATALOG_SERVICE_ADDRESS"`
	KafkaBrokers          string `env:"KAFKA_BROKERS"`
	OrderEventsTopic      string `env:"ORDER_EVENTS_TOPIC" envDefault:"guest-orders"`
	DeliveryLeadDays      int    `env:"DELIVERY_LEAD_DAYS" envDefault:"7"`
}

// DeliveryLeadTime возвращает срок доставки, добавляемый к дате заказа.
func (c *Config) DeliveryLeadTime() time.Duration {
	return time.Duration(c.DeliveryLeadDays) * 24 * time.Hour
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envCatalogAddress := cfg.CatalogServiceAddress
	envKafkaBrokers := cfg.KafkaBrokers

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage if empty")
	flag.StringVar(&cfg.CatalogServiceAddress, "c", "", "product catalog service address")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "kafka bootstrap servers for order events")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envCatalogAddress != "" {
		cfg.CatalogServiceAddress = envCatalogAddress
	}
	if envKafkaBrokers != "" {
		cfg.KafkaBrokers = envKafkaBrokers
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.OrderEventsTopic == "" {
		cfg.OrderEventsTopic = defaultOrderEventsTopic
	}
	if cfg.DeliveryLeadDays < 0 {
		return nil, fmt.Errorf("delivery lead days must not be negative, got %d", cfg.DeliveryLeadDays)
	}

	return cfg, nil
}
