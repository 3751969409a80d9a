package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	KYCGRPCURL      string
	ProviderGRPCURL string

	KafkaBrokers   []string
	AnalyticsTopic string
	DLQTopic       string
	ConsumerGroup  string
	ConsumerTopics []string

	JWTSecret        string
	RateChangeSecret string

	DefaultCurrency     string
	MinimumPayoutMinor  int64
	ProviderTimeout     time.Duration
	ProviderMaxAttempts int
	ProviderBackoff     time.Duration

	EscrowAutoReleaseHours  int
	EscrowReleaseFloorHours int
	EscrowReleaseCeilHours  int
	EscrowRefundWindowDays  int

	RoyaltyRatePer1KMinor   int64
	RoyaltyBatchParallelism int

	IdempotencyTTL time.Duration
	RunLockTTL     time.Duration
	OutboxInterval time.Duration
	MatureInterval time.Duration
	EscrowInterval time.Duration
	PayoutInterval time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		DatabaseURL     string   `yaml:"database_url"`
		RedisURL        string   `yaml:"redis_url"`
		KYCGRPCURL      string   `yaml:"kyc_grpc_url"`
		ProviderGRPCURL string   `yaml:"provider_grpc_url"`
		KafkaBrokers    []string `yaml:"kafka_brokers"`
		AnalyticsTopic  string   `yaml:"analytics_topic"`
		DLQTopic        string   `yaml:"dlq_topic"`
		ConsumerGroup   string   `yaml:"consumer_group"`
		ConsumerTopics  []string `yaml:"consumer_topics"`
	} `yaml:"dependencies"`
	Ledger struct {
		DefaultCurrency       string `yaml:"default_currency"`
		MinimumPayoutMinor    int64  `yaml:"minimum_payout_minor"`
		RoyaltyRatePer1KMinor int64  `yaml:"royalty_rate_per_1k_minor"`
		EscrowAutoReleaseH    int    `yaml:"escrow_auto_release_hours"`
		EscrowReleaseFloorH   int    `yaml:"escrow_release_floor_hours"`
		EscrowReleaseCeilH    int    `yaml:"escrow_release_ceiling_hours"`
		EscrowRefundWindowD   int    `yaml:"escrow_refund_window_days"`
	} `yaml:"ledger"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:               "Revenue-Ledger-Service",
		HTTPPort:                8080,
		GRPCPort:                9090,
		AnalyticsTopic:          "analytics.revenue",
		DLQTopic:                "revenue-ledger.dlq",
		DefaultCurrency:         "EUR",
		MinimumPayoutMinor:      1000,
		ProviderTimeout:         10 * time.Second,
		ProviderMaxAttempts:     3,
		ProviderBackoff:         2 * time.Second,
		EscrowAutoReleaseHours:  120,
		EscrowReleaseFloorHours: 48,
		EscrowReleaseCeilHours:  336,
		EscrowRefundWindowDays:  14,
		RoyaltyRatePer1KMinor:   400,
		RoyaltyBatchParallelism: 4,
		IdempotencyTTL:          7 * 24 * time.Hour,
		RunLockTTL:              15 * time.Minute,
		OutboxInterval:          2 * time.Second,
		MatureInterval:          time.Minute,
		EscrowInterval:          5 * time.Minute,
		PayoutInterval:          time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = f.Dependencies.DatabaseURL
		cfg.RedisURL = f.Dependencies.RedisURL
		cfg.KYCGRPCURL = f.Dependencies.KYCGRPCURL
		cfg.ProviderGRPCURL = f.Dependencies.ProviderGRPCURL
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.AnalyticsTopic != "" {
			cfg.AnalyticsTopic = f.Dependencies.AnalyticsTopic
		}
		if f.Dependencies.DLQTopic != "" {
			cfg.DLQTopic = f.Dependencies.DLQTopic
		}
		if f.Dependencies.ConsumerGroup != "" {
			cfg.ConsumerGroup = f.Dependencies.ConsumerGroup
		}
		if len(f.Dependencies.ConsumerTopics) > 0 {
			cfg.ConsumerTopics = trimNonEmpty(f.Dependencies.ConsumerTopics)
		}
		if f.Ledger.DefaultCurrency != "" {
			cfg.DefaultCurrency = strings.ToUpper(f.Ledger.DefaultCurrency)
		}
		if f.Ledger.MinimumPayoutMinor > 0 {
			cfg.MinimumPayoutMinor = f.Ledger.MinimumPayoutMinor
		}
		if f.Ledger.RoyaltyRatePer1KMinor > 0 {
			cfg.RoyaltyRatePer1KMinor = f.Ledger.RoyaltyRatePer1KMinor
		}
		if f.Ledger.EscrowAutoReleaseH > 0 {
			cfg.EscrowAutoReleaseHours = f.Ledger.EscrowAutoReleaseH
		}
		if f.Ledger.EscrowReleaseFloorH > 0 {
			cfg.EscrowReleaseFloorHours = f.Ledger.EscrowReleaseFloorH
		}
		if f.Ledger.EscrowReleaseCeilH > 0 {
			cfg.EscrowReleaseCeilHours = f.Ledger.EscrowReleaseCeilH
		}
		if f.Ledger.EscrowRefundWindowD > 0 {
			cfg.EscrowRefundWindowDays = f.Ledger.EscrowRefundWindowD
		}
	}

	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KYCGRPCURL = envOrDefault("KYC_GRPC_URL", cfg.KYCGRPCURL)
	cfg.ProviderGRPCURL = envOrDefault("PROVIDER_GRPC_URL", cfg.ProviderGRPCURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.AnalyticsTopic = envOrDefault("KAFKA_TOPIC_ANALYTICS", cfg.AnalyticsTopic)
	cfg.DLQTopic = envOrDefault("KAFKA_TOPIC_DLQ", cfg.DLQTopic)
	cfg.ConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", cfg.ConsumerGroup)
	cfg.ConsumerTopics = envCSV("KAFKA_CONSUMER_TOPICS", cfg.ConsumerTopics)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.RateChangeSecret = envOrDefault("RATE_CHANGE_SECRET", cfg.RateChangeSecret)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.PayoutInterval = time.Duration(envInt("PAYOUT_BATCH_INTERVAL_MINUTES", int(cfg.PayoutInterval.Minutes()))) * time.Minute

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
