package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Dispatch DispatchConfig
	Campaign CampaignConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

// GatewayConfig holds the provider webhook endpoints, one per channel.
type GatewayConfig struct {
	SMSWebhookURL  string
	PushWebhookURL string
}

type DispatchConfig struct {
	SendTimeout time.Duration
}

type CampaignConfig struct {
	Interval  time.Duration
	BatchSize int
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// AMQPConfig is the optional event-bus block, enabled by AMQP_URL.
type AMQPConfig struct {
	Enabled      bool
	URL          string
	Exchange     string
	ConsumerName string
	Topic        string
	DeadLetter   bool
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		errs = append(errs, err)
	}
	smsURL, err := requireEnv("SMS_WEBHOOK_URL")
	if err != nil {
		errs = append(errs, err)
	}
	pushURL, err := requireEnv("PUSH_WEBHOOK_URL")
	if err != nil {
		errs = append(errs, err)
	}

	sendTimeout, err := getEnvInt("SEND_TIMEOUT_SECONDS", 10)
	if err != nil {
		errs = append(errs, err)
	}
	campaignInterval, err := getEnvInt("CAMPAIGN_INTERVAL_SECONDS", 30)
	if err != nil {
		errs = append(errs, err)
	}
	campaignBatch, err := getEnvInt("CAMPAIGN_BATCH_SIZE", 10)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}
	amqpCfg := loadAMQPConfig()

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		Gateway: GatewayConfig{
			SMSWebhookURL:  smsURL,
			PushWebhookURL: pushURL,
		},
		Dispatch: DispatchConfig{
			SendTimeout: time.Duration(sendTimeout) * time.Second,
		},
		Campaign: CampaignConfig{
			Interval:  time.Duration(campaignInterval) * time.Second,
			BatchSize: campaignBatch,
		},
		Redis: redisCfg,
		AMQP:  amqpCfg,
	}

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors(errs)
}

func loadAMQPConfig() AMQPConfig {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		return AMQPConfig{Enabled: false}
	}

	return AMQPConfig{
		Enabled:      true,
		URL:          url,
		Exchange:     getEnv("AMQP_EXCHANGE", "notifications"),
		ConsumerName: getEnv("AMQP_CONSUMER_NAME", "dispatcher"),
		Topic:        getEnv("AMQP_TOPIC", "notifications.triggered"),
		DeadLetter:   os.Getenv("AMQP_DEAD_LETTER") == "1",
	}
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Dispatch.SendTimeout <= 0 {
		errs = append(errs, errors.New("SEND_TIMEOUT_SECONDS must be > 0"))
	}
	if cfg.Campaign.Interval <= 0 {
		errs = append(errs, errors.New("CAMPAIGN_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Campaign.BatchSize <= 0 {
		errs = append(errs, errors.New("CAMPAIGN_BATCH_SIZE must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	return errors.Join(nonNil...)
}
