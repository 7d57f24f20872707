package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN              string `env:"DATABASE_DSN,required=true"`
	RedisURL                 string `env:"REDIS_URL,required=true"`
	JWTSecret                string `env:"JWT_SECRET,required=true"`
	MailAPIURL               string `env:"MAIL_API_URL"`
	MailAPIKey               string `env:"MAIL_API_KEY"`
	MailFrom                 string `env:"MAIL_FROM,default=noreply@costavn.local"`
	RecipientCacheTTLSeconds int    `env:"RECIPIENT_CACHE_TTL_SECONDS,default=60"`
	ActionQueueCapacity      int    `env:"ACTION_QUEUE_CAPACITY,default=1024"`
	StreamHeartbeatSeconds   int    `env:"STREAM_HEARTBEAT_SECONDS,default=25"`
	APIPort                  int    `env:"API_PORT,default=8080"`
	LogLevel                 string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) RecipientCacheTTL() time.Duration {
	return time.Duration(c.RecipientCacheTTLSeconds) * time.Second
}

func (c *Config) StreamHeartbeat() time.Duration {
	return time.Duration(c.StreamHeartbeatSeconds) * time.Second
}
