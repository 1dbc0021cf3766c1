package main

import (
	"fmt"
	"log/slog"
	"mqtt-chat/domain"
	chaterrors "mqtt-chat/errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the environment defaults. Command-line flags override them.
type Config struct {
	Server          string        `env:"CHAT_SERVER,default=broker.hivemq.com"`
	Port            int           `env:"CHAT_PORT,default=1883"`
	Transport       string        `env:"CHAT_TRANSPORT,default=mqtt"`
	SessionDir      string        `env:"CHAT_SESSION_DIR"`
	CleanSession    bool          `env:"CHAT_CLEAN_SESSION,default=false"`
	Colors          bool          `env:"CHAT_COLORS,default=true"`
	LogLevel        string        `env:"LOG_LEVEL,default=WARN"`
	ConnectTimeout  time.Duration `env:"CHAT_CONNECT_TIMEOUT,default=10s"`
	SendTimeout     time.Duration `env:"CHAT_SEND_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT,default=5s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	RedisPassword   string        `env:"CHAT_REDIS_PASSWORD"`
	RedisDB         int           `env:"CHAT_REDIS_DB,default=0"`
}

// Settings is the resolved configuration of one run.
type Settings struct {
	Topic        string `validate:"required"`
	Username     string `validate:"required"`
	Server       string `validate:"required"`
	Port         int    `validate:"min=1,max=65535"`
	Transport    string `validate:"oneof=mqtt redis"`
	SessionDir   string
	CleanSession bool
	NoColor      bool
	LogLevel     string
}

var validate = validator.New()

// NewSettings seeds the flag values from the environment.
func NewSettings(config Config) Settings {
	return Settings{
		Server:       config.Server,
		Port:         config.Port,
		Transport:    config.Transport,
		SessionDir:   config.SessionDir,
		CleanSession: config.CleanSession,
		NoColor:      !config.Colors,
		LogLevel:     config.LogLevel,
	}
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", chaterrors.ErrInvalidConfig, err)
	}
	return nil
}

// Level parses LogLevel the way slog does ("debug", "WARN", "INFO+2").
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("%w: log level: %w", chaterrors.ErrInvalidConfig, err)
	}
	return level, nil
}

func (s Settings) SessionConfig() domain.SessionConfig {
	return domain.SessionConfig{
		Topic:        s.Topic,
		Identity:     s.Username,
		Host:         s.Server,
		Port:         s.Port,
		CleanSession: s.CleanSession,
	}
}
