package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

var (
	ErrIncomplete   = errors.New("incomplete configuration")
	ErrPollInterval = errors.New("poll interval must be a whole number of seconds")
)

type Config struct {
	SolaxCfg *SolaxConfig
	SinkCfg  *SinkConfig
	LogLevel string
}

type SolaxConfig struct {
	Host            string
	Password        string
	DeviceSerial    string
	UseForwardedFor bool
	PollInterval    time.Duration
	Timeout         time.Duration
	Retries         uint64
	RetryDelay      time.Duration
	Cooldown        time.Duration
}

// Validate reports ErrIncomplete when the device cannot be reached with
// what was given. An unset poll interval is left to the caller.
func (c *SolaxConfig) Validate() error {
	if c == nil || c.Host == "" || c.Password == "" {
		return ErrIncomplete
	}
	if c.PollInterval != 0 && (c.PollInterval < time.Second || c.PollInterval%time.Second != 0) {
		return fmt.Errorf("%w: %s", ErrPollInterval, c.PollInterval)
	}
	return nil
}

// SinkConfig configures where decoded values go. Sinks with no address are
// disabled.
type SinkConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8000"`
	JWTSecret       string        `env:"JWT_SECRET"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE" envDefault:"CRON_TZ=Australia/Adelaide 0 3 * * *"`
	MqttHost        string        `env:"MQTT_HOST"`
	MqttUser        string        `env:"MQTT_USER"`
	MqttPass        string        `env:"MQTT_PASS"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT" envDefault:"10s"`
}

func LoadSinks() (*SinkConfig, error) {
	cfg, err := env.ParseAs[SinkConfig]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
