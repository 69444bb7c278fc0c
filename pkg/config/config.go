package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultEndpoint            = "http://127.0.0.1:8899"
	DefaultWSEndpoint          = "ws://127.0.0.1:8900"
	DefaultDialTimeout         = 4 * time.Second
	DefaultRequestTimeout      = 4 * time.Second
	DefaultCommitment          = solrpc.Confirmed
	DefaultPollInterval        = 400 * time.Millisecond
	DefaultPollRetryCount      = 3
	DefaultRebroadcastInterval = 2 * time.Second
	DefaultConfirmationTimeout = 60 * time.Second
	DefaultLogLevel            = "info"
	DefaultPrometheusAddress   = ":2112"
)

// Version is the version of soltx, set at build time.
var Version string

// Config is the top level configuration of soltx.
type Config struct {
	RPC          RPC          `yaml:"RPC"`
	Confirmation Confirmation `yaml:"Confirmation"`
	Logger       Logger       `yaml:"Logger"`
	Prometheus   BasicService `yaml:"Prometheus"`
}

// Default returns configuration with all the default values set.
func Default() Config {
	return Config{
		RPC: RPC{
			Endpoint:       DefaultEndpoint,
			WSEndpoint:     DefaultWSEndpoint,
			DialTimeout:    DefaultDialTimeout,
			RequestTimeout: DefaultRequestTimeout,
			Burst:          1,
		},
		Confirmation: Confirmation{
			Commitment:          DefaultCommitment,
			PollInterval:        DefaultPollInterval,
			PollRetryCount:      DefaultPollRetryCount,
			RebroadcastInterval: DefaultRebroadcastInterval,
			Timeout:             DefaultConfirmationTimeout,
		},
		Logger: Logger{
			LogLevel:    DefaultLogLevel,
			LogEncoding: "console",
		},
		Prometheus: BasicService{
			Addresses: []string{DefaultPrometheusAddress},
		},
	}
}

// LoadFile loads config from the provided path. Values missing from the file
// keep their defaults.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Unmarshal(configData)
}

// Unmarshal decodes YAML config data on top of the defaults and validates
// the result. Unknown fields are rejected.
func Unmarshal(data []byte) (Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config is invalid: %w", err)
	}
	return config, nil
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("RPC: %w", err)
	}
	if err := c.Confirmation.Validate(); err != nil {
		return fmt.Errorf("Confirmation: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("Logger: %w", err)
	}
	if c.Prometheus.Enabled && len(c.Prometheus.Addresses) == 0 {
		return errors.New("Prometheus: no addresses to listen on")
	}
	return nil
}
