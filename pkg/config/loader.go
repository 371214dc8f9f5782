package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

// Environment variables overriding file-borne secrets.
const (
	envRedisPassword = "CALLBACKD_REDIS_PASSWORD"
	envSASLPassword  = "CALLBACKD_KAFKA_SASL_PASSWORD"
	envGraphOSKey    = "CALLBACKD_GRAPHOS_KEY"
)

// Load reads, defaults, environment-overrides and validates a YAML
// configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	return Parse(data)
}

// Parse decodes, defaults, environment-overrides and validates raw YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.RouterEndpoint.Hostname == "" {
		c.RouterEndpoint.Hostname = "0.0.0.0"
	}
	if c.RouterEndpoint.Path == "" {
		c.RouterEndpoint.Path = "/graphql"
	}
	if c.HealthEndpoint.Hostname == "" {
		c.HealthEndpoint.Hostname = "0.0.0.0"
	}
	if c.HealthEndpoint.Path == "" {
		c.HealthEndpoint.Path = "/health"
	}
	if c.Schema.LinkVersion == "" {
		c.Schema.LinkVersion = "1.0"
	}
	if c.Schema.FederationVersion == "" {
		c.Schema.FederationVersion = "2.0"
	}
	for i := range c.Listeners {
		for j := range c.Listeners[i].Topics {
			topic := &c.Listeners[i].Topics[j]
			if topic.DataSerde == "" {
				topic.DataSerde = SerdeProtobufWire
			}
			if topic.DataSource == "" {
				topic.DataSource = SourceKey
			}
		}
	}
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv(envRedisPassword); v != "" {
		c.KVStore.Redis.Password = v
	}
	if v := os.Getenv(envSASLPassword); v != "" {
		c.MessageConsumer.Kafka.SASLPassword = v
	}
	if v := os.Getenv(envGraphOSKey); v != "" {
		c.GraphOS.Apollo.Key = v
	}
}
