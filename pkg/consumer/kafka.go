package consumer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
)

// Security protocols.
const (
	SecurityPlaintext     = "PLAINTEXT"
	SecuritySSL           = "SSL"
	SecuritySASLPlaintext = "SASL_PLAINTEXT"
	SecuritySASLSSL       = "SASL_SSL"
)

// SASL mechanisms.
const (
	MechanismPlain       = "PLAIN"
	MechanismScramSha256 = "SCRAM-SHA-256"
	MechanismScramSha512 = "SCRAM-SHA-512"
)

// ErrNotSubscribed is returned by Recv before Subscribe was called.
var ErrNotSubscribed = errors.New("consumer is not subscribed")

// KafkaConfig holds connection settings for the Kafka backend.
type KafkaConfig struct {
	Brokers             []string `json:"brokers" yaml:"brokers"`
	SecurityProtocol    string   `json:"securityProtocol,omitempty" yaml:"security_protocol,omitempty"`
	SASLMechanism       string   `json:"saslMechanism,omitempty" yaml:"sasl_mechanism,omitempty"`
	SASLUsername        string   `json:"saslUsername,omitempty" yaml:"sasl_username,omitempty"`
	SASLPassword        string   `json:"saslPassword,omitempty" yaml:"sasl_password,omitempty"`
	SessionTimeoutMS    int64    `json:"sessionTimeoutMs,omitempty" yaml:"session_timeout_ms,omitempty"`
	HeartbeatIntervalMS int64    `json:"heartbeatIntervalMs,omitempty" yaml:"heartbeat_interval_ms,omitempty"`
}

// KafkaFactory creates one Kafka consumer per operation. The service name
// becomes the client id and the consumer group prefix.
type KafkaFactory struct {
	cfg         KafkaConfig
	serviceName string
	logger      *slog.Logger
}

// NewKafkaFactory validates the connection settings and returns a factory.
func NewKafkaFactory(cfg KafkaConfig, serviceName string, logger *slog.Logger) (*KafkaFactory, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if _, _, err := securityOptions(cfg); err != nil {
		return nil, err
	}
	return &KafkaFactory{cfg: cfg, serviceName: serviceName, logger: logger}, nil
}

// New returns an unsubscribed consumer for the operation. The group id is
// the service name joined with the lowercased operation.
func (f *KafkaFactory) New(_ context.Context, operation string) (Consumer, error) {
	return &kafkaConsumer{
		cfg:         f.cfg,
		serviceName: f.serviceName,
		groupID:     GroupID(f.serviceName, operation),
		logger:      f.logger,
	}, nil
}

type kafkaConsumer struct {
	cfg         KafkaConfig
	serviceName string
	groupID     string
	logger      *slog.Logger

	client  *kgo.Client
	pending []*kgo.Record
}

// Subscribe joins the consumer group and starts consuming the topics.
// Offsets auto-commit.
func (c *kafkaConsumer) Subscribe(_ context.Context, topics []string) error {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.cfg.Brokers...),
		kgo.ClientID(c.serviceName),
		kgo.ConsumerGroup(c.groupID),
		kgo.ConsumeTopics(topics...),
	}
	if c.cfg.SessionTimeoutMS > 0 {
		opts = append(opts, kgo.SessionTimeout(time.Duration(c.cfg.SessionTimeoutMS)*time.Millisecond))
	}
	if c.cfg.HeartbeatIntervalMS > 0 {
		opts = append(opts, kgo.HeartbeatInterval(time.Duration(c.cfg.HeartbeatIntervalMS)*time.Millisecond))
	}

	mech, tlsEnabled, err := securityOptions(c.cfg)
	if err != nil {
		return err
	}
	if mech != nil {
		opts = append(opts, kgo.SASL(mech))
	}
	if tlsEnabled {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	c.client = client
	c.logger.Info("consumer subscribed", "group_id", c.groupID, "topics", topics)
	return nil
}

// Recv returns the next record, polling the broker when the local buffer
// drains.
func (c *kafkaConsumer) Recv(ctx context.Context) (Record, error) {
	if c.client == nil {
		return Record{}, ErrNotSubscribed
	}

	for len(c.pending) == 0 {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return Record{}, kgo.ErrClientClosed
		}
		if err := ctx.Err(); err != nil {
			return Record{}, err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			return Record{}, fmt.Errorf("fetch %s: %w", errs[0].Topic, errs[0].Err)
		}
		c.pending = fetches.Records()
	}

	record := c.pending[0]
	c.pending = c.pending[1:]
	return Record{Key: record.Key, Value: record.Value, Topic: record.Topic}, nil
}

// Close leaves the group and releases the connection.
func (c *kafkaConsumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// securityOptions maps the configured security protocol and SASL mechanism
// to franz-go options.
func securityOptions(cfg KafkaConfig) (sasl.Mechanism, bool, error) {
	var tlsEnabled, saslEnabled bool
	switch cfg.SecurityProtocol {
	case "", SecurityPlaintext:
	case SecuritySSL:
		tlsEnabled = true
	case SecuritySASLPlaintext:
		saslEnabled = true
	case SecuritySASLSSL:
		saslEnabled = true
		tlsEnabled = true
	default:
		return nil, false, fmt.Errorf("unknown security protocol %q", cfg.SecurityProtocol)
	}

	if !saslEnabled {
		return nil, tlsEnabled, nil
	}

	switch cfg.SASLMechanism {
	case MechanismPlain:
		return plain.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsMechanism(), tlsEnabled, nil
	case MechanismScramSha256:
		return scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha256Mechanism(), tlsEnabled, nil
	case MechanismScramSha512:
		return scram.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsSha512Mechanism(), tlsEnabled, nil
	default:
		return nil, false, fmt.Errorf("unknown sasl mechanism %q", cfg.SASLMechanism)
	}
}
