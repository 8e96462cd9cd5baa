// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel"
)

// Config holds configuration readers for the Kafka consumer.
type Config struct {
	Brokers          config.Reader[[]string]
	GroupID          config.Reader[string]
	Topic            config.Reader[string]
	SessionTimeout   config.Reader[time.Duration]
	RebalanceTimeout config.Reader[time.Duration]
	FetchMaxBytes    config.Reader[int32]
	TLSConfig        config.Reader[*tls.Config]
}

// BrokersFromEnv reads comma separated broker addresses from KAFKA_BROKERS.
func BrokersFromEnv() config.Reader[[]string] {
	return config.ListFromString(",", config.Env("KAFKA_BROKERS"))
}

// GroupIDFromEnv reads the consumer group ID from KAFKA_GROUP_ID.
func GroupIDFromEnv() config.Reader[string] {
	return config.Env("KAFKA_GROUP_ID")
}

// TopicFromEnv reads the topic to consume from KAFKA_TOPIC.
func TopicFromEnv() config.Reader[string] {
	return config.Env("KAFKA_TOPIC")
}

// SessionTimeoutFromEnv reads the session timeout from KAFKA_SESSION_TIMEOUT.
func SessionTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_SESSION_TIMEOUT"))
}

// RebalanceTimeoutFromEnv reads the rebalance timeout from KAFKA_REBALANCE_TIMEOUT.
func RebalanceTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("KAFKA_REBALANCE_TIMEOUT"))
}

// FetchMaxBytesFromEnv reads the maximum fetch size from KAFKA_FETCH_MAX_BYTES.
func FetchMaxBytesFromEnv() config.Reader[int32] {
	return config.Map(
		config.Int64FromString(config.Env("KAFKA_FETCH_MAX_BYTES")),
		func(ctx context.Context, n int64) (int32, error) {
			if n <= 0 || n > 1<<31-1 {
				return 0, fmt.Errorf("kafka: fetch max bytes out of range: %d", n)
			}
			return int32(n), nil
		},
	)
}

// TLSConfigFromFiles loads a client certificate and CA bundle for mTLS.
func TLSConfigFromFiles(certFile, keyFile, caFile config.Reader[string]) config.Reader[*tls.Config] {
	return config.ReaderFunc[*tls.Config](func(ctx context.Context) (config.Value[*tls.Config], error) {
		certPath, err := config.Read(ctx, certFile)
		if errors.Is(err, config.ErrValueNotSet) {
			return config.Value[*tls.Config]{}, nil
		}
		if err != nil {
			return config.Value[*tls.Config]{}, err
		}

		cert, err := tls.LoadX509KeyPair(certPath, config.Must(ctx, keyFile))
		if err != nil {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: failed to load client certificate: %w", err)
		}

		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		caPath, err := config.Read(ctx, caFile)
		if errors.Is(err, config.ErrValueNotSet) {
			return config.ValueOf(tlsConfig), nil
		}
		if err != nil {
			return config.Value[*tls.Config]{}, err
		}

		caCert, err := os.ReadFile(caPath)
		if err != nil {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return config.Value[*tls.Config]{}, fmt.Errorf("kafka: no certificates found in %s", caPath)
		}
		tlsConfig.RootCAs = pool

		return config.ValueOf(tlsConfig), nil
	})
}

// ConfigFromEnv returns a [Config] which reads every setting from the environment.
func ConfigFromEnv() Config {
	return Config{
		Brokers:          BrokersFromEnv(),
		GroupID:          GroupIDFromEnv(),
		Topic:            TopicFromEnv(),
		SessionTimeout:   SessionTimeoutFromEnv(),
		RebalanceTimeout: RebalanceTimeoutFromEnv(),
		FetchMaxBytes:    FetchMaxBytesFromEnv(),
		TLSConfig: TLSConfigFromFiles(
			config.Env("KAFKA_TLS_CERT_FILE"),
			config.Env("KAFKA_TLS_KEY_FILE"),
			config.Env("KAFKA_TLS_CA_FILE"),
		),
	}
}

// Enabled reports whether brokers are configured.
func (cfg Config) Enabled(ctx context.Context) bool {
	brokers, err := config.Read(ctx, cfg.Brokers)
	return err == nil && len(brokers) > 0
}

// ClientOptions resolves cfg into franz-go client options. Brokers, group ID
// and topic are required. The client never auto commits.
func (cfg Config) ClientOptions(ctx context.Context) ([]kgo.Opt, error) {
	brokers, err := config.Read(ctx, cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("kafka: brokers: %w", err)
	}
	groupID, err := config.Read(ctx, cfg.GroupID)
	if err != nil {
		return nil, fmt.Errorf("kafka: group id: %w", err)
	}
	topic, err := config.Read(ctx, cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("kafka: topic: %w", err)
	}

	opts := []kgo.Opt{
		kgo.WithLogger(kslog.New(drain.Logger("github.com/twmb/franz-go/pkg/kgo").With(GroupIDAttr(groupID)))),
		kgo.WithHooks(
			kotel.NewKotel(
				kotel.WithTracer(kotel.NewTracer(
					kotel.TracerProvider(otel.GetTracerProvider()),
					kotel.TracerPropagator(otel.GetTextMapPropagator()),
					kotel.LinkSpans(),
					kotel.ConsumerGroup(groupID),
				)),
				kotel.WithMeter(kotel.NewMeter(
					kotel.MeterProvider(otel.GetMeterProvider()),
					kotel.WithMergedConnectsMeter(),
				)),
			).Hooks()...,
		),
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.Balancers(kgo.CooperativeStickyBalancer()),
		kgo.SessionTimeout(config.MustOr(ctx, 45*time.Second, cfg.SessionTimeout)),
		kgo.RebalanceTimeout(config.MustOr(ctx, 30*time.Second, cfg.RebalanceTimeout)),
		kgo.FetchMaxBytes(config.MustOr(ctx, int32(50*1024*1024), cfg.FetchMaxBytes)),
		kgo.DisableAutoCommit(),
	}

	tlsConfig := config.MustOr(ctx, (*tls.Config)(nil), cfg.TLSConfig)
	if tlsConfig != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsConfig))
	}
	return opts, nil
}

// Build returns a builder for a [Source] pushing into the store read from store.
func Build[T any](cfg Config, store config.Reader[queue.Store[T]], codec queue.Codec[T]) app.Builder[*Source[T]] {
	return app.BuilderFunc[*Source[T]](func(ctx context.Context) (*Source[T], error) {
		opts, err := cfg.ClientOptions(ctx)
		if err != nil {
			return nil, err
		}

		s, err := config.Read(ctx, store)
		if err != nil {
			return nil, err
		}

		newClient := func() (Client, error) {
			return kgo.NewClient(opts...)
		}
		return NewSource(newClient, s, codec), nil
	})
}
