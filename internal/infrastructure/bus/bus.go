package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/cassiomorais/payments-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/kafka"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/rabbitmq"
	infraRedis "github.com/cassiomorais/payments-gateway/internal/infrastructure/redis"
)

// Publisher publishes a JSON payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bus is the outbound event bus selected by configuration.
type Bus struct {
	Publisher
	// Ping checks the broker is reachable.
	Ping  func(ctx context.Context) error
	close func() error
}

func (b *Bus) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// redisStreamMaxLen caps each event stream so an absent consumer cannot
// grow Redis memory without bound.
const redisStreamMaxLen = 100_000

// New builds the publisher for cfg.Driver. rdb is required for the redis
// driver only.
func New(ctx context.Context, cfg config.BusConfig, rdb *redis.Client, metrics *observability.Metrics, logger zerolog.Logger) (*Bus, error) {
	var b *Bus

	switch cfg.Driver {
	case config.BusDriverRedis:
		if rdb == nil {
			return nil, errors.New("redis bus driver requires a redis client")
		}
		b = &Bus{
			Publisher: infraRedis.NewStreamPublisher(rdb, redisStreamMaxLen),
			Ping:      func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}

	case config.BusDriverKafka:
		pub := kafka.NewPublisher(kafka.NewWriter(cfg.KafkaBrokers))
		b = &Bus{
			Publisher: pub,
			Ping:      kafkaPing(cfg.KafkaBrokers),
			close:     pub.Close,
		}

	case config.BusDriverRabbitMQ:
		pub, err := rabbitmq.Dial(ctx, cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return nil, err
		}
		b = &Bus{
			Publisher: pub,
			Ping:      pub.Ping,
			close:     pub.Close,
		}

	default:
		return nil, fmt.Errorf("unknown bus driver %q", cfg.Driver)
	}

	b.Publisher = WithMetrics(b.Publisher, metrics)
	logger.Info().Str("driver", cfg.Driver).Msg("event bus ready")
	return b, nil
}

func kafkaPing(brokers []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var lastErr error
		for _, broker := range brokers {
			conn, err := kafkago.DialContext(ctx, "tcp", broker)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			lastErr = errors.New("no kafka brokers configured")
		}
		return lastErr
	}
}

type instrumented struct {
	next    Publisher
	metrics *observability.Metrics
}

// WithMetrics counts publishes by topic and status. A nil metrics returns
// p unchanged.
func WithMetrics(p Publisher, metrics *observability.Metrics) Publisher {
	if metrics == nil {
		return p
	}
	return &instrumented{next: p, metrics: metrics}
}

func (i *instrumented) Publish(ctx context.Context, topic string, payload any) error {
	err := i.next.Publish(ctx, topic, payload)
	status := "success"
	if err != nil {
		status = "failed"
	}
	i.metrics.BusPublishTotal.WithLabelValues(topic, status).Inc()
	return err
}
