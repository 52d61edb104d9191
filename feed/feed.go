// Package feed builds the Watermill transports the state tree change feed
// publishes to. Each transport (kafka, rabbitmq, aws, ...) lives in its own
// sub-package and registers itself with the registry on import.
package feed

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport pairs the publisher the feed writes to with a subscriber that
// consumers can use to follow it.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close closes both sides. A pub/sub used for both is closed once.
func (t Transport) Close() error {
	var errs []error
	if t.Publisher != nil {
		errs = append(errs, t.Publisher.Close())
	}
	if t.Subscriber != nil && any(t.Subscriber) != any(t.Publisher) {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values transports read. *config.Config implements it.
type Config interface {
	// GetFeedSystem returns the transport name.
	GetFeedSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
