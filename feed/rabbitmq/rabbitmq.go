// Package rabbitmq provides a RabbitMQ/AMQP feed transport.
package rabbitmq

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/statetree/feed"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	feed.Register(TransportName, Build)
}

// Build creates a fanout exchange per topic so that every consumer queue
// receives every change event. Publisher and subscriber share one connection.
func Build(_ context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	uri := cfg.GetRabbitMQURL()
	if uri == "" {
		return feed.Transport{}, fmt.Errorf("rabbitmq: url is required")
	}

	amqpConfig := amqp.NewDurablePubSubConfig(uri, amqp.GenerateQueueNameTopicNameWithSuffix("statetree"))

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   uri,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("rabbitmq: connect: %w", err)
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("rabbitmq: create publisher: %w", err)
	}

	subscriber, err := SubscriberFactory(amqpConfig, logger, conn)
	if err != nil {
		_ = publisher.Close()
		return feed.Transport{}, fmt.Errorf("rabbitmq: create subscriber: %w", err)
	}

	return feed.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
