// Package kafka provides a Kafka feed transport.
package kafka

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/statetree/feed"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	feed.Register(TransportName, Build)
}

// Build creates a Kafka publisher and, when a consumer group is configured,
// a subscriber for following the feed.
func Build(_ context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return feed.Transport{}, fmt.Errorf("kafka: at least one broker is required")
	}

	saramaPub := kafka.DefaultSaramaSyncPublisherConfig()
	if id := cfg.GetKafkaClientID(); id != "" {
		saramaPub.ClientID = id
	}

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPub,
		},
		logger,
	)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("kafka: create publisher: %w", err)
	}

	group := cfg.GetKafkaConsumerGroup()
	if group == "" {
		return feed.Transport{Publisher: publisher}, nil
	}

	saramaSub := kafka.DefaultSaramaSubscriberConfig()
	if id := cfg.GetKafkaClientID(); id != "" {
		saramaSub.ClientID = id
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			ConsumerGroup:         group,
			OverwriteSaramaConfig: saramaSub,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return feed.Transport{}, fmt.Errorf("kafka: create subscriber: %w", err)
	}

	return feed.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
