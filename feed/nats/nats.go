// Package nats provides a NATS Core feed transport. Change events are plain
// subject publishes; JetStream is not used.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/drblury/statetree/feed"
)

// TransportName is the name used to register this transport.
const TransportName = "nats"

// ConnectionName identifies feed connections in NATS monitoring.
const ConnectionName = "statetree-feed"

// ReconnectWait is the pause between reconnect attempts. The feed reconnects
// indefinitely.
const ReconnectWait = 2 * time.Second

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

func init() {
	feed.Register(TransportName, Build)
}

func connectOptions() []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(ConnectionName),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(ReconnectWait),
	}
}

// Build creates a NATS Core transport. Core NATS has no persistence, so
// consumers only see changes published while they are subscribed.
func Build(_ context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return feed.Transport{}, fmt.Errorf("nats: url is required")
	}
	marshaler := &wmnats.NATSMarshaler{}
	core := wmnats.JetStreamConfig{Disabled: true}

	publisher, err := PublisherFactory(wmnats.PublisherConfig{
		URL:         url,
		NatsOptions: connectOptions(),
		Marshaler:   marshaler,
		JetStream:   core,
	}, logger)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("nats: create publisher: %w", err)
	}

	subscriber, err := SubscriberFactory(wmnats.SubscriberConfig{
		URL:         url,
		NatsOptions: connectOptions(),
		Unmarshaler: marshaler,
		JetStream:   core,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return feed.Transport{}, fmt.Errorf("nats: create subscriber: %w", err)
	}

	return feed.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}
