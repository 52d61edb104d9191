// Package http provides a webhook-style feed transport: change events are
// POSTed to HTTPPublisherURL + topic.
package http

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/statetree/feed"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(addr string, config http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return http.NewSubscriber(addr, config, logger)
}

func init() {
	feed.Register(TransportName, Build)
}

// Build creates the HTTP publisher. A subscriber (an HTTP server receiving
// the same POSTs) is only created when HTTPServerAddress is set.
func Build(_ context.Context, cfg feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	publisherURL := cfg.GetHTTPPublisherURL()
	if publisherURL == "" {
		return feed.Transport{}, fmt.Errorf("http: publisher url is required")
	}

	publisher, err := PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: marshalTo(publisherURL),
		},
		logger,
	)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("http: create publisher: %w", err)
	}

	serverAddr := cfg.GetHTTPServerAddress()
	if serverAddr == "" {
		return feed.Transport{Publisher: publisher}, nil
	}

	subscriber, err := SubscriberFactory(
		serverAddr,
		http.SubscriberConfig{
			UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return feed.Transport{}, fmt.Errorf("http: create subscriber: %w", err)
	}

	go func() {
		if s, ok := subscriber.(*http.Subscriber); ok {
			if err := s.StartHTTPServer(); err != nil && err != nethttp.ErrServerClosed {
				logger.Error("Failed to start HTTP feed server", err, watermill.LogFields{"addr": serverAddr})
			}
		}
	}()

	return feed.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

func marshalTo(baseURL string) http.MarshalMessageFunc {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return func(topic string, msg *message.Message) (*nethttp.Request, error) {
		return http.DefaultMarshalMessageFunc(baseURL+topic, msg)
	}
}
