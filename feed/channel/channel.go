// Package channel provides an in-process Go channel feed transport, useful
// for tests and for consumers living in the same binary.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/statetree/feed"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultBufferSize is the per-subscriber buffer. Observers run on the
// notifier's drain goroutine, so publishing must not wait for a slow reader.
const DefaultBufferSize = 256

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	feed.Register(TransportName, Build)
}

// Build creates a new Go channel transport.
func Build(_ context.Context, _ feed.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	pub, sub := Factory(gochannel.Config{
		OutputChannelBuffer: DefaultBufferSize,
	}, logger)
	return feed.Transport{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
