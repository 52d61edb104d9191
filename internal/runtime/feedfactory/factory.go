// Package feedfactory builds change-feed transports from a state tree config.
// Importing it links every bundled transport into the binary.
package feedfactory

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/statetree/feed"
	"github.com/drblury/statetree/internal/runtime/config"

	// Register the bundled transports.
	_ "github.com/drblury/statetree/feed/aws"
	_ "github.com/drblury/statetree/feed/channel"
	_ "github.com/drblury/statetree/feed/http"
	_ "github.com/drblury/statetree/feed/kafka"
	_ "github.com/drblury/statetree/feed/nats"
	_ "github.com/drblury/statetree/feed/rabbitmq"
)

// Factory abstracts how a state tree initialises its change-feed transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (feed.Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (feed.Transport, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns a factory backed by feed.DefaultRegistry.
func DefaultFactory() Factory {
	return registryFactory{registry: feed.DefaultRegistry}
}

// RegistryFactory returns a factory backed by reg.
func RegistryFactory(reg *feed.Registry) Factory {
	return registryFactory{registry: reg}
}

type registryFactory struct {
	registry *feed.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (feed.Transport, error) {
	if conf == nil {
		return feed.Transport{}, fmt.Errorf("config is required")
	}
	t, err := f.registry.Build(ctx, conf, logger)
	if err != nil {
		return feed.Transport{}, fmt.Errorf("build %s feed transport: %w", conf.GetFeedSystem(), err)
	}
	if t.Publisher == nil {
		return feed.Transport{}, fmt.Errorf("build %s feed transport: no publisher", conf.GetFeedSystem())
	}
	return t, nil
}
