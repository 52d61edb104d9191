package feedfactory

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/statetree/feed"
	"github.com/drblury/statetree/internal/runtime/config"
	"github.com/drblury/statetree/internal/runtime/logging"
)

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func TestDefaultFactoryRegistersBundledTransports(t *testing.T) {
	for _, name := range []string{"aws", "channel", "http", "kafka", "nats", "rabbitmq"} {
		assert.True(t, feed.DefaultRegistry.Has(name), name)
	}
}

func TestDefaultFactoryBuildsChannel(t *testing.T) {
	tr, err := DefaultFactory().Build(context.Background(), &config.Config{FeedSystem: "channel"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
}

func TestFactoryErrors(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.EqualError(t, err, "config is required")

	_, err = DefaultFactory().Build(context.Background(), &config.Config{FeedSystem: "carrier-pigeon"}, testLogger())
	assert.ErrorContains(t, err, "build carrier-pigeon feed transport")

	reg := feed.NewRegistry()
	reg.Register("empty", func(context.Context, feed.Config, watermill.LoggerAdapter) (feed.Transport, error) {
		return feed.Transport{}, nil
	})
	_, err = RegistryFactory(reg).Build(context.Background(), &config.Config{FeedSystem: "empty"}, testLogger())
	assert.ErrorContains(t, err, "no publisher")
}

func TestFactoryFunc(t *testing.T) {
	called := false
	f := FactoryFunc(func(context.Context, *config.Config, watermill.LoggerAdapter) (feed.Transport, error) {
		called = true
		return feed.Transport{}, nil
	})
	_, err := f.Build(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}
